package consensus

import (
	"github.com/google/uuid"
)

// migrationMargin is the advantage a challenger must hold over the
// current host's score, expressed as a fraction (0.20 = 20%).
const migrationMargin = 0.20

// migrationRoundsRequired is how many consecutive rounds a challenger
// must sustain its advantage before the ring actually migrates host,
// damping flapping from a single noisy measurement.
const migrationRoundsRequired = 2

// EvaluateRound runs one election round against the current snapshot:
// it finds the best-scoring eligible challenger, tracks the
// migration-streak counter, and returns the new host if a migration is
// now due. ok is false when no migration should happen this round
// (either no challenger beats the host by the margin, or it hasn't yet
// sustained it for migrationRoundsRequired rounds).
func (r *Ring) EvaluateRound() (newHost uuid.UUID, ok bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if len(r.participants) == 0 {
		return uuid.Nil, false
	}

	hostScore := -1.0
	if hp, present := r.participants[r.host]; present {
		hostScore = hp.Score()
	}

	var best Participant
	bestScore := -1.0
	for id, p := range r.participants {
		if id == r.host {
			continue
		}
		s := p.Score()
		if s > bestScore {
			bestScore = s
			best = p
		}
	}
	if bestScore < 0 {
		return uuid.Nil, false
	}

	advantage := 0.0
	if hostScore > 0 {
		advantage = (bestScore - hostScore) / hostScore
	} else {
		advantage = 1 // no current host score to beat: any eligible score wins immediately
	}

	if advantage < migrationMargin {
		r.migrationLeader = uuid.Nil
		r.migrationStreak = 0
		return uuid.Nil, false
	}

	if r.migrationLeader == best.ID {
		r.migrationStreak++
	} else {
		r.migrationLeader = best.ID
		r.migrationStreak = 1
	}

	if r.migrationStreak < migrationRoundsRequired {
		return uuid.Nil, false
	}

	r.host = best.ID
	r.migrationLeader = uuid.Nil
	r.migrationStreak = 0
	return best.ID, true
}
