package consensus

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Ring tracks the live participant set for one session and the current
// host election state. All mutation goes through exported methods,
// mirroring ingest/muxer.go's mtx+sync.Cond-guarded connection-pool
// bookkeeping.
type Ring struct {
	mtx sync.RWMutex

	participants map[uuid.UUID]Participant
	host         uuid.UUID

	// migrationStreak counts consecutive rounds in which the same
	// challenger has beaten the host by the migration margin.
	migrationLeader uuid.UUID
	migrationStreak int

	// epoch is the monotonically increasing settings-sync counter;
	// stale SETTINGS_SYNC packets carrying an epoch that isn't strictly
	// greater are ignored.
	epoch uint64
}

// NewRing creates an empty ring with no elected host.
func NewRing() *Ring {
	return &Ring{participants: make(map[uuid.UUID]Participant)}
}

// Report records (or refreshes) a participant's latest metrics.
func (r *Ring) Report(p Participant) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	p.LastSeen = time.Now()
	r.participants[p.ID] = p
}

// Remove drops a participant, e.g. on ClientLeave.
func (r *Ring) Remove(id uuid.UUID) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	delete(r.participants, id)
	if r.migrationLeader == id {
		r.migrationLeader = uuid.Nil
		r.migrationStreak = 0
	}
}

// Host returns the current host, or uuid.Nil if none has been elected
// yet.
func (r *Ring) Host() uuid.UUID {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return r.host
}

// SetHost force-sets the host without going through election scoring,
// used for the initial designation when a session is created.
func (r *Ring) SetHost(id uuid.UUID) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.host = id
	r.migrationLeader = uuid.Nil
	r.migrationStreak = 0
}

// Participants returns a snapshot of the current ring membership.
func (r *Ring) Participants() []Participant {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	out := make([]Participant, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, p)
	}
	return out
}

// Size reports ring membership count.
func (r *Ring) Size() int {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return len(r.participants)
}

// Epoch returns the current settings-sync epoch.
func (r *Ring) Epoch() uint64 {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return r.epoch
}

// AdvanceEpoch is called when applying a locally-originated settings
// change; it returns the new epoch to stamp on the outgoing
// SETTINGS_SYNC packet.
func (r *Ring) AdvanceEpoch() uint64 {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.epoch++
	return r.epoch
}

// AcceptRemoteEpoch reports whether a received SETTINGS_SYNC's epoch is
// newer than what this ring has seen, adopting it if so. A SETTINGS_SYNC
// whose epoch is not strictly greater than the last applied one is
// ignored.
func (r *Ring) AcceptRemoteEpoch(remote uint64) bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if remote <= r.epoch {
		return false
	}
	r.epoch = remote
	return true
}
