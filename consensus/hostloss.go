package consensus

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// hostLossQuorumWindow is the window within which at least ceil(N/2)
// independent ACIP_HOST_LOST reports must arrive to declare the host
// actually lost, guarding against one participant's transient local
// network blip triggering a spurious re-election.
const hostLossQuorumWindow = 500 * time.Millisecond

// HostLossTracker accumulates ACIP_HOST_LOST reports for the currently
// elected host and declares loss once quorum is reached inside the
// window. One tracker instance covers one host's lifetime; callers
// create a fresh tracker after each successful election.
type HostLossTracker struct {
	mtx       sync.Mutex
	host      uuid.UUID
	reporters map[uuid.UUID]time.Time
	windowAt  time.Time
}

// NewHostLossTracker starts tracking reports against host.
func NewHostLossTracker(host uuid.UUID) *HostLossTracker {
	return &HostLossTracker{host: host, reporters: make(map[uuid.UUID]time.Time)}
}

// Report records that reporter observed host as unreachable. ringSize
// is the current ring membership used to compute the quorum threshold.
// The window opens at the first report and lasts hostLossQuorumWindow; a
// report arriving after it has closed discards the earlier reports and
// opens a new window. It returns true the instant quorum is reached
// inside the current window.
func (h *HostLossTracker) Report(reporter uuid.UUID, ringSize int) bool {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	now := time.Now()
	if h.windowAt.IsZero() || now.Sub(h.windowAt) > hostLossQuorumWindow {
		h.windowAt = now
		h.reporters = make(map[uuid.UUID]time.Time)
	}
	h.reporters[reporter] = now

	quorum := (ringSize + 1) / 2 // ceil(N/2)
	return len(h.reporters) >= quorum
}

// ElectFutureHost picks the best-scoring eligible participant excluding
// the lost host, used to produce FUTURE_HOST_ELECTED once quorum fires.
func (r *Ring) ElectFutureHost(excluding uuid.UUID) (uuid.UUID, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	var best Participant
	bestScore := -1.0
	for id, p := range r.participants {
		if id == excluding {
			continue
		}
		if s := p.Score(); s > bestScore {
			bestScore = s
			best = p
		}
	}
	if bestScore < 0 {
		return uuid.Nil, false
	}
	return best.ID, true
}
