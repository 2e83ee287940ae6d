package consensus

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zfogg/ascii-chat/internal/netquality"
)

// Source is the live-connection state supervisor.RunRound needs to turn
// into a Participant each round: a byte counter for upload throughput,
// a NAT tier fixed at join time, and an RTT/loss sampler. Grounded on
// netquality.PingEstimator's RecordPingSent/RecordPongReceived pairing
// with session.Session's identical keepalive bookkeeping, kept as a
// separate counter here since a Source tracks a ring participant across
// rounds rather than one session's liveness.
type Source struct {
	id       uuid.UUID
	tier     NATTier
	estimate *netquality.PingEstimator
	sentB    uint64
	windowAt time.Time
}

// NewSource builds a Source for a freshly joined ring participant.
func NewSource(id uuid.UUID, tier NATTier) *Source {
	return &Source{id: id, tier: tier, estimate: &netquality.PingEstimator{}, windowAt: time.Now()}
}

// RecordBytesSent accumulates outbound media bytes for this round's
// upload-throughput estimate.
func (s *Source) RecordBytesSent(n int) { atomic.AddUint64(&s.sentB, uint64(n)) }

// RecordPingSent/RecordPongReceived forward to the embedded estimator,
// so a caller's existing keepalive loop can drive RTT sampling for free.
func (s *Source) RecordPingSent()     { s.estimate.RecordPingSent() }
func (s *Source) RecordPongReceived() { s.estimate.RecordPongReceived() }

// sampleAndReset turns accumulated byte counts plus the RTT/loss
// estimator into a Participant, then resets the throughput window.
func (s *Source) sampleAndReset() Participant {
	sent := atomic.SwapUint64(&s.sentB, 0)
	elapsed := time.Since(s.windowAt)
	s.windowAt = time.Now()
	var kbps float64
	if elapsed > 0 {
		kbps = float64(sent) * 8 / 1000 / elapsed.Seconds()
	}
	q := s.estimate.Sample()
	return Participant{
		ID:         s.id,
		UploadKbps: kbps,
		RTTNs:      q.RTTNs,
		LossPct:    q.LossPct,
		NATTier:    s.tier,
		LastSeen:   time.Now(),
	}
}

// PollFromSources builds a Poller that reads each round's metrics out of
// a live map of per-participant Sources, for use as RunRound's poll
// argument against a real ring instead of a test's canned closure.
func PollFromSources(sources map[uuid.UUID]*Source) Poller {
	return func(ctx context.Context, id uuid.UUID) (Participant, error) {
		src, ok := sources[id]
		if !ok {
			return Participant{}, ErrPollFailed
		}
		return src.sampleAndReset(), nil
	}
}
