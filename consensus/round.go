package consensus

import (
	"context"
	"time"
)

// minRoundDeadline is the floor a halved deadline never drops below;
// RoundCollector starts at the policy deadline and halves on repeated
// incomplete rounds down to this floor before giving up on waiting for
// stragglers that round.
const minRoundDeadline = 250 * time.Millisecond

// RoundCollector runs one metrics-collection round: it waits for
// reports from every known participant (via the reports channel) up to
// deadline, halving the deadline on each consecutive round that didn't
// hear from everyone, halving the deadline down to minRoundDeadline,
// after which it proceeds with whatever it has.
type RoundCollector struct {
	deadline     time.Duration
	baseDeadline time.Duration
}

// NewRoundCollector starts a collector at baseDeadline (policy.RoundDeadline()).
func NewRoundCollector(baseDeadline time.Duration) *RoundCollector {
	return &RoundCollector{deadline: baseDeadline, baseDeadline: baseDeadline}
}

// CollectRound waits up to the collector's current deadline for want
// reports to arrive on reports, returning however many arrived. It
// halves the deadline for next time when the round came up short, and
// resets to the base deadline once a round collects everyone.
func (rc *RoundCollector) CollectRound(ctx context.Context, want int, reports <-chan struct{}) (got int) {
	deadline := time.NewTimer(rc.deadline)
	defer deadline.Stop()
	for got < want {
		select {
		case <-reports:
			got++
		case <-deadline.C:
			rc.deadline /= 2
			if rc.deadline < minRoundDeadline {
				rc.deadline = minRoundDeadline
			}
			return got
		case <-ctx.Done():
			return got
		}
	}
	rc.deadline = rc.baseDeadline
	return got
}
