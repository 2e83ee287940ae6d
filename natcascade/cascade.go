// Package natcascade orchestrates the 3-stage connection cascade: a
// direct TCP dial, a STUN-assisted P2P datachannel started
// speculatively while stage 1 is still in flight, and a TURN-relayed
// datachannel as last resort. Whichever stage finishes first cancels
// the rest. Grounded on ingest/muxer.go's getConnection retry loop and
// ingest/ingestConnection.go's target-dial-with-fallback shape, plus
// other_examples/88157f99_n0remac-robot-webrtc__webrtc-sfu.go for the
// pion/webrtc ICE server wiring.
package natcascade

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/zfogg/ascii-chat/internal/metrics"
	"github.com/zfogg/ascii-chat/transport"
)

// Stage budgets for the connection cascade.
const (
	stage1Budget   = 3 * time.Second
	stage2Budget   = 8 * time.Second
	stage3Budget   = 15 * time.Second
	stage2Delay    = 500 * time.Millisecond
	defaultRetryTime = 250 * time.Millisecond
)

// backoff doubles curr up to max, returning defaultRetryTime when curr
// is not yet set. Nothing in this package calls it: the cascade stages
// use hard per-stage budgets, not backoff.
func backoff(curr, max time.Duration) time.Duration {
	if curr <= 0 {
		return defaultRetryTime
	}
	if curr = curr * 2; curr > max {
		curr = max
	}
	return curr
}

// Target describes the candidate addresses and signaling plumbing
// needed to attempt every stage of the cascade against one peer.
type Target struct {
	DirectAddr   string // declared/published address for stage 1
	ICEServers   []transport.ICEServerConfig
	Signaler     Signaler
	RemotePeerID string
}

// Signaler exchanges SDP offer/answer and ICE candidates with the
// remote peer via ACDS, decoupling natcascade from the discovery
// package's websocket transport.
type Signaler interface {
	// Offer sends a local SDP offer and blocks for the remote answer.
	Offer(ctx context.Context, sdp string) (answerSDP string, err error)
	// Candidates yields ICE candidates discovered for the remote peer.
	Candidates(ctx context.Context) (<-chan string, error)
	// SendCandidate forwards a locally discovered ICE candidate.
	SendCandidate(ctx context.Context, candidate string) error
}

// stageResult carries a winning transport plus which stage produced
// it, so the caller can log/report the chosen path.
type stageResult struct {
	tr    transport.Transport
	stage int
	err   error
}

// Connect runs the full cascade against tgt and returns the transport
// produced by whichever stage finishes first. Stage 1 starts
// immediately; stage 2 starts stage2Delay later unless stage 1 has
// already succeeded; stage 3 starts only once stage 2 fails or its
// budget expires. A successful earlier stage cancels every later one.
// m may be nil; when set, every stage's outcome and latency since
// Connect was called is recorded against it.
func Connect(ctx context.Context, tgt Target, m *metrics.Collectors) (transport.Transport, int, error) {
	start := time.Now()
	results := make(chan stageResult, 3)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go runStage1(ctx, tgt, results)

	stage2Timer := time.NewTimer(stage2Delay)
	defer stage2Timer.Stop()

	var errs []error
	stagesRunning := 1
	stage2Started := false

	for stagesRunning > 0 || !stage2Started {
		select {
		case <-stage2Timer.C:
			if !stage2Started {
				stage2Started = true
				stagesRunning++
				go runStage2(ctx, tgt, results)
			}
		case res := <-results:
			stagesRunning--
			recordStageOutcome(m, res.stage, res.err, time.Since(start))
			if res.err == nil {
				cancel()
				return res.tr, res.stage, nil
			}
			errs = append(errs, fmt.Errorf("stage %d: %w", res.stage, res.err))
			if res.stage == 2 {
				stagesRunning++
				go runStage3(ctx, tgt, results)
			}
			if stagesRunning == 0 && stage2Started {
				return nil, 0, fmt.Errorf("natcascade: all stages failed: %v", errs)
			}
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		}
	}
	return nil, 0, fmt.Errorf("natcascade: all stages failed: %v", errs)
}

func recordStageOutcome(m *metrics.Collectors, stage int, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "succeeded"
	switch {
	case err == nil:
	case err == context.Canceled:
		outcome = "cancelled"
	case err == context.DeadlineExceeded:
		outcome = "timed_out"
	default:
		outcome = "timed_out"
	}
	label := strconv.Itoa(stage)
	m.NatStageOutcome.WithLabelValues(label, outcome).Inc()
	m.NatStageLatency.WithLabelValues(label).Observe(elapsed.Seconds())
}

func runStage1(ctx context.Context, tgt Target, results chan<- stageResult) {
	ctx, cancel := context.WithTimeout(ctx, stage1Budget)
	defer cancel()
	tr, err := transport.DialTCP(ctx, tgt.DirectAddr, stage1Budget, defaultRetryTime)
	results <- stageResult{tr: tr, stage: 1, err: err}
}

func runStage2(ctx context.Context, tgt Target, results chan<- stageResult) {
	ctx, cancel := context.WithTimeout(ctx, stage2Budget)
	defer cancel()
	tr, err := dialDatachannel(ctx, tgt, transport.KindSTUNRelay)
	results <- stageResult{tr: tr, stage: 2, err: err}
}

func runStage3(ctx context.Context, tgt Target, results chan<- stageResult) {
	ctx, cancel := context.WithTimeout(ctx, stage3Budget)
	defer cancel()
	tr, err := dialDatachannel(ctx, tgt, transport.KindTURNRelay)
	results <- stageResult{tr: tr, stage: 3, err: err}
}
