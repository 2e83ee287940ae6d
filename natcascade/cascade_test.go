package natcascade

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/zfogg/ascii-chat/internal/metrics"
	"github.com/zfogg/ascii-chat/transport"
)

func TestBackoffDoublesUpToMax(t *testing.T) {
	d := backoff(0, time.Second)
	if d != defaultRetryTime {
		t.Fatalf("expected default retry time on zero input, got %v", d)
	}
	d = backoff(300*time.Millisecond, time.Second)
	if d != 600*time.Millisecond {
		t.Fatalf("expected doubled duration, got %v", d)
	}
	d = backoff(800*time.Millisecond, time.Second)
	if d != time.Second {
		t.Fatalf("expected clamp to max, got %v", d)
	}
}

func TestConnectSucceedsOnDirectTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	tgt := Target{DirectAddr: ln.Addr().String()}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	tr, stage, err := Connect(ctx, tgt, nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer tr.Close()
	if stage != 1 {
		t.Fatalf("expected stage 1 to win against a live listener, got stage %d", stage)
	}
	if tr.Kind() != transport.KindDirectTCP {
		t.Fatalf("expected direct TCP transport, got %v", tr.Kind())
	}
}

func TestConnectRecordsStageMetrics(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	m := metrics.New()
	tgt := Target{DirectAddr: ln.Addr().String()}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	tr, _, err := Connect(ctx, tgt, m)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer tr.Close()

	if got := testutil.ToFloat64(m.NatStageOutcome.WithLabelValues("1", "succeeded")); got != 1 {
		t.Fatalf("expected one succeeded stage-1 outcome recorded, got %v", got)
	}
}

func TestConnectFailsWhenNoStageCanSucceed(t *testing.T) {
	tgt := Target{
		DirectAddr: "127.0.0.1:1", // nobody listens on port 1
		Signaler:   failingSignaler{},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, _, err := Connect(ctx, tgt, nil)
	if err == nil {
		t.Fatalf("expected all stages to fail")
	}
}

type failingSignaler struct{}

func (failingSignaler) Offer(ctx context.Context, sdp string) (string, error) {
	return "", context.DeadlineExceeded
}
func (failingSignaler) Candidates(ctx context.Context) (<-chan string, error) {
	ch := make(chan string)
	close(ch)
	return ch, nil
}
func (failingSignaler) SendCandidate(ctx context.Context, candidate string) error { return nil }

func TestBackupAddrBroadcasterRespectsInterval(t *testing.T) {
	fixedJitter := func() time.Duration { return 0 }
	b := NewBackupAddrBroadcaster(fixedJitter)

	now := time.Now()
	if !b.ShouldBroadcast(now) {
		t.Fatalf("expected first call to broadcast")
	}
	if b.ShouldBroadcast(now.Add(time.Second)) {
		t.Fatalf("expected no broadcast before interval elapses")
	}
	if !b.ShouldBroadcast(now.Add(backupAddrMaxInterval + time.Second)) {
		t.Fatalf("expected broadcast once interval has elapsed")
	}
}

func TestBackupAddrStoreRoundTrips(t *testing.T) {
	s := NewBackupAddrStore()
	if s.Get() != "" {
		t.Fatalf("expected empty store initially")
	}
	s.Set("203.0.113.5:9000")
	if got := s.Get(); got != "203.0.113.5:9000" {
		t.Fatalf("unexpected stored address %q", got)
	}
}

func TestTryUPnPFailsGracefullyWithNoGateway(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 1200*time.Millisecond)
	defer cancel()
	_, ok := TryUPnP(ctx, 9999)
	if ok {
		t.Skip("a real IGD responded to SSDP in this environment")
	}
}
