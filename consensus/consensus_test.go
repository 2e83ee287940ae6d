package consensus

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestScoreFloorsIneligibleNATTier(t *testing.T) {
	p := Participant{UploadKbps: 100000, RTTNs: 1_000_000, LossPct: 0, NATTier: TierRelay}
	if p.Score() >= 0 {
		t.Fatalf("expected relay-tier participant to score below eligibility floor, got %f", p.Score())
	}
	p.NATTier = TierDirect
	if p.Score() < 0 {
		t.Fatalf("expected direct-tier participant to score above floor")
	}
}

func TestElectionRequiresTwoConsecutiveRoundsToMigrate(t *testing.T) {
	r := NewRing()
	host := uuid.New()
	challenger := uuid.New()
	r.SetHost(host)
	r.Report(Participant{ID: host, UploadKbps: 1000, RTTNs: 50_000_000, LossPct: 1, NATTier: TierDirect})
	r.Report(Participant{ID: challenger, UploadKbps: 5000, RTTNs: 10_000_000, LossPct: 0, NATTier: TierDirect})

	if _, ok := r.EvaluateRound(); ok {
		t.Fatalf("expected no migration on first round with advantage")
	}
	newHost, ok := r.EvaluateRound()
	if !ok {
		t.Fatalf("expected migration on second consecutive round with sustained advantage")
	}
	if newHost != challenger {
		t.Fatalf("expected challenger to become host")
	}
	if r.Host() != challenger {
		t.Fatalf("expected ring's host to update")
	}
}

func TestElectionDoesNotMigrateBelowMargin(t *testing.T) {
	r := NewRing()
	host := uuid.New()
	challenger := uuid.New()
	r.SetHost(host)
	r.Report(Participant{ID: host, UploadKbps: 1000, RTTNs: 10_000_000, LossPct: 0, NATTier: TierDirect})
	r.Report(Participant{ID: challenger, UploadKbps: 1010, RTTNs: 10_000_000, LossPct: 0, NATTier: TierDirect})

	for i := 0; i < 5; i++ {
		if _, ok := r.EvaluateRound(); ok {
			t.Fatalf("expected no migration for marginal advantage below threshold")
		}
	}
}

func TestHostLossQuorumRequiresMajorityWithinWindow(t *testing.T) {
	host := uuid.New()
	tracker := NewHostLossTracker(host)
	ringSize := 5 // quorum = ceil(5/2) = 3

	if tracker.Report(uuid.New(), ringSize) {
		t.Fatalf("expected no quorum after first report")
	}
	if tracker.Report(uuid.New(), ringSize) {
		t.Fatalf("expected no quorum after second report")
	}
	if !tracker.Report(uuid.New(), ringSize) {
		t.Fatalf("expected quorum after third independent report")
	}
}

func TestHostLossWindowResetsStaleReports(t *testing.T) {
	host := uuid.New()
	tracker := NewHostLossTracker(host)
	tracker.Report(uuid.New(), 5)
	tracker.windowAt = time.Now().Add(-time.Second)
	if tracker.Report(uuid.New(), 5) {
		t.Fatalf("expected stale first report to be dropped, not counted toward quorum")
	}
}

func TestElectFutureHostExcludesLostHost(t *testing.T) {
	r := NewRing()
	host := uuid.New()
	other := uuid.New()
	r.SetHost(host)
	r.Report(Participant{ID: host, UploadKbps: 10000, RTTNs: 1_000_000, LossPct: 0, NATTier: TierDirect})
	r.Report(Participant{ID: other, UploadKbps: 10, RTTNs: 200_000_000, LossPct: 50, NATTier: TierDirect})

	next, ok := r.ElectFutureHost(host)
	if !ok {
		t.Fatalf("expected a future host to be found")
	}
	if next != other {
		t.Fatalf("expected the only remaining participant to be elected")
	}
}

func TestSettingsEpochRejectsStaleUpdates(t *testing.T) {
	r := NewRing()
	e1 := r.AdvanceEpoch()
	if !r.AcceptRemoteEpoch(e1 + 1) {
		t.Fatalf("expected newer epoch to be accepted")
	}
	if r.AcceptRemoteEpoch(e1) {
		t.Fatalf("expected stale epoch to be rejected")
	}
}

func TestRoundCollectorHalvesDeadlineOnShortfall(t *testing.T) {
	rc := NewRoundCollector(1200 * time.Millisecond)
	reports := make(chan struct{})
	ctx := context.Background()

	got := rc.CollectRound(ctx, 3, reports)
	if got != 0 {
		t.Fatalf("expected 0 reports collected before timeout, got %d", got)
	}
	if rc.deadline != 600*time.Millisecond {
		t.Fatalf("expected deadline halved to 600ms, got %v", rc.deadline)
	}
}

func TestRoundCollectorResetsDeadlineOnFullRound(t *testing.T) {
	rc := NewRoundCollector(100 * time.Millisecond)
	rc.deadline = 25 * time.Millisecond
	reports := make(chan struct{}, 2)
	reports <- struct{}{}
	reports <- struct{}{}
	got := rc.CollectRound(context.Background(), 2, reports)
	if got != 2 {
		t.Fatalf("expected 2 reports collected, got %d", got)
	}
	if rc.deadline != 100*time.Millisecond {
		t.Fatalf("expected deadline reset to base after a full round, got %v", rc.deadline)
	}
}

func TestRunRoundReportsAllSuccessfulPolls(t *testing.T) {
	r := NewRing()
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	r.Report(Participant{ID: a, NATTier: TierDirect})
	r.Report(Participant{ID: b, NATTier: TierDirect})
	r.Report(Participant{ID: c, NATTier: TierDirect})

	rc := NewRoundCollector(2 * time.Second)
	poll := func(ctx context.Context, id uuid.UUID) (Participant, error) {
		if id == c {
			return Participant{}, ErrPollFailed
		}
		return Participant{ID: id, UploadKbps: 500, NATTier: TierDirect}, nil
	}

	got := RunRound(context.Background(), r, rc, poll)
	if got != 2 {
		t.Fatalf("expected 2 successful reports out of 3 participants, got %d", got)
	}
}

func TestPollFromSourcesReportsThroughputAndMissingID(t *testing.T) {
	id := uuid.New()
	src := NewSource(id, TierP2P)
	src.RecordBytesSent(125_000) // 1Mb
	src.estimate.RecordPingSent()
	src.estimate.RecordPongReceived()

	poll := PollFromSources(map[uuid.UUID]*Source{id: src})

	p, err := poll(context.Background(), id)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if p.UploadKbps <= 0 {
		t.Fatalf("expected positive upload estimate, got %v", p.UploadKbps)
	}
	if p.NATTier != TierP2P {
		t.Fatalf("expected tier to carry through, got %v", p.NATTier)
	}

	if _, err := poll(context.Background(), uuid.New()); err != ErrPollFailed {
		t.Fatalf("expected ErrPollFailed for unknown id, got %v", err)
	}
}
