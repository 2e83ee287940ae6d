// Package metrics exposes Prometheus collectors for the chat runtime
// core: packet throughput by type, handshake outcomes, rekeys, election
// rounds/host changes, and NAT-cascade stage outcomes. No example repo in
// the retrieval pack instruments a P2P protocol specifically, but
// runZeroInc-sockstats's pkg/exporter/exporter.go establishes the idiom
// this package follows: a struct of collectors built once and registered
// into a caller-supplied *prometheus.Registry rather than the global
// default registry, so tests can construct independent instances.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors bundles every metric this module emits. Construct one with
// New and register it with whatever *prometheus.Registry the embedding
// application exposes.
type Collectors struct {
	PacketsEncoded  *prometheus.CounterVec // labels: type
	PacketsDecoded  *prometheus.CounterVec // labels: type
	PacketErrors    *prometheus.CounterVec // labels: kind
	Handshakes      *prometheus.CounterVec // labels: outcome
	Rekeys          *prometheus.CounterVec // labels: outcome
	ElectionRounds  prometheus.Counter
	HostChanges     prometheus.Counter
	RoundDuration   prometheus.Histogram
	NatStageOutcome *prometheus.CounterVec // labels: stage, outcome
	NatStageLatency *prometheus.HistogramVec // labels: stage
}

// New constructs a fresh Collectors bundle. Each call returns independent
// metric objects so multiple chat-runtime instances (or tests) never
// collide on a shared default registry.
func New() *Collectors {
	return &Collectors{
		PacketsEncoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "acip",
			Name:      "packets_encoded_total",
			Help:      "ACIP packets encoded, by type.",
		}, []string{"type"}),
		PacketsDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "acip",
			Name:      "packets_decoded_total",
			Help:      "ACIP packets decoded, by type.",
		}, []string{"type"}),
		PacketErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "acip",
			Name:      "packet_errors_total",
			Help:      "ACIP frame decode errors, by kind (bad_magic, checksum_mismatch, length_overflow, unknown_type, eof).",
		}, []string{"kind"}),
		Handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "acip",
			Name:      "handshakes_total",
			Help:      "Completed handshake attempts, by outcome (active, bad_signature, peer_key_changed, timeout, policy_violation).",
		}, []string{"outcome"}),
		Rekeys: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "acip",
			Name:      "rekeys_total",
			Help:      "Rekey attempts, by outcome (completed, rolled_back).",
		}, []string{"outcome"}),
		ElectionRounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "consensus",
			Name:      "election_rounds_total",
			Help:      "Ring-election rounds completed.",
		}),
		HostChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "consensus",
			Name:      "host_changes_total",
			Help:      "Host designations issued, including migrations and failovers.",
		}),
		RoundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "consensus",
			Name:      "round_duration_seconds",
			Help:      "Wall-clock duration of a ring-collection round.",
			Buckets:   prometheus.DefBuckets,
		}),
		NatStageOutcome: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "natcascade",
			Name:      "stage_outcomes_total",
			Help:      "NAT-traversal cascade stage outcomes, by stage and outcome (succeeded, timed_out, cancelled).",
		}, []string{"stage", "outcome"}),
		NatStageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "natcascade",
			Name:      "stage_latency_seconds",
			Help:      "Time from cascade start to a stage's connection outcome.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2, 3, 5, 8, 13, 15, 20},
		}, []string{"stage"}),
	}
}

// MustRegister registers every collector in the bundle against reg.
func (c *Collectors) MustRegister(reg *prometheus.Registry) {
	reg.MustRegister(
		c.PacketsEncoded, c.PacketsDecoded, c.PacketErrors,
		c.Handshakes, c.Rekeys,
		c.ElectionRounds, c.HostChanges, c.RoundDuration,
		c.NatStageOutcome, c.NatStageLatency,
	)
}
