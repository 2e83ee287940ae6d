// Package consensus implements the ring-based host-election and
// settings-sync protocol that lets a P2P session agree on which
// participant relays video/audio without a dedicated server. Grounded
// on ingest/muxer.go's connHot/connDead liveness bookkeeping and its
// backoff-based retry loop, adapted from "which ingest connections are
// alive" to "which ring participants reported metrics this round".
package consensus

import (
	"time"

	"github.com/google/uuid"
)

// NATTier ranks how reachable a participant is, used as an eligibility
// floor in scoring: a participant behind a relay-only NAT cannot become
// host even with the best raw metrics, since every other participant
// would have to tunnel through TURN to reach it.
type NATTier int

const (
	TierDirect NATTier = iota // publicly reachable or behind a simple cone NAT
	TierP2P                   // reachable via STUN-assisted hole punching
	TierRelay                 // reachable only via TURN relay
)

// EligibleForHost reports whether this tier meets the floor required to
// be elected host.
func (t NATTier) EligibleForHost() bool { return t != TierRelay }

// Participant is one ring member's latest reported metrics.
type Participant struct {
	ID         uuid.UUID
	UploadKbps float64
	RTTNs      int64
	LossPct    float64
	NATTier    NATTier
	LastSeen   time.Time
}

// Score computes the election weight for this participant (higher is
// better): weighted upload bandwidth, inverted RTT, and inverted loss,
// each normalized to a comparable range. Weights are this
// implementation's resolution of the scoring formula's open
// coefficients, chosen so that upload bandwidth dominates (it gates how
// many peers can be served) while still letting a much worse RTT or
// loss rate override a marginal bandwidth edge.
const (
	weightUpload = 0.5
	weightRTT    = 0.3
	weightLoss   = 0.2
)

func (p Participant) Score() float64 {
	if !p.NATTier.EligibleForHost() {
		return -1 // floor: ineligible participants never win
	}
	rttMs := float64(p.RTTNs) / 1e6
	if rttMs > 10000 {
		rttMs = 10000
	}
	loss := p.LossPct
	if loss > 100 {
		loss = 100
	}
	return weightUpload*p.UploadKbps + weightRTT*(10000-rttMs) + weightLoss*(100-loss)
}
