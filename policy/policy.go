// Package policy carries the enumerated configuration record that
// replaces the source repository's compile-time ASCIICHAT_* feature
// flags. It is constructed by the caller — config file parsing, CLI
// flags, and environment variables are external collaborators — and
// passed by value into the components that need it.
package policy

import "time"

// Policy is the full set of runtime knobs the chat runtime exposes.
type Policy struct {
	RequireEncryption bool
	RequirePinning    bool

	RekeyBytes   uint64
	RekeySeconds uint32

	RoundDeadlineMs uint32

	// StageBudgets holds the three NAT-cascade stage budgets in
	// milliseconds: direct TCP, STUN-assisted P2P, TURN relay.
	StageBudgets [3]uint32

	ReplayWindow uint32

	// InsecureSkipTOFU disables known-hosts pinning entirely. Setting
	// this must also set ASCII_CHAT_INSECURE_NO_HOST_IDENTITY_CHECK at
	// the process level so the runtime warning fires.
	InsecureSkipTOFU bool
}

// Default returns the stated default policy: rekey at >=1GiB or >=1h, a
// 5s round deadline, 3s/8s/15s NAT stage budgets, and a 64-packet
// replay window.
func Default() Policy {
	return Policy{
		RequireEncryption: true,
		RequirePinning:    true,
		RekeyBytes:        1 << 30, // 1 GiB
		RekeySeconds:       3600,    // 1 hour
		RoundDeadlineMs:    5000,
		StageBudgets:       [3]uint32{3000, 8000, 15000},
		ReplayWindow:       64,
		InsecureSkipTOFU:   false,
	}
}

// RekeyTimeThreshold is RekeySeconds as a time.Duration.
func (p Policy) RekeyTimeThreshold() time.Duration {
	return time.Duration(p.RekeySeconds) * time.Second
}

// RoundDeadline is RoundDeadlineMs as a time.Duration.
func (p Policy) RoundDeadline() time.Duration {
	return time.Duration(p.RoundDeadlineMs) * time.Millisecond
}

// StageBudgetDurations returns the three NAT-cascade stage budgets as
// time.Durations in stage order (direct, p2p, turn).
func (p Policy) StageBudgetDurations() [3]time.Duration {
	return [3]time.Duration{
		time.Duration(p.StageBudgets[0]) * time.Millisecond,
		time.Duration(p.StageBudgets[1]) * time.Millisecond,
		time.Duration(p.StageBudgets[2]) * time.Millisecond,
	}
}
