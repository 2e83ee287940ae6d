package crypto

import (
	"fmt"
	"sync"
)

// RekeyRequest is CRYPTO_REKEY_REQUEST's payload (type 1201): a fresh
// ephemeral key and the sending side's reason for forcing a rekey
// (byte/time/counter-near-wrap thresholds).
type RekeyReason uint8

const (
	RekeyReasonBytes RekeyReason = iota
	RekeyReasonTime
	RekeyReasonCounterWrap
	RekeyReasonManual
)

type RekeyRequest struct {
	Ephemeral [32]byte
	Reason    RekeyReason
}

func (r *RekeyRequest) MarshalBinary() ([]byte, error) {
	out := make([]byte, 33)
	copy(out[:32], r.Ephemeral[:])
	out[32] = byte(r.Reason)
	return out, nil
}

func (r *RekeyRequest) UnmarshalBinary(data []byte) error {
	if len(data) != 33 {
		return fmt.Errorf("crypto: malformed REKEY_REQUEST (%d bytes)", len(data))
	}
	copy(r.Ephemeral[:], data[:32])
	r.Reason = RekeyReason(data[32])
	return nil
}

// RekeyResponse is CRYPTO_REKEY_RESPONSE's payload (type 1202): the
// peer's own fresh ephemeral key, completing the new DH exchange.
type RekeyResponse struct {
	Ephemeral [32]byte
}

func (r *RekeyResponse) MarshalBinary() ([]byte, error) { return append([]byte{}, r.Ephemeral[:]...), nil }
func (r *RekeyResponse) UnmarshalBinary(data []byte) error {
	if len(data) != 32 {
		return fmt.Errorf("crypto: malformed REKEY_RESPONSE (%d bytes)", len(data))
	}
	copy(r.Ephemeral[:], data)
	return nil
}

// RekeyComplete is CRYPTO_REKEY_COMPLETE's payload (type 1203): a MAC
// over the new session ID proving both sides derived matching keys
// before the old keys are discarded.
type RekeyComplete struct {
	Confirmation [32]byte
}

func computeRekeyConfirmation(txKey [32]byte, newSessionID [sessionIDSize]byte) ([32]byte, error) {
	sum, err := blake2bKeyed(txKey[:], newSessionID[:], []byte("ascii-chat:rekey"))
	var out [32]byte
	if err != nil {
		return out, err
	}
	copy(out[:], sum)
	return out, nil
}

func (r *RekeyComplete) MarshalBinary() ([]byte, error) { return append([]byte{}, r.Confirmation[:]...), nil }
func (r *RekeyComplete) UnmarshalBinary(data []byte) error {
	if len(data) != 32 {
		return fmt.Errorf("crypto: malformed REKEY_COMPLETE (%d bytes)", len(data))
	}
	copy(r.Confirmation[:], data)
	return nil
}

// Rekeyer drives one in-flight rekey. A new SessionKeys is derived
// alongside the old one, which is kept live for decrypting in-flight
// traffic sent under the previous keys until REKEY_COMPLETE is
// verified, at which point Finalize zeroes the old keys and the new
// SessionKeys becomes authoritative.
type Rekeyer struct {
	mu        sync.Mutex
	old       *SessionKeys
	pending   *SessionKeys
	confirmed bool
}

// NewRekeyer begins a rekey, keeping old alive for decryption fallback.
func NewRekeyer(old *SessionKeys) *Rekeyer {
	return &Rekeyer{old: old}
}

// SetPending installs the freshly-derived keys once both sides'
// ephemeral material has been exchanged.
func (rk *Rekeyer) SetPending(pending *SessionKeys) {
	rk.mu.Lock()
	defer rk.mu.Unlock()
	rk.pending = pending
}

// Open tries pending keys first (the common case once traffic has
// switched over), falling back to the old keys for packets that were
// in flight at the moment of rekey. ad is forwarded unchanged to both
// attempts.
func (rk *Rekeyer) Open(wire, ad []byte) ([]byte, error) {
	rk.mu.Lock()
	pending, old := rk.pending, rk.old
	rk.mu.Unlock()
	if pending != nil {
		if pt, err := pending.Open(wire, ad); err == nil {
			return pt, nil
		}
	}
	if old != nil {
		return old.Open(wire, ad)
	}
	return nil, fmt.Errorf("crypto: no session keys available")
}

// VerifyComplete checks a peer's RekeyComplete confirmation against the
// pending key's expected value.
func (rk *Rekeyer) VerifyComplete(newSessionID [sessionIDSize]byte, msg *RekeyComplete) error {
	rk.mu.Lock()
	pending := rk.pending
	rk.mu.Unlock()
	if pending == nil {
		return fmt.Errorf("crypto: rekey complete received with no pending keys")
	}
	pending.mu.Lock()
	txKey := pending.txKey
	pending.mu.Unlock()
	want, err := computeRekeyConfirmation(txKey, newSessionID)
	if err != nil {
		return err
	}
	if !constantTimeEqual(want[:], msg.Confirmation[:]) {
		return ErrBadSignature
	}
	rk.mu.Lock()
	rk.confirmed = true
	rk.mu.Unlock()
	return nil
}

// Finalize zeroes the superseded key material and returns the new
// authoritative SessionKeys. Must only be called after VerifyComplete
// succeeds (or, on the side that received a valid RekeyComplete,
// immediately after sending its own).
func (rk *Rekeyer) Finalize() (*SessionKeys, error) {
	rk.mu.Lock()
	defer rk.mu.Unlock()
	if rk.pending == nil {
		return nil, fmt.Errorf("crypto: no pending keys to finalize")
	}
	if rk.old != nil {
		rk.old.Zero()
	}
	return rk.pending, nil
}
