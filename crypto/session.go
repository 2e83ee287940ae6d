package crypto

import (
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

// aeadOverhead is XChaCha20-Poly1305's fixed ciphertext expansion,
// matching the 16-byte tag size secretbox used to carry.
const aeadOverhead = chacha20poly1305.Overhead

// nonceSize and the session-id/counter split are fixed:
// nonce = session_id (16 bytes) || counter_be (8 bytes).
const (
	nonceSize     = 24
	sessionIDSize = 16
	counterSize   = 8
)

// SessionKeys holds both directions' XChaCha20-Poly1305 keys (tx and
// rx) plus the peer-identity-bound session ID used in every nonce
// derived from them.
// Zero must be called on every exit path: handshake abort, rekey,
// connection teardown.
type SessionKeys struct {
	mu        sync.Mutex
	txKey     [32]byte
	rxKey     [32]byte
	sessionID [sessionIDSize]byte
	txCounter uint64
	rxHighest uint64
	rxSeen    map[uint64]struct{}
	replayWin uint32
}

// NewSessionKeys wraps derived tx/rx keys for both directions of traffic.
func NewSessionKeys(txKey, rxKey [32]byte, sessionID [sessionIDSize]byte, replayWindow uint32) *SessionKeys {
	return &SessionKeys{
		txKey:     txKey,
		rxKey:     rxKey,
		sessionID: sessionID,
		rxSeen:    make(map[uint64]struct{}, replayWindow),
		replayWin: replayWindow,
	}
}

func buildNonce(sessionID [sessionIDSize]byte, counter uint64) [nonceSize]byte {
	var nonce [nonceSize]byte
	copy(nonce[:sessionIDSize], sessionID[:])
	binary.BigEndian.PutUint64(nonce[sessionIDSize:], counter)
	return nonce
}

// Seal encrypts plaintext under the next send counter and returns the
// wire payload: 8-byte big-endian counter prefix, followed by the
// XChaCha20-Poly1305-sealed ciphertext (which itself carries its own
// 16-byte Poly1305 tag). ad is bound as associated data and must match
// byte-for-byte what the peer passes to Open — callers bind the outer
// PACKET_ENCRYPTED header bytes, including source_client_id, so a MITM
// cannot splice this ciphertext under a different header. The
// counter is never reused for the lifetime of this SessionKeys —
// callers must construct a fresh SessionKeys after a rekey
// completes rather than resetting this one's counter.
func (s *SessionKeys) Seal(plaintext, ad []byte) (wire []byte, counter uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.txCounter == ^uint64(0) {
		return nil, 0, fmt.Errorf("crypto: send counter exhausted, rekey required")
	}
	aead, err := chacha20poly1305.NewX(s.txKey[:])
	if err != nil {
		return nil, 0, fmt.Errorf("crypto: building AEAD: %w", err)
	}
	counter = s.txCounter
	s.txCounter++
	nonce := buildNonce(s.sessionID, counter)
	sealed := aead.Seal(nil, nonce[:], plaintext, ad)
	wire = make([]byte, counterSize+len(sealed))
	binary.BigEndian.PutUint64(wire[:counterSize], counter)
	copy(wire[counterSize:], sealed)
	return wire, counter, nil
}

// Open verifies and decrypts a wire payload produced by the peer's Seal.
// ad must be the same associated data the peer bound in Seal (the outer
// PACKET_ENCRYPTED header bytes including source_client_id); a mismatch
// fails authentication the same as a forged ciphertext. It enforces a
// sliding replay window: counters at or below (highest seen - window)
// are rejected, as are counters already recorded within the window.
func (s *SessionKeys) Open(wire, ad []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(wire) < counterSize+aeadOverhead {
		return nil, fmt.Errorf("crypto: sealed payload too short")
	}
	counter := binary.BigEndian.Uint64(wire[:counterSize])
	if err := s.checkReplayLocked(counter); err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(s.rxKey[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: building AEAD: %w", err)
	}
	nonce := buildNonce(s.sessionID, counter)
	plaintext, err := aead.Open(nil, nonce[:], wire[counterSize:], ad)
	if err != nil {
		return nil, ErrBadSignature
	}
	s.recordReceivedLocked(counter)
	return plaintext, nil
}

func (s *SessionKeys) checkReplayLocked(counter uint64) error {
	if s.rxHighest > uint64(s.replayWin) && counter <= s.rxHighest-uint64(s.replayWin) {
		return ErrReplayDetected
	}
	if counter <= s.rxHighest {
		if _, seen := s.rxSeen[counter]; seen {
			return ErrReplayDetected
		}
	}
	return nil
}

func (s *SessionKeys) recordReceivedLocked(counter uint64) {
	s.rxSeen[counter] = struct{}{}
	if counter > s.rxHighest {
		s.rxHighest = counter
		floor := uint64(0)
		if s.rxHighest > uint64(s.replayWin) {
			floor = s.rxHighest - uint64(s.replayWin)
		}
		for c := range s.rxSeen {
			if c < floor {
				delete(s.rxSeen, c)
			}
		}
	}
}

// CounterValue reports the current send counter, i.e. how many packets
// have been sealed under this SessionKeys.
func (s *SessionKeys) CounterValue() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txCounter
}

// NearCounterWrap reports whether the send counter is within margin of
// exhausting its 64-bit space, signalling a forced rekey is due.
func (s *SessionKeys) NearCounterWrap(margin uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txCounter >= ^uint64(0)-margin
}

// Zero wipes both directions' symmetric keys. Safe to call more than
// once.
func (s *SessionKeys) Zero() {
	s.mu.Lock()
	defer s.mu.Unlock()
	zero32(&s.txKey)
	zero32(&s.rxKey)
}

func zero32(b *[32]byte) {
	for i := range b {
		b[i] = 0
	}
}

// constantTimeEqual is used by the handshake to compare MACs/challenges
// without leaking timing, improving on a manual byte-loop comparison.
func constantTimeEqual(a, b []byte) bool {
	return len(a) == len(b) && subtle.ConstantTimeCompare(a, b) == 1
}
