package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

// Ephemeral is a fresh X25519 keypair generated per handshake and per
// rekey. It is owned by the in-flight Handshake/rekey exchange and must
// be zeroed immediately after the shared secret is derived — callers
// MUST defer ephemeral.Zero() right after generation.
type Ephemeral struct {
	private [32]byte
	Public  [32]byte
}

// NewEphemeral generates a fresh X25519 keypair.
func NewEphemeral() (*Ephemeral, error) {
	e := &Ephemeral{}
	if _, err := rand.Read(e.private[:]); err != nil {
		return nil, fmt.Errorf("crypto: generating ephemeral key: %w", err)
	}
	// Clamp per RFC 7748.
	e.private[0] &= 248
	e.private[31] &= 127
	e.private[31] |= 64
	pub, err := curve25519.X25519(e.private[:], curve25519.Basepoint)
	if err != nil {
		e.Zero()
		return nil, fmt.Errorf("crypto: deriving ephemeral public key: %w", err)
	}
	copy(e.Public[:], pub)
	return e, nil
}

// SharedSecret performs X25519(private, peerPublic). The caller must
// zero the result once session keys are derived from it.
func (e *Ephemeral) SharedSecret(peerPublic [32]byte) ([]byte, error) {
	return curve25519.X25519(e.private[:], peerPublic[:])
}

// Zero wipes the private scalar. Safe to call multiple times.
func (e *Ephemeral) Zero() {
	for i := range e.private {
		e.private[i] = 0
	}
}
