package crypto

import (
	"crypto/rand"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/blake2b"
)

// Argon2id parameters for identity-key-at-rest and password-based
// authentication: memory-hard, >=64 MiB, >=3 passes. See DESIGN.md for
// the rationale.
const (
	argonTime    = 3         // passes
	argonMemory  = 64 * 1024 // KiB = 64 MiB
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

// deriveKeyArgon2id derives a 32-byte key from passphrase and salt using
// the parameters above. Callers own salt generation/storage.
func deriveKeyArgon2id(passphrase []byte, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// newSalt generates a fresh random salt of saltLen bytes.
func newSalt() ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// direction tags used to derive distinct tx/rx keys from the same
// shared secret via BLAKE2b with direction-tagged salts.
var (
	clientToServerTag = []byte("ascii-chat:c2s")
	serverToClientTag = []byte("ascii-chat:s2c")
)

// deriveSessionKeys derives (txKey, rxKey) for a participant from the raw
// ECDH shared secret and the session ID, using BLAKE2b keyed with the
// shared secret and direction-tagged salts in the message.
func deriveSessionKeys(sharedSecret, sessionID []byte, isInitiator bool) (txKey, rxKey [32]byte, err error) {
	c2s, err := blake2bKeyed(sharedSecret, sessionID, clientToServerTag)
	if err != nil {
		return txKey, rxKey, err
	}
	s2c, err := blake2bKeyed(sharedSecret, sessionID, serverToClientTag)
	if err != nil {
		return txKey, rxKey, err
	}
	if isInitiator {
		copy(txKey[:], c2s)
		copy(rxKey[:], s2c)
	} else {
		copy(txKey[:], s2c)
		copy(rxKey[:], c2s)
	}
	return txKey, rxKey, nil
}

func blake2bKeyed(key, sessionID, tag []byte) ([]byte, error) {
	h, err := blake2b.New256(key)
	if err != nil {
		return nil, err
	}
	h.Write(sessionID)
	h.Write(tag)
	return h.Sum(nil), nil
}
