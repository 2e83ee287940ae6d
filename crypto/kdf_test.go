package crypto

import "testing"

func TestDeriveKeyArgon2idDeterministicPerSalt(t *testing.T) {
	salt, err := newSalt()
	if err != nil {
		t.Fatalf("salt: %v", err)
	}
	k1 := deriveKeyArgon2id([]byte("correct horse battery staple"), salt)
	k2 := deriveKeyArgon2id([]byte("correct horse battery staple"), salt)
	if string(k1) != string(k2) {
		t.Fatalf("expected deterministic derivation for a fixed salt")
	}
	salt2, err := newSalt()
	if err != nil {
		t.Fatalf("salt2: %v", err)
	}
	k3 := deriveKeyArgon2id([]byte("correct horse battery staple"), salt2)
	if string(k1) == string(k3) {
		t.Fatalf("expected different salts to produce different keys")
	}
}

func TestDeriveSessionKeysAreDirectionTaggedAndSymmetric(t *testing.T) {
	secret := []byte("a shared ecdh secret, 32 bytes!")
	sessionID := []byte("0123456789abcdef")

	clientTx, clientRx, err := deriveSessionKeys(secret, sessionID, true)
	if err != nil {
		t.Fatalf("client keys: %v", err)
	}
	serverTx, serverRx, err := deriveSessionKeys(secret, sessionID, false)
	if err != nil {
		t.Fatalf("server keys: %v", err)
	}
	if clientTx != serverRx {
		t.Fatalf("client tx must equal server rx")
	}
	if clientRx != serverTx {
		t.Fatalf("client rx must equal server tx")
	}
	if clientTx == clientRx {
		t.Fatalf("tx/rx must be direction-distinct, not equal")
	}
}
