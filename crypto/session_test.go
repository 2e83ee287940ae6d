package crypto

import "testing"

func mustSessionPair(t *testing.T) (*SessionKeys, *SessionKeys) {
	t.Helper()
	clientEph, err := NewEphemeral()
	if err != nil {
		t.Fatalf("client ephemeral: %v", err)
	}
	serverEph, err := NewEphemeral()
	if err != nil {
		t.Fatalf("server ephemeral: %v", err)
	}
	secret, err := clientEph.SharedSecret(serverEph.Public)
	if err != nil {
		t.Fatalf("client shared secret: %v", err)
	}
	secret2, err := serverEph.SharedSecret(clientEph.Public)
	if err != nil {
		t.Fatalf("server shared secret: %v", err)
	}
	var sessionID [sessionIDSize]byte
	for i := range sessionID {
		sessionID[i] = byte(i)
	}
	clientTx, clientRx, err := deriveSessionKeys(secret, sessionID[:], true)
	if err != nil {
		t.Fatalf("derive client keys: %v", err)
	}
	serverTx, serverRx, err := deriveSessionKeys(secret2, sessionID[:], false)
	if err != nil {
		t.Fatalf("derive server keys: %v", err)
	}
	client := NewSessionKeys(clientTx, clientRx, sessionID, 64)
	server := NewSessionKeys(serverTx, serverRx, sessionID, 64)
	return client, server
}

var testAD = []byte{0xde, 0xad, 0xbe, 0xef}

func TestSealOpenRoundtrip(t *testing.T) {
	client, server := mustSessionPair(t)
	wire, counter, err := client.Seal([]byte("hello"), testAD)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if counter != 0 {
		t.Fatalf("expected first counter 0, got %d", counter)
	}
	pt, err := server.Open(wire, testAD)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if string(pt) != "hello" {
		t.Fatalf("got %q", pt)
	}
}

func TestOpenRejectsReplay(t *testing.T) {
	client, server := mustSessionPair(t)
	wire, _, err := client.Seal([]byte("hello"), testAD)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := server.Open(wire, testAD); err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := server.Open(wire, testAD); err != ErrReplayDetected {
		t.Fatalf("expected ErrReplayDetected, got %v", err)
	}
}

func TestOpenRejectsStaleBeyondWindow(t *testing.T) {
	client, server := mustSessionPair(t)
	var first []byte
	for i := 0; i < 100; i++ {
		wire, _, err := client.Seal([]byte("x"), testAD)
		if err != nil {
			t.Fatalf("seal %d: %v", i, err)
		}
		if i == 0 {
			first = wire
		}
		if _, err := server.Open(wire, testAD); err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
	}
	if _, err := server.Open(first, testAD); err != ErrReplayDetected {
		t.Fatalf("expected stale packet rejected as replay, got %v", err)
	}
}

func TestOpenRejectsForgedCiphertext(t *testing.T) {
	client, server := mustSessionPair(t)
	wire, _, err := client.Seal([]byte("hello"), testAD)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	wire[len(wire)-1] ^= 0xFF
	if _, err := server.Open(wire, testAD); err != ErrBadSignature {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestOpenRejectsMismatchedAssociatedData(t *testing.T) {
	client, server := mustSessionPair(t)
	wire, _, err := client.Seal([]byte("hello"), testAD)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	tampered := append([]byte{}, testAD...)
	tampered[0] ^= 0xFF
	if _, err := server.Open(wire, tampered); err != ErrBadSignature {
		t.Fatalf("expected ErrBadSignature for mismatched associated data, got %v", err)
	}
}

func TestNonceNeverRepeatsAcrossSeals(t *testing.T) {
	client, _ := mustSessionPair(t)
	seen := make(map[uint64]bool)
	for i := 0; i < 1000; i++ {
		_, counter, err := client.Seal([]byte("x"), testAD)
		if err != nil {
			t.Fatalf("seal %d: %v", i, err)
		}
		if seen[counter] {
			t.Fatalf("counter %d reused", counter)
		}
		seen[counter] = true
	}
}
