package session

import (
	"net"
	"testing"
	"time"

	"github.com/zfogg/ascii-chat/acip"
	"github.com/zfogg/ascii-chat/crypto"
	"github.com/zfogg/ascii-chat/internal/logging"
	"github.com/zfogg/ascii-chat/policy"
	"github.com/zfogg/ascii-chat/transport"
)

func newTestSession(t *testing.T) (*Session, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close() })
	id, err := crypto.GenerateIdentity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	s := New(transport.WrapTCPConn(server), policy.Default(), id, logging.NewDiscard(), 1)
	return s, client
}

func TestSessionTransitionsFollowValidEdges(t *testing.T) {
	s, conn := newTestSession(t)
	defer conn.Close()

	if s.State() != StateVersion {
		t.Fatalf("expected initial state VERSION, got %v", s.State())
	}
	if err := s.Transition(StateCapsExchange); err != nil {
		t.Fatalf("VERSION -> CAPS_EXCHANGE: %v", err)
	}
	if err := s.Transition(StateKeyExchange); err != nil {
		t.Fatalf("CAPS_EXCHANGE -> KEY_EXCHANGE: %v", err)
	}
	if err := s.Transition(StateActive); err != nil {
		t.Fatalf("KEY_EXCHANGE -> ACTIVE: %v", err)
	}
	if err := s.Transition(StateVersion); err == nil {
		t.Fatalf("expected illegal transition ACTIVE -> VERSION to fail")
	}
}

func TestAllowedTypeRejectsApplicationPacketsBeforeActive(t *testing.T) {
	s, conn := newTestSession(t)
	defer conn.Close()

	if err := s.AllowedType(acip.MsgText, false); err == nil {
		t.Fatalf("expected MSG_TEXT to be illegal before ACTIVE")
	}
	if err := s.AllowedType(acip.CryptoClientHello, false); err != nil {
		t.Fatalf("expected CRYPTO_CLIENT_HELLO to be legal during handshake: %v", err)
	}
}

func TestAllowedTypeRequiresEncryptedEnvelopeOnceActive(t *testing.T) {
	s, conn := newTestSession(t)
	defer conn.Close()
	mustTransition(t, s, StateCapsExchange, StateKeyExchange, StateActive)

	if err := s.AllowedType(acip.MsgText, false); err == nil {
		t.Fatalf("expected MSG_TEXT outside PACKET_ENCRYPTED to be rejected once active")
	}
	if err := s.AllowedType(acip.MsgText, true); err != nil {
		t.Fatalf("expected MSG_TEXT inside PACKET_ENCRYPTED to be legal: %v", err)
	}
}

func TestKeepaliveMissCounterTripsAfterThreeMisses(t *testing.T) {
	s, conn := newTestSession(t)
	defer conn.Close()

	s.RecordPingSent()
	s.lastPingSent = time.Now().Add(-time.Hour)
	if s.CheckKeepaliveTimeout(time.Millisecond) {
		t.Fatalf("expected first miss not to trip death")
	}
	s.lastPingSent = time.Now().Add(-time.Hour)
	if s.CheckKeepaliveTimeout(time.Millisecond) {
		t.Fatalf("expected second miss not to trip death")
	}
	s.lastPingSent = time.Now().Add(-time.Hour)
	if !s.CheckKeepaliveTimeout(time.Millisecond) {
		t.Fatalf("expected third consecutive miss to trip death")
	}
}

func TestRecordPongResetsMissCounter(t *testing.T) {
	s, conn := newTestSession(t)
	defer conn.Close()
	s.RecordPingSent()
	s.lastPingSent = time.Now().Add(-time.Hour)
	s.CheckKeepaliveTimeout(time.Millisecond)
	s.RecordPongReceived()
	if s.missedPongs != 0 {
		t.Fatalf("expected miss counter reset, got %d", s.missedPongs)
	}
}

func TestCloseIsIdempotentAndSetsClosedState(t *testing.T) {
	s, conn := newTestSession(t)
	defer conn.Close()
	var sessionID [16]byte
	keys := crypto.NewSessionKeys([32]byte{1}, [32]byte{2}, sessionID, 64)
	var peerID [32]byte
	s.InstallKeys(keys, peerID)

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close should be a no-op, got: %v", err)
	}
	if s.State() != StateClosed {
		t.Fatalf("expected CLOSED state after close")
	}
}

func mustTransition(t *testing.T, s *Session, states ...State) {
	t.Helper()
	for _, st := range states {
		if err := s.Transition(st); err != nil {
			t.Fatalf("transition to %v: %v", st, err)
		}
	}
}
