package session

import (
	"context"
	"crypto/rand"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/zfogg/ascii-chat/acip"
	"github.com/zfogg/ascii-chat/consensus"
	"github.com/zfogg/ascii-chat/crypto"
)

type fakeSink struct {
	got chan acip.Type
}

func newFakeSink() *fakeSink { return &fakeSink{got: make(chan acip.Type, 8)} }

func (f *fakeSink) HandlePacket(t acip.Type, payload []byte) error {
	f.got <- t
	return nil
}

type fakeConsensusSink struct {
	networkQuality chan *consensus.NetworkQualityMsg
}

func newFakeConsensusSink() *fakeConsensusSink {
	return &fakeConsensusSink{networkQuality: make(chan *consensus.NetworkQualityMsg, 8)}
}

func (f *fakeConsensusSink) HandleParticipantList(*consensus.ParticipantListMsg) error { return nil }
func (f *fakeConsensusSink) HandleNetworkQuality(m *consensus.NetworkQualityMsg) error {
	f.networkQuality <- m
	return nil
}
func (f *fakeConsensusSink) HandleHostDesignated(*consensus.HostDesignatedMsg) error       { return nil }
func (f *fakeConsensusSink) HandleSettingsSync(*consensus.SettingsSyncMsg) error           { return nil }
func (f *fakeConsensusSink) HandleSettingsAck(*consensus.SettingsAckMsg) error             { return nil }
func (f *fakeConsensusSink) HandleHostLost(*consensus.HostLostMsg) error                   { return nil }
func (f *fakeConsensusSink) HandleFutureHostElected(*consensus.FutureHostElectedMsg) error { return nil }
func (f *fakeConsensusSink) HandleRingCollect(*consensus.RingCollectMsg) error             { return nil }
func (f *fakeConsensusSink) HandleRingCollectAck(*consensus.RingCollectAckMsg) error       { return nil }

func TestRunReceiveDispatchesPlaintextToSink(t *testing.T) {
	s, conn := newTestSession(t)
	defer conn.Close()

	sink := newFakeSink()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.RunReceive(ctx, sink, nil) }()

	wire, err := acip.Encode(acip.ProtocolVersion, []byte{1}, 1, 0)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := conn.Write(wire); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case got := <-sink.got:
		if got != acip.ProtocolVersion {
			t.Fatalf("expected PROTOCOL_VERSION, got %s", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatch")
	}
	conn.Close()
	<-done
}

func TestRunReceiveRoutesEncryptedConsensusToConsensusSink(t *testing.T) {
	s, conn := newTestSession(t)
	defer conn.Close()
	mustTransition(t, s, StateCapsExchange, StateKeyExchange, StateActive)

	var key [32]byte
	for i := range key {
		key[i] = byte(i + 1)
	}
	var sessionID [16]byte
	for i := range sessionID {
		sessionID[i] = byte(i)
	}
	senderKeys := crypto.NewSessionKeys(key, key, sessionID, 64)
	s.InstallKeys(crypto.NewSessionKeys(key, key, sessionID, 64), [32]byte{})

	sink := newFakeSink()
	csink := newFakeConsensusSink()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.RunReceive(ctx, sink, csink) }()

	var rawID [16]byte
	if _, err := rand.Read(rawID[:]); err != nil {
		t.Fatalf("uuid: %v", err)
	}
	report := consensus.Participant{
		ID:         uuid.UUID(rawID),
		UploadKbps: 2500,
		RTTNs:      12_000_000,
		LossPct:    0.5,
		NATTier:    consensus.TierP2P,
		LastSeen:   time.Now(),
	}
	msg := &consensus.NetworkQualityMsg{Report: report}
	payload, err := msg.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	plaintext := EncodeInnerPlaintext(acip.NetworkQuality, payload)

	const sourceClientID = 7
	ad := acip.PacketEncryptedAssociatedData(sourceClientID)
	sealed, _, err := senderKeys.Seal(plaintext, ad)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	wire, err := acip.Encode(acip.PacketEncrypted, sealed, sourceClientID, 0)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := conn.Write(wire); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case got := <-csink.networkQuality:
		if got.Report.UploadKbps != report.UploadKbps {
			t.Fatalf("got %+v", got.Report)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for consensus dispatch")
	}
	conn.Close()
	<-done
}
