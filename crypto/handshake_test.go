package crypto

import "testing"

func TestClientHelloRoundtrip(t *testing.T) {
	in := &ClientHello{
		ProtocolVersion: 1,
		Capabilities:    CapZstdImageFrames | CapOpusAudio,
	}
	for i := range in.Ephemeral {
		in.Ephemeral[i] = byte(i)
	}
	for i := range in.Identity {
		in.Identity[i] = byte(255 - i)
	}
	data, err := in.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out ClientHello
	if err := out.UnmarshalBinary(data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.ProtocolVersion != in.ProtocolVersion || out.Capabilities != in.Capabilities {
		t.Fatalf("roundtrip mismatch: %+v != %+v", out, in)
	}
	if out.Ephemeral != in.Ephemeral || out.Identity != in.Identity {
		t.Fatalf("key roundtrip mismatch")
	}
}

func TestServerHelloSignatureVerifies(t *testing.T) {
	clientEph, err := NewEphemeral()
	if err != nil {
		t.Fatalf("client ephemeral: %v", err)
	}
	serverEph, err := NewEphemeral()
	if err != nil {
		t.Fatalf("server ephemeral: %v", err)
	}
	server, err := GenerateIdentity()
	if err != nil {
		t.Fatalf("server identity: %v", err)
	}
	sig, err := SignTranscript(server, clientEph.Public, serverEph.Public)
	if err != nil {
		t.Fatalf("sign transcript: %v", err)
	}
	var pub [32]byte
	copy(pub[:], server.Public())
	if !VerifyTranscript(pub, clientEph.Public, serverEph.Public, sig) {
		t.Fatalf("transcript signature did not verify")
	}
	// Tampering with either ephemeral must invalidate the signature.
	tampered := clientEph.Public
	tampered[0] ^= 0xFF
	if VerifyTranscript(pub, tampered, serverEph.Public, sig) {
		t.Fatalf("signature verified over tampered transcript")
	}
}

func TestAuthProofDeterministic(t *testing.T) {
	key := []byte("a shared password key, 32ish b.")
	secret := []byte("an ECDH shared secret, any len.")
	var nonce [32]byte
	for i := range nonce {
		nonce[i] = byte(i)
	}
	p1, err := ComputeAuthProof(key, secret, nonce)
	if err != nil {
		t.Fatalf("proof 1: %v", err)
	}
	p2, err := ComputeAuthProof(key, secret, nonce)
	if err != nil {
		t.Fatalf("proof 2: %v", err)
	}
	if p1 != p2 {
		t.Fatalf("expected deterministic proof")
	}
	nonce[0] ^= 1
	p3, err := ComputeAuthProof(key, secret, nonce)
	if err != nil {
		t.Fatalf("proof 3: %v", err)
	}
	if p3 == p1 {
		t.Fatalf("expected different nonce to change proof")
	}
	otherSecret := []byte("a different ECDH shared secret.")
	p4, err := ComputeAuthProof(key, otherSecret, nonce)
	if err != nil {
		t.Fatalf("proof 4: %v", err)
	}
	if p4 == p3 {
		t.Fatalf("expected different shared secret to change proof, preventing MITM replay")
	}
}

// driveHandshake runs client/server Handshake instances to completion by
// alternately feeding each side's outgoing messages to the other,
// starting from the client's Initiate message.
func driveHandshake(t *testing.T, client, server *Handshake, first *OutgoingMessage) {
	t.Helper()
	type queued struct {
		toServer bool
		msg      OutgoingMessage
	}
	queue := []queued{{toServer: true, msg: *first}}
	clientDone, serverDone := false, false
	for i := 0; i < 20 && len(queue) > 0; i++ {
		next := queue[0]
		queue = queue[1:]
		var out []OutgoingMessage
		var done bool
		var err error
		if next.toServer {
			out, done, err = server.Step(next.msg.Type, next.msg.Payload)
			serverDone = serverDone || done
		} else {
			out, done, err = client.Step(next.msg.Type, next.msg.Payload)
			clientDone = clientDone || done
		}
		if err != nil {
			t.Fatalf("step on %s (toServer=%v): %v", next.msg.Type, next.toServer, err)
		}
		for _, o := range out {
			queue = append(queue, queued{toServer: !next.toServer, msg: o})
		}
	}
	if !clientDone || !serverDone {
		t.Fatalf("handshake did not complete: clientDone=%v serverDone=%v", clientDone, serverDone)
	}
}

func TestHandshakeNoPasswordCompletes(t *testing.T) {
	clientID, err := GenerateIdentity()
	if err != nil {
		t.Fatalf("client identity: %v", err)
	}
	serverID, err := GenerateIdentity()
	if err != nil {
		t.Fatalf("server identity: %v", err)
	}
	client := NewHandshake(true, clientID, CapZstdImageFrames, false, nil, 64)
	server := NewHandshake(false, serverID, CapZstdImageFrames, false, nil, 64)

	first, err := client.Initiate("peer:1234")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	driveHandshake(t, client, server, first)

	clientResult, err := client.Result()
	if err != nil {
		t.Fatalf("client result: %v", err)
	}
	serverResult, err := server.Result()
	if err != nil {
		t.Fatalf("server result: %v", err)
	}
	plaintext := []byte("hello over negotiated keys")
	ad := []byte("test-ad")
	wire, _, err := clientResult.Keys.Seal(plaintext, ad)
	if err != nil {
		t.Fatalf("seal under negotiated keys: %v", err)
	}
	got, err := serverResult.Keys.Open(wire, ad)
	if err != nil {
		t.Fatalf("open under negotiated keys: %v", err)
	}
	if string(got) != string(plaintext) {
		t.Fatalf("got %q", got)
	}
}

func TestHandshakeWithPasswordCompletes(t *testing.T) {
	clientID, err := GenerateIdentity()
	if err != nil {
		t.Fatalf("client identity: %v", err)
	}
	serverID, err := GenerateIdentity()
	if err != nil {
		t.Fatalf("server identity: %v", err)
	}
	passwordKey := deriveKeyArgon2id([]byte("hunter2"), []byte("0123456789abcdef"))
	client := NewHandshake(true, clientID, CapOpusAudio, true, passwordKey, 64)
	server := NewHandshake(false, serverID, CapOpusAudio, true, passwordKey, 64)

	first, err := client.Initiate("peer:5678")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	driveHandshake(t, client, server, first)

	if _, err := client.Result(); err != nil {
		t.Fatalf("client result: %v", err)
	}
	if _, err := server.Result(); err != nil {
		t.Fatalf("server result: %v", err)
	}
}

func TestHandshakeWrongPasswordFails(t *testing.T) {
	clientID, err := GenerateIdentity()
	if err != nil {
		t.Fatalf("client identity: %v", err)
	}
	serverID, err := GenerateIdentity()
	if err != nil {
		t.Fatalf("server identity: %v", err)
	}
	client := NewHandshake(true, clientID, CapOpusAudio, true, []byte("wrong password key..............."), 64)
	server := NewHandshake(false, serverID, CapOpusAudio, true, []byte("right password key..............."), 64)

	msg, err := client.Initiate("peer:9999")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	type hop struct {
		toServer bool
		msg      OutgoingMessage
	}
	queue := []hop{{toServer: true, msg: *msg}}
	var failed bool
	for i := 0; i < 20 && len(queue) > 0; i++ {
		h := queue[0]
		queue = queue[1:]
		var out []OutgoingMessage
		var stepErr error
		if h.toServer {
			out, _, stepErr = server.Step(h.msg.Type, h.msg.Payload)
		} else {
			out, _, stepErr = client.Step(h.msg.Type, h.msg.Payload)
		}
		if stepErr != nil {
			failed = true
			break
		}
		for _, m := range out {
			queue = append(queue, hop{toServer: !h.toServer, msg: m})
		}
	}
	if !failed {
		t.Fatalf("expected handshake to fail on mismatched password keys")
	}
}

func TestEmptyBodiedMessagesRejectTrailingBytes(t *testing.T) {
	var dc DHConfirm
	if err := dc.UnmarshalBinary([]byte{0}); err == nil {
		t.Fatalf("expected error on non-empty DH_CONFIRM body")
	}
	var sr SessionReady
	if err := sr.UnmarshalBinary(nil); err != nil {
		t.Fatalf("expected empty SESSION_READY to parse: %v", err)
	}
}
