package crypto

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/zfogg/ascii-chat/acip"
)

// Capability is a bitmask of optionally-negotiated protocol features.
// Grounded on ingest/auth.go's Challenge fixed-width wire structs
// rather than a generic KV blob: capabilities are few and well-known,
// so a bitmask round-trips in 4 bytes instead of a parsed list.
type Capability uint32

const (
	CapZstdImageFrames Capability = 1 << iota
	CapOpusAudio
	CapDatachannelTransport
)

// HandshakeState enumerates the crypto state machine's position.
type HandshakeState int

const (
	StateVersion HandshakeState = iota
	StateClientHelloSent
	StateCapabilitiesSent
	StateServerHelloSent
	StateDHConfirmed
	StateAuthChallenge
	StateAuthResponded
	StateSessionReady
	StateActive
	StateFailed
)

// ClientHello is CRYPTO_CLIENT_HELLO's payload (type 1000).
type ClientHello struct {
	ProtocolVersion uint16
	Ephemeral       [32]byte
	Identity        [32]byte // ed25519 public key
	Capabilities    Capability
}

func (c *ClientHello) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.BigEndian, c.ProtocolVersion); err != nil {
		return nil, err
	}
	buf.Write(c.Ephemeral[:])
	buf.Write(c.Identity[:])
	if err := binary.Write(buf, binary.BigEndian, uint32(c.Capabilities)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *ClientHello) UnmarshalBinary(data []byte) error {
	if len(data) != 2+32+32+4 {
		return fmt.Errorf("crypto: malformed CLIENT_HELLO (%d bytes)", len(data))
	}
	r := bytes.NewReader(data)
	if err := binary.Read(r, binary.BigEndian, &c.ProtocolVersion); err != nil {
		return err
	}
	if _, err := r.Read(c.Ephemeral[:]); err != nil {
		return err
	}
	if _, err := r.Read(c.Identity[:]); err != nil {
		return err
	}
	var caps uint32
	if err := binary.Read(r, binary.BigEndian, &caps); err != nil {
		return err
	}
	c.Capabilities = Capability(caps)
	return nil
}

// ServerCapabilities is CRYPTO_CAPABILITIES's payload (type 1100): the
// negotiated (intersected) capability set plus policy flags the client
// must honor.
type ServerCapabilities struct {
	Negotiated      Capability
	RequirePassword bool
}

func (s *ServerCapabilities) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.BigEndian, uint32(s.Negotiated)); err != nil {
		return nil, err
	}
	var flag byte
	if s.RequirePassword {
		flag = 1
	}
	buf.WriteByte(flag)
	return buf.Bytes(), nil
}

func (s *ServerCapabilities) UnmarshalBinary(data []byte) error {
	if len(data) != 5 {
		return fmt.Errorf("crypto: malformed CAPABILITIES (%d bytes)", len(data))
	}
	s.Negotiated = Capability(binary.BigEndian.Uint32(data[:4]))
	s.RequirePassword = data[4] == 1
	return nil
}

// ServerHello is CRYPTO_SERVER_HELLO's payload (type 1101): the server's
// ephemeral key, its long-term identity, and a signature over the
// transcript (both ephemeral public keys) proving possession of the
// identity's private key.
type ServerHello struct {
	Ephemeral [32]byte
	Identity  [32]byte
	Signature [64]byte
}

func transcript(clientEphemeral, serverEphemeral [32]byte) []byte {
	t := make([]byte, 64)
	copy(t[:32], clientEphemeral[:])
	copy(t[32:], serverEphemeral[:])
	return t
}

func (s *ServerHello) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(s.Ephemeral[:])
	buf.Write(s.Identity[:])
	buf.Write(s.Signature[:])
	return buf.Bytes(), nil
}

func (s *ServerHello) UnmarshalBinary(data []byte) error {
	if len(data) != 32+32+64 {
		return fmt.Errorf("crypto: malformed SERVER_HELLO (%d bytes)", len(data))
	}
	copy(s.Ephemeral[:], data[0:32])
	copy(s.Identity[:], data[32:64])
	copy(s.Signature[:], data[64:128])
	return nil
}

// DHResponse is CRYPTO_DH_RESPONSE's payload (type 1102): the client's
// signature over the same transcript, proving its own identity key.
type DHResponse struct {
	Signature [64]byte
}

func (d *DHResponse) MarshalBinary() ([]byte, error) { return append([]byte{}, d.Signature[:]...), nil }
func (d *DHResponse) UnmarshalBinary(data []byte) error {
	if len(data) != 64 {
		return fmt.Errorf("crypto: malformed DH_RESPONSE (%d bytes)", len(data))
	}
	copy(d.Signature[:], data)
	return nil
}

// DHConfirm is CRYPTO_DH_CONFIRM's payload (type 1103): empty-bodied ack
// that key agreement transcript validation passed.
type DHConfirm struct{}

func (DHConfirm) MarshalBinary() ([]byte, error)    { return nil, nil }
func (*DHConfirm) UnmarshalBinary(data []byte) error {
	if len(data) != 0 {
		return fmt.Errorf("crypto: malformed DH_CONFIRM (%d bytes)", len(data))
	}
	return nil
}

// AuthChallenge is CRYPTO_AUTH_CHALLENGE's payload (type 1104): present
// only when the session requires a shared password.
type AuthChallenge struct {
	Nonce [32]byte
}

func (a *AuthChallenge) MarshalBinary() ([]byte, error) { return append([]byte{}, a.Nonce[:]...), nil }
func (a *AuthChallenge) UnmarshalBinary(data []byte) error {
	if len(data) != 32 {
		return fmt.Errorf("crypto: malformed AUTH_CHALLENGE (%d bytes)", len(data))
	}
	copy(a.Nonce[:], data)
	return nil
}

// NewAuthChallenge generates a fresh random nonce challenge.
func NewAuthChallenge() (*AuthChallenge, error) {
	a := &AuthChallenge{}
	if _, err := rand.Read(a.Nonce[:]); err != nil {
		return nil, err
	}
	return a, nil
}

// AuthResponse is CRYPTO_AUTH_RESPONSE's payload (type 1105): a keyed
// BLAKE2b proof over the challenge nonce using the Argon2id-derived
// password key, proving knowledge of the shared password without
// sending it.
type AuthResponse struct {
	Proof [32]byte
}

// ComputeAuthProof binds both the shared password and the ECDH shared
// secret into the auth proof, so the response proves the shared secret
// as well as password knowledge — an attacker who doesn't complete the
// DH exchange itself cannot replay a captured proof against a different
// transcript.
func ComputeAuthProof(passwordKey, sharedSecret []byte, nonce [32]byte) ([32]byte, error) {
	msg := make([]byte, 0, len(nonce)+len(sharedSecret))
	msg = append(msg, nonce[:]...)
	msg = append(msg, sharedSecret...)
	sum, err := blake2bKeyed(passwordKey, msg, []byte("ascii-chat:auth"))
	var out [32]byte
	if err != nil {
		return out, err
	}
	copy(out[:], sum)
	return out, nil
}

func (a *AuthResponse) MarshalBinary() ([]byte, error) { return append([]byte{}, a.Proof[:]...), nil }
func (a *AuthResponse) UnmarshalBinary(data []byte) error {
	if len(data) != 32 {
		return fmt.Errorf("crypto: malformed AUTH_RESPONSE (%d bytes)", len(data))
	}
	copy(a.Proof[:], data)
	return nil
}

// AuthResult is CRYPTO_AUTH_RESULT's payload (type 1106).
type AuthResult struct {
	OK bool
}

func (a *AuthResult) MarshalBinary() ([]byte, error) {
	if a.OK {
		return []byte{1}, nil
	}
	return []byte{0}, nil
}

func (a *AuthResult) UnmarshalBinary(data []byte) error {
	if len(data) != 1 {
		return fmt.Errorf("crypto: malformed AUTH_RESULT (%d bytes)", len(data))
	}
	a.OK = data[0] == 1
	return nil
}

// SessionReady/SessionAck (types 1107/1108) are empty-bodied; their
// presence on the wire is the entire signal.
type SessionReady struct{}

func (SessionReady) MarshalBinary() ([]byte, error) { return nil, nil }
func (*SessionReady) UnmarshalBinary(data []byte) error {
	if len(data) != 0 {
		return fmt.Errorf("crypto: malformed SESSION_READY (%d bytes)", len(data))
	}
	return nil
}

type SessionAck struct{}

func (SessionAck) MarshalBinary() ([]byte, error) { return nil, nil }
func (*SessionAck) UnmarshalBinary(data []byte) error {
	if len(data) != 0 {
		return fmt.Errorf("crypto: malformed SESSION_ACK (%d bytes)", len(data))
	}
	return nil
}

// SignTranscript signs the ephemeral-key transcript with id's identity
// key, used by both client (DHResponse) and server (ServerHello).
func SignTranscript(id Identity, clientEphemeral, serverEphemeral [32]byte) ([64]byte, error) {
	var sig [64]byte
	raw, err := id.Sign(transcript(clientEphemeral, serverEphemeral))
	if err != nil {
		return sig, err
	}
	if len(raw) != 64 {
		return sig, fmt.Errorf("crypto: unexpected signature length %d", len(raw))
	}
	copy(sig[:], raw)
	return sig, nil
}

// VerifyTranscript checks a transcript signature against a claimed
// ed25519 public key.
func VerifyTranscript(pub [32]byte, clientEphemeral, serverEphemeral [32]byte, sig [64]byte) bool {
	return ed25519.Verify(ed25519.PublicKey(pub[:]), transcript(clientEphemeral, serverEphemeral), sig[:])
}

// WireProtocolVersion is the CRYPTO_CLIENT_HELLO protocol version this
// implementation speaks.
const WireProtocolVersion uint16 = 1

// deriveSessionID turns the public ephemeral transcript into the 16-byte
// session ID both sides compute independently, with no extra message
// round trip, feeding crypto.SessionKeys' nonce derivation.
func deriveSessionID(clientEphemeral, serverEphemeral [32]byte) [sessionIDSize]byte {
	sum := blake2b.Sum256(transcript(clientEphemeral, serverEphemeral))
	var id [sessionIDSize]byte
	copy(id[:], sum[:sessionIDSize])
	return id
}

// OutgoingMessage pairs an ACIP packet type with its marshaled payload —
// the unit of work Handshake.Initiate/Step hand back to the caller for
// encoding and writing to the transport.
type OutgoingMessage struct {
	Type    acip.Type
	Payload []byte
}

// HandshakeResult is what a completed Handshake produces: the derived
// symmetric session keys and the peer's verified Ed25519 identity.
type HandshakeResult struct {
	Keys         *SessionKeys
	PeerIdentity [32]byte
}

// Handshake drives one side of the CLIENT_HELLO -> SESSION_READY
// exchange, tracking HandshakeState across calls to Initiate/Step. One
// Handshake covers one attempt; a failed or aborted handshake is
// discarded, not reused.
type Handshake struct {
	isClient          bool
	identity          Identity
	localCapabilities Capability
	requirePassword   bool
	passwordKey       []byte
	replayWindow      uint32

	state HandshakeState

	ephemeral       *Ephemeral
	peerEphemeral   [32]byte
	peerIdentityRaw [32]byte
	sharedSecret    []byte
	sessionID       [sessionIDSize]byte
	pendingChallenge *AuthChallenge

	result *HandshakeResult
}

// NewHandshake constructs one side of a handshake attempt. isClient
// selects which half of the exchange this instance drives.
// requirePassword/passwordKey reflect this side's policy (the server's
// requirePassword is authoritative; a client learns it from
// CRYPTO_CAPABILITIES and adopts it mid-handshake).
func NewHandshake(isClient bool, identity Identity, localCapabilities Capability, requirePassword bool, passwordKey []byte, replayWindow uint32) *Handshake {
	return &Handshake{
		isClient:          isClient,
		identity:          identity,
		localCapabilities: localCapabilities,
		requirePassword:   requirePassword,
		passwordKey:       passwordKey,
		replayWindow:      replayWindow,
		state:             StateVersion,
	}
}

// State reports the handshake's current position.
func (h *Handshake) State() HandshakeState { return h.state }

// Initiate starts the handshake from the client side, generating a fresh
// ephemeral key and returning CRYPTO_CLIENT_HELLO to send. peerHint is
// the connection endpoint (e.g. host:port) the caller will later use to
// look up a pinned key in its own known_hosts store once PeerIdentity is
// known; the Handshake does not interpret it.
func (h *Handshake) Initiate(peerHint string) (*OutgoingMessage, error) {
	_ = peerHint
	if !h.isClient {
		return nil, fmt.Errorf("crypto: %w: only the client side initiates", ErrProtocolViolation)
	}
	if h.state != StateVersion {
		return nil, fmt.Errorf("crypto: %w: handshake already initiated", ErrProtocolViolation)
	}
	eph, err := NewEphemeral()
	if err != nil {
		return nil, err
	}
	h.ephemeral = eph
	hello := &ClientHello{
		ProtocolVersion: WireProtocolVersion,
		Ephemeral:       eph.Public,
		Capabilities:    h.localCapabilities,
	}
	copy(hello.Identity[:], h.identity.Public())
	payload, err := hello.MarshalBinary()
	if err != nil {
		h.state = StateFailed
		return nil, err
	}
	h.state = StateClientHelloSent
	return &OutgoingMessage{Type: acip.CryptoClientHello, Payload: payload}, nil
}

// Step feeds one decoded, still-unencrypted handshake packet into the
// state machine, returning zero or more messages to send in response and
// whether the handshake is now complete. Once done is true, Result
// returns the negotiated keys; on error the handshake has failed and
// must be discarded (state is left at StateFailed).
func (h *Handshake) Step(t acip.Type, payload []byte) ([]OutgoingMessage, bool, error) {
	out, done, err := h.step(t, payload)
	if err != nil {
		h.state = StateFailed
	}
	return out, done, err
}

func (h *Handshake) step(t acip.Type, payload []byte) ([]OutgoingMessage, bool, error) {
	switch {
	case t == acip.CryptoNoEncryption:
		h.state = StateActive
		h.result = &HandshakeResult{}
		return nil, true, nil

	case !h.isClient && t == acip.CryptoClientHello && h.state == StateVersion:
		return h.handleClientHello(payload)

	case h.isClient && t == acip.CryptoCapabilities && h.state == StateClientHelloSent:
		return h.handleServerCapabilities(payload)

	case h.isClient && t == acip.CryptoServerHello && h.state == StateCapabilitiesSent:
		return h.handleServerHello(payload)

	case !h.isClient && t == acip.CryptoDHResponse && h.state == StateServerHelloSent:
		return h.handleDHResponse(payload)

	case h.isClient && t == acip.CryptoDHConfirm && h.state == StateServerHelloSent:
		return h.handleDHConfirm(payload)

	case h.isClient && t == acip.CryptoAuthChallenge && h.state == StateDHConfirmed:
		return h.handleAuthChallenge(payload)

	case !h.isClient && t == acip.CryptoAuthResponse && h.state == StateAuthChallenge:
		return h.handleAuthResponse(payload)

	case h.isClient && t == acip.CryptoAuthResult && h.state == StateAuthResponded:
		return h.handleAuthResult(payload)

	case h.isClient && t == acip.CryptoSessionReady && (h.state == StateDHConfirmed || h.state == StateAuthResponded):
		return h.handleSessionReady(payload)

	case !h.isClient && t == acip.CryptoSessionAck && h.state == StateSessionReady:
		return h.handleSessionAck(payload)

	default:
		return nil, false, fmt.Errorf("crypto: %w: unexpected %s in state %d", ErrProtocolViolation, t, h.state)
	}
}

func (h *Handshake) handleClientHello(payload []byte) ([]OutgoingMessage, bool, error) {
	var hello ClientHello
	if err := hello.UnmarshalBinary(payload); err != nil {
		return nil, false, err
	}
	if hello.ProtocolVersion != WireProtocolVersion {
		return nil, false, fmt.Errorf("crypto: %w: unsupported protocol version %d", ErrProtocolViolation, hello.ProtocolVersion)
	}
	eph, err := NewEphemeral()
	if err != nil {
		return nil, false, err
	}
	h.ephemeral = eph
	h.peerEphemeral = hello.Ephemeral
	h.peerIdentityRaw = hello.Identity

	sig, err := SignTranscript(h.identity, hello.Ephemeral, eph.Public)
	if err != nil {
		return nil, false, err
	}
	caps := &ServerCapabilities{Negotiated: h.localCapabilities & hello.Capabilities, RequirePassword: h.requirePassword}
	capsPayload, err := caps.MarshalBinary()
	if err != nil {
		return nil, false, err
	}
	h.state = StateCapabilitiesSent

	hello2 := &ServerHello{Ephemeral: eph.Public, Signature: sig}
	copy(hello2.Identity[:], h.identity.Public())
	helloPayload, err := hello2.MarshalBinary()
	if err != nil {
		return nil, false, err
	}
	h.state = StateServerHelloSent

	return []OutgoingMessage{
		{Type: acip.CryptoCapabilities, Payload: capsPayload},
		{Type: acip.CryptoServerHello, Payload: helloPayload},
	}, false, nil
}

func (h *Handshake) handleServerCapabilities(payload []byte) ([]OutgoingMessage, bool, error) {
	var caps ServerCapabilities
	if err := caps.UnmarshalBinary(payload); err != nil {
		return nil, false, err
	}
	h.requirePassword = caps.RequirePassword
	h.state = StateCapabilitiesSent
	return nil, false, nil
}

func (h *Handshake) handleServerHello(payload []byte) ([]OutgoingMessage, bool, error) {
	var hello ServerHello
	if err := hello.UnmarshalBinary(payload); err != nil {
		return nil, false, err
	}
	if !VerifyTranscript(hello.Identity, h.ephemeral.Public, hello.Ephemeral, hello.Signature) {
		return nil, false, ErrBadSignature
	}
	secret, err := h.ephemeral.SharedSecret(hello.Ephemeral)
	if err != nil {
		return nil, false, err
	}
	h.sharedSecret = secret
	h.peerEphemeral = hello.Ephemeral
	h.peerIdentityRaw = hello.Identity
	h.sessionID = deriveSessionID(h.ephemeral.Public, hello.Ephemeral)

	sig, err := SignTranscript(h.identity, h.ephemeral.Public, hello.Ephemeral)
	if err != nil {
		return nil, false, err
	}
	resp := &DHResponse{Signature: sig}
	respPayload, err := resp.MarshalBinary()
	if err != nil {
		return nil, false, err
	}
	h.state = StateServerHelloSent
	return []OutgoingMessage{{Type: acip.CryptoDHResponse, Payload: respPayload}}, false, nil
}

func (h *Handshake) handleDHResponse(payload []byte) ([]OutgoingMessage, bool, error) {
	var resp DHResponse
	if err := resp.UnmarshalBinary(payload); err != nil {
		return nil, false, err
	}
	if !VerifyTranscript(h.peerIdentityRaw, h.peerEphemeral, h.ephemeral.Public, resp.Signature) {
		return nil, false, ErrBadSignature
	}
	secret, err := h.ephemeral.SharedSecret(h.peerEphemeral)
	if err != nil {
		return nil, false, err
	}
	h.sharedSecret = secret
	h.sessionID = deriveSessionID(h.peerEphemeral, h.ephemeral.Public)
	h.state = StateDHConfirmed

	confirmPayload, err := (DHConfirm{}).MarshalBinary()
	if err != nil {
		return nil, false, err
	}
	out := []OutgoingMessage{{Type: acip.CryptoDHConfirm, Payload: confirmPayload}}

	if h.requirePassword {
		challenge, err := NewAuthChallenge()
		if err != nil {
			return nil, false, err
		}
		h.pendingChallenge = challenge
		challengePayload, err := challenge.MarshalBinary()
		if err != nil {
			return nil, false, err
		}
		h.state = StateAuthChallenge
		out = append(out, OutgoingMessage{Type: acip.CryptoAuthChallenge, Payload: challengePayload})
		return out, false, nil
	}

	readyPayload, err := (SessionReady{}).MarshalBinary()
	if err != nil {
		return nil, false, err
	}
	h.state = StateSessionReady
	out = append(out, OutgoingMessage{Type: acip.CryptoSessionReady, Payload: readyPayload})
	return out, false, nil
}

func (h *Handshake) handleDHConfirm(payload []byte) ([]OutgoingMessage, bool, error) {
	var confirm DHConfirm
	if err := confirm.UnmarshalBinary(payload); err != nil {
		return nil, false, err
	}
	h.state = StateDHConfirmed
	return nil, false, nil
}

func (h *Handshake) handleAuthChallenge(payload []byte) ([]OutgoingMessage, bool, error) {
	if len(h.passwordKey) == 0 {
		return nil, false, ErrPasswordRequired
	}
	var challenge AuthChallenge
	if err := challenge.UnmarshalBinary(payload); err != nil {
		return nil, false, err
	}
	proof, err := ComputeAuthProof(h.passwordKey, h.sharedSecret, challenge.Nonce)
	if err != nil {
		return nil, false, err
	}
	resp := &AuthResponse{Proof: proof}
	respPayload, err := resp.MarshalBinary()
	if err != nil {
		return nil, false, err
	}
	h.state = StateAuthResponded
	return []OutgoingMessage{{Type: acip.CryptoAuthResponse, Payload: respPayload}}, false, nil
}

func (h *Handshake) handleAuthResponse(payload []byte) ([]OutgoingMessage, bool, error) {
	if h.pendingChallenge == nil {
		return nil, false, ErrNilChallenge
	}
	var resp AuthResponse
	if err := resp.UnmarshalBinary(payload); err != nil {
		return nil, false, err
	}
	expected, err := ComputeAuthProof(h.passwordKey, h.sharedSecret, h.pendingChallenge.Nonce)
	if err != nil {
		return nil, false, err
	}
	ok := constantTimeEqual(expected[:], resp.Proof[:])
	result := &AuthResult{OK: ok}
	resultPayload, err := result.MarshalBinary()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return []OutgoingMessage{{Type: acip.CryptoAuthResult, Payload: resultPayload}}, false, ErrBadSignature
	}
	h.state = StateAuthResponded

	readyPayload, err := (SessionReady{}).MarshalBinary()
	if err != nil {
		return nil, false, err
	}
	h.state = StateSessionReady
	return []OutgoingMessage{
		{Type: acip.CryptoAuthResult, Payload: resultPayload},
		{Type: acip.CryptoSessionReady, Payload: readyPayload},
	}, false, nil
}

func (h *Handshake) handleAuthResult(payload []byte) ([]OutgoingMessage, bool, error) {
	var result AuthResult
	if err := result.UnmarshalBinary(payload); err != nil {
		return nil, false, err
	}
	if !result.OK {
		return nil, false, ErrUntrustedPeer
	}
	return nil, false, nil
}

func (h *Handshake) handleSessionReady(payload []byte) ([]OutgoingMessage, bool, error) {
	var ready SessionReady
	if err := ready.UnmarshalBinary(payload); err != nil {
		return nil, false, err
	}
	txKey, rxKey, err := deriveSessionKeys(h.sharedSecret, h.sessionID[:], true)
	if err != nil {
		return nil, false, err
	}
	keys := NewSessionKeys(txKey, rxKey, h.sessionID, h.replayWindow)
	h.result = &HandshakeResult{Keys: keys, PeerIdentity: h.peerIdentityRaw}

	ackPayload, err := (SessionAck{}).MarshalBinary()
	if err != nil {
		return nil, false, err
	}
	h.state = StateActive
	h.zeroEphemeral()
	return []OutgoingMessage{{Type: acip.CryptoSessionAck, Payload: ackPayload}}, true, nil
}

func (h *Handshake) handleSessionAck(payload []byte) ([]OutgoingMessage, bool, error) {
	var ack SessionAck
	if err := ack.UnmarshalBinary(payload); err != nil {
		return nil, false, err
	}
	txKey, rxKey, err := deriveSessionKeys(h.sharedSecret, h.sessionID[:], false)
	if err != nil {
		return nil, false, err
	}
	keys := NewSessionKeys(txKey, rxKey, h.sessionID, h.replayWindow)
	h.result = &HandshakeResult{Keys: keys, PeerIdentity: h.peerIdentityRaw}
	h.state = StateActive
	h.zeroEphemeral()
	return nil, true, nil
}

func (h *Handshake) zeroEphemeral() {
	if h.ephemeral != nil {
		h.ephemeral.Zero()
	}
	for i := range h.sharedSecret {
		h.sharedSecret[i] = 0
	}
}

// Result returns the completed handshake's negotiated keys and peer
// identity. It returns an error if the handshake has not yet completed.
func (h *Handshake) Result() (*HandshakeResult, error) {
	if h.result == nil {
		return nil, fmt.Errorf("crypto: handshake has not completed")
	}
	return h.result, nil
}
