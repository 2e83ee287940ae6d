// Package session drives one peer connection's lifecycle: the state
// machine from protocol-version exchange through active encrypted
// traffic to teardown, packet-legality enforcement per state, and
// keepalive liveness tracking. Grounded on ingest/muxer.go's muxState
// enum and its connHot/connDead bookkeeping, narrowed from "N ingest
// connections in a pool" to "one peer connection's own state".
package session

import (
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/zfogg/ascii-chat/acip"
	"github.com/zfogg/ascii-chat/crypto"
	"github.com/zfogg/ascii-chat/internal/logging"
	"github.com/zfogg/ascii-chat/policy"
	"github.com/zfogg/ascii-chat/transport"
)

// State is a connection's position in the handshake/active/teardown
// lifecycle.
type State int

const (
	StateVersion State = iota
	StateCapsExchange
	StateKeyExchange
	StateAuth
	StateActive
	StateRekeying
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateVersion:
		return "VERSION"
	case StateCapsExchange:
		return "CAPS_EXCHANGE"
	case StateKeyExchange:
		return "KEY_EXCHANGE"
	case StateAuth:
		return "AUTH"
	case StateActive:
		return "ACTIVE"
	case StateRekeying:
		return "REKEYING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// validNext enumerates the legal forward edges of the state machine; any
// transition not listed here is a protocol violation.
var validNext = map[State]map[State]bool{
	StateVersion:      {StateCapsExchange: true, StateKeyExchange: true, StateClosed: true},
	StateCapsExchange: {StateKeyExchange: true, StateClosed: true},
	StateKeyExchange:  {StateAuth: true, StateActive: true, StateClosed: true}, // NO_ENCRYPTION skips Auth
	StateAuth:         {StateActive: true, StateClosed: true},
	StateActive:       {StateRekeying: true, StateClosed: true},
	StateRekeying:     {StateActive: true, StateClosed: true},
	StateClosed:       {},
}

// maxMissedPongs is the keepalive death threshold: three consecutive
// missed PONGs ends the connection.
const maxMissedPongs = 3

// Session owns one peer connection's crypto state, transport, and
// liveness bookkeeping. All exported methods are safe for concurrent
// use by a read loop and a timer goroutine simultaneously, mirroring
// ingest/ingestConnection.go's mtx-guarded IngestConnection.
type Session struct {
	mtx sync.RWMutex

	tr       transport.Transport
	policy   policy.Policy
	identity crypto.Identity
	log      *logging.KVLogger

	state          State
	sourceClientID uint32
	peerIdentity   [32]byte

	keys    *crypto.SessionKeys
	rekeyer *crypto.Rekeyer

	lastPingSent time.Time
	missedPongs  int
	pingLimiter  *rate.Limiter

	bytesOverKey  uint64
	keyEstablished time.Time

	closeOnce sync.Once
	closed    chan struct{}
}

// New creates a Session in StateVersion over an already-connected
// Transport. sourceClientID is this side's ACIP source_client_id for
// outgoing packet headers.
func New(tr transport.Transport, pol policy.Policy, identity crypto.Identity, log *logging.Logger, sourceClientID uint32) *Session {
	return &Session{
		tr:             tr,
		policy:         pol,
		identity:       identity,
		log:            log.With(logging.F("remote", tr.RemoteAddr().String())),
		state:          StateVersion,
		sourceClientID: sourceClientID,
		closed:         make(chan struct{}),
		pingLimiter:    rate.NewLimiter(rate.Every(keepaliveInterval), 1),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.state
}

// Transition moves the session to next, rejecting illegal edges.
func (s *Session) Transition(next State) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if !validNext[s.state][next] {
		return fmt.Errorf("crypto: illegal session transition %s -> %s", s.state, next)
	}
	s.log.Debug("session state transition", logging.F("from", s.state.String()), logging.F("to", next.String()))
	if next == StateActive && s.state != StateRekeying {
		s.keyEstablished = time.Now()
	}
	s.state = next
	return nil
}

// AllowedType reports whether packet type t is legal to receive in the
// current state: handshake types only before Active, everything >= 2000
// only once Active and only inside PACKET_ENCRYPTED.
func (s *Session) AllowedType(t acip.Type, insideEncryptedEnvelope bool) error {
	s.mtx.RLock()
	state := s.state
	s.mtx.RUnlock()

	switch {
	case state != StateActive && state != StateRekeying:
		if acip.InHandshakeRange(t) || t == acip.ProtocolVersion {
			return nil
		}
		return fmt.Errorf("acip: packet type %s illegal before session is active", t)
	case t == acip.CryptoRekeyRequest || t == acip.CryptoRekeyResponse || t == acip.CryptoRekeyComplete:
		return nil // rekey control packets ride unencrypted alongside active traffic
	case acip.RequiresEncryption(t) && !insideEncryptedEnvelope:
		return fmt.Errorf("acip: packet type %s must be carried inside PACKET_ENCRYPTED", t)
	default:
		return nil
	}
}

// InstallKeys attaches the session's negotiated symmetric keys, called
// once the handshake (or a completed rekey) derives them.
func (s *Session) InstallKeys(keys *crypto.SessionKeys, peerIdentity [32]byte) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.keys = keys
	s.peerIdentity = peerIdentity
	s.bytesOverKey = 0
}

// Keys returns the active symmetric keys, or nil before the handshake
// completes.
func (s *Session) Keys() *crypto.SessionKeys {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.keys
}

// PeerIdentity returns the verified Ed25519 identity key of the peer.
func (s *Session) PeerIdentity() [32]byte {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.peerIdentity
}

// NeedsRekey reports whether policy's byte/time thresholds have been
// crossed since the current keys were established.
func (s *Session) NeedsRekey() bool {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	if s.keys == nil {
		return false
	}
	if s.bytesOverKey >= s.policy.RekeyBytes {
		return true
	}
	if !s.keyEstablished.IsZero() && time.Since(s.keyEstablished) >= s.policy.RekeyTimeThreshold() {
		return true
	}
	return s.keys.NearCounterWrap(1 << 16)
}

// RecordSent tracks bytes sent under the current key for the rekey
// byte-threshold check.
func (s *Session) RecordSent(n int) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.bytesOverKey += uint64(n)
}

// AllowPing reports whether a PING may be sent right now, token-bucket
// limited to at most one per keepaliveInterval (the same rate.Limiter
// idiom throttle.go uses for ingest bandwidth pacing, here guarding
// against a caller's timer firing faster than the protocol's own
// keepalive cadence rather than against a busy peer).
func (s *Session) AllowPing() bool { return s.pingLimiter.Allow() }

// RecordPingSent marks a keepalive PING as outstanding.
func (s *Session) RecordPingSent() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.lastPingSent = time.Now()
}

// RecordPongReceived clears outstanding-ping bookkeeping and resets the
// miss counter.
func (s *Session) RecordPongReceived() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.missedPongs = 0
}

// CheckKeepaliveTimeout increments the miss counter if a PING is
// outstanding past the given deadline and reports whether the
// three-miss death threshold has now been crossed.
func (s *Session) CheckKeepaliveTimeout(deadline time.Duration) bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.lastPingSent.IsZero() || time.Since(s.lastPingSent) < deadline {
		return false
	}
	s.missedPongs++
	s.lastPingSent = time.Time{}
	return s.missedPongs >= maxMissedPongs
}

// RemoteAddr exposes the underlying transport's peer address.
func (s *Session) RemoteAddr() net.Addr { return s.tr.RemoteAddr() }

// Transport returns the underlying Transport for read/write loops.
func (s *Session) Transport() transport.Transport { return s.tr }

// Close tears the session down: zeroes key material, transitions to
// StateClosed, and closes the transport. Safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mtx.Lock()
		if s.keys != nil {
			s.keys.Zero()
		}
		s.state = StateClosed
		s.mtx.Unlock()
		close(s.closed)
		err = s.tr.Close()
	})
	return err
}

// Done returns a channel closed when the session has been torn down.
func (s *Session) Done() <-chan struct{} { return s.closed }
