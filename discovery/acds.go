// Package discovery implements the ACDS rendezvous client: creating and
// joining sessions, reserving/renewing human-readable session strings,
// and relaying opaque SDP/ICE signaling between peers before a direct
// transport exists between them. Grounded on
// client/websocketRouter/client.go's websocket.Dialer.Dial plus
// WriteJSON/ReadJSON-with-deadline idiom.
package discovery

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zfogg/ascii-chat/acip"
)

// negotiationDeadline bounds each individual ACDS request/response round
// trip, matching websocketRouter's subProtoNegotiationDeadline idiom.
const negotiationDeadline = 10 * time.Second

// Envelope is the JSON-over-websocket framing for every ACDS message:
// a type tag plus a raw payload, decoded into the concrete request/
// response structs below once Type is known. ACDS traffic is not
// carried as raw ACIP binary frames — its packet-type range (6000-6199)
// is a JSON-friendly control plane distinct from the media-plane binary
// framing, mirroring ingest/auth.go's StateResponse's use of
// json.Marshal for variable-shaped control messages instead of fixed
// binary.Write layouts.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// CreateSessionRequest/Response.
type CreateSessionRequest struct {
	RequestedString string `json:"requested_string,omitempty"`
}

type CreateSessionResponse struct {
	SessionID     uuid.UUID `json:"session_id"`
	SessionString string    `json:"session_string"`
}

// LookupRequest/Result.
type LookupRequest struct {
	SessionString string `json:"session_string"`
}

type LookupResult struct {
	SessionID uuid.UUID `json:"session_id"`
	HostHint  string    `json:"host_hint,omitempty"`
}

// JoinRequest/Joined.
type JoinRequest struct {
	SessionID  uuid.UUID `json:"session_id"`
	ParticipantID uuid.UUID `json:"participant_id"`
}

type Joined struct {
	SessionID uuid.UUID   `json:"session_id"`
	Peers     []uuid.UUID `json:"peers"`
}

// Signal carries an opaque SDP/ICE blob between two participants; ACDS
// never interprets Body, only routes it by To.
type Signal struct {
	SessionID uuid.UUID `json:"session_id"`
	From      uuid.UUID `json:"from"`
	To        uuid.UUID `json:"to"`
	Body      json.RawMessage `json:"body"`
}

// Error is ACDS_ERROR's payload, shaped after ingest/auth.go's
// StateResponse{ID, Info}: a numeric code plus a human-readable detail
// string, instead of a free-form error string alone.
type Error struct {
	Code int    `json:"code"`
	Info string `json:"info"`
}

func (e *Error) Error() string { return fmt.Sprintf("acds: error %d: %s", e.Code, e.Info) }

// Client is a single connection to an ACDS rendezvous server.
type Client struct {
	mtx    sync.Mutex
	conn   *websocket.Conn
	selfID uuid.UUID
}

// Dial connects to an ACDS server at uri ("ws://" or "wss://").
// enforceCert controls TLS certificate verification for wss:// URIs.
func Dial(uri string, enforceCert bool) (*Client, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("discovery: parsing ACDS uri: %w", err)
	}
	var tlsConfig *tls.Config
	if u.Scheme != "ws" {
		tlsConfig = &tls.Config{InsecureSkipVerify: !enforceCert}
	}
	dialer := websocket.Dialer{
		TLSClientConfig:  tlsConfig,
		HandshakeTimeout: negotiationDeadline,
	}
	hdr := http.Header{}
	hdr.Add("Origin", fmt.Sprintf("%s://%s", u.Scheme, u.Host))
	conn, resp, err := dialer.Dial(uri, hdr)
	if err != nil {
		if conn != nil {
			conn.Close()
		}
		if resp != nil && resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("discovery: ACDS dial: bad status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("discovery: ACDS dial: %w", err)
	}
	return &Client{conn: conn, selfID: uuid.New()}, nil
}

// SelfID is this client's locally-generated participant identifier.
func (c *Client) SelfID() uuid.UUID { return c.selfID }

func (c *Client) writeDeadline(dur time.Duration, obj interface{}) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(dur)); err != nil {
		return err
	}
	defer c.conn.SetWriteDeadline(time.Time{})
	return c.conn.WriteJSON(obj)
}

func (c *Client) readDeadline(dur time.Duration, obj interface{}) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if err := c.conn.SetReadDeadline(time.Now().Add(dur)); err != nil {
		return err
	}
	defer c.conn.SetReadDeadline(time.Time{})
	return c.conn.ReadJSON(obj)
}

func (c *Client) roundTrip(reqType acip.Type, req interface{}, respType acip.Type, resp interface{}) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	if err := c.writeDeadline(negotiationDeadline, Envelope{Type: reqType.String(), Payload: payload}); err != nil {
		return fmt.Errorf("discovery: sending %s: %w", reqType, err)
	}
	var env Envelope
	if err := c.readDeadline(negotiationDeadline, &env); err != nil {
		return fmt.Errorf("discovery: awaiting %s: %w", respType, err)
	}
	if env.Type == acip.AcdsError.String() {
		var acdsErr Error
		if err := json.Unmarshal(env.Payload, &acdsErr); err != nil {
			return fmt.Errorf("discovery: malformed ACDS_ERROR: %w", err)
		}
		return &acdsErr
	}
	if env.Type != respType.String() {
		return fmt.Errorf("discovery: expected %s, got %s", respType, env.Type)
	}
	return json.Unmarshal(env.Payload, resp)
}

// CreateSession asks ACDS to mint a new session, optionally requesting
// a specific session string (empty lets the server generate one).
func (c *Client) CreateSession(requestedString string) (*CreateSessionResponse, error) {
	var resp CreateSessionResponse
	req := CreateSessionRequest{RequestedString: requestedString}
	if err := c.roundTrip(acip.AcdsCreateSession, req, acip.AcdsSessionCreated, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Lookup resolves a session string to a session ID.
func (c *Client) Lookup(sessionString string) (*LookupResult, error) {
	var resp LookupResult
	req := LookupRequest{SessionString: sessionString}
	if err := c.roundTrip(acip.AcdsLookup, req, acip.AcdsLookupResult, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Join joins an existing session, returning the current peer set.
func (c *Client) Join(sessionID uuid.UUID) (*Joined, error) {
	var resp Joined
	req := JoinRequest{SessionID: sessionID, ParticipantID: c.selfID}
	if err := c.roundTrip(acip.AcdsJoin, req, acip.AcdsJoined, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Leave notifies ACDS this client is departing the session.
func (c *Client) Leave(sessionID uuid.UUID) error {
	payload, err := json.Marshal(struct {
		SessionID     uuid.UUID `json:"session_id"`
		ParticipantID uuid.UUID `json:"participant_id"`
	}{sessionID, c.selfID})
	if err != nil {
		return err
	}
	return c.writeDeadline(negotiationDeadline, Envelope{Type: acip.AcdsLeave.String(), Payload: payload})
}

// StringReservation is the ACDS_RESERVE_STRING/ACDS_RENEW_STRING response:
// the server's lease on a human-readable session string, which the
// holder must renew before ExpiresInSec elapses or lose it.
type StringReservation struct {
	SessionString string `json:"session_string"`
	ExpiresInSec  int    `json:"expires_in_sec"`
}

// ReserveString asks ACDS to reserve a session string for this client,
// either a caller-supplied candidate or server-generated when empty.
func (c *Client) ReserveString(candidate string) (*StringReservation, error) {
	var resp StringReservation
	req := struct {
		SessionString string `json:"session_string,omitempty"`
	}{candidate}
	if err := c.roundTrip(acip.AcdsReserveString, req, acip.AcdsReserveString, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RenewString extends a held session string's lease before it expires.
func (c *Client) RenewString(sessionString string) (*StringReservation, error) {
	var resp StringReservation
	req := struct {
		SessionString string `json:"session_string"`
	}{sessionString}
	if err := c.roundTrip(acip.AcdsRenewString, req, acip.AcdsRenewString, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReleaseString gives up a held session string ahead of its expiry.
func (c *Client) ReleaseString(sessionString string) error {
	payload, err := json.Marshal(struct {
		SessionString string `json:"session_string"`
	}{sessionString})
	if err != nil {
		return err
	}
	return c.writeDeadline(negotiationDeadline, Envelope{Type: acip.AcdsReleaseString.String(), Payload: payload})
}

// SendSignal relays an opaque SDP/ICE blob to another participant via
// ACDS; ACDS_SIGNAL is fire-and-forget from the caller's perspective,
// the response (if any) arrives asynchronously as another ACDS_SIGNAL
// addressed back, handled by the caller's own read loop.
func (c *Client) SendSignal(sig Signal) error {
	payload, err := json.Marshal(sig)
	if err != nil {
		return err
	}
	return c.writeDeadline(negotiationDeadline, Envelope{Type: acip.AcdsSignal.String(), Payload: payload})
}

// ReadEnvelope blocks for the next message from ACDS with no deadline,
// for use by a dedicated read-loop goroutine (keepalive pongs and
// relayed signals arrive unsolicited). It does not take the client
// mutex, so Ping and other writes proceed while it is blocked.
func (c *Client) ReadEnvelope() (Envelope, error) {
	var env Envelope
	err := c.conn.ReadJSON(&env)
	return env, err
}

// Ping sends an ACDS_PING keepalive.
func (c *Client) Ping() error {
	return c.writeDeadline(negotiationDeadline, Envelope{Type: acip.AcdsPing.String()})
}

// Close tears down the websocket connection.
func (c *Client) Close() error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.conn.Close()
}
