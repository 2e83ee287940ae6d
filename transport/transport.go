// Package transport provides the ordered, reliable byte-stream
// abstraction ACIP runs over, with two concrete implementations: a
// direct TCP dial (grounded on
// ingest/processors/forwarder.go's newConnection dial-with-retry
// idiom) and a pion/webrtc DataChannel reached via STUN or TURN
// (grounded on other_examples/ccef4d48_pion-webrtc__main.go and
// other_examples/88157f99_n0remac-robot-webrtc__webrtc-sfu.go).
// natcascade selects among them; acip and session only ever see the
// Transport interface.
package transport

import (
	"context"
	"io"
	"net"
	"time"
)

// Kind identifies which cascade stage produced a Transport. The
// internal/metrics stage-outcome counters are labelled by stage number,
// not by Kind.
type Kind string

const (
	KindDirectTCP    Kind = "direct_tcp"
	KindSTUNRelay    Kind = "stun_p2p"
	KindTURNRelay    Kind = "turn_relay"
)

// Transport is an ordered, reliable byte stream carrying framed ACIP
// packets. Implementations need not be message-oriented internally (TCP
// is a pure byte stream) — callers are expected to frame reads against
// acip.Decode, which already knows how to read a length-prefixed packet
// off of any io.Reader.
type Transport interface {
	io.ReadWriteCloser
	// Kind reports which cascade stage this Transport came from.
	Kind() Kind
	// MaxPayload is the largest ACIP payload this transport can carry
	// in one packet (acip.MaxPayloadSize for TCP, the smaller
	// acip.MaxDataChannelPayloadSize for datachannel-backed transports).
	MaxPayload() int
	// RemoteAddr identifies the peer for logging/known-hosts lookups.
	RemoteAddr() net.Addr
	// SetDeadline forwards to the underlying connection where one
	// exists; datachannel transports implement it as a no-op timer
	// since pion's DataChannel has no deadline concept of its own.
	SetDeadline(t time.Time) error
}

// DialTCP connects directly to addr with the given per-attempt timeout,
// retrying at a fixed interval until ctx is done — the same
// dial-then-sleep-then-retry loop as forwarder.go's newConnection, minus
// its TLS/UDP/unix branches (ACIP always wants a single reliable TCP
// byte stream at this stage; encryption is handled above transport, by
// crypto, not by TLS).
func DialTCP(ctx context.Context, addr string, attemptTimeout, retryInterval time.Duration) (Transport, error) {
	var d net.Dialer
	for {
		dialCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		conn, err := d.DialContext(dialCtx, "tcp", addr)
		cancel()
		if err == nil {
			return &tcpTransport{conn: conn}, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}

// ListenTCP is the server-side counterpart used by the host's accept
// loop; it returns a net.Listener, and WrapTCPConn turns each accepted
// connection into a Transport.
func ListenTCP(ctx context.Context, addr string) (net.Listener, error) {
	var lc net.ListenConfig
	return lc.Listen(ctx, "tcp", addr)
}

// WrapTCPConn adapts an already-accepted net.Conn (from ListenTCP's
// Accept) into a Transport.
func WrapTCPConn(conn net.Conn) Transport {
	return &tcpTransport{conn: conn}
}

type tcpTransport struct {
	conn net.Conn
}

func (t *tcpTransport) Read(p []byte) (int, error)  { return t.conn.Read(p) }
func (t *tcpTransport) Write(p []byte) (int, error) { return t.conn.Write(p) }
func (t *tcpTransport) Close() error                { return t.conn.Close() }
func (t *tcpTransport) Kind() Kind                  { return KindDirectTCP }
func (t *tcpTransport) MaxPayload() int             { return 5 * 1024 * 1024 }
func (t *tcpTransport) RemoteAddr() net.Addr        { return t.conn.RemoteAddr() }
func (t *tcpTransport) SetDeadline(tm time.Time) error { return t.conn.SetDeadline(tm) }
