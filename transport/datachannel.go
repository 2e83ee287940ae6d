package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pion/webrtc/v3"
)

// datachannelAddr satisfies net.Addr for a P2P/TURN peer identified only
// by its ACDS session participant ID, since the underlying ICE 5-tuple
// can change mid-session (candidate migration) without ACIP caring.
type datachannelAddr string

func (a datachannelAddr) Network() string { return "webrtc-datachannel" }
func (a datachannelAddr) String() string  { return string(a) }

// ICEServerConfig names a STUN or TURN server; natcascade fills in
// credentials for TURN, grounded on the ICEServers slice wiring seen in
// other_examples/88157f99_n0remac-robot-webrtc__webrtc-sfu.go.
type ICEServerConfig struct {
	URLs       []string
	Username   string
	Credential string
}

// NewPeerConnection builds a pion PeerConnection configured with the
// given ICE servers (STUN-only for the P2P stage, STUN+TURN for the
// relay stage — natcascade decides which by the servers it passes in).
func NewPeerConnection(servers []ICEServerConfig) (*webrtc.PeerConnection, error) {
	iceServers := make([]webrtc.ICEServer, 0, len(servers))
	for _, s := range servers {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
	if err != nil {
		return nil, fmt.Errorf("transport: creating peer connection: %w", err)
	}
	return pc, nil
}

// dcTransport adapts a pion DataChannel into the Transport interface.
// Reads are served off an internal buffered channel fed by OnMessage
// since pion's DataChannel is callback-driven, not io.Reader-based.
type dcTransport struct {
	kind      Kind
	pc        *webrtc.PeerConnection
	dc        *webrtc.DataChannel
	remote    net.Addr
	incoming  chan []byte
	closeOnce sync.Once
	closed    chan struct{}
	readBuf   []byte
}

// WrapDataChannel waits for dc to open (or ctx to expire) and returns a
// ready-to-use Transport. kind distinguishes the STUN-P2P and TURN-relay
// cascade stages for metrics purposes; the DataChannel API is identical
// either way (the ICE server list determined how the candidate pairs
// were gathered, not anything about the channel itself).
func WrapDataChannel(ctx context.Context, pc *webrtc.PeerConnection, dc *webrtc.DataChannel, remoteID string, kind Kind) (Transport, error) {
	t := &dcTransport{
		kind:     kind,
		pc:       pc,
		dc:       dc,
		remote:   datachannelAddr(remoteID),
		incoming: make(chan []byte, 256),
		closed:   make(chan struct{}),
	}
	opened := make(chan struct{})
	dc.OnOpen(func() { close(opened) })
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		select {
		case t.incoming <- msg.Data:
		case <-t.closed:
		}
	})
	dc.OnClose(func() { t.Close() })

	if dc.ReadyState() == webrtc.DataChannelStateOpen {
		return t, nil
	}
	select {
	case <-opened:
		return t, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *dcTransport) Read(p []byte) (int, error) {
	if len(t.readBuf) == 0 {
		select {
		case chunk, ok := <-t.incoming:
			if !ok {
				return 0, fmt.Errorf("transport: datachannel closed")
			}
			t.readBuf = chunk
		case <-t.closed:
			return 0, fmt.Errorf("transport: datachannel closed")
		}
	}
	n := copy(p, t.readBuf)
	t.readBuf = t.readBuf[n:]
	return n, nil
}

func (t *dcTransport) Write(p []byte) (int, error) {
	if err := t.dc.Send(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (t *dcTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		err = t.dc.Close()
		if t.pc != nil {
			_ = t.pc.Close()
		}
	})
	return err
}

func (t *dcTransport) Kind() Kind              { return t.kind }
func (t *dcTransport) MaxPayload() int         { return 16 * 1024 }
func (t *dcTransport) RemoteAddr() net.Addr    { return t.remote }
func (t *dcTransport) SetDeadline(time.Time) error { return nil }
