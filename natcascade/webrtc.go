package natcascade

import (
	"context"
	"fmt"

	"github.com/pion/webrtc/v3"

	"github.com/zfogg/ascii-chat/transport"
)

// dialDatachannel negotiates a pion/webrtc PeerConnection with kind
// selecting whether the ICE servers passed are plain STUN (stage 2) or
// include a TURN relay candidate (stage 3) — the caller is responsible
// for populating tgt.ICEServers appropriately per stage.
func dialDatachannel(ctx context.Context, tgt Target, kind transport.Kind) (transport.Transport, error) {
	pc, err := transport.NewPeerConnection(tgt.ICEServers)
	if err != nil {
		return nil, fmt.Errorf("natcascade: building peer connection: %w", err)
	}

	dc, err := pc.CreateDataChannel("acip", nil)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("natcascade: creating data channel: %w", err)
	}

	candidates, err := tgt.Signaler.Candidates(ctx)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("natcascade: subscribing to ICE candidates: %w", err)
	}
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		_ = tgt.Signaler.SendCandidate(ctx, c.ToJSON().Candidate)
	})
	go func() {
		for {
			select {
			case cand, ok := <-candidates:
				if !ok {
					return
				}
				pc.AddICECandidate(webrtc.ICECandidateInit{Candidate: cand})
			case <-ctx.Done():
				return
			}
		}
	}()

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("natcascade: creating offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		pc.Close()
		return nil, fmt.Errorf("natcascade: setting local description: %w", err)
	}

	answerSDP, err := tgt.Signaler.Offer(ctx, offer.SDP)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("natcascade: exchanging SDP: %w", err)
	}
	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answerSDP}
	if err := pc.SetRemoteDescription(answer); err != nil {
		pc.Close()
		return nil, fmt.Errorf("natcascade: setting remote description: %w", err)
	}

	tr, err := transport.WrapDataChannel(ctx, pc, dc, tgt.RemotePeerID, kind)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("natcascade: waiting for data channel open: %w", err)
	}
	return tr, nil
}
