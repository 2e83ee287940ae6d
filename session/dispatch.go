package session

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/zfogg/ascii-chat/acip"
	"github.com/zfogg/ascii-chat/consensus"
	"github.com/zfogg/ascii-chat/internal/logging"
)

// Sink receives every decoded, decrypted application packet a Session's
// receive loop produces once the session is Active: messages, media,
// audio, and session-control types. Consensus packets go to
// ConsensusSink instead.
type Sink interface {
	HandlePacket(t acip.Type, payload []byte) error
}

// ConsensusSink receives the decoded ring-consensus sub-range
// (6050-6068), routed separately from Sink: consensus runs as an
// asynchronous control plane over the same transport as application
// data.
type ConsensusSink interface {
	HandleParticipantList(*consensus.ParticipantListMsg) error
	HandleNetworkQuality(*consensus.NetworkQualityMsg) error
	HandleHostDesignated(*consensus.HostDesignatedMsg) error
	HandleSettingsSync(*consensus.SettingsSyncMsg) error
	HandleSettingsAck(*consensus.SettingsAckMsg) error
	HandleHostLost(*consensus.HostLostMsg) error
	HandleFutureHostElected(*consensus.FutureHostElectedMsg) error
	HandleRingCollect(*consensus.RingCollectMsg) error
	HandleRingCollectAck(*consensus.RingCollectAckMsg) error
}

// isConsensusType reports whether t is in the 6050-6068 ring-consensus
// sub-range. That span sits inside acip.IsAcdsType's numeric bounds but
// travels over the peer session transport, not ACDS.
func isConsensusType(t acip.Type) bool {
	return t >= acip.AcipParticipantList && t <= acip.RingCollectAck
}

// EncodeInnerPlaintext prefixes payload with its ACIP type, producing
// the plaintext Seal encrypts. The peer's Open recovers (inner_type,
// plaintext) from this prefix without needing a second framed ACIP
// header inside the envelope.
func EncodeInnerPlaintext(t acip.Type, payload []byte) []byte {
	buf := make([]byte, 2+len(payload))
	binary.BigEndian.PutUint16(buf[:2], uint16(t))
	copy(buf[2:], payload)
	return buf
}

func decodeInnerPlaintext(plaintext []byte) (acip.Type, []byte, error) {
	if len(plaintext) < 2 {
		return 0, nil, fmt.Errorf("acip: encrypted envelope too short for inner type")
	}
	return acip.Type(binary.BigEndian.Uint16(plaintext[:2])), plaintext[2:], nil
}

// Dispatch routes one decoded, already-decrypted packet to the
// consensus engine or the application sink: the final step after
// transport read, codec decode, and crypto open.
func (s *Session) Dispatch(t acip.Type, payload []byte, sink Sink, csink ConsensusSink) error {
	if !isConsensusType(t) {
		if sink == nil {
			return nil
		}
		return sink.HandlePacket(t, payload)
	}
	if csink == nil {
		return nil
	}
	switch t {
	case acip.AcipParticipantList:
		var m consensus.ParticipantListMsg
		if err := m.UnmarshalBinary(payload); err != nil {
			return err
		}
		return csink.HandleParticipantList(&m)
	case acip.NetworkQuality:
		var m consensus.NetworkQualityMsg
		if err := m.UnmarshalBinary(payload); err != nil {
			return err
		}
		return csink.HandleNetworkQuality(&m)
	case acip.HostDesignated:
		var m consensus.HostDesignatedMsg
		if err := m.UnmarshalBinary(payload); err != nil {
			return err
		}
		return csink.HandleHostDesignated(&m)
	case acip.SettingsSync:
		var m consensus.SettingsSyncMsg
		if err := m.UnmarshalBinary(payload); err != nil {
			return err
		}
		return csink.HandleSettingsSync(&m)
	case acip.SettingsAck:
		var m consensus.SettingsAckMsg
		if err := m.UnmarshalBinary(payload); err != nil {
			return err
		}
		return csink.HandleSettingsAck(&m)
	case acip.AcipHostLost:
		var m consensus.HostLostMsg
		if err := m.UnmarshalBinary(payload); err != nil {
			return err
		}
		return csink.HandleHostLost(&m)
	case acip.FutureHostElected:
		var m consensus.FutureHostElectedMsg
		if err := m.UnmarshalBinary(payload); err != nil {
			return err
		}
		return csink.HandleFutureHostElected(&m)
	case acip.RingCollect:
		var m consensus.RingCollectMsg
		if err := m.UnmarshalBinary(payload); err != nil {
			return err
		}
		return csink.HandleRingCollect(&m)
	case acip.RingCollectAck:
		var m consensus.RingCollectAckMsg
		if err := m.UnmarshalBinary(payload); err != nil {
			return err
		}
		return csink.HandleRingCollectAck(&m)
	default:
		return fmt.Errorf("acip: unhandled consensus type %s", t)
	}
}

// RunReceive is the session's steady-state read loop: decode a frame,
// reject anything illegal for the current state, open
// PACKET_ENCRYPTED envelopes under the active (or pending-rekey) keys,
// and dispatch the result. It returns when ctx is done, the session is
// closed, or the transport/codec/crypto layer errors — callers run it
// in its own goroutine per session.
func (s *Session) RunReceive(ctx context.Context, sink Sink, csink ConsensusSink) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.closed:
			return nil
		default:
		}

		pkt, err := acip.Decode(s.tr, s.tr.MaxPayload())
		if err != nil {
			return fmt.Errorf("acip: decode: %w", err)
		}
		if err := s.AllowedType(pkt.Header.Type, false); err != nil {
			return err
		}

		if pkt.Header.Type != acip.PacketEncrypted {
			if err := s.Dispatch(pkt.Header.Type, pkt.Payload, sink, csink); err != nil {
				s.log.Warn("dispatch failed", logging.F("type", pkt.Header.Type.String()), logging.F("err", err.Error()))
			}
			continue
		}

		s.mtx.RLock()
		keys, rekeyer := s.keys, s.rekeyer
		s.mtx.RUnlock()
		if keys == nil {
			return fmt.Errorf("acip: PACKET_ENCRYPTED received before keys installed")
		}
		ad := acip.PacketEncryptedAssociatedData(pkt.Header.SourceClientID)
		var plaintext []byte
		if rekeyer != nil {
			plaintext, err = rekeyer.Open(pkt.Payload, ad)
		} else {
			plaintext, err = keys.Open(pkt.Payload, ad)
		}
		if err != nil {
			return fmt.Errorf("crypto: open: %w", err)
		}

		innerType, innerPayload, err := decodeInnerPlaintext(plaintext)
		if err != nil {
			return err
		}
		if err := s.AllowedType(innerType, true); err != nil {
			return err
		}
		if err := s.Dispatch(innerType, innerPayload, sink, csink); err != nil {
			s.log.Warn("dispatch failed", logging.F("type", innerType.String()), logging.F("err", err.Error()))
		}
	}
}
