package consensus

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Wire structs for the 6050-6068 consensus sub-range, carried as ACIP
// binary frames over the peer session transport rather than ACDS,
// following crypto/handshake.go's fixed-width MarshalBinary/UnmarshalBinary
// idiom.

func putFloat64(buf *bytes.Buffer, f float64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(f))
	buf.Write(b[:])
}

func readFloat64(r *bytes.Reader) (float64, error) {
	var b [8]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b[:])), nil
}

// participantWireSize is one Participant's encoded length: 16 (ID) + 8
// (UploadKbps) + 8 (RTTNs) + 8 (LossPct) + 1 (NATTier) + 8 (LastSeen
// unix nanos).
const participantWireSize = 16 + 8 + 8 + 8 + 1 + 8

func marshalParticipant(buf *bytes.Buffer, p Participant) {
	buf.Write(p.ID[:])
	putFloat64(buf, p.UploadKbps)
	var i64 [8]byte
	binary.BigEndian.PutUint64(i64[:], uint64(p.RTTNs))
	buf.Write(i64[:])
	putFloat64(buf, p.LossPct)
	buf.WriteByte(byte(p.NATTier))
	binary.BigEndian.PutUint64(i64[:], uint64(p.LastSeen.UnixNano()))
	buf.Write(i64[:])
}

func unmarshalParticipant(r *bytes.Reader) (Participant, error) {
	var p Participant
	if _, err := r.Read(p.ID[:]); err != nil {
		return p, err
	}
	up, err := readFloat64(r)
	if err != nil {
		return p, err
	}
	p.UploadKbps = up
	var i64 [8]byte
	if _, err := r.Read(i64[:]); err != nil {
		return p, err
	}
	p.RTTNs = int64(binary.BigEndian.Uint64(i64[:]))
	loss, err := readFloat64(r)
	if err != nil {
		return p, err
	}
	p.LossPct = loss
	tier, err := r.ReadByte()
	if err != nil {
		return p, err
	}
	p.NATTier = NATTier(tier)
	if _, err := r.Read(i64[:]); err != nil {
		return p, err
	}
	p.LastSeen = time.Unix(0, int64(binary.BigEndian.Uint64(i64[:])))
	return p, nil
}

// ParticipantListMsg is ACIP_PARTICIPANT_LIST's payload (type 6050): the
// sender's view of every ring member's latest metrics, broadcast at the
// start of each election round.
type ParticipantListMsg struct {
	Participants []Participant
}

func (m *ParticipantListMsg) MarshalBinary() ([]byte, error) {
	if len(m.Participants) > math.MaxUint16 {
		return nil, fmt.Errorf("consensus: too many participants to encode (%d)", len(m.Participants))
	}
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.BigEndian, uint16(len(m.Participants))); err != nil {
		return nil, err
	}
	for _, p := range m.Participants {
		marshalParticipant(buf, p)
	}
	return buf.Bytes(), nil
}

func (m *ParticipantListMsg) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)
	var count uint16
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return fmt.Errorf("consensus: malformed PARTICIPANT_LIST: %w", err)
	}
	want := 2 + int(count)*participantWireSize
	if len(data) != want {
		return fmt.Errorf("consensus: malformed PARTICIPANT_LIST (%d bytes, want %d)", len(data), want)
	}
	m.Participants = make([]Participant, count)
	for i := range m.Participants {
		p, err := unmarshalParticipant(r)
		if err != nil {
			return fmt.Errorf("consensus: malformed PARTICIPANT_LIST entry %d: %w", i, err)
		}
		m.Participants[i] = p
	}
	return nil
}

// NetworkQualityMsg is NETWORK_QUALITY's payload (type 6060): one
// participant's own self-reported metrics for the current round.
type NetworkQualityMsg struct {
	Report Participant
}

func (m *NetworkQualityMsg) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	marshalParticipant(buf, m.Report)
	return buf.Bytes(), nil
}

func (m *NetworkQualityMsg) UnmarshalBinary(data []byte) error {
	if len(data) != participantWireSize {
		return fmt.Errorf("consensus: malformed NETWORK_QUALITY (%d bytes)", len(data))
	}
	p, err := unmarshalParticipant(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("consensus: malformed NETWORK_QUALITY: %w", err)
	}
	m.Report = p
	return nil
}

// HostDesignatedMsg is HOST_DESIGNATED's payload (type 6062): the
// elected host's ID and the settings epoch it takes effect under. A
// participant never assumes host duties without receiving this
// explicitly.
type HostDesignatedMsg struct {
	HostID uuid.UUID
	Epoch  uint64
}

func (m *HostDesignatedMsg) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(m.HostID[:])
	if err := binary.Write(buf, binary.BigEndian, m.Epoch); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *HostDesignatedMsg) UnmarshalBinary(data []byte) error {
	if len(data) != 16+8 {
		return fmt.Errorf("consensus: malformed HOST_DESIGNATED (%d bytes)", len(data))
	}
	copy(m.HostID[:], data[:16])
	m.Epoch = binary.BigEndian.Uint64(data[16:])
	return nil
}

// SettingsSyncMsg is SETTINGS_SYNC's payload (type 6063): a monotonic
// epoch plus an opaque settings blob, ignored by receivers whose epoch
// is not strictly greater than their own.
type SettingsSyncMsg struct {
	Epoch    uint64
	Settings []byte
}

func (m *SettingsSyncMsg) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.BigEndian, m.Epoch); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.BigEndian, uint32(len(m.Settings))); err != nil {
		return nil, err
	}
	buf.Write(m.Settings)
	return buf.Bytes(), nil
}

func (m *SettingsSyncMsg) UnmarshalBinary(data []byte) error {
	if len(data) < 12 {
		return fmt.Errorf("consensus: malformed SETTINGS_SYNC (%d bytes)", len(data))
	}
	m.Epoch = binary.BigEndian.Uint64(data[:8])
	n := binary.BigEndian.Uint32(data[8:12])
	if len(data) != 12+int(n) {
		return fmt.Errorf("consensus: malformed SETTINGS_SYNC length (%d bytes, want %d)", len(data), 12+n)
	}
	m.Settings = append([]byte{}, data[12:]...)
	return nil
}

// SettingsAckMsg is SETTINGS_ACK's payload (type 6064): acknowledges a
// SettingsSyncMsg by echoing the epoch that was applied.
type SettingsAckMsg struct {
	Epoch uint64
}

func (m *SettingsAckMsg) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.BigEndian, m.Epoch); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *SettingsAckMsg) UnmarshalBinary(data []byte) error {
	if len(data) != 8 {
		return fmt.Errorf("consensus: malformed SETTINGS_ACK (%d bytes)", len(data))
	}
	m.Epoch = binary.BigEndian.Uint64(data)
	return nil
}

// HostLostMsg is ACIP_HOST_LOST's payload (type 6065): one participant's
// report that it can no longer reach the current host, fed into
// HostLossTracker.Report to detect quorum.
type HostLostMsg struct {
	ReporterID uuid.UUID
	LostHostID uuid.UUID
}

func (m *HostLostMsg) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(m.ReporterID[:])
	buf.Write(m.LostHostID[:])
	return buf.Bytes(), nil
}

func (m *HostLostMsg) UnmarshalBinary(data []byte) error {
	if len(data) != 32 {
		return fmt.Errorf("consensus: malformed ACIP_HOST_LOST (%d bytes)", len(data))
	}
	copy(m.ReporterID[:], data[:16])
	copy(m.LostHostID[:], data[16:])
	return nil
}

// FutureHostElectedMsg is FUTURE_HOST_ELECTED's payload (type 6066):
// broadcast once host-loss quorum fires, naming the pre-designated
// backup that now takes over within the recovery budget.
type FutureHostElectedMsg struct {
	NewHostID uuid.UUID
	Epoch     uint64
}

func (m *FutureHostElectedMsg) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(m.NewHostID[:])
	if err := binary.Write(buf, binary.BigEndian, m.Epoch); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *FutureHostElectedMsg) UnmarshalBinary(data []byte) error {
	if len(data) != 16+8 {
		return fmt.Errorf("consensus: malformed FUTURE_HOST_ELECTED (%d bytes)", len(data))
	}
	copy(m.NewHostID[:], data[:16])
	m.Epoch = binary.BigEndian.Uint64(data[16:])
	return nil
}

// RingCollectMsg is RING_COLLECT's payload (type 6067): the host's
// request that every participant report fresh metrics for RoundID.
type RingCollectMsg struct {
	RoundID uint64
}

func (m *RingCollectMsg) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.BigEndian, m.RoundID); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *RingCollectMsg) UnmarshalBinary(data []byte) error {
	if len(data) != 8 {
		return fmt.Errorf("consensus: malformed RING_COLLECT (%d bytes)", len(data))
	}
	m.RoundID = binary.BigEndian.Uint64(data)
	return nil
}

// RingCollectAckMsg is RING_COLLECT_ACK's payload (type 6068): a
// participant's reply to RingCollectMsg, carrying RoundID plus its
// freshly sampled metrics.
type RingCollectAckMsg struct {
	RoundID uint64
	Report  Participant
}

func (m *RingCollectAckMsg) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.BigEndian, m.RoundID); err != nil {
		return nil, err
	}
	marshalParticipant(buf, m.Report)
	return buf.Bytes(), nil
}

func (m *RingCollectAckMsg) UnmarshalBinary(data []byte) error {
	if len(data) != 8+participantWireSize {
		return fmt.Errorf("consensus: malformed RING_COLLECT_ACK (%d bytes)", len(data))
	}
	m.RoundID = binary.BigEndian.Uint64(data[:8])
	p, err := unmarshalParticipant(bytes.NewReader(data[8:]))
	if err != nil {
		return fmt.Errorf("consensus: malformed RING_COLLECT_ACK: %w", err)
	}
	m.Report = p
	return nil
}
