package acip

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
)

const (
	// Magic is the fixed ACIP frame magic number.
	Magic uint64 = 0xA5C11C4A1

	// HeaderSize is the fixed on-wire header length: magic(8) + type(2) +
	// length(4) + crc32c(4) + source_client_id(4).
	HeaderSize = 22

	// MaxPayloadSize is the general transport payload cap (5 MiB).
	MaxPayloadSize = 5 * 1024 * 1024

	// MaxDataChannelPayloadSize is the payload cap on a P2P datachannel
	// transport.
	MaxDataChannelPayloadSize = 16 * 1024

	// compressedFlagZstd marks an IMAGE_FRAME payload's inline
	// compression byte as zstd-compressed.
	compressedFlagZstd byte = 1
	compressedFlagNone byte = 0
)

var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// Header is the fixed 22-byte ACIP frame header.
type Header struct {
	Magic          uint64
	Type           Type
	Length         uint32 // payload size in bytes
	CRC32C         uint32 // CRC32C of the payload only
	SourceClientID uint32 // 0 = server
}

// Packet is a decoded ACIP frame: header plus payload bytes.
type Packet struct {
	Header  Header
	Payload []byte
}

// maxPayloadForCap returns the payload size cap 5MiB for maxPayload==0
// (the general cap) or the explicit cap otherwise. Callers pass
// MaxDataChannelPayloadSize when encoding/decoding over a datachannel
// transport.
func maxPayloadForCap(maxPayload int) int {
	if maxPayload <= 0 {
		return MaxPayloadSize
	}
	return maxPayload
}

// Encode serializes type/payload/source into a wire frame. maxPayload
// bounds the payload (0 means the general 5MiB cap; pass
// MaxDataChannelPayloadSize on a datachannel transport).
func Encode(t Type, payload []byte, sourceClientID uint32, maxPayload int) ([]byte, error) {
	cap := maxPayloadForCap(maxPayload)
	if len(payload) > cap {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(payload), cap)
	}
	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint64(buf[0:8], Magic)
	binary.BigEndian.PutUint16(buf[8:10], uint16(t))
	binary.BigEndian.PutUint32(buf[10:14], uint32(len(payload)))
	binary.BigEndian.PutUint32(buf[14:18], crc32.Checksum(payload, castagnoliTable))
	binary.BigEndian.PutUint32(buf[18:22], sourceClientID)
	copy(buf[HeaderSize:], payload)
	return buf, nil
}

// PacketEncryptedAssociatedData returns the fixed-size, pre-ciphertext
// header fields bound as AEAD associated data when sealing/opening a
// PACKET_ENCRYPTED (1200) envelope: magic, the PacketEncrypted type, and
// source_client_id. Length and CRC32C are excluded since both depend on
// the ciphertext that sealing has not produced yet.
func PacketEncryptedAssociatedData(sourceClientID uint32) []byte {
	ad := make([]byte, 8+2+4)
	binary.BigEndian.PutUint64(ad[0:8], Magic)
	binary.BigEndian.PutUint16(ad[8:10], uint16(PacketEncrypted))
	binary.BigEndian.PutUint32(ad[10:14], sourceClientID)
	return ad
}

// DecodeHeader parses the fixed header from buf, which must be at least
// HeaderSize bytes.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrUnexpectedEOF
	}
	h := Header{
		Magic:          binary.BigEndian.Uint64(buf[0:8]),
		Type:           Type(binary.BigEndian.Uint16(buf[8:10])),
		Length:         binary.BigEndian.Uint32(buf[10:14]),
		CRC32C:         binary.BigEndian.Uint32(buf[14:18]),
		SourceClientID: binary.BigEndian.Uint32(buf[18:22]),
	}
	if h.Magic != Magic {
		return h, ErrBadMagic
	}
	return h, nil
}

// Decode reads one complete frame from r, verifying magic, length bound,
// CRC, and type legality. maxPayload bounds accepted payload sizes (0 =
// general 5MiB cap).
func Decode(r io.Reader, maxPayload int) (Packet, error) {
	hdrBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, hdrBuf); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return Packet{}, ErrUnexpectedEOF
		}
		return Packet{}, err
	}
	hdr, err := DecodeHeader(hdrBuf)
	if err != nil {
		return Packet{}, err
	}
	cap := maxPayloadForCap(maxPayload)
	if int(hdr.Length) > cap {
		return Packet{}, fmt.Errorf("%w: %d > %d", ErrLengthOverflow, hdr.Length, cap)
	}
	if !knownType(hdr.Type) && hdr.Type < extensionRangeStart {
		return Packet{}, fmt.Errorf("%w: type %d", ErrUnknownType, hdr.Type)
	}
	payload := make([]byte, hdr.Length)
	if hdr.Length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			if err == io.ErrUnexpectedEOF || err == io.EOF {
				return Packet{}, ErrUnexpectedEOF
			}
			return Packet{}, err
		}
	}
	if crc32.Checksum(payload, castagnoliTable) != hdr.CRC32C {
		return Packet{}, ErrChecksumMismatch
	}
	return Packet{Header: hdr, Payload: payload}, nil
}
