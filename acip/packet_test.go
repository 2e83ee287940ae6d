package acip

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeDecodeRoundtrip(t *testing.T) {
	cases := []struct {
		name    string
		typ     Type
		payload []byte
		src     uint32
	}{
		{"empty", Ping, nil, 0},
		{"small", MsgText, []byte("hello"), 42},
		{"bigger", AsciiFrame, bytes.Repeat([]byte{0xAB}, 4096), 7},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			wire, err := Encode(c.typ, c.payload, c.src, 0)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			pkt, err := Decode(bytes.NewReader(wire), 0)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if pkt.Header.Type != c.typ {
				t.Fatalf("type mismatch: got %v want %v", pkt.Header.Type, c.typ)
			}
			if pkt.Header.SourceClientID != c.src {
				t.Fatalf("source mismatch: got %d want %d", pkt.Header.SourceClientID, c.src)
			}
			if !bytes.Equal(pkt.Payload, c.payload) && !(len(pkt.Payload) == 0 && len(c.payload) == 0) {
				t.Fatalf("payload mismatch: got %v want %v", pkt.Payload, c.payload)
			}
		})
	}
}

func TestDecodeBadMagic(t *testing.T) {
	wire, err := Encode(Ping, nil, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	wire[0] ^= 0xFF
	if _, err := Decode(bytes.NewReader(wire), 0); !errors.Is(err, ErrBadMagic) {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}
}

func TestDecodeChecksumMismatchOnSingleBitFlip(t *testing.T) {
	wire, err := Encode(MsgText, []byte("the quick brown fox"), 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	// flip exactly one bit in the payload.
	wire[HeaderSize] ^= 0x01
	if _, err := Decode(bytes.NewReader(wire), 0); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestDecodeLengthOverflow(t *testing.T) {
	wire, err := Encode(MsgText, bytes.Repeat([]byte{1}, 100), 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(bytes.NewReader(wire), 50); !errors.Is(err, ErrLengthOverflow) {
		t.Fatalf("expected ErrLengthOverflow, got %v", err)
	}
}

func TestDecodeUnexpectedEOF(t *testing.T) {
	wire, err := Encode(MsgText, []byte("abcdef"), 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	truncated := wire[:len(wire)-2]
	if _, err := Decode(bytes.NewReader(truncated), 0); !errors.Is(err, ErrUnexpectedEOF) {
		t.Fatalf("expected ErrUnexpectedEOF, got %v", err)
	}
}

func TestEncodeRejectsOversizedDataChannelPayload(t *testing.T) {
	big := bytes.Repeat([]byte{1}, MaxDataChannelPayloadSize+1)
	if _, err := Encode(ImageFrame, big, 0, MaxDataChannelPayloadSize); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestImageFrameCompressionRoundtrip(t *testing.T) {
	small := bytes.Repeat([]byte{0x10}, 100)
	encSmall, err := EncodeImageFramePayload(small)
	if err != nil {
		t.Fatal(err)
	}
	if encSmall[0] != compressedFlagNone {
		t.Fatalf("expected no compression flag for small payload")
	}
	decSmall, err := DecodeImageFramePayload(encSmall)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decSmall, small) {
		t.Fatalf("small payload roundtrip mismatch")
	}

	big := bytes.Repeat([]byte{0x42}, 64*1024)
	encBig, err := EncodeImageFramePayload(big)
	if err != nil {
		t.Fatal(err)
	}
	if encBig[0] != compressedFlagZstd {
		t.Fatalf("expected zstd compression flag for >16KiB payload")
	}
	decBig, err := DecodeImageFramePayload(encBig)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decBig, big) {
		t.Fatalf("big payload roundtrip mismatch")
	}
}
