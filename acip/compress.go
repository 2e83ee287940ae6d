package acip

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// imageFrameInlineThreshold is the payload size above which IMAGE_FRAME
// payloads must be zstd-compressed.
const imageFrameInlineThreshold = 16 * 1024

var (
	encOnce sync.Once
	encoder *zstd.Encoder
	encErr  error

	decOnce sync.Once
	decoder *zstd.Decoder
	decErr  error
)

func getEncoder() (*zstd.Encoder, error) {
	encOnce.Do(func() {
		encoder, encErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	return encoder, encErr
}

func getDecoder() (*zstd.Decoder, error) {
	decOnce.Do(func() {
		decoder, decErr = zstd.NewReader(nil)
	})
	return decoder, decErr
}

// EncodeImageFramePayload prepends the one-byte inline compression flag
// and zstd-compresses raw (an RGB24 ImageFrame, possibly already
// RLE-prepassed by the caller on identical adjacent pixels) when it
// exceeds the 16KiB threshold. Payloads at or under the threshold are
// passed through uncompressed with a "none" flag byte.
func EncodeImageFramePayload(raw []byte) ([]byte, error) {
	if len(raw) <= imageFrameInlineThreshold {
		out := make([]byte, 1+len(raw))
		out[0] = compressedFlagNone
		copy(out[1:], raw)
		return out, nil
	}
	enc, err := getEncoder()
	if err != nil {
		return nil, fmt.Errorf("acip: zstd encoder: %w", err)
	}
	compressed := enc.EncodeAll(raw, make([]byte, 0, len(raw)/2))
	out := make([]byte, 1+len(compressed))
	out[0] = compressedFlagZstd
	copy(out[1:], compressed)
	return out, nil
}

// DecodeImageFramePayload strips the inline compression flag and
// decompresses if necessary.
func DecodeImageFramePayload(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, ErrUnexpectedEOF
	}
	flag, body := payload[0], payload[1:]
	switch flag {
	case compressedFlagNone:
		out := make([]byte, len(body))
		copy(out, body)
		return out, nil
	case compressedFlagZstd:
		dec, err := getDecoder()
		if err != nil {
			return nil, fmt.Errorf("acip: zstd decoder: %w", err)
		}
		return dec.DecodeAll(body, nil)
	default:
		return nil, fmt.Errorf("acip: unknown image frame compression flag %d", flag)
	}
}
