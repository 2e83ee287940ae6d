package acip

import "errors"

// Protocol-layer error taxonomy.
var (
	ErrBadMagic         = errors.New("acip: bad magic")
	ErrLengthOverflow   = errors.New("acip: length exceeds transport cap")
	ErrChecksumMismatch = errors.New("acip: crc32c checksum mismatch")
	ErrUnexpectedEOF    = errors.New("acip: unexpected eof reading frame")
	ErrUnknownType      = errors.New("acip: unknown packet type outside extension range")
	ErrPayloadTooLarge  = errors.New("acip: payload exceeds general 5MiB cap")
)
