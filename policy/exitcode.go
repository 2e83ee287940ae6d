package policy

import (
	"errors"
)

// Exit codes used by process-level callers.
const (
	ExitSuccess         = 0
	ExitGenericFailure  = 1
	ExitMITMDetected    = 2
	ExitHandshakeFailed = 3
	ExitNetUnreachable  = 4
	ExitConfigInvalid   = 5
)

// classifier is implemented by sentinel error values that know their own
// exit code, so ExitCodeFor does not need to import every package that
// defines crypto/transport/consensus errors.
type classifier interface {
	ExitCode() int
}

// ExitCodeFor maps an error to a process exit code. Errors whose dynamic
// type implements ExitCode() int (e.g. crypto.PeerKeyChangedError) take
// priority; everything else not nil maps to ExitGenericFailure.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var c classifier
	if errors.As(err, &c) {
		return c.ExitCode()
	}
	return ExitGenericFailure
}
