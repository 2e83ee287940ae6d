//go:build !linux

package netquality

import "errors"

// errUnsupported is returned by sampleFD on platforms without a
// TCP_INFO-equivalent getsockopt path wired up. SampleTCPConn passes it
// on to the caller; PingEstimator (sampler.go) is the ping-timestamp
// alternative, and nothing here switches to it automatically.
var errUnsupported = errors.New("netquality: TCP_INFO sampling unsupported on this platform")

func sampleFD(fd uintptr) (rttNs int64, lossPct float64, err error) {
	return 0, 0, errUnsupported
}

const platformSupported = false
