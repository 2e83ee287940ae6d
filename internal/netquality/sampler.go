// Package netquality samples live transport connections for the RTT and
// loss inputs consensus.Participant needs. On Linux it reads the kernel's
// TCP_INFO via getsockopt, grounded on
// runZeroInc-sockstats/pkg/tcpinfo/tcpinfo_linux.go. On other platforms,
// and for non-TCP transports (P2P datachannels), it falls back to an
// RTT estimate derived from application-level ping/pong timestamps.
package netquality

import (
	"net"
	"sync"
	"time"
)

// Sample is one network-quality reading.
type Sample struct {
	RTTNs   int64
	LossPct float64
	At      time.Time
}

// Supported reports whether kernel TCP_INFO sampling is available on
// this platform.
func Supported() bool { return platformSupported }

// SampleTCPConn reads TCP_INFO off conn's underlying file descriptor. It
// returns errUnsupported on platforms without a TCP_INFO path.
func SampleTCPConn(conn *net.TCPConn) (Sample, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return Sample{}, err
	}
	var (
		rttNs   int64
		lossPct float64
		sampErr error
	)
	ctlErr := raw.Control(func(fd uintptr) {
		rttNs, lossPct, sampErr = sampleFD(fd)
	})
	if ctlErr != nil {
		return Sample{}, ctlErr
	}
	if sampErr != nil {
		return Sample{}, sampErr
	}
	return Sample{RTTNs: rttNs, LossPct: lossPct, At: time.Now()}, nil
}

// PingEstimator derives an RTT/loss estimate from application-level
// PING/PONG round trips, for transports where TCP_INFO is unavailable
// (a WebRTC datachannel, or a non-Linux host). It is safe for concurrent
// use: the keepalive timer goroutine records sends, the receive loop
// goroutine records the matching pong.
type PingEstimator struct {
	mu        sync.Mutex
	sentAt    time.Time
	lastRTT   time.Duration
	sent      int
	answered  int
}

// RecordPingSent marks the send time of an outstanding PING.
func (p *PingEstimator) RecordPingSent() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sentAt = time.Now()
	p.sent++
}

// RecordPongReceived computes RTT from the most recent RecordPingSent
// call and records it.
func (p *PingEstimator) RecordPongReceived() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sentAt.IsZero() {
		return
	}
	p.lastRTT = time.Since(p.sentAt)
	p.sentAt = time.Time{}
	p.answered++
}

// Sample returns the current RTT/loss estimate: RTT from the last
// completed ping round trip, loss from the fraction of pings that never
// received a pong.
func (p *PingEstimator) Sample() Sample {
	p.mu.Lock()
	defer p.mu.Unlock()
	var lossPct float64
	if p.sent > 0 {
		lossPct = 100 * float64(p.sent-p.answered) / float64(p.sent)
	}
	return Sample{RTTNs: p.lastRTT.Nanoseconds(), LossPct: lossPct, At: time.Now()}
}
