//go:build linux

package netquality

import (
	"syscall"
	"unsafe"
)

// rawTCPInfo mirrors the leading, stable portion of the Linux kernel's
// struct tcp_info. Only the fields this sampler needs are named; later
// kernel-version-dependent fields are left as padding so the struct
// layout stays correct for getsockopt(2) without chasing every kernel
// release's additions, grounded directly on
// runZeroInc-sockstats/pkg/tcpinfo/tcpinfo_linux.go's RawTCPInfo.
type rawTCPInfo struct {
	state       uint8
	caState     uint8
	retransmits uint8
	probes      uint8
	backoff     uint8
	options     uint8
	bitfield0   uint8
	bitfield1   uint8
	rto         uint32
	ato         uint32
	sndMSS      uint32
	rcvMSS      uint32
	unacked     uint32
	sacked      uint32
	lost        uint32
	retrans     uint32
	fackets     uint32
	_           [4]uint32 // last_data_sent, last_ack_sent, last_data_recv, last_ack_recv
	pmtu        uint32
	rcvSsthresh uint32
	rtt         uint32
	rttvar      uint32
	sndSsthresh uint32
	sndCwnd     uint32
	advmss      uint32
	reordering  uint32
	rcvRTT      uint32
	rcvSpace    uint32
	totalRetrans uint32
}

const sizeOfRawTCPInfo = int(unsafe.Sizeof(rawTCPInfo{}))

// getRawTCPInfo calls getsockopt(SOL_TCP, TCP_INFO) on fd, grounded
// directly on GetRawTCPInfo in tcpinfo_linux_others.go.
func getRawTCPInfo(fd uintptr) (*rawTCPInfo, error) {
	var value rawTCPInfo
	length := uint32(sizeOfRawTCPInfo)
	_, _, errno := syscall.Syscall6(
		syscall.SYS_GETSOCKOPT,
		fd,
		uintptr(syscall.SOL_TCP),
		uintptr(syscall.TCP_INFO),
		uintptr(unsafe.Pointer(&value)),
		uintptr(unsafe.Pointer(&length)),
		0,
	)
	if errno != 0 {
		return nil, errno
	}
	return &value, nil
}

// sampleFD reads rtt/loss off a live TCP socket file descriptor. rttNs is
// tcpi_rtt (microseconds) scaled to nanoseconds; lossPct is an estimate
// from tcpi_total_retrans against fackets+unacked+sacked+1, capped at 100.
func sampleFD(fd uintptr) (rttNs int64, lossPct float64, err error) {
	info, err := getRawTCPInfo(fd)
	if err != nil {
		return 0, 0, err
	}
	rttNs = int64(info.rtt) * 1000
	sent := info.fackets + info.unacked + info.sacked + 1 // crude floor to avoid div-by-zero
	if info.totalRetrans > 0 {
		lossPct = 100 * float64(info.totalRetrans) / float64(sent)
		if lossPct > 100 {
			lossPct = 100
		}
	}
	return rttNs, lossPct, nil
}

const platformSupported = true
