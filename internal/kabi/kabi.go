// Package kabi mirrors the kernel structures and constants that the timestamping
// engine consumes bit-exactly from ancillary data and the socket error queue.
package kabi

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Stage is the SCM_TSTAMP_* value carried in sock_extended_err.ee_info.
// The wire value is the index; the order is fixed by the kernel ABI.
type Stage uint32

// Stage values matching linux/errqueue.h.
//
//nolint:revive,staticcheck // ALL_CAPS naming matches C/kernel conventions
const (
	SCM_TSTAMP_SND   Stage = unix.SCM_TSTAMP_SND
	SCM_TSTAMP_SCHED Stage = unix.SCM_TSTAMP_SCHED
	SCM_TSTAMP_ACK   Stage = unix.SCM_TSTAMP_ACK
)

// NumStages is the number of stages tracked for stream sockets.
const NumStages = 3

var stageNames = [NumStages]string{"SCM_TSTAMP_SND", "SCM_TSTAMP_SCHED", "SCM_TSTAMP_ACK"}

// Valid reports whether s is one of the three known stages.
func (s Stage) Valid() bool {
	return s < NumStages
}

func (s Stage) String() string {
	if !s.Valid() {
		return fmt.Sprintf("SCM_TSTAMP(%d)", uint32(s))
	}
	return stageNames[s]
}

// Sentinel values every timestamping completion must carry. Anything else means the
// error queue held a real socket error or the kernel changed contract.
const (
	CompletionErrno  = uint32(unix.ENOMSG)
	CompletionOrigin = uint8(unix.SO_EE_ORIGIN_TIMESTAMPING)
)

// Timespec matches struct timespec.
type Timespec = unix.Timespec

// ScmTimestamping matches struct scm_timestamping: software, deprecated
// hardware-transformed and raw hardware timestamps, in that order.
type ScmTimestamping = unix.ScmTimestamping

// SockExtendedErr matches struct sock_extended_err.
type SockExtendedErr = unix.SockExtendedErr

// Software timestamp flag sets. Hardware generation flags are left out: the
// target NICs don't support them.
const (
	// StreamTimestamping is applied to the connected TCP sender.
	StreamTimestamping = unix.SOF_TIMESTAMPING_RX_SOFTWARE |
		unix.SOF_TIMESTAMPING_TX_SOFTWARE |
		unix.SOF_TIMESTAMPING_TX_SCHED |
		unix.SOF_TIMESTAMPING_TX_ACK |
		unix.SOF_TIMESTAMPING_SOFTWARE |
		unix.SOF_TIMESTAMPING_RAW_HARDWARE |
		unix.SOF_TIMESTAMPING_OPT_ID |
		unix.SOF_TIMESTAMPING_OPT_TSONLY

	// DatagramTimestamping is applied to the bound UDP receiver.
	DatagramTimestamping = unix.SOF_TIMESTAMPING_RX_SOFTWARE |
		unix.SOF_TIMESTAMPING_TX_SOFTWARE |
		unix.SOF_TIMESTAMPING_SOFTWARE |
		unix.SOF_TIMESTAMPING_RAW_HARDWARE |
		unix.SOF_TIMESTAMPING_OPT_ID |
		unix.SOF_TIMESTAMPING_OPT_TSONLY
)
