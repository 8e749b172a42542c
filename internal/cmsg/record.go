package cmsg

import (
	"errors"
	"fmt"
	"time"

	"github.com/mrzor/sockstamp/internal/kabi"
)

// Kind tags a decoded Record.
type Kind uint8

const (
	// SoftwareTimestamp comes from slot 0 of SCM_TIMESTAMPING.
	SoftwareTimestamp Kind = iota + 1
	// HardwareTimestamp is reserved. Hardware timestamping is not enabled, so the
	// decoder never produces it.
	HardwareTimestamp
	// LegacyTimestamp comes from SCM_TIMESTAMPNS.
	LegacyTimestamp
	// Completion comes from an IP_RECVERR/IPV6_RECVERR extended error.
	Completion
)

func (k Kind) String() string {
	switch k {
	case SoftwareTimestamp:
		return "software"
	case HardwareTimestamp:
		return "hardware"
	case LegacyTimestamp:
		return "legacy"
	case Completion:
		return "completion"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Record is one decoded control message. Time is set for timestamp kinds,
// Completion for the Completion kind.
type Record struct {
	Kind       Kind
	Time       time.Time
	Completion CompletionRecord
}

// IsTimestamp reports whether the record carries a timestamp.
func (r Record) IsTimestamp() bool {
	return r.Kind == SoftwareTimestamp || r.Kind == HardwareTimestamp || r.Kind == LegacyTimestamp
}

// CompletionRecord notifies that a previously sent message reached a stage.
// Errno and Origin have already been checked against the timestamping sentinels.
type CompletionRecord struct {
	Sequence uint32
	Stage    kabi.Stage
	Errno    uint32
	Origin   uint8
}

var (
	// ErrTruncated is returned for control buffers that end inside a record.
	ErrTruncated = errors.New("truncated control message")
	// ErrUnexpectedRecord is wrapped by UnexpectedRecordError.
	ErrUnexpectedRecord = errors.New("unexpected control message")
	// ErrUnexpectedErrno means an extended error was a real socket error.
	ErrUnexpectedErrno = errors.New("unexpected errno")
	// ErrUnexpectedOrigin means an extended error did not come from timestamping.
	ErrUnexpectedOrigin = errors.New("unexpected origin")
	// ErrUnknownStage means ee_info is outside the stage enumeration.
	ErrUnknownStage = errors.New("unknown timestamping stage")
)

// UnexpectedRecordError reports a control message outside the closed set.
type UnexpectedRecordError struct {
	Level int32
	Type  int32
}

func (e *UnexpectedRecordError) Error() string {
	return fmt.Sprintf("unexpected control message type: %d (level %d)", e.Type, e.Level)
}

func (e *UnexpectedRecordError) Unwrap() error {
	return ErrUnexpectedRecord
}
