package correlate

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/mrzor/sockstamp/internal/cmsg"
	"github.com/mrzor/sockstamp/internal/kabi"
)

// ErrOutOfOrder is wrapped by SequenceError.
var ErrOutOfOrder = errors.New("completion out of order")

// SequenceError reports a completion that does not belong to the last send.
type SequenceError struct {
	Got  uint32
	Want uint32
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("unexpected message_id: %d wants: %d", e.Got, e.Want)
}

func (e *SequenceError) Unwrap() error {
	return ErrOutOfOrder
}

// SendCounter is the OPT_ID mirror shared by the send and completion paths.
// For stream sockets the kernel counts bytes, for datagram sockets messages.
type SendCounter struct {
	sent uint32
}

// Advance moves the counter after a successful send of n units.
func (c *SendCounter) Advance(n int) {
	//nolint:gosec // wraps exactly like the kernel's u32 counter
	c.sent += uint32(n)
}

// Load returns the current counter value.
func (c *SendCounter) Load() uint32 {
	return c.sent
}

// CheckSequence validates a completion against the counter.
func CheckSequence(rec cmsg.CompletionRecord, counter uint32) error {
	want := counter - 1
	if rec.Sequence != want {
		return &SequenceError{Got: rec.Sequence, Want: want}
	}
	return nil
}

// Sample is the latency of one error-queue message, measured from the send capture time.
type Sample struct {
	Stage        kabi.Stage
	TimestampNS  int64
	Timestamping int64
	Completed    bool
}

// Correlator folds completion messages into samples.
type Correlator struct {
	counter *SendCounter
}

// New creates a Correlator reading the given counter.
func New(counter *SendCounter) *Correlator {
	return &Correlator{counter: counter}
}

// Correlate consumes every record of one error-queue message. A message without a
// completion record is attributed to SCM_TSTAMP_SND with Completed unset.
func (c *Correlator) Correlate(records *cmsg.Iterator, sentAt time.Time) (Sample, error) {
	sample := Sample{Stage: kabi.SCM_TSTAMP_SND}

	for {
		rec, err := records.Next()
		if err == io.EOF {
			return sample, nil
		}
		if err != nil {
			return Sample{}, err
		}

		switch rec.Kind {
		case cmsg.LegacyTimestamp:
			sample.TimestampNS = rec.Time.Sub(sentAt).Nanoseconds()
		case cmsg.SoftwareTimestamp:
			sample.Timestamping = rec.Time.Sub(sentAt).Nanoseconds()
		case cmsg.Completion:
			if err := CheckSequence(rec.Completion, c.counter.Load()); err != nil {
				return Sample{}, err
			}
			sample.Stage = rec.Completion.Stage
			sample.Completed = true
		default:
			// HardwareTimestamp is never decoded
		}
	}
}
