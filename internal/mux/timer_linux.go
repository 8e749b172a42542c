package mux

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// ErrTimerOverrun is returned when a timer fired more than once between reads.
var ErrTimerOverrun = errors.New("too many expirations")

// Timer wraps a non-blocking timerfd.
type Timer struct {
	fd int
}

// NewTimer creates a timerfd on the given clock id.
func NewTimer(clockID int) (*Timer, error) {
	fd, err := unix.TimerfdCreate(clockID, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("timerfd_create: %w", err)
	}
	return &Timer{fd: fd}, nil
}

// Fd returns the descriptor to watch.
func (t *Timer) Fd() int {
	return t.fd
}

// Arm sets a relative one-shot deadline.
func (t *Timer) Arm(d time.Duration) error {
	spec := unix.ItimerSpec{Value: unix.NsecToTimespec(d.Nanoseconds())}
	if err := unix.TimerfdSettime(t.fd, 0, &spec, nil); err != nil {
		return fmt.Errorf("timerfd_settime: %w", err)
	}
	return nil
}

// ArmPeriodic sets an absolute first expiration followed by a fixed period.
// first is a reading of the timer's own clock.
func (t *Timer) ArmPeriodic(first time.Time, period time.Duration) error {
	spec := unix.ItimerSpec{
		Value:    unix.NsecToTimespec(first.UnixNano()),
		Interval: unix.NsecToTimespec(period.Nanoseconds()),
	}
	if err := unix.TimerfdSettime(t.fd, unix.TFD_TIMER_ABSTIME, &spec, nil); err != nil {
		return fmt.Errorf("timerfd_settime: %w", err)
	}
	return nil
}

// Remaining returns the time until the next expiration.
func (t *Timer) Remaining() (time.Duration, error) {
	var spec unix.ItimerSpec
	if err := unix.TimerfdGettime(t.fd, &spec); err != nil {
		return 0, fmt.Errorf("timerfd_gettime: %w", err)
	}
	return time.Duration(spec.Value.Nano()), nil
}

// Expirations reads the 8-byte expiration counter.
func (t *Timer) Expirations() (uint64, error) {
	var buf [8]byte
	n, err := unix.Read(t.fd, buf[:])
	if err != nil {
		return 0, fmt.Errorf("read: timer: %w", err)
	}
	if n != len(buf) {
		return 0, fmt.Errorf("read: timer: got %d bytes, want %d", n, len(buf))
	}
	return binary.NativeEndian.Uint64(buf[:]), nil
}

// Close releases the timer descriptor.
func (t *Timer) Close() error {
	if err := unix.Close(t.fd); err != nil {
		return fmt.Errorf("close: timer: %w", err)
	}
	return nil
}
