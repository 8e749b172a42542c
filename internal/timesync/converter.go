package timesync

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Clock returns the current reading of one kernel clock.
type Clock interface {
	Now() (time.Time, error)
}

// KernelClock reads a clock_gettime clock id.
type KernelClock struct {
	id   int32
	name string
}

// Realtime is the clock socket timestamps are taken on.
var Realtime = &KernelClock{id: unix.CLOCK_REALTIME, name: "CLOCK_REALTIME"}

// Monotonic is the clock timerfd deadlines are taken on.
var Monotonic = &KernelClock{id: unix.CLOCK_MONOTONIC, name: "CLOCK_MONOTONIC"}

// Now reads the clock. The returned time carries no Go monotonic reading.
func (c *KernelClock) Now() (time.Time, error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(c.id, &ts); err != nil {
		return time.Time{}, fmt.Errorf("clock_gettime: %s: %w", c.name, err)
	}
	return time.Unix(ts.Unix()), nil
}

// ID returns the clock id, for timerfd_create.
func (c *KernelClock) ID() int {
	return int(c.id)
}

func (c *KernelClock) String() string {
	return c.name
}

// DeltaNS returns lhs - rhs in nanoseconds.
func DeltaNS(lhs, rhs time.Time) int64 {
	return lhs.Sub(rhs).Nanoseconds()
}

// FromTimespec converts a kernel timespec.
func FromTimespec(ts unix.Timespec) time.Time {
	return time.Unix(ts.Unix())
}
