package timesync

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestDeltaNS(t *testing.T) {
	base := time.Unix(1000000000, 999_999_000)

	tests := []struct {
		name string
		lhs  time.Time
		rhs  time.Time
		want int64
	}{
		{name: "same instant", lhs: base, rhs: base, want: 0},
		{name: "five microseconds later", lhs: base.Add(5 * time.Microsecond), rhs: base, want: 5000},
		{name: "across a second boundary", lhs: time.Unix(1000000001, 1000), rhs: base, want: 2000},
		{name: "negative", lhs: base, rhs: base.Add(time.Second), want: -1_000_000_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeltaNS(tt.lhs, tt.rhs); got != tt.want {
				t.Errorf("DeltaNS() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFromTimespec(t *testing.T) {
	ts := unix.NsecToTimespec(1_234_567_890_123)
	got := FromTimespec(ts)
	if got.UnixNano() != 1_234_567_890_123 {
		t.Errorf("FromTimespec() = %d, want 1234567890123", got.UnixNano())
	}
}

func TestKernelClocks(t *testing.T) {
	for _, c := range []*KernelClock{Realtime, Monotonic} {
		t.Run(c.String(), func(t *testing.T) {
			a, err := c.Now()
			if err != nil {
				t.Fatalf("Now() error = %v", err)
			}
			b, err := c.Now()
			if err != nil {
				t.Fatalf("Now() error = %v", err)
			}
			if b.Before(a) {
				t.Errorf("%s went backwards: %v then %v", c, a, b)
			}
		})
	}

	rt, err := Realtime.Now()
	if err != nil {
		t.Fatalf("Realtime.Now() error = %v", err)
	}
	if d := time.Since(rt); d < -time.Second || d > time.Second {
		t.Errorf("Realtime is %v away from time.Now", d)
	}
}
