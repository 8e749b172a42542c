package mux

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestTimer_OneShotWakesPoller(t *testing.T) {
	p, err := NewPoller(0)
	require.NoError(t, err)
	defer p.Close()

	timer, err := NewTimer(unix.CLOCK_MONOTONIC)
	require.NoError(t, err)
	defer timer.Close()

	require.NoError(t, p.Watch(timer.Fd(), false))
	require.NoError(t, timer.Arm(5*time.Millisecond))

	events, err := p.Wait()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, timer.Fd(), events[0].Fd)
	assert.True(t, events[0].Readable)

	exp, err := timer.Expirations()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), exp)

	remaining, err := timer.Remaining()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), remaining, "one-shot timer is disarmed after firing")
}

func TestTimer_ExpirationsWouldBlock(t *testing.T) {
	timer, err := NewTimer(unix.CLOCK_MONOTONIC)
	require.NoError(t, err)
	defer timer.Close()

	_, err = timer.Expirations()
	assert.ErrorIs(t, err, unix.EAGAIN)
}

func TestTimer_PeriodicCountsOverruns(t *testing.T) {
	timer, err := NewTimer(unix.CLOCK_MONOTONIC)
	require.NoError(t, err)
	defer timer.Close()

	var ts unix.Timespec
	require.NoError(t, unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts))
	start := time.Unix(ts.Unix())

	require.NoError(t, timer.ArmPeriodic(start.Add(time.Millisecond), time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	exp, err := timer.Expirations()
	require.NoError(t, err)
	assert.Greater(t, exp, uint64(1))
}

func TestPoller_SocketErrorReadiness(t *testing.T) {
	p, err := NewPoller(4)
	require.NoError(t, err)
	defer p.Close()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	require.NoError(t, p.Watch(fds[0], true))

	_, err = unix.Write(fds[1], []byte("x"))
	require.NoError(t, err)

	events, err := p.Wait()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, fds[0], events[0].Fd)
	assert.True(t, events[0].Readable)
	assert.False(t, events[0].Error)
}
