package mux

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// DefaultMaxEvents bounds the events returned by one Wait.
const DefaultMaxEvents = 32

// Event is the readiness of one watched descriptor.
type Event struct {
	Fd       int
	Readable bool
	Error    bool
	Hangup   bool
}

// Poller wraps an epoll instance.
type Poller struct {
	fd     int
	events []unix.EpollEvent
}

// NewPoller creates an epoll instance returning at most maxEvents per Wait.
func NewPoller(maxEvents int) (*Poller, error) {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll: create: %w", err)
	}
	return &Poller{fd: fd, events: make([]unix.EpollEvent, maxEvents)}, nil
}

// Watch registers fd for readability and, when withErrors is set, error readiness.
// EPOLLERR is always reported by the kernel; asking for it keeps intent visible.
func (p *Poller) Watch(fd int, withErrors bool) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN}
	if withErrors {
		ev.Events |= unix.EPOLLERR
	}
	//nolint:gosec // descriptors fit in int32
	ev.Fd = int32(fd)
	if err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll_ctl: add %d: %w", fd, err)
	}
	return nil
}

// Wait blocks until at least one watched descriptor is ready.
func (p *Poller) Wait() ([]Event, error) {
	for {
		n, err := unix.EpollWait(p.fd, p.events, -1)
		if errors.Is(err, unix.EINTR) {
			// A signal interrupted the wait, not the kernel operation.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("epoll_wait: %w", err)
		}

		ready := make([]Event, n)
		for i, ev := range p.events[:n] {
			ready[i] = Event{
				Fd:       int(ev.Fd),
				Readable: ev.Events&unix.EPOLLIN != 0,
				Error:    ev.Events&unix.EPOLLERR != 0,
				Hangup:   ev.Events&unix.EPOLLHUP != 0,
			}
		}
		return ready, nil
	}
}

// Close releases the epoll descriptor.
func (p *Poller) Close() error {
	if err := unix.Close(p.fd); err != nil {
		return fmt.Errorf("close: epoll: %w", err)
	}
	return nil
}
