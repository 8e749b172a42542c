package driver

import (
	"context"
	"errors"
	"time"

	"github.com/mrzor/sockstamp/internal/mux"
	"github.com/mrzor/sockstamp/internal/window"

	"golang.org/x/sys/unix"
)

const (
	fakeSockFd  = 3
	fakeTimerFd = 4
)

var errScriptDone = errors.New("script done")

type fakeClock struct {
	times []time.Time
}

func (c *fakeClock) Now() (time.Time, error) {
	if len(c.times) == 0 {
		return time.Time{}, errors.New("fake clock exhausted")
	}
	t := c.times[0]
	c.times = c.times[1:]
	return t, nil
}

type fakePoller struct {
	batches [][]mux.Event
}

func (p *fakePoller) Wait() ([]mux.Event, error) {
	if len(p.batches) == 0 {
		return nil, errScriptDone
	}
	b := p.batches[0]
	p.batches = p.batches[1:]
	return b, nil
}

type fakeTimer struct {
	armed       []time.Duration
	expirations uint64
}

func (t *fakeTimer) Fd() int { return fakeTimerFd }

func (t *fakeTimer) Arm(d time.Duration) error {
	t.armed = append(t.armed, d)
	return nil
}

func (t *fakeTimer) Expirations() (uint64, error) {
	if t.expirations == 0 {
		return 1, nil
	}
	return t.expirations, nil
}

type message struct {
	data  int
	oob   []byte
	flags int
	err   error
}

type fakeSocket struct {
	sendN    int // 0 means the whole payload
	sendErr  error
	sent     [][]byte
	inbound  []message
	errQueue []message
}

func (s *fakeSocket) Fd() int { return fakeSockFd }

func (s *fakeSocket) Send(p []byte) (int, error) {
	if s.sendErr != nil {
		return 0, s.sendErr
	}
	s.sent = append(s.sent, append([]byte(nil), p...))
	if s.sendN != 0 {
		return s.sendN, nil
	}
	return len(p), nil
}

func (s *fakeSocket) Recv(p, oob []byte) (n, oobn, flags int, err error) {
	if len(s.inbound) == 0 {
		return 0, 0, 0, unix.EAGAIN
	}
	m := s.inbound[0]
	s.inbound = s.inbound[1:]
	if m.err != nil {
		return 0, 0, 0, m.err
	}
	return m.data, copy(oob, m.oob), m.flags, nil
}

func (s *fakeSocket) RecvErrQueue(oob []byte) (oobn, flags int, err error) {
	if len(s.errQueue) == 0 {
		return 0, 0, unix.EAGAIN
	}
	m := s.errQueue[0]
	s.errQueue = s.errQueue[1:]
	if m.err != nil {
		return 0, 0, m.err
	}
	return copy(oob, m.oob), m.flags, nil
}

type fakeReporter struct {
	reports []*window.Report
}

func (r *fakeReporter) Report(_ context.Context, rep *window.Report) error {
	r.reports = append(r.reports, rep)
	return nil
}

type fakeCounter struct {
	n     uint64
	calls int
}

func (c *fakeCounter) Count() (uint64, error) {
	c.calls++
	return c.n, nil
}

func sockErr() mux.Event      { return mux.Event{Fd: fakeSockFd, Error: true} }
func sockReadable() mux.Event { return mux.Event{Fd: fakeSockFd, Readable: true} }
func timerFired() mux.Event   { return mux.Event{Fd: fakeTimerFd, Readable: true} }
