package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mrzor/sockstamp/internal/cmsg"
	"github.com/mrzor/sockstamp/internal/correlate"
	"github.com/mrzor/sockstamp/internal/kabi"
	"github.com/mrzor/sockstamp/internal/timesync"
	"github.com/mrzor/sockstamp/internal/window"

	"golang.org/x/sys/unix"
)

// Column names shared by both variants.
const (
	ColumnTimestampNS  = "timestampns"
	ColumnTimestamping = "timestamping"
)

// StreamSocket is the connected TCP socket the sender drives.
type StreamSocket interface {
	Fd() int
	// Send writes without blocking.
	Send(p []byte) (int, error)
	// Recv reads inbound data without blocking.
	Recv(p, oob []byte) (n, oobn, flags int, err error)
	// RecvErrQueue reads one error-queue message without blocking. It returns
	// unix.EAGAIN once the queue is empty.
	RecvErrQueue(oob []byte) (oobn, flags int, err error)
}

// TCPConfig parameterizes the sender.
type TCPConfig struct {
	Payload  []byte
	Interval time.Duration
	Window   int
}

// TCPDriver is the active sender loop.
type TCPDriver struct {
	cfg        TCPConfig
	sock       StreamSocket
	poller     Poller
	timer      Timer
	clock      timesync.Clock
	reporter   Reporter
	packets    PacketCounter
	sent       correlate.SendCounter
	correlator *correlate.Correlator
	agg        *window.Aggregator
	oob        []byte
	discard    []byte
}

// NewTCP wires a sender. The poller must already watch sock (readable and error)
// and timer (readable).
func NewTCP(cfg TCPConfig, sock StreamSocket, poller Poller, timer Timer, clock timesync.Clock, reporter Reporter) (*TCPDriver, error) {
	if len(cfg.Payload) == 0 {
		return nil, fmt.Errorf("payload must not be empty")
	}
	stages := make([]string, kabi.NumStages)
	for i := range stages {
		stages[i] = kabi.Stage(i).String()
	}
	agg, err := window.New(window.Config{
		Size:       cfg.Window,
		Stages:     stages,
		Columns:    []string{ColumnTimestampNS, ColumnTimestamping},
		TrackCalls: true,
	})
	if err != nil {
		return nil, err
	}

	d := &TCPDriver{
		cfg:      cfg,
		sock:     sock,
		poller:   poller,
		timer:    timer,
		clock:    clock,
		reporter: reporter,
		agg:      agg,
		oob:      make([]byte, ControlBufferSize),
		discard:  make([]byte, DatagramBufferSize),
	}
	d.correlator = correlate.New(&d.sent)
	return d, nil
}

// WithPacketCounter logs a kernel-side packet count next to every report.
func (d *TCPDriver) WithPacketCounter(c PacketCounter) *TCPDriver {
	d.packets = c
	return d
}

// Sent returns the OPT_ID counter mirror.
func (d *TCPDriver) Sent() uint32 {
	return d.sent.Load()
}

// Run loops until ctx is done or an error occurs. Cancellation is checked between
// iterations only.
func (d *TCPDriver) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := d.Iterate(ctx); err != nil {
			return err
		}
	}
}

// Iterate performs one send and waits out its deadline.
func (d *TCPDriver) Iterate(ctx context.Context) error {
	sentAt, err := d.clock.Now()
	if err != nil {
		return err
	}
	n, sendErr := d.sock.Send(d.cfg.Payload)
	done, err := d.clock.Now()
	if err != nil {
		return err
	}
	if sendErr != nil {
		return fmt.Errorf("send: tcp: %w", sendErr)
	}
	d.agg.RecordCall(timesync.DeltaNS(done, sentAt))

	if n != len(d.cfg.Payload) {
		return &ShortWriteError{Sent: n, Want: len(d.cfg.Payload)}
	}
	d.sent.Advance(n)

	if err := d.timer.Arm(d.cfg.Interval); err != nil {
		return err
	}
	if err := d.await(sentAt); err != nil {
		return err
	}

	if r := d.agg.Commit(); r != nil {
		return report(ctx, d.reporter, d.packets, r)
	}
	return nil
}

// await handles readiness until the deadline fires.
func (d *TCPDriver) await(sentAt time.Time) error {
	for {
		events, err := d.poller.Wait()
		if err != nil {
			return err
		}

		expired := false
		for _, ev := range events {
			switch ev.Fd {
			case d.sock.Fd():
				if ev.Error {
					if err := d.drainErrQueue(sentAt); err != nil {
						return err
					}
				}
				if ev.Readable || ev.Hangup {
					if err := d.discardInbound(); err != nil {
						return err
					}
				}
			case d.timer.Fd():
				if ev.Readable {
					if err := readExpiration(d.timer); err != nil {
						return err
					}
					expired = true
				}
			}
		}
		if expired {
			return nil
		}
	}
}

// drainErrQueue reads every pending completion message.
func (d *TCPDriver) drainErrQueue(sentAt time.Time) error {
	for {
		oobn, flags, err := d.sock.RecvErrQueue(d.oob)
		if errors.Is(err, unix.EAGAIN) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("recvmsg: tcp: %w", err)
		}
		if flags&unix.MSG_CTRUNC != 0 {
			return ErrControlTruncated
		}

		sample, err := d.correlator.Correlate(cmsg.Decode(d.oob[:oobn]), sentAt)
		if err != nil {
			return err
		}
		if err := d.agg.Record(int(sample.Stage), sample.TimestampNS, sample.Timestamping); err != nil {
			return err
		}
	}
}

// discardInbound drops whatever the peer sent. Left unread it would keep the
// level-triggered socket readable and spin the loop.
func (d *TCPDriver) discardInbound() error {
	for {
		n, oobn, _, err := d.sock.Recv(d.discard, d.oob)
		if errors.Is(err, unix.EAGAIN) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("recvmsg: tcp: %w", err)
		}
		if n == 0 {
			return ErrPeerClosed
		}
		// Inbound data still has to respect the closed record set.
		if _, err := cmsg.Decode(d.oob[:oobn]).All(); err != nil {
			return err
		}
	}
}
