package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/mrzor/sockstamp/internal/cmsg"
	"github.com/mrzor/sockstamp/internal/timesync"
	"github.com/mrzor/sockstamp/internal/window"

	"golang.org/x/sys/unix"
)

// DirectStage is the single pseudo-stage of the receiver.
const DirectStage = "direct"

// DatagramSocket is the bound UDP socket the receiver drives.
type DatagramSocket interface {
	Fd() int
	// Recv reads one datagram and its control data without blocking.
	Recv(p, oob []byte) (n, oobn, flags int, err error)
}

// UDPConfig parameterizes the receiver.
type UDPConfig struct {
	Window int
}

// UDPDriver is the passive receiver loop.
type UDPDriver struct {
	sock     DatagramSocket
	poller   Poller
	clock    timesync.Clock
	reporter Reporter
	packets  PacketCounter
	agg      *window.Aggregator
	buf      []byte
	oob      []byte
}

// NewUDP wires a receiver. The poller must already watch sock for readability.
func NewUDP(cfg UDPConfig, sock DatagramSocket, poller Poller, clock timesync.Clock, reporter Reporter) (*UDPDriver, error) {
	agg, err := window.New(window.Config{
		Size:    cfg.Window,
		Stages:  []string{DirectStage},
		Columns: []string{ColumnTimestampNS, ColumnTimestamping},
	})
	if err != nil {
		return nil, err
	}
	return &UDPDriver{
		sock:     sock,
		poller:   poller,
		clock:    clock,
		reporter: reporter,
		agg:      agg,
		buf:      make([]byte, DatagramBufferSize),
		oob:      make([]byte, ControlBufferSize),
	}, nil
}

// WithPacketCounter logs a kernel-side packet count next to every report.
func (d *UDPDriver) WithPacketCounter(c PacketCounter) *UDPDriver {
	d.packets = c
	return d
}

// Received returns the number of datagrams measured so far.
func (d *UDPDriver) Received() uint64 {
	return d.agg.Index()
}

// Run loops until ctx is done or an error occurs. Cancellation is checked between
// datagrams only.
func (d *UDPDriver) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := d.Iterate(ctx); err != nil {
			return err
		}
	}
}

// Iterate waits for the socket and measures at most one datagram.
func (d *UDPDriver) Iterate(ctx context.Context) error {
	events, err := d.poller.Wait()
	if err != nil {
		return err
	}
	for _, ev := range events {
		if ev.Fd == d.sock.Fd() && ev.Readable {
			return d.receive(ctx)
		}
	}
	return nil
}

func (d *UDPDriver) receive(ctx context.Context) error {
	_, oobn, flags, err := d.sock.Recv(d.buf, d.oob)
	if errors.Is(err, unix.EAGAIN) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("recvmsg: udp: %w", err)
	}
	if flags&unix.MSG_CTRUNC != 0 {
		return ErrControlTruncated
	}
	if flags&unix.MSG_TRUNC != 0 {
		return ErrDatagramTruncated
	}

	now, err := d.clock.Now()
	if err != nil {
		return err
	}

	timestampns, timestamping, err := receiveLatency(cmsg.Decode(d.oob[:oobn]), now)
	if err != nil {
		return err
	}
	if err := d.agg.Record(0, timestampns, timestamping); err != nil {
		return err
	}

	if r := d.agg.Commit(); r != nil {
		return report(ctx, d.reporter, d.packets, r)
	}
	return nil
}

// receiveLatency measures now minus each receive timestamp. Completions only come
// from the error queue, so one here breaks the record contract.
func receiveLatency(records *cmsg.Iterator, now time.Time) (timestampns, timestamping int64, err error) {
	for {
		rec, err := records.Next()
		if err == io.EOF {
			return timestampns, timestamping, nil
		}
		if err != nil {
			return 0, 0, err
		}
		switch rec.Kind {
		case cmsg.LegacyTimestamp:
			timestampns = timesync.DeltaNS(now, rec.Time)
		case cmsg.SoftwareTimestamp:
			timestamping = timesync.DeltaNS(now, rec.Time)
		case cmsg.Completion:
			return 0, 0, fmt.Errorf("%w: completion on receive path", cmsg.ErrUnexpectedRecord)
		}
	}
}
