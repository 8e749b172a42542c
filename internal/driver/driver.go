package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mrzor/sockstamp/internal/mux"
	"github.com/mrzor/sockstamp/internal/window"

	log "github.com/sirupsen/logrus"
)

// ControlBufferSize is large enough for every record the kernel attaches.
const ControlBufferSize = 65535

// DatagramBufferSize is the largest UDP payload over IPv4.
const DatagramBufferSize = 65507

var (
	// ErrControlTruncated means MSG_CTRUNC was set: records were dropped.
	ErrControlTruncated = errors.New("cmsg truncated")
	// ErrDatagramTruncated means MSG_TRUNC was set on a receive.
	ErrDatagramTruncated = errors.New("dgram truncated")
	// ErrPeerClosed means the TCP peer closed the connection.
	ErrPeerClosed = errors.New("peer closed connection")
)

// ShortWriteError reports a send that accepted fewer bytes than the payload.
type ShortWriteError struct {
	Sent int
	Want int
}

func (e *ShortWriteError) Error() string {
	return fmt.Sprintf("unable to send %d bytes, sent %d", e.Want, e.Sent)
}

// Poller blocks until watched descriptors are ready.
type Poller interface {
	Wait() ([]mux.Event, error)
}

// Timer is a one-shot deadline source.
type Timer interface {
	Fd() int
	Arm(d time.Duration) error
	Expirations() (uint64, error)
}

// Reporter receives every window report.
type Reporter interface {
	Report(ctx context.Context, r *window.Report) error
}

// PacketCounter reads a kernel-side packet count for the socket.
type PacketCounter interface {
	Count() (uint64, error)
}

// readExpiration consumes a timer expiration. A one-shot timer read after it fired
// must report exactly one expiration.
func readExpiration(t Timer) error {
	exp, err := t.Expirations()
	if err != nil {
		return err
	}
	if exp != 1 {
		return fmt.Errorf("read: timer: %w: %d", mux.ErrTimerOverrun, exp)
	}
	return nil
}

func report(ctx context.Context, reporter Reporter, counter PacketCounter, r *window.Report) error {
	if err := reporter.Report(ctx, r); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if counter == nil {
		return nil
	}
	n, err := counter.Count()
	if err != nil {
		return fmt.Errorf("reading kernel packet counter: %w", err)
	}
	logPacketCount(r, n)
	return nil
}

func logPacketCount(r *window.Report, n uint64) {
	log.WithFields(log.Fields{
		"samples":        r.Samples,
		"kernel_packets": n,
	}).Info("socket filter packet count")
}
