package report

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/mrzor/sockstamp/internal/drift"
	"github.com/mrzor/sockstamp/internal/driver"
	"github.com/mrzor/sockstamp/internal/window"
)

// Reporter receives every window report.
type Reporter interface {
	Report(ctx context.Context, r *window.Report) error
}

// Layout selects the line format of a Console.
type Layout int

const (
	// SenderLayout prints one line per send stage and the send() call latency.
	SenderLayout Layout = iota
	// ReceiverLayout prints the single receive line.
	ReceiverLayout
	// DriftLayout prints the timer period and offset.
	DriftLayout
)

func (l Layout) String() string {
	switch l {
	case SenderLayout:
		return "sender"
	case ReceiverLayout:
		return "receiver"
	case DriftLayout:
		return "drift"
	}
	return fmt.Sprintf("Layout(%d)", int(l))
}

// Console writes reports as text lines.
type Console struct {
	mu     sync.Mutex
	w      io.Writer
	layout Layout
}

// NewConsole returns a Console writing to w.
func NewConsole(w io.Writer, layout Layout) *Console {
	return &Console{w: w, layout: layout}
}

// Report writes the lines for r.
func (c *Console) Report(_ context.Context, r *window.Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.layout {
	case SenderLayout:
		for _, s := range r.Series {
			ns, _ := s.Column(driver.ColumnTimestampNS)
			ing, _ := s.Column(driver.ColumnTimestamping)
			if _, err := fmt.Fprintf(c.w, "Avg %s over %d - timestampns: %d ns, timestamping: %d ns\n",
				s.Stage, r.Size, ns.Avg, ing.Avg); err != nil {
				return err
			}
		}
		if r.Call != nil {
			if _, err := fmt.Fprintf(c.w, "Avg sent() over %d - %d ns\n", r.Size, r.Call.Avg); err != nil {
				return err
			}
		}
	case ReceiverLayout:
		for _, s := range r.Series {
			ns, _ := s.Column(driver.ColumnTimestampNS)
			ing, _ := s.Column(driver.ColumnTimestamping)
			if _, err := fmt.Fprintf(c.w, "Avg over %d - timestampns: %d ns, timestamping: %d ns\n",
				r.Size, ns.Avg, ing.Avg); err != nil {
				return err
			}
		}
	case DriftLayout:
		for _, s := range r.Series {
			period, _ := s.Column(drift.ColumnPeriod)
			offset, _ := s.Column(drift.ColumnOffset)
			if _, err := fmt.Fprintf(c.w, "Avg over %d intervals: period %d ns, offset %d ns\n",
				r.Size, period.Avg, offset.Avg); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown console layout %s", c.layout)
	}
	return nil
}

// Multi sends every report to each reporter in order. All reporters run; the
// first error is returned.
type Multi []Reporter

// Report implements Reporter.
func (m Multi) Report(ctx context.Context, r *window.Report) error {
	var first error
	for _, rep := range m {
		if err := rep.Report(ctx, r); err != nil && first == nil {
			first = err
		}
	}
	return first
}
