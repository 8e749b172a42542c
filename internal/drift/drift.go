// Package drift measures how far a periodic timerfd strays from its schedule.
//
// The timer is armed on an absolute whole-second deadline and then fires every
// period. Each expiration records two values: the offset between the wake-up
// time and the expected deadline, and the period since the previous wake-up.
package drift

import (
	"context"
	"fmt"
	"time"

	"github.com/mrzor/sockstamp/internal/mux"
	"github.com/mrzor/sockstamp/internal/timesync"
	"github.com/mrzor/sockstamp/internal/window"
)

const (
	// Stage names the single series of a drift report.
	Stage = "intervals"

	ColumnPeriod = "period"
	ColumnOffset = "offset"
)

// Timer is a periodic deadline source.
type Timer interface {
	Fd() int
	ArmPeriodic(first time.Time, period time.Duration) error
	Remaining() (time.Duration, error)
	Expirations() (uint64, error)
}

// Poller blocks until the timer is ready.
type Poller interface {
	Wait() ([]mux.Event, error)
}

// Reporter receives every window report.
type Reporter interface {
	Report(ctx context.Context, r *window.Report) error
}

// Config parameterizes the meter.
type Config struct {
	Window int
	Period time.Duration
	// StartDelay is added to the current whole second to get the first deadline.
	StartDelay time.Duration
}

// Meter is the timer drift loop.
type Meter struct {
	cfg      Config
	timer    Timer
	poller   Poller
	clock    timesync.Clock
	reporter Reporter
	agg      *window.Aggregator

	expected time.Time
	prev     time.Time
	started  bool
}

// New wires a meter. clock must be the clock the timer was created on, and the
// poller must already watch the timer.
func New(cfg Config, timer Timer, poller Poller, clock timesync.Clock, reporter Reporter) (*Meter, error) {
	if cfg.Period <= 0 {
		return nil, fmt.Errorf("timer period must be positive, got %s", cfg.Period)
	}
	agg, err := window.New(window.Config{
		Size:    cfg.Window,
		Stages:  []string{Stage},
		Columns: []string{ColumnPeriod, ColumnOffset},
	})
	if err != nil {
		return nil, err
	}
	return &Meter{
		cfg:      cfg,
		timer:    timer,
		poller:   poller,
		clock:    clock,
		reporter: reporter,
		agg:      agg,
	}, nil
}

// Start arms the timer and returns the first deadline.
func (m *Meter) Start() (time.Time, error) {
	now, err := m.clock.Now()
	if err != nil {
		return time.Time{}, err
	}
	first := time.Unix(now.Unix(), 0).Add(m.cfg.StartDelay)
	if err := m.timer.ArmPeriodic(first, m.cfg.Period); err != nil {
		return time.Time{}, err
	}
	m.expected = first
	m.prev = time.Time{}
	m.started = true
	return first, nil
}

// Expirations returns the number of measured expirations.
func (m *Meter) Expirations() uint64 {
	return m.agg.Index()
}

// Run starts the timer and loops until ctx is done or an error occurs.
func (m *Meter) Run(ctx context.Context) error {
	if !m.started {
		if _, err := m.Start(); err != nil {
			return err
		}
	}
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := m.Iterate(ctx); err != nil {
			return err
		}
	}
}

// Iterate waits once and measures the timer if it fired.
func (m *Meter) Iterate(ctx context.Context) error {
	events, err := m.poller.Wait()
	if err != nil {
		return err
	}
	for _, ev := range events {
		if ev.Fd == m.timer.Fd() && ev.Readable {
			if err := m.tick(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Meter) tick(ctx context.Context) error {
	exp, err := m.timer.Expirations()
	if err != nil {
		return err
	}
	if exp != 1 {
		return fmt.Errorf("%w: %d", mux.ErrTimerOverrun, exp)
	}

	now, err := m.clock.Now()
	if err != nil {
		return err
	}

	offset := timesync.DeltaNS(now, m.expected)
	period := m.cfg.Period.Nanoseconds()
	if !m.prev.IsZero() {
		period = timesync.DeltaNS(now, m.prev)
	}
	m.prev = now

	remaining, err := m.timer.Remaining()
	if err != nil {
		return err
	}
	m.expected = m.expected.Add(m.cfg.Period + remaining.Truncate(m.cfg.Period))

	if err := m.agg.Record(0, period, offset); err != nil {
		return err
	}
	if r := m.agg.Commit(); r != nil {
		if err := m.reporter.Report(ctx, r); err != nil {
			return fmt.Errorf("report: %w", err)
		}
	}
	return nil
}
