// Command timer-drift measures how late a periodic CLOCK_MONOTONIC timerfd
// wakes up and how long its periods really are.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mrzor/sockstamp/internal/bootstrap"
	"github.com/mrzor/sockstamp/internal/config"
	"github.com/mrzor/sockstamp/internal/drift"
	"github.com/mrzor/sockstamp/internal/mux"
	"github.com/mrzor/sockstamp/internal/report"
	"github.com/mrzor/sockstamp/internal/timesync"

	log "github.com/sirupsen/logrus"
)

const serviceName = "timer-drift"

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	cfg, err := config.Parse()
	if err != nil {
		return err
	}
	if err := bootstrap.SetupLogging(cfg.LogLevel); err != nil {
		return err
	}

	reporter, shutdown, err := bootstrap.Reporters(cfg, serviceName, "timer", report.DriftLayout, os.Stdout)
	if err != nil {
		return err
	}
	defer shutdown()

	clock := timesync.Monotonic
	timer, err := mux.NewTimer(clock.ID())
	if err != nil {
		return err
	}
	defer timer.Close()

	poller, err := mux.NewPoller(mux.DefaultMaxEvents)
	if err != nil {
		return err
	}
	defer poller.Close()

	if err := poller.Watch(timer.Fd(), false); err != nil {
		return err
	}

	m, err := drift.New(drift.Config{
		Window:     cfg.DriftWindow,
		Period:     cfg.SendInterval,
		StartDelay: cfg.DriftStartDelay,
	}, timer, poller, clock, reporter)
	if err != nil {
		return err
	}

	first, err := m.Start()
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"clock":  clock.String(),
		"first":  first.UnixNano(),
		"period": cfg.SendInterval,
	}).Debug("timer armed")
	fmt.Println("timer started")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := m.Run(ctx); err != nil {
		return err
	}
	log.Infof("Stopped after %d expirations", m.Expirations())
	return nil
}
