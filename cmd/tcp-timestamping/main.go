// Command tcp-timestamping sends a small payload over loopback TCP every
// interval and reports how long each send took to reach the kernel's
// SND, SCHED and ACK timestamping points.
package main

import (
	"context"
	"fmt"
	"net/netip"
	"os"
	"os/signal"
	"syscall"

	"github.com/mrzor/sockstamp/internal/bootstrap"
	"github.com/mrzor/sockstamp/internal/bpfcount"
	"github.com/mrzor/sockstamp/internal/config"
	"github.com/mrzor/sockstamp/internal/driver"
	"github.com/mrzor/sockstamp/internal/mux"
	"github.com/mrzor/sockstamp/internal/report"
	"github.com/mrzor/sockstamp/internal/timesync"

	log "github.com/sirupsen/logrus"
)

const serviceName = "tcp-timestamping"

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

	reporter, shutdown, err := bootstrap.Reporters(cfg, serviceName, "tcp", report.SenderLayout, os.Stdout)
	if err != nil {
		return err
	}
	defer shutdown()

	// The peer is always local.
	addr := netip.AddrPortFrom(netip.AddrFrom4([4]byte{127, 0, 0, 1}), cfg.Port)
	conn, err := driver.DialStream(addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	timer, err := mux.NewTimer(timesync.Monotonic.ID())
	if err != nil {
		return err
	}
	defer timer.Close()

	poller, err := mux.NewPoller(mux.DefaultMaxEvents)
	if err != nil {
		return err
	}
	defer poller.Close()

	if err := poller.Watch(conn.Fd(), true); err != nil {
		return err
	}
	if err := poller.Watch(timer.Fd(), false); err != nil {
		return err
	}

	d, err := driver.NewTCP(driver.TCPConfig{
		Payload:  []byte(cfg.Payload),
		Interval: cfg.SendInterval,
		Window:   cfg.TCPWindow,
	}, conn, poller, timer, timesync.Realtime, reporter)
	if err != nil {
		return err
	}

	if cfg.BPFCounter {
		counter, err := bpfcount.New()
		if err != nil {
			return err
		}
		defer counter.Close()
		if err := counter.Attach(conn.Fd()); err != nil {
			return err
		}
		d.WithPacketCounter(counter)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		// Restore default handling so a second signal kills a stuck loop.
		<-ctx.Done()
		stop()
	}()

	log.WithFields(log.Fields{
		"peer":     addr.String(),
		"interval": cfg.SendInterval,
		"window":   cfg.TCPWindow,
	}).Debug("connected")

	fmt.Println("Sending data...")
	if err := d.Run(ctx); err != nil {
		return err
	}
	log.Infof("Stopped after %d sends", d.Sent())
	return nil
}
