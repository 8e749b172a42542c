// Command udp-timestamping receives datagrams and reports how long ago the
// kernel timestamped each one on arrival.
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

const serviceName = "udp-timestamping"

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

	reporter, shutdown, err := bootstrap.Reporters(cfg, serviceName, "udp", report.ReceiverLayout, os.Stdout)
	if err != nil {
		return err
	}
	defer shutdown()

	addr := netip.AddrPortFrom(netip.IPv4Unspecified(), cfg.Port)
	conn, err := driver.ListenDatagram(addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	poller, err := mux.NewPoller(mux.DefaultMaxEvents)
	if err != nil {
		return err
	}
	defer poller.Close()

	if err := poller.Watch(conn.Fd(), false); err != nil {
		return err
	}

	d, err := driver.NewUDP(driver.UDPConfig{Window: cfg.UDPWindow}, conn, poller, timesync.Realtime, reporter)
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
		// The receiver can block forever on a quiet socket; a second signal kills it.
		<-ctx.Done()
		stop()
	}()

	log.WithField("listen", addr.String()).Debug("bound")

	fmt.Println("Waiting for incoming DGRAMS")
	if err := d.Run(ctx); err != nil {
		return err
	}
	log.Infof("Stopped after %d datagrams", d.Received())
	return nil
}
