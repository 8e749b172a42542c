// Package bootstrap holds the wiring the three binaries share: logging,
// span export and the reporter chain.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mrzor/sockstamp/internal/attributes"
	"github.com/mrzor/sockstamp/internal/config"
	"github.com/mrzor/sockstamp/internal/otel"
	"github.com/mrzor/sockstamp/internal/report"

	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 5 * time.Second

// SetupLogging sends diagnostics to stderr at the configured level. Reports
// go to stdout, so the two streams never interleave.
func SetupLogging(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("SOCKSTAMP_LOG_LEVEL: %w", err)
	}
	log.SetOutput(os.Stderr)
	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	return nil
}

// Reporters builds the console reporter on out and, when an OTLP endpoint is
// configured, a span reporter next to it. The returned shutdown flushes spans.
func Reporters(cfg *config.Config, service, transport string, layout report.Layout, out io.Writer) (report.Reporter, func(), error) {
	console := report.NewConsole(out, layout)

	otelCfg, err := config.ParseOTELConfig(service)
	if err != nil {
		return nil, nil, err
	}
	tp, err := otel.InitProvider(otelCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize OTEL provider: %w", err)
	}
	if tp == nil {
		return console, func() {}, nil
	}

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := otel.ShutdownProvider(ctx, tp); err != nil {
			log.Errorf("Error shutting down OTEL provider: %v", err)
		}
	}

	spanCfg, err := spanConfig(cfg, transport)
	if err != nil {
		shutdown()
		return nil, nil, err
	}
	spans := report.NewSpanReporter(tp.Tracer(service), spanCfg)

	return report.Multi{console, spans}, shutdown, nil
}

func spanConfig(cfg *config.Config, transport string) (report.SpanConfig, error) {
	environ := attributes.Environ()
	scope := &attributes.Scope{Environ: environ, Transport: transport}

	eval, err := attributes.NewEvaluator(cfg.CustomAttributes)
	if err != nil {
		return report.SpanConfig{}, err
	}

	traceEval, err := attributes.NewTraceIDEvaluator(cfg.TraceID)
	if err != nil {
		return report.SpanConfig{}, err
	}
	traceID, warnings, err := traceEval.EvaluateAndValidate(scope)
	if err != nil {
		return report.SpanConfig{}, err
	}

	parentEval, err := attributes.NewParentIDEvaluator(cfg.ParentID)
	if err != nil {
		return report.SpanConfig{}, err
	}
	parentID, parentWarnings, err := parentEval.EvaluateAndValidate(scope)
	if err != nil {
		return report.SpanConfig{}, err
	}

	return report.SpanConfig{
		Transport: transport,
		Evaluator: eval,
		Environ:   environ,
		TraceID:   traceID,
		ParentID:  parentID,
		Warnings:  append(warnings, parentWarnings...),
	}, nil
}
