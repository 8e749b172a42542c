package report

import (
	"context"

	"github.com/mrzor/sockstamp/internal/attributes"
	"github.com/mrzor/sockstamp/internal/window"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SpanConfig parameterizes a SpanReporter.
type SpanConfig struct {
	// Transport is "tcp", "udp" or "timer".
	Transport string
	// Evaluator adds custom attributes to stage spans. May be nil.
	Evaluator *attributes.Evaluator
	// Environ is exposed to expressions as env.
	Environ map[string]string
	// TraceID and ParentID place every window span under an existing trace.
	TraceID  trace.TraceID
	ParentID trace.SpanID
	// Warnings are attached to every window span.
	Warnings []attribute.KeyValue
}

// SpanReporter exports window reports as spans.
type SpanReporter struct {
	tracer trace.Tracer
	cfg    SpanConfig
	parent trace.SpanContext
}

// NewSpanReporter returns a reporter starting spans on tracer.
func NewSpanReporter(tracer trace.Tracer, cfg SpanConfig) *SpanReporter {
	s := &SpanReporter{tracer: tracer, cfg: cfg}
	if cfg.TraceID.IsValid() {
		s.parent = trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    cfg.TraceID,
			SpanID:     cfg.ParentID,
			TraceFlags: trace.FlagsSampled,
			Remote:     true,
		})
	}
	return s
}

// Report starts and ends one window span with a child per stage.
func (s *SpanReporter) Report(ctx context.Context, r *window.Report) error {
	if s.parent.TraceID().IsValid() {
		ctx = trace.ContextWithSpanContext(ctx, s.parent)
	}

	ctx, span := s.tracer.Start(ctx, "sockstamp.window", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	//nolint:gosec // sample counts stay far below MaxInt64
	span.SetAttributes(
		attribute.String("sockstamp.transport", s.cfg.Transport),
		attribute.Int("sockstamp.window", r.Size),
		attribute.Int64("sockstamp.samples", int64(r.Samples)),
	)
	if r.Call != nil {
		span.SetAttributes(statsAttributes("sockstamp.call", *r.Call)...)
	}
	if len(s.cfg.Warnings) > 0 {
		span.SetAttributes(s.cfg.Warnings...)
	}

	for _, series := range r.Series {
		s.stageSpan(ctx, r, series)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

func (s *SpanReporter) stageSpan(ctx context.Context, r *window.Report, series window.Series) {
	_, span := s.tracer.Start(ctx, "sockstamp.stage", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	span.SetAttributes(attribute.String("sockstamp.stage", series.Stage))
	for i, column := range series.Columns {
		span.SetAttributes(statsAttributes("sockstamp."+column, series.Stats[i])...)
	}

	var avg int64
	if len(series.Stats) > 0 {
		avg = series.Stats[0].Avg
	}
	custom := s.cfg.Evaluator.Evaluate(&attributes.Scope{
		Environ:   s.cfg.Environ,
		Transport: s.cfg.Transport,
		Stage:     series.Stage,
		Window:    r.Size,
		Avg:       avg,
	})
	if len(custom) > 0 {
		span.SetAttributes(custom...)
	}

	span.SetStatus(codes.Ok, "")
}

func statsAttributes(prefix string, st window.Stats) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64(prefix+".avg_ns", st.Avg),
		attribute.Int64(prefix+".min_ns", st.Min),
		attribute.Int64(prefix+".max_ns", st.Max),
	}
}
