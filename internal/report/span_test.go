package report

import (
	"context"
	"testing"

	"github.com/mrzor/sockstamp/internal/attributes"
	"github.com/mrzor/sockstamp/internal/config"
	"github.com/mrzor/sockstamp/internal/window"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newRecorder(t *testing.T) (*tracetest.SpanRecorder, trace.Tracer) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return rec, tp.Tracer("sockstamp-test")
}

func attrMap(kvs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(kvs))
	for _, kv := range kvs {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestSpanReporter_WindowAndStageSpans(t *testing.T) {
	rec, tracer := newRecorder(t)

	eval, err := attributes.NewEvaluator([]config.CustomAttribute{
		{Name: "lab", Expression: `env["LAB"]`},
		{Name: "slow", Expression: `avg > 1000`},
	})
	require.NoError(t, err)

	reporter := NewSpanReporter(tracer, SpanConfig{
		Transport: "tcp",
		Evaluator: eval,
		Environ:   map[string]string{"LAB": "bench-1"},
	})

	r := &window.Report{
		Size:    60,
		Samples: 120,
		Series: []window.Series{
			timestampSeries("SCM_TSTAMP_SND", 1200, 1100),
			timestampSeries("SCM_TSTAMP_ACK", 900, 800),
		},
		Call: &window.Stats{Avg: 4500, Min: 4000, Max: 6000},
	}
	require.NoError(t, reporter.Report(context.Background(), r))

	spans := rec.Ended()
	require.Len(t, spans, 3)

	// Children end first.
	root := spans[2]
	assert.Equal(t, "sockstamp.window", root.Name())
	assert.Equal(t, codes.Ok, root.Status().Code)
	rootAttrs := attrMap(root.Attributes())
	assert.Equal(t, "tcp", rootAttrs["sockstamp.transport"].AsString())
	assert.Equal(t, int64(60), rootAttrs["sockstamp.window"].AsInt64())
	assert.Equal(t, int64(120), rootAttrs["sockstamp.samples"].AsInt64())
	assert.Equal(t, int64(4500), rootAttrs["sockstamp.call.avg_ns"].AsInt64())
	assert.Equal(t, int64(6000), rootAttrs["sockstamp.call.max_ns"].AsInt64())

	snd := spans[0]
	assert.Equal(t, "sockstamp.stage", snd.Name())
	assert.Equal(t, root.SpanContext().SpanID(), snd.Parent().SpanID())
	sndAttrs := attrMap(snd.Attributes())
	assert.Equal(t, "SCM_TSTAMP_SND", sndAttrs["sockstamp.stage"].AsString())
	assert.Equal(t, int64(1200), sndAttrs["sockstamp.timestampns.avg_ns"].AsInt64())
	assert.Equal(t, int64(1100), sndAttrs["sockstamp.timestamping.avg_ns"].AsInt64())
	assert.Equal(t, "bench-1", sndAttrs["lab"].AsString())
	assert.Equal(t, "true", sndAttrs["slow"].AsString())

	ack := attrMap(spans[1].Attributes())
	assert.Equal(t, "false", ack["slow"].AsString())
}

func TestSpanReporter_FixedTrace(t *testing.T) {
	rec, tracer := newRecorder(t)

	traceID, _ := trace.TraceIDFromHex("0123456789abcdef0123456789abcdef")
	parentID, _ := trace.SpanIDFromHex("0123456789abcdef")
	warning := attribute.String("_trace_id_expr_result", "run-7")

	reporter := NewSpanReporter(tracer, SpanConfig{
		Transport: "udp",
		TraceID:   traceID,
		ParentID:  parentID,
		Warnings:  []attribute.KeyValue{warning},
	})

	for i := 0; i < 2; i++ {
		require.NoError(t, reporter.Report(context.Background(), &window.Report{
			Size:   600,
			Series: []window.Series{timestampSeries("direct", 5000, 4000)},
		}))
	}

	spans := rec.Ended()
	require.Len(t, spans, 4)
	for _, s := range spans {
		assert.Equal(t, traceID, s.SpanContext().TraceID())
	}
	root := spans[1]
	assert.Equal(t, parentID, root.Parent().SpanID())
	assert.Equal(t, "run-7", attrMap(root.Attributes())["_trace_id_expr_result"].AsString())
}

func TestSpanReporter_NoEvaluator(t *testing.T) {
	rec, tracer := newRecorder(t)

	reporter := NewSpanReporter(tracer, SpanConfig{Transport: "timer"})
	require.NoError(t, reporter.Report(context.Background(), &window.Report{
		Size:   1,
		Series: []window.Series{timestampSeries("intervals", 1, 2)},
	}))

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.NotEqual(t, spans[0].SpanContext().TraceID(), trace.TraceID{})
}
