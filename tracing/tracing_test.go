package tracing

import (
	"context"
	"fmt"
	"testing"

	"github.com/niklaslong/zebra/errors"
	"github.com/niklaslong/zebra/settings"
	"github.com/niklaslong/zebra/ulogger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type lineLogger struct {
	ulogger.TestLogger
	lastLog string
}

func (l *lineLogger) Debugf(format string, args ...interface{}) {
	l.lastLog = fmt.Sprintf(format, args...)
}

func newRecorder(t *testing.T) *tracetest.SpanRecorder {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)

	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = provider.Shutdown(context.Background())
	})

	return recorder
}

func TestTracing(t *testing.T) {
	logger := &lineLogger{}

	_, _, deferFn := StartTracing(
		context.Background(),
		"TestTracing",
		WithLogMessage(
			logger,
			"%s %s",
			"hello",
			"world",
		),
	)

	assert.Equal(t, "hello world", logger.lastLog)

	deferFn()

	assert.Contains(t, logger.lastLog, "hello world DONE in")
}

func TestTracingRecordsSpan(t *testing.T) {
	recorder := newRecorder(t)

	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "tracing_test_histogram"})
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "tracing_test_counter"})

	ctx, stat, deferFn := StartTracing(context.Background(), "CommitBlock",
		WithHistogram(histogram),
		WithCounter(counter),
		WithAttributes(attribute.Int("height", 7)),
	)
	require.NotNil(t, ctx)
	require.NotNil(t, stat)

	deferFn()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "CommitBlock", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.Int("height", 7))
	assert.Equal(t, codes.Unset, spans[0].Status().Code)

	assert.InDelta(t, 1, testutil.ToFloat64(counter), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(histogram))
}

func TestTracingRecordsError(t *testing.T) {
	recorder := newRecorder(t)

	_, _, deferFn := StartTracing(context.Background(), "CommitBlock")
	deferFn(nil, errors.NewBlockInvalidError("bad block"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Status().Description, "bad block")
	require.Len(t, spans[0].Events(), 1)
}

func TestTracingChildSpan(t *testing.T) {
	recorder := newRecorder(t)

	ctx, stat, parentDone := StartTracing(context.Background(), "parent")
	_, _, childDone := StartTracing(ctx, "child", WithParentStat(stat))
	childDone()
	parentDone()

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "child", spans[0].Name())
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
}

func TestInitTracerDisabled(t *testing.T) {
	tSettings := settings.NewSettings()
	tSettings.Tracing.Enabled = false

	require.NoError(t, InitTracer(tSettings))
	require.NoError(t, ShutdownTracer(context.Background()))
}
