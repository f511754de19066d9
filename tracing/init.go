package tracing

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/niklaslong/zebra/errors"
	"github.com/niklaslong/zebra/settings"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

var (
	once    sync.Once
	initErr error
	tp      *sdktrace.TracerProvider
	mu      sync.Mutex
)

// InitTracer installs the global otel tracer provider when tracing is enabled. Only the first
// call does any work.
func InitTracer(tSettings *settings.Settings) error {
	if !tSettings.Tracing.Enabled {
		return nil
	}

	once.Do(func() {
		if tSettings.Tracing.CollectorURL == nil {
			initErr = errors.NewConfigurationError("tracing_collectorURL is not set")
			return
		}

		var exporter *otlptrace.Exporter

		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(tSettings.Tracing.CollectorURL.Host)}
		if tSettings.Tracing.CollectorURL.Scheme != "https" {
			opts = append(opts, otlptracehttp.WithInsecure())
		}

		exporter, initErr = otlptracehttp.New(context.Background(), opts...)
		if initErr != nil {
			initErr = errors.NewProcessingError("failed to create OTLP exporter", initErr)
			return
		}

		var res *resource.Resource

		res, initErr = resource.New(
			context.Background(),
			resource.WithAttributes(
				semconv.ServiceNameKey.String(tSettings.ClientName),
				semconv.ServiceVersionKey.String(tSettings.Version),
				attribute.String("network", tSettings.ChainCfgParams.Name),
			),
		)
		if initErr != nil {
			initErr = errors.NewProcessingError("failed to create resource", initErr)
			return
		}

		mu.Lock()
		defer mu.Unlock()

		tp = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(time.Second)),
			sdktrace.WithSampler(sdktrace.TraceIDRatioBased(tSettings.Tracing.SampleRate)),
			sdktrace.WithResource(res),
		)

		otel.SetTracerProvider(tp)

		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	})

	return initErr
}

// ShutdownTracer flushes and stops the tracer provider. Calling it more than once is a no-op.
func ShutdownTracer(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()

	if tp == nil {
		return nil
	}

	if err := tp.ForceFlush(ctx); err != nil {
		// nothing is listening, spans are dropped
		if !strings.Contains(err.Error(), "connection refused") {
			return errors.NewProcessingError("failed to flush spans", err)
		}
	}

	if err := tp.Shutdown(ctx); err != nil {
		return errors.NewProcessingError("failed to shutdown tracer", err)
	}

	tp = nil

	return nil
}
