package telemetry

import (
	"context"
	"fmt"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

/*
LEARNING: JAEGER INTEGRATION

  App -> OpenTelemetry SDK -> Jaeger exporter -> Jaeger collector -> Jaeger UI

Spans come from the HTTP middleware (one per request, websocket upgrades
included) and from the collaboration layer (presence passes, relays,
per-message processing).
*/

const serviceVersion = "0.3.0"

// Options configures the tracer provider
type Options struct {
	ServiceName string
	Endpoint    string
	// SampleRatio is the fraction of root traces kept, in [0, 1].
	SampleRatio float64
}

// InitJaeger installs a global tracer provider exporting to Jaeger.
// The returned function flushes pending spans and must run on shutdown.
func InitJaeger(opts Options) (func(context.Context) error, error) {
	exp, err := jaeger.New(
		jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(opts.Endpoint)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Jaeger exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(opts.ServiceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(Sampler(opts.SampleRatio)),
	)
	otel.SetTracerProvider(tp)

	log.Printf("✓ Jaeger tracing initialized: %s (sample ratio %.2f)", opts.Endpoint, opts.SampleRatio)

	return tp.Shutdown, nil
}

// Sampler follows the parent's decision and samples new traces by ratio.
// Out of range ratios are clamped.
func Sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case ratio <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}
