// Package telemetry wires OpenTelemetry tracing and Prometheus metrics.
package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope for pipeline spans.
const TracerName = "github.com/tjfontaine/audiencesim"

// TracerConfig selects where spans go and how many runs are kept.
type TracerConfig struct {
	ServiceName string
	Version     string

	// SampleRatio is the fraction of runs traced. Zero disables sampling
	// entirely; child spans follow their run's decision.
	SampleRatio float64

	// Writer receives exported spans. Defaults to stderr so command output
	// on stdout stays parseable.
	Writer io.Writer
}

// InitTracer installs a global tracer provider exporting pretty-printed
// spans and returns its shutdown function.
func InitTracer(cfg TracerConfig, logger *slog.Logger) (func(context.Context) error, error) {
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.Version),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(tp)

	logger.Info("tracing enabled",
		slog.String("service", cfg.ServiceName),
		slog.Float64("sample_ratio", cfg.SampleRatio))

	return tp.Shutdown, nil
}

// Tracer returns the pipeline tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}
