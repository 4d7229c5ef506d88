package tracing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"orderbridge/internal/models"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const (
	tracerName    = "orderbridge"
	flushDeadline = 5 * time.Second
)

// ShutdownFunc flushes and stops the tracer provider installed by Setup
type ShutdownFunc func(ctx context.Context) error

func noopShutdown(context.Context) error { return nil }

// ValidateConfig checks a tracing section that has tracing enabled
func ValidateConfig(cfg models.TracingConfig) error {
	switch {
	case !cfg.Enabled:
		return nil
	case cfg.ServiceName == "":
		return errors.New("tracing service_name is required")
	case cfg.SampleRate < 0 || cfg.SampleRate > 1:
		return fmt.Errorf("tracing sample_rate must be between 0 and 1, got %v", cfg.SampleRate)
	case !cfg.UseStdout && cfg.OTLPEndpoint == "":
		return errors.New("tracing otlp_endpoint is required when use_stdout is false")
	}
	return nil
}

// Setup installs the global tracer provider and W3C trace-context
// propagation. With tracing disabled it installs nothing and the returned
// ShutdownFunc does nothing.
func Setup(ctx context.Context, cfg models.TracingConfig, logger *logrus.Logger) (ShutdownFunc, error) {
	if !cfg.Enabled {
		logger.Debug("OpenTelemetry tracing disabled")
		return noopShutdown, nil
	}
	if err := ValidateConfig(cfg); err != nil {
		return noopShutdown, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNameKey.String(cfg.ServiceName),
		semconv.ServiceVersionKey.String(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentKey.String(cfg.Environment),
	))
	if err != nil {
		return noopShutdown, fmt.Errorf("tracing resource: %w", err)
	}

	exporter, exporterName, err := newExporter(ctx, cfg)
	if err != nil {
		return noopShutdown, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(newSampler(cfg.SampleRate)),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	logger.WithFields(logrus.Fields{
		"service":     cfg.ServiceName,
		"exporter":    exporterName,
		"sample_rate": cfg.SampleRate,
	}).Info("OpenTelemetry tracing enabled")

	var stopped bool
	return func(ctx context.Context) error {
		if stopped {
			return nil
		}
		stopped = true

		ctx, cancel := context.WithTimeout(ctx, flushDeadline)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			return fmt.Errorf("tracer provider shutdown: %w", err)
		}
		return nil
	}, nil
}

func newExporter(ctx context.Context, cfg models.TracingConfig) (sdktrace.SpanExporter, string, error) {
	if cfg.UseStdout {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, "", fmt.Errorf("stdout span exporter: %w", err)
		}
		return exporter, "stdout", nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, "", fmt.Errorf("otlp span exporter: %w", err)
	}
	return exporter, "otlp_http", nil
}

// newSampler follows the parent's decision and samples new roots at rate
func newSampler(rate float64) sdktrace.Sampler {
	root := sdktrace.TraceIDRatioBased(rate)
	if rate >= 1 {
		root = sdktrace.AlwaysSample()
	} else if rate <= 0 {
		root = sdktrace.NeverSample()
	}
	return sdktrace.ParentBased(root)
}

// StartSpan opens a span on the global provider. The caller ends it.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, oteltrace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, oteltrace.WithAttributes(attrs...))
}

func SetSpanStatus(ctx context.Context, code codes.Code, description string) {
	oteltrace.SpanFromContext(ctx).SetStatus(code, description)
}

// RecordError attaches err to the span in ctx and marks the span failed
func RecordError(ctx context.Context, err error, attrs ...attribute.KeyValue) {
	span := oteltrace.SpanFromContext(ctx)
	span.RecordError(err, oteltrace.WithAttributes(attrs...))
	span.SetStatus(codes.Error, err.Error())
}

// ExtractHTTP continues a trace described by incoming request headers
func ExtractHTTP(ctx context.Context, header http.Header) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(header))
}

// InjectHTTP writes the span in ctx to outbound request headers
func InjectHTTP(ctx context.Context, header http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(header))
}
