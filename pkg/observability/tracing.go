// Package observability wires OpenTelemetry tracing around connector
// operations.
//
// Tracing is off until InitTracing installs a provider; until then spans are
// recorded by the global no-op provider.
package observability

import (
	"context"
	"io"
	"os"

	"github.com/ajitpratap0/idconnect/pkg/config"
	"github.com/ajitpratap0/idconnect/pkg/errors"
	"github.com/ajitpratap0/idconnect/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/ajitpratap0/idconnect"

// Span attribute keys.
const (
	AttrConnector   = attribute.Key("idconnect.connector")
	AttrOperation   = attribute.Key("idconnect.operation")
	AttrObjectClass = attribute.Key("idconnect.object_class")
	AttrErrorType   = attribute.Key("idconnect.error_type")
)

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(ctx context.Context) error

// TracingOptions identifies the process in exported spans.
type TracingOptions struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Writer receives stdout exporter output. Defaults to os.Stderr so
	// command output stays clean.
	Writer io.Writer
}

// InitTracing installs a global tracer provider when tracing is enabled and
// returns its shutdown function. With tracing disabled the returned function
// is a no-op.
func InitTracing(ctx context.Context, cfg config.ObservabilityConfig, opts TracingOptions) (ShutdownFunc, error) {
	if !cfg.EnableTracing {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(opts.ServiceName),
			semconv.ServiceVersionKey.String(opts.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(opts.Environment),
		),
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create resource")
	}

	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}

	var exporter sdktrace.SpanExporter
	switch cfg.TracingExporter {
	case "", "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(writer), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create stdout exporter")
		}
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported tracing exporter %q", cfg.TracingExporter).
			WithDetail("exporter", cfg.TracingExporter)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(cfg.TracingSampleRate)),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)

	logger.Get().Debug("tracing initialized",
		zap.String("exporter", cfg.TracingExporter),
		zap.Float64("sample_rate", cfg.TracingSampleRate))

	return tp.Shutdown, nil
}

func samplerFor(rate float64) sdktrace.Sampler {
	switch {
	case rate <= 0:
		return sdktrace.NeverSample()
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// Tracer returns the idconnect tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// StartOperationSpan starts a span for one connector operation. objectClass
// may be empty for operations that take none.
func StartOperationSpan(ctx context.Context, connector, operation, objectClass string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		AttrConnector.String(connector),
		AttrOperation.String(operation),
	}
	if objectClass != "" {
		attrs = append(attrs, AttrObjectClass.String(objectClass))
	}
	return Tracer().Start(ctx, "idconnect."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...))
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(AttrErrorType.String(string(errors.TypeOf(err))))
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
