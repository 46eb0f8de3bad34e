// Package observability wires OpenTelemetry tracing for the CLI and
// the job runner.
//
// Tracing is off until Init installs a provider; before that the
// helpers ride the otel no-op globals, so library code can call
// StartSpan unconditionally. Span durations bridge into the
// Prometheus collectors at span end.
package observability

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/quiverdata/quiver/pkg/errors"
	"github.com/quiverdata/quiver/pkg/metrics"
)

const instrumentationName = "github.com/quiverdata/quiver"

var (
	initOnce sync.Once
	initErr  error

	mu       sync.Mutex
	provider *sdktrace.TracerProvider

	traceCollector = metrics.NewCollector("trace")
)

// Config controls the trace provider built by Init.
type Config struct {
	ServiceName    string
	ServiceVersion string

	// SamplingRate in (0, 1) samples that fraction of traces; any
	// other value samples everything.
	SamplingRate float64

	// Pretty indents the exported spans.
	Pretty bool

	// Writer receives exported spans; nil means stdout.
	Writer io.Writer
}

// Init installs the stdout trace provider and global propagators.
// Repeat calls return the first result.
func Init(cfg Config) error {
	initOnce.Do(func() {
		initErr = setup(cfg)
	})
	return initErr
}

func setup(cfg Config) error {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "quiver"
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "building trace resource")
	}

	expOpts := []stdouttrace.Option{}
	if cfg.Pretty {
		expOpts = append(expOpts, stdouttrace.WithPrettyPrint())
	}
	if cfg.Writer != nil {
		expOpts = append(expOpts, stdouttrace.WithWriter(cfg.Writer))
	}
	exporter, err := stdouttrace.New(expOpts...)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "building trace exporter")
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SamplingRate > 0 && cfg.SamplingRate < 1 {
		sampler = sdktrace.TraceIDRatioBased(cfg.SamplingRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	mu.Lock()
	provider = tp
	mu.Unlock()
	return nil
}

// Shutdown flushes and stops the trace provider. Safe before Init.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	tp := provider
	provider = nil
	mu.Unlock()
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

// Tracer returns the engine tracer through the otel global, so it
// follows whatever provider is installed.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// Meter returns the engine meter. Instruments created from it no-op
// until a metrics provider is installed.
func Meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// Span wraps an otel span, batching attributes until End.
type Span struct {
	span  trace.Span
	name  string
	start time.Time
	attrs []attribute.KeyValue
	err   error
}

// StartSpan opens a span for one operation.
func StartSpan(ctx context.Context, operation string) (context.Context, *Span) {
	ctx, span := Tracer().Start(ctx, operation)
	return ctx, &Span{
		span:  span,
		name:  operation,
		start: time.Now(),
	}
}

// SetAttribute records a key/value on the span.
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue
	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}
	s.attrs = append(s.attrs, attr)
}

// AddEvent marks a point in time within the span.
func (s *Span) AddEvent(name string) {
	s.span.AddEvent(name)
}

// RecordError marks the span failed. Nil errors are ignored.
func (s *Span) RecordError(err error) {
	if err == nil {
		return
	}
	s.err = err
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// End closes the span and feeds its duration to the trace collector.
func (s *Span) End() {
	if len(s.attrs) > 0 {
		s.span.SetAttributes(s.attrs...)
	}
	traceCollector.ObserveOperation(s.name, 0, time.Since(s.start), s.err)
	s.span.End()
}

// Traced runs fn inside a span, recording its error.
func Traced(ctx context.Context, operation string, fn func(context.Context) error) error {
	ctx, span := StartSpan(ctx, operation)
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}
