// Package telemetry provides OpenTelemetry integration for continuity.
//
// Telemetry is off unless CONTINUITY_OTEL_ENABLED=true. Each invocation
// records one command span; tracker calls made by the command nest under
// it (see WrapAdapter).
//
// # Configuration
//
//	CONTINUITY_OTEL_ENABLED=true          enable telemetry (default: off)
//	CONTINUITY_OTEL_STDOUT=true           write spans/metrics to stderr
//	OTEL_EXPORTER_OTLP_ENDPOINT=...       OTLP/HTTP endpoint (e.g. localhost:4318)
//	OTEL_EXPORTER_OTLP_METRICS_ENDPOINT   metrics-only endpoint override
//	OTEL_SERVICE_NAME=continuity          override service name
//
// With telemetry on and no endpoint, spans go to stderr.
package telemetry

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationScope = "github.com/jzempel/continuity"

// Resource attribute keys describing the repository a command ran in.
const (
	TrackerKey    = attribute.Key("continuity.tracker")
	RepositoryKey = attribute.Key("continuity.repository")
	CodeHostKey   = attribute.Key("continuity.code_host")
)

// Config selects exporters. FromEnv reads it from the environment.
type Config struct {
	Enabled         bool
	Stdout          bool
	Endpoint        string
	MetricsEndpoint string
	ServiceName     string
}

// FromEnv returns the configuration described in the package comment.
func FromEnv() Config {
	cfg := Config{
		Enabled:         os.Getenv("CONTINUITY_OTEL_ENABLED") == "true",
		Stdout:          os.Getenv("CONTINUITY_OTEL_STDOUT") == "true",
		Endpoint:        os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		MetricsEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"),
		ServiceName:     os.Getenv("OTEL_SERVICE_NAME"),
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "continuity"
	}
	if cfg.MetricsEndpoint == "" {
		cfg.MetricsEndpoint = cfg.Endpoint
	}
	return cfg
}

// Workspace identifies where a command runs. Empty fields are omitted
// from the resource.
type Workspace struct {
	Version  string
	Tracker  string
	RepoSlug string // owner/repo of the configured remote
	CodeHost string // github or gitlab
}

func (w Workspace) attributes(serviceName string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(serviceName),
		semconv.ServiceVersionKey.String(w.Version),
	}
	if w.Tracker != "" {
		attrs = append(attrs, TrackerKey.String(w.Tracker))
	}
	if w.RepoSlug != "" {
		attrs = append(attrs, RepositoryKey.String(w.RepoSlug))
	}
	if w.CodeHost != "" {
		attrs = append(attrs, CodeHostKey.String(w.CodeHost))
	}
	return attrs
}

var (
	enabled     bool
	shutdownFns []func(context.Context) error
)

// Enabled reports whether telemetry is active.
func Enabled() bool {
	return enabled || FromEnv().Enabled
}

// Init configures OTel providers for one invocation. When cfg is not
// enabled this installs no-op providers and returns immediately.
func Init(ctx context.Context, cfg Config, ws Workspace) error {
	if !cfg.Enabled {
		enabled = false
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(ws.attributes(cfg.ServiceName)...),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return fmt.Errorf("telemetry: resource: %w", err)
	}

	tp, err := buildTraceProvider(ctx, cfg, res)
	if err != nil {
		return fmt.Errorf("telemetry: trace provider: %w", err)
	}
	otel.SetTracerProvider(tp)
	shutdownFns = append(shutdownFns, tp.Shutdown)

	mp, err := buildMetricProvider(ctx, cfg, res)
	if err != nil {
		return fmt.Errorf("telemetry: metric provider: %w", err)
	}
	otel.SetMeterProvider(mp)
	shutdownFns = append(shutdownFns, mp.Shutdown)

	enabled = true
	return nil
}

func stderrSpanExporter() (sdktrace.SpanExporter, error) {
	return stdouttrace.New(stdouttrace.WithPrettyPrint(), stdouttrace.WithWriter(os.Stderr))
}

func buildTraceProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	var exporters []sdktrace.SpanExporter
	if cfg.Stdout || cfg.Endpoint == "" {
		exp, err := stderrSpanExporter()
		if err != nil {
			return nil, err
		}
		exporters = append(exporters, exp)
	}
	if cfg.Endpoint != "" {
		exp, err := buildOTLPTraceExporter(ctx, cfg.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("otlp trace exporter: %w", err)
		}
		exporters = append(exporters, exp)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}
	for _, exp := range exporters {
		opts = append(opts, sdktrace.WithBatcher(exp))
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

func buildMetricProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	if cfg.Stdout {
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(os.Stderr))
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(15*time.Second)),
		))
	}
	if cfg.MetricsEndpoint != "" {
		exp, err := buildOTLPMetricExporter(ctx, cfg.MetricsEndpoint)
		if err != nil {
			return nil, fmt.Errorf("otlp metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(30*time.Second)),
		))
	}
	return sdkmetric.NewMeterProvider(opts...), nil
}

// Tracer returns a tracer with the given instrumentation name (or the global scope).
func Tracer(name string) trace.Tracer {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Tracer(name)
}

// Meter returns a meter with the given instrumentation name (or the global scope).
func Meter(name string) metric.Meter {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Meter(name)
}

// Shutdown flushes all spans/metrics and shuts down OTel providers.
// Commands are short-lived, so call it before exit with a bounded context.
func Shutdown(ctx context.Context) {
	for _, fn := range shutdownFns {
		_ = fn(ctx)
	}
	shutdownFns = nil
	enabled = false
}
