// Package telemetry provides OpenTelemetry tracing for the watchdog.
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.opentelemetry.io/otel/trace"

	"hellod/internal/logging"
)

const (
	instrumentationName = "hellod"
	tracesPath          = "v1/traces"
)

// Config holds the telemetry configuration
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string
	// EndpointURL, when set, is the full traces URL and takes precedence over Endpoint
	EndpointURL    string
	Headers        map[string]string
	Insecure       bool
}

// ShutdownFunc flushes and stops the exporter
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// Initialize sets up an OTLP/HTTP trace exporter and installs it globally
func Initialize(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String("environment", cfg.Environment),
		),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithProcess(),
		resource.WithContainer(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithHeaders(cfg.Headers),
		otlptracehttp.WithTimeout(10 * time.Second),
	}
	if cfg.EndpointURL != "" {
		// The scheme decides between http and https
		opts = append(opts, otlptracehttp.WithEndpointURL(cfg.EndpointURL))
	} else {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
	}

	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

// ConfigFromEnv builds a Config from environment variables. The boolean is false when no
// exporter endpoint is configured, in which case tracing stays a no-op.
func ConfigFromEnv(serviceVersion string) (Config, bool) {
	cfg := Config{
		ServiceName:    getEnvOrDefault("OTEL_SERVICE_NAME", "hellod"),
		ServiceVersion: getEnvOrDefault("OTEL_SERVICE_VERSION", serviceVersion),
		Environment:    getEnvOrDefault("OTEL_ENVIRONMENT", "development"),
	}

	if honeycombKey := os.Getenv("HONEYCOMB_API_KEY"); honeycombKey != "" {
		cfg.Endpoint = getEnvOrDefault("HONEYCOMB_ENDPOINT", "api.honeycomb.io")
		cfg.Headers = map[string]string{"x-honeycomb-team": honeycombKey}
		return cfg, true
	}

	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		if err := applyEndpoint(&cfg, endpoint); err != nil {
			logging.Warnf("Tracing disabled: %v", err)
			return cfg, false
		}
		return cfg, true
	}

	return cfg, false
}

// applyEndpoint accepts either a base URL such as http://collector:4318, to which the
// traces path is appended, or a bare host:port.
func applyEndpoint(cfg *Config, endpoint string) error {
	u, err := url.Parse(endpoint)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		cfg.Endpoint = u.Host
		cfg.EndpointURL = u.JoinPath(tracesPath).String()
		cfg.Insecure = u.Scheme == "http"
		return nil
	}
	if strings.Contains(endpoint, "://") {
		return fmt.Errorf("unsupported OTLP endpoint %q", endpoint)
	}
	cfg.Endpoint = endpoint
	cfg.Insecure = os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") != "false"
	return nil
}

// InitializeFromEnv initializes tracing from the environment. Without an endpoint it returns
// a no-op shutdown and the global no-op tracer stays in place.
func InitializeFromEnv(ctx context.Context, serviceVersion string) (ShutdownFunc, error) {
	cfg, ok := ConfigFromEnv(serviceVersion)
	if !ok {
		return noopShutdown, nil
	}
	return Initialize(ctx, cfg)
}

// StartSpan starts a new span with the given name
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}

// InjectHeaders writes the trace context of ctx into h
func InjectHeaders(ctx context.Context, h http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(h))
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
