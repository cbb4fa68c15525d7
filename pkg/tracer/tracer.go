package tracer

import (
	"context"

	logx "github.com/agentdesk/server/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Config controls OpenTelemetry export. Tracing is disabled by default.
type Config struct {
	Enabled     bool   `envconfig:"OTEL_ENABLED" default:"false"`
	Endpoint    string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4318"`
	ServiceName string `envconfig:"OTEL_SERVICE_NAME" default:"agentdesk"`
}

// Init installs a global tracer provider exporting over OTLP HTTP.
// The returned function flushes and stops the provider.
func Init(ctx context.Context, cfg Config) func(context.Context) error {
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled {
		logx.Debug().Msg("OpenTelemetry tracing is disabled")
		return noop
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logx.Warn().Err(err).Msg("failed to create OTLP exporter, tracing disabled")
		return noop
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(cfg.ServiceName),
		)),
	)

	otel.SetTracerProvider(tp)
	logx.Info().Str("endpoint", cfg.Endpoint).Msg("OpenTelemetry tracer initialized")

	return tp.Shutdown
}
