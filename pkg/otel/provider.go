// Package otel initializes opt-in OpenTelemetry tracing.
package otel

import (
	"context"
	"fmt"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	DefaultServiceName = "manabi"
)

// Flags defines CLI flags to configure tracing. These flags can also be
// set using environment variables and the application's configuration file.
func Flags(configFilePath altsrc.StringSourcer) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "otel-endpoint",
			Usage: "OTLP/HTTP traces endpoint URL (tracing is disabled if empty)",
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"),
				toml.TOML("otel.endpoint", configFilePath),
			),
		},
		&cli.StringFlag{
			Name:  "otel-service-name",
			Usage: "service name attribute of exported traces",
			Value: DefaultServiceName,
			Sources: cli.NewValueSourceChain(
				cli.EnvVar("OTEL_SERVICE_NAME"),
				toml.TOML("otel.service_name", configFilePath),
			),
		},
	}
}

// Setup initializes OpenTelemetry tracing, if an endpoint is configured.
// Otherwise, it returns a no-op shutdown function, and the global
// tracer provider remains the default no-op implementation.
//
// The returned shutdown function flushes pending spans, and should be deferred by the caller.
func Setup(ctx context.Context, endpoint, serviceName string) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }
	if endpoint == "" {
		return noop, nil
	}
	if serviceName == "" {
		serviceName = DefaultServiceName
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return noop, fmt.Errorf("failed to initialize OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return noop, fmt.Errorf("failed to initialize OTel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}

// SetupFromFlags calls [Setup] with the values of this package's CLI flags.
func SetupFromFlags(ctx context.Context, cmd *cli.Command) (func(context.Context) error, error) {
	return Setup(ctx, cmd.String("otel-endpoint"), cmd.String("otel-service-name"))
}
