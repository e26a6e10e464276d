// Package tracing exports OpenTelemetry traces over OTLP/HTTP and instruments the HTTP API.
package tracing

import (
	"context"
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Cherif0104/EcosystIA-sub000/core"
)

const instrumentationName = "github.com/Cherif0104/EcosystIA-sub000/apps/api"

// Provider wraps the SDK tracer provider; a Provider built without endpoint traces nothing.
type Provider struct {
	sdk    *sdktrace.TracerProvider
	tracer trace.Tracer
}

// NewProvider sets up the global tracer provider when conf.Tracing.Endpoint is set.
func NewProvider(ctx context.Context, conf *core.Config) (*Provider, error) {
	if conf.Tracing.Endpoint == "" {
		return &Provider{tracer: noop.NewTracerProvider().Tracer(instrumentationName)}, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(conf.Tracing.Endpoint)}
	if conf.Tracing.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating OTLP exporter")
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", conf.Tracing.ServiceName),
		attribute.String("service.version", conf.Build),
		attribute.String("deployment.environment", conf.Env),
	)
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return &Provider{sdk: provider, tracer: provider.Tracer(instrumentationName)}, nil
}

// NewTestProvider records spans into `exporter`, synchronously.
func NewTestProvider(exporter sdktrace.SpanExporter) *Provider {
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	return &Provider{sdk: provider, tracer: provider.Tracer(instrumentationName)}
}

func (p *Provider) Tracer() trace.Tracer { return p.tracer }

// Shutdown flushes the pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.sdk == nil {
		return nil
	}
	return errors.Wrap(p.sdk.Shutdown(ctx), "shutting down tracer provider")
}

// Middleware starts a server span per request, continuing the incoming trace context if any.
func (p *Provider) Middleware() echo.MiddlewareFunc {
	propagator := propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			req := ctx.Request()
			reqCtx := propagator.Extract(req.Context(), propagation.HeaderCarrier(req.Header))

			route := ctx.Path()
			if route == "" {
				route = req.URL.Path
			}
			reqCtx, span := p.tracer.Start(reqCtx, fmt.Sprintf("%s %s", req.Method, route),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.request.method", req.Method),
					attribute.String("http.route", route),
					attribute.String("url.path", req.URL.Path),
				),
			)
			defer span.End()
			ctx.SetRequest(req.WithContext(reqCtx))

			err := next(ctx)
			if err != nil {
				// let the HTTP error handler write the response so the status is known
				ctx.Error(err)
			}
			status := ctx.Response().Status
			span.SetAttributes(attribute.Int("http.response.status_code", status))
			if status >= 500 {
				span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
			}
			if err != nil {
				span.RecordError(err)
			}
			return nil
		}
	}
}
