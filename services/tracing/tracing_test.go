package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Cherif0104/EcosystIA-sub000/core"
)

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(context.Background(), core.NewTestConfig())
	require.NoError(t, err)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestProvider_Middleware(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	p := NewTestProvider(exporter)

	e := echo.New()
	e.Use(p.Middleware())
	e.GET("/v1/projects/:id", func(ctx echo.Context) error {
		return ctx.NoContent(http.StatusOK)
	})
	e.GET("/v1/fail", func(ctx echo.Context) error {
		return echo.NewHTTPError(http.StatusInternalServerError)
	})

	for _, target := range []string{"/v1/projects/42", "/v1/fail"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
	}

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	ok := spans[0]
	assert.Equal(t, "GET /v1/projects/:id", ok.Name)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", ok.SpanContext.TraceID().String())
	assert.Contains(t, ok.Attributes, attribute.Int("http.response.status_code", http.StatusOK))

	failed := spans[1]
	assert.Equal(t, codes.Error, failed.Status.Code)
	assert.Contains(t, failed.Attributes, attribute.Int("http.response.status_code", http.StatusInternalServerError))
}
