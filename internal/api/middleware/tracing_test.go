package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/swissweather/swissweather/internal/api/middleware"
)

func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	return sr
}

func spanAttr(t *testing.T, attrs []attribute.KeyValue, key string) attribute.Value {
	t.Helper()
	for _, a := range attrs {
		if string(a.Key) == key {
			return a.Value
		}
	}
	require.Failf(t, "missing span attribute", "key %s", key)
	return attribute.Value{}
}

func TestTracing_CreatesSpan(t *testing.T) {
	sr := setupTestTracer(t)

	handler := middleware.Tracing()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, trace.SpanFromContext(r.Context()).SpanContext().IsValid())
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/sensors", http.NoBody))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /v1/sensors", spans[0].Name())
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind())
}

func TestTracing_NamesSpanAfterRoute(t *testing.T) {
	sr := setupTestTracer(t)

	r := chi.NewRouter()
	r.Use(middleware.Tracing())
	r.Get("/v1/weather/{kind}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/weather/daily", http.NoBody))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /v1/weather/{kind}", spans[0].Name())
	assert.Equal(t, "/v1/weather/{kind}", spanAttr(t, spans[0].Attributes(), "http.route").AsString())
}

func TestTracing_PropagatesContext(t *testing.T) {
	sr := setupTestTracer(t)

	handler := middleware.Tracing()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/forecast", http.NoBody)
	req.Header.Set("traceparent", "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", spans[0].SpanContext().TraceID().String())
	assert.Equal(t, "b7ad6b7169203331", spans[0].Parent().SpanID().String())
}

func TestTracing_RecordsStatusCode(t *testing.T) {
	sr := setupTestTracer(t)

	handler := middleware.Tracing()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/observation", http.NoBody))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, int64(404), spanAttr(t, spans[0].Attributes(), "http.response.status_code").AsInt64())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

func TestTracing_MarksErrorOnServerError(t *testing.T) {
	sr := setupTestTracer(t)

	handler := middleware.Tracing()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "Service Unavailable", spans[0].Status().Description)
}

func TestTracing_IncludesRequestID(t *testing.T) {
	sr := setupTestTracer(t)

	handler := middleware.RequestID(
		middleware.Tracing()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})),
	)

	req := httptest.NewRequest(http.MethodGet, "/v1/sensors", http.NoBody)
	req.Header.Set(middleware.RequestIDHeader, "req_fixed")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "req_fixed", spanAttr(t, spans[0].Attributes(), "request.id").AsString())
}
