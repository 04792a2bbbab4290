package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

const (
	parentTraceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	traceparent   = "00-" + parentTraceID + "-00f067aa0ba902b7-01"
)

func setupTracedRouter(t *testing.T, status int) (*chi.Mux, *tracetest.SpanRecorder) {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	r := chi.NewRouter()
	r.Use(TracingMiddleware(tp, propagation.TraceContext{}))
	r.Get("/api/v1/oauth/page/{provider}", func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, trace.SpanContextFromContext(r.Context()).IsValid())
		w.WriteHeader(status)
	})

	return r, recorder
}

func attrValue(attrs []attribute.KeyValue, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range attrs {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracingMiddleware_ContinuesIncomingTrace(t *testing.T) {
	router, recorder := setupTracedRouter(t, http.StatusTemporaryRedirect)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/oauth/page/yandex", nil)
	req.Header.Set("traceparent", traceparent)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]

	assert.Equal(t, "GET /api/v1/oauth/page/{provider}", span.Name())
	assert.Equal(t, trace.SpanKindServer, span.SpanKind())
	assert.Equal(t, parentTraceID, span.SpanContext().TraceID().String())
	assert.True(t, span.Parent().IsRemote())
	assert.Equal(t, parentTraceID, w.Header().Get("X-Trace-Id"))

	status, ok := attrValue(span.Attributes(), "http.response.status_code")
	require.True(t, ok)
	assert.Equal(t, int64(http.StatusTemporaryRedirect), status.AsInt64())

	route, ok := attrValue(span.Attributes(), "http.route")
	require.True(t, ok)
	assert.Equal(t, "/api/v1/oauth/page/{provider}", route.AsString())

	assert.Equal(t, codes.Unset, span.Status().Code)
}

func TestTracingMiddleware_NewTraceAndErrorStatus(t *testing.T) {
	router, recorder := setupTracedRouter(t, http.StatusInternalServerError)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/oauth/page/vk", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]

	assert.False(t, span.Parent().IsValid())
	assert.NotEqual(t, parentTraceID, span.SpanContext().TraceID().String())
	assert.Equal(t, span.SpanContext().TraceID().String(), w.Header().Get("X-Trace-Id"))
	assert.Equal(t, codes.Error, span.Status().Code)
}
