package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return sr
}

func attr(attrs []attribute.KeyValue, key string) attribute.Value {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value
		}
	}
	return attribute.Value{}
}

func TestMiddleware(t *testing.T) {
	sr := withRecorder(t)

	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {})
	r.Get("/s3/uploads/*", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusFound)
	})
	r.Get("/s3/sign", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	for _, target := range []string{"/health", "/s3/uploads/a/b.png", "/s3/sign"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))
	}

	spans := sr.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "GET /s3/uploads/*", spans[0].Name())
	assert.Equal(t, int64(http.StatusFound), attr(spans[0].Attributes(), "http.status_code").AsInt64())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)

	assert.Equal(t, "GET /s3/sign", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}

func TestInit(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	shutdown, err := Init(context.Background(), Options{}, nil)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	shutdown, err = Init(context.Background(), Options{Enabled: true, SampleRatio: 1}, nil)
	require.NoError(t, err)
	_, isSDK := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, isSDK)
	assert.NoError(t, shutdown(context.Background()))
}

func TestForceFlush(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	t.Run("noop provider", func(t *testing.T) {
		_, err := Init(context.Background(), Options{}, nil)
		require.NoError(t, err)
		assert.NoError(t, ForceFlush(context.Background()))
	})

	t.Run("exports batched spans", func(t *testing.T) {
		exp := tracetest.NewInMemoryExporter()
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(time.Hour)))
		t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
		otel.SetTracerProvider(tp)

		_, span := otel.Tracer("test").Start(context.Background(), "invocation")
		span.End()
		assert.Empty(t, exp.GetSpans())

		require.NoError(t, ForceFlush(context.Background()))
		spans := exp.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, "invocation", spans[0].Name)
	})
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Contains(t, sampler(0.5).Description(), "TraceIDRatioBased")
}

func TestEndpointHelpers(t *testing.T) {
	assert.Equal(t, "collector:4317", stripScheme("http://collector:4317"))
	assert.Equal(t, "collector:4318", stripScheme("HTTPS://collector:4318"))
	assert.Equal(t, "collector:4317", stripScheme("collector:4317"))

	assert.True(t, isInsecure("http://collector:4317"))
	assert.True(t, isInsecure("localhost:4317"))
	assert.False(t, isInsecure("https://collector.example.com"))
}
