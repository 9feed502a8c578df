package backend

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestMetricsStore(t *testing.T) {
	ctx := context.Background()
	metrics := NewMetrics(prometheus.NewRegistry())
	store := NewMetricsStore(NewMemoryStore(), metrics)

	require.NoError(t, store.Put(ctx, "a", []byte("hello"), ""))
	_, err := store.Get(ctx, "a")
	require.NoError(t, err)
	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.List(ctx, "")
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("put", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("get", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("get", "not_found")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("list", "ok")))
	assert.Equal(t, float64(5), testutil.ToFloat64(metrics.BytesWritten))
	assert.Equal(t, float64(5), testutil.ToFloat64(metrics.BytesRead))
}

func TestTracingStore(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	ctx := context.Background()
	store := NewTracingStore(NewMemoryStore())

	require.NoError(t, store.Put(ctx, "a", []byte("x"), ""))
	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, store.Ping(cancelled))

	spans := recorder.Ended()
	require.Len(t, spans, 3)
	assert.Equal(t, "Store.Put", spans[0].Name())
	assert.Equal(t, "Store.Get", spans[1].Name())
	assert.Equal(t, codes.Unset, spans[1].Status().Code, "a missing key is not a span error")
	assert.Equal(t, "Store.Ping", spans[2].Name())
	assert.Equal(t, codes.Error, spans[2].Status().Code)
}
