package backend

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MetricsStore - обертка, которая считает операции, латентность и объем данных
type MetricsStore struct {
	inner   Store
	metrics *Metrics
}

var _ Store = (*MetricsStore)(nil)

// NewMetricsStore оборачивает хранилище метриками. При metrics == nil используются DefaultMetrics.
func NewMetricsStore(inner Store, metrics *Metrics) *MetricsStore {
	if metrics == nil {
		metrics = DefaultMetrics()
	}
	return &MetricsStore{inner: inner, metrics: metrics}
}

func (ms *MetricsStore) observe(method string, start time.Time, err error) {
	result := "ok"
	switch {
	case errors.Is(err, ErrNotFound):
		result = "not_found"
	case err != nil:
		result = "error"
	}
	ms.metrics.RequestsTotal.WithLabelValues(method, result).Inc()
	ms.metrics.Latency.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

func (ms *MetricsStore) List(ctx context.Context, prefix string) ([]string, error) {
	start := time.Now()
	keys, err := ms.inner.List(ctx, prefix)
	ms.observe("list", start, err)
	return keys, err
}

func (ms *MetricsStore) Get(ctx context.Context, key string) (*Object, error) {
	start := time.Now()
	obj, err := ms.inner.Get(ctx, key)
	ms.observe("get", start, err)
	if err == nil {
		ms.metrics.BytesRead.Add(float64(len(obj.Body)))
	}
	return obj, err
}

func (ms *MetricsStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	start := time.Now()
	err := ms.inner.Put(ctx, key, data, contentType)
	ms.observe("put", start, err)
	if err == nil {
		ms.metrics.BytesWritten.Add(float64(len(data)))
	}
	return err
}

func (ms *MetricsStore) Ping(ctx context.Context) error {
	start := time.Now()
	err := ms.inner.Ping(ctx)
	ms.observe("ping", start, err)
	return err
}

// TracingStore - обертка, которая открывает спан OpenTelemetry на каждую операцию
type TracingStore struct {
	inner  Store
	tracer trace.Tracer
}

var _ Store = (*TracingStore)(nil)

// NewTracingStore оборачивает хранилище трассировкой через глобальный TracerProvider
func NewTracingStore(inner Store) *TracingStore {
	return &TracingStore{
		inner:  inner,
		tracer: otel.Tracer("s3gate/backend"),
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (ts *TracingStore) List(ctx context.Context, prefix string) ([]string, error) {
	ctx, span := ts.tracer.Start(ctx, "Store.List", trace.WithAttributes(attribute.String("s3gate.prefix", prefix)))
	keys, err := ts.inner.List(ctx, prefix)
	span.SetAttributes(attribute.Int("s3gate.keys", len(keys)))
	endSpan(span, err)
	return keys, err
}

func (ts *TracingStore) Get(ctx context.Context, key string) (*Object, error) {
	ctx, span := ts.tracer.Start(ctx, "Store.Get", trace.WithAttributes(attribute.String("s3gate.key", key)))
	obj, err := ts.inner.Get(ctx, key)
	if err == nil {
		span.SetAttributes(attribute.Int64("s3gate.size", obj.Size))
	}
	endSpan(span, err)
	return obj, err
}

func (ts *TracingStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	ctx, span := ts.tracer.Start(ctx, "Store.Put", trace.WithAttributes(
		attribute.String("s3gate.key", key),
		attribute.Int("s3gate.size", len(data)),
	))
	err := ts.inner.Put(ctx, key, data, contentType)
	endSpan(span, err)
	return err
}

func (ts *TracingStore) Ping(ctx context.Context) error {
	ctx, span := ts.tracer.Start(ctx, "Store.Ping")
	err := ts.inner.Ping(ctx)
	endSpan(span, err)
	return err
}
