package backend

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	State         prometheus.Gauge         // Текущее состояние хранилища (1=UP, 0.5=PROBING, 0=DOWN)
	RequestsTotal *prometheus.CounterVec   // Количество операций с хранилищем
	Latency       *prometheus.HistogramVec // Латентность операций с хранилищем
	BytesRead     prometheus.Counter       // Количество прочитанных байт
	BytesWritten  prometheus.Counter       // Количество записанных байт
}

// NewMetrics создает метрики и регистрирует их в reg. При reg == nil метрики не регистрируются.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		State: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "s3gate_backend_state",
				Help: "Current state of the object store (1=UP, 0.5=PROBING, 0=DOWN)",
			},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "s3gate_backend_requests_total",
				Help: "Total number of object store operations",
			},
			[]string{"method", "result"},
		),
		Latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "s3gate_backend_latency_seconds",
				Help:    "Latency of object store operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		BytesRead: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "s3gate_backend_bytes_read_total",
				Help: "Total number of bytes read from the object store",
			},
		),
		BytesWritten: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "s3gate_backend_bytes_write_total",
				Help: "Total number of bytes written to the object store",
			},
		),
	}
}

// DefaultMetrics возвращает метрики, зарегистрированные в default registry
var DefaultMetrics = sync.OnceValue(func() *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer)
})
