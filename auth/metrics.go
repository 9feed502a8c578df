package auth

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	DecisionsTotal *prometheus.CounterVec   // Количество решений по результату (allow/deny/error)
	Latency        *prometheus.HistogramVec // Латентность принятия решения
	SecretCache    *prometheus.CounterVec   // Попадания и промахи кэша секрета
}

// NewMetrics создает метрики и регистрирует их в reg. При reg == nil метрики не регистрируются.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DecisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "s3gate_auth_decisions_total",
				Help: "Total number of authorization decisions",
			},
			[]string{"result"},
		),
		Latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "s3gate_auth_latency_seconds",
				Help:    "Latency of authorization decisions in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0}, // Чтение SSM обычно укладывается в десятки мс
			},
			[]string{"result"},
		),
		SecretCache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "s3gate_auth_secret_cache_total",
				Help: "Secret cache lookups by result (hit/miss)",
			},
			[]string{"result"},
		),
	}
}

// DefaultMetrics возвращает метрики, зарегистрированные в default registry
var DefaultMetrics = sync.OnceValue(func() *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer)
})
