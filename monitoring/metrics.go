package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics - метрики уровня процесса
type Metrics struct {
	BuildInfo *prometheus.GaugeVec // Всегда 1, метки несут версию и режим запуска
	StartTime prometheus.Gauge     // Время запуска процесса (unix seconds)
}

// NewMetrics создает метрики процесса и регистрирует их в reg
func NewMetrics(reg prometheus.Registerer, version, mode string) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		BuildInfo: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "s3gate_build_info",
				Help: "Build information of the running s3gate process",
			},
			[]string{"version", "mode"},
		),
		StartTime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "s3gate_start_time_seconds",
				Help: "Start time of the process since unix epoch in seconds",
			},
		),
	}
	m.BuildInfo.WithLabelValues(version, mode).Set(1)
	m.StartTime.Set(float64(time.Now().Unix()))
	return m
}
