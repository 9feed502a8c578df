package monitoring

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"s3gate/logger"
)

// ReadinessChecker сообщает, готов ли процесс обслуживать запросы.
// Реализуется backend.HealthChecker.
type ReadinessChecker interface {
	Ready() bool
}

// Server представляет HTTP сервер для экспорта метрик Prometheus и health-эндпоинтов
type Server struct {
	config       *Config
	gatherer     prometheus.Gatherer
	readiness    ReadinessChecker
	router       chi.Router
	shuttingDown atomic.Bool

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewServer создает новый сервер метрик.
// gatherer == nil - default registry, readiness == nil - готовность определяется только shutdown.
func NewServer(config *Config, gatherer prometheus.Gatherer, readiness ReadinessChecker) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		config:    config,
		gatherer:  gatherer,
		readiness: readiness,
	}

	metricsPath := config.MetricsPath
	if metricsPath == "" {
		metricsPath = DefaultConfig().MetricsPath
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, metricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/health/live", s.liveHealthHandler)
	r.Get("/health/ready", s.readyHealthHandler)
	s.router = r

	return s
}

// Handler возвращает роутер сервера
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start запускает HTTP сервер для метрик
func (s *Server) Start() error {
	if !s.config.Enabled {
		logger.Info("Monitoring is disabled, skipping metrics server start")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("metrics server is already running")
	}

	listener, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}

	s.listener = listener
	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	// Запускаем сервер в отдельной горутине
	server := s.server
	go func() {
		logger.Info("Metrics server listening on %s%s", listener.Addr(), s.config.MetricsPath)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed: %v", err)
		}
	}()

	return nil
}

// Addr возвращает фактический адрес сервера (полезно при ":0")
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// SetShuttingDown переводит /health/ready в 503 перед остановкой
func (s *Server) SetShuttingDown() {
	s.shuttingDown.Store(true)
}

// Stop останавливает HTTP сервер метрик
func (s *Server) Stop(ctx context.Context) error {
	s.SetShuttingDown()

	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	if server == nil {
		return nil
	}

	logger.Info("Stopping metrics server...")
	return server.Shutdown(ctx)
}

// liveHealthHandler обрабатывает запросы /health/live
func (s *Server) liveHealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok"}`)
}

// readyHealthHandler обрабатывает запросы /health/ready
func (s *Server) readyHealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	// Проверяем, не находимся ли мы в состоянии graceful shutdown
	if s.shuttingDown.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintf(w, `{"status":"shutting down"}`)
		return
	}

	// Проверяем состояние хранилища
	if s.readiness != nil && !s.readiness.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintf(w, `{"status":"backend down"}`)
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok"}`)
}
