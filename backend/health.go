package backend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"s3gate/logger"
)

// HealthChecker периодически проверяет хранилище через Ping и ведет его состояние UP/DOWN/PROBING
type HealthChecker struct {
	store   Store
	config  HealthConfig
	metrics *Metrics

	mu                   sync.RWMutex
	state                BackendState
	consecutiveFailures  int
	consecutiveSuccesses int
	lastError            error
	lastCheckTime        time.Time

	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewHealthChecker создает проверку здоровья. При metrics == nil используются DefaultMetrics.
func NewHealthChecker(store Store, config HealthConfig, metrics *Metrics) (*HealthChecker, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid health config: %w", err)
	}
	if metrics == nil {
		metrics = DefaultMetrics()
	}

	state := config.InitialState
	if state == "" {
		state = StateProbing
	}

	hc := &HealthChecker{
		store:    store,
		config:   config,
		metrics:  metrics,
		state:    state,
		stopChan: make(chan struct{}),
	}
	metrics.State.Set(state.ToFloat64())
	return hc, nil
}

// Start запускает фоновые проверки. При выключенных проверках ничего не делает.
func (h *HealthChecker) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return fmt.Errorf("health checker is already running")
	}
	if !h.config.Enabled {
		logger.Info("Backend health checks are disabled")
		return nil
	}

	h.wg.Add(1)
	go h.run()

	h.running = true
	logger.Info("Backend health checker started")
	return nil
}

// Stop останавливает фоновые проверки и дожидается завершения горутины
func (h *HealthChecker) Stop() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return nil
	}
	close(h.stopChan)
	h.mu.Unlock()

	// Горутина берет mu в Check, поэтому ждем без блокировки
	h.wg.Wait()

	h.mu.Lock()
	h.stopChan = make(chan struct{})
	h.running = false
	h.mu.Unlock()

	logger.Info("Backend health checker stopped")
	return nil
}

// IsRunning возвращает true, если фоновые проверки запущены
func (h *HealthChecker) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// State возвращает текущее состояние
func (h *HealthChecker) State() BackendState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// LastError возвращает ошибку последней проверки
func (h *HealthChecker) LastError() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastError
}

// Ready сообщает, готово ли хранилище обслуживать запросы. PROBING считается готовым.
func (h *HealthChecker) Ready() bool {
	return h.State() != StateDown
}

func (h *HealthChecker) run() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.config.Interval)
	defer ticker.Stop()

	h.mu.RLock()
	stop := h.stopChan
	h.mu.RUnlock()

	logger.Debug("Doing initial backend health check")
	h.Check(context.Background())

	for {
		select {
		case <-ticker.C:
			h.Check(context.Background())
		case <-stop:
			logger.Debug("Backend health check routine stopped")
			return
		}
	}
}

// Check выполняет одну проверку и применяет переходы состояний
func (h *HealthChecker) Check(ctx context.Context) BackendState {
	timeout := h.config.Timeout
	if timeout <= 0 {
		timeout = DefaultHealthConfig().Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := h.store.Ping(ctx)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastCheckTime = time.Now()
	oldState := h.state

	if err != nil {
		h.lastError = err
		h.consecutiveSuccesses = 0
		h.consecutiveFailures++

		logger.Debug("Backend health check failed: %v (consecutive failures: %d)", err, h.consecutiveFailures)

		switch h.state {
		case StateUp:
			if h.consecutiveFailures >= h.config.FailureThreshold {
				h.setState(StateDown)
			}
		case StateProbing:
			// Из PROBING сразу в DOWN при любой неудаче
			h.setState(StateDown)
		case StateDown:
		}
	} else {
		h.lastError = nil
		h.consecutiveFailures = 0
		h.consecutiveSuccesses++

		switch h.state {
		case StateDown:
			h.setState(StateProbing)
		case StateProbing:
			if h.consecutiveSuccesses >= h.config.SuccessThreshold {
				h.setState(StateUp)
			}
		case StateUp:
		}
	}

	if oldState != h.state {
		if h.state == StateDown {
			logger.Warn("Backend state changed: %s -> %s (last error: %v)", oldState, h.state, h.lastError)
		} else {
			logger.Info("Backend state changed: %s -> %s", oldState, h.state)
		}
	}

	return h.state
}

// setState вызывается под mu
func (h *HealthChecker) setState(state BackendState) {
	h.state = state
	h.metrics.State.Set(state.ToFloat64())
}
