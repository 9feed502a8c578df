package backend

import (
	"context"
	"fmt"
)

// NewStoreFromConfig создает хранилище по конфигурации и оборачивает его метриками
// и, если включено, трассировкой
func NewStoreFromConfig(ctx context.Context, cfg *Config, metrics *Metrics) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid backend config: %w", err)
	}

	var store Store
	switch cfg.Provider {
	case ProviderS3:
		client, err := NewS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store = NewS3Store(client, cfg.Bucket)
	case ProviderMemory:
		store = NewMemoryStore()
	}

	store = NewMetricsStore(store, metrics)
	if cfg.Tracing {
		store = NewTracingStore(store)
	}
	return store, nil
}
