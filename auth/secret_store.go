package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"s3gate/logger"
)

// SSMGetParameterAPI - часть клиента SSM, которая нужна хранилищу
type SSMGetParameterAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SSMSecretStore читает секрет из AWS SSM Parameter Store
type SSMSecretStore struct {
	client SSMGetParameterAPI
}

// NewSSMSecretStore создает хранилище поверх готового клиента
func NewSSMSecretStore(client SSMGetParameterAPI) *SSMSecretStore {
	return &SSMSecretStore{client: client}
}

// NewSSMClient создает клиент SSM. Учетные данные берутся из стандартной цепочки (роль Lambda, env, профиль).
func NewSSMClient(ctx context.Context, region, endpoint string) (*ssm.Client, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for SSM: %w", err)
	}

	return ssm.NewFromConfig(awsConfig, func(o *ssm.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// Fetch выполняет один GetParameter с расшифровкой
func (s *SSMSecretStore) Fetch(ctx context.Context, name string) (string, error) {
	out, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var notFound *types.ParameterNotFound
		if errors.As(err, &notFound) {
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
		}
		return "", fmt.Errorf("%w: %w", ErrSecretStore, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("%w: parameter %s has no value", ErrSecretStore, name)
	}
	return *out.Parameter.Value, nil
}

// StaticSecretStore хранит секреты в памяти. Для режима serve без AWS и для тестов.
type StaticSecretStore struct {
	values map[string]string
}

// NewStaticSecretStore создает хранилище из карты имя -> значение
func NewStaticSecretStore(values map[string]string) *StaticSecretStore {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &StaticSecretStore{values: copied}
}

// Fetch возвращает значение или ErrSecretNotFound
func (s *StaticSecretStore) Fetch(_ context.Context, name string) (string, error) {
	v, ok := s.values[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
	}
	return v, nil
}

// CachingSecretStore кэширует значения на ttl.
// Ошибки не кэшируются, а устаревшее значение не отдается после неудачного обновления.
type CachingSecretStore struct {
	inner   SecretStore
	ttl     time.Duration
	now     func() time.Time
	metrics *Metrics

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// NewCachingSecretStore оборачивает inner. При ttl <= 0 возвращает inner без изменений.
func NewCachingSecretStore(inner SecretStore, ttl time.Duration, metrics *Metrics) SecretStore {
	if ttl <= 0 {
		return inner
	}
	if metrics == nil {
		metrics = DefaultMetrics()
	}
	return &CachingSecretStore{
		inner:   inner,
		ttl:     ttl,
		now:     time.Now,
		metrics: metrics,
		entries: make(map[string]cacheEntry),
	}
}

// Fetch возвращает кэшированное значение или читает его из inner
func (c *CachingSecretStore) Fetch(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	entry, ok := c.entries[name]
	c.mu.Unlock()

	if ok && c.now().Before(entry.expiresAt) {
		c.metrics.SecretCache.WithLabelValues("hit").Inc()
		return entry.value, nil
	}
	c.metrics.SecretCache.WithLabelValues("miss").Inc()

	value, err := c.inner.Fetch(ctx, name)
	if err != nil {
		c.mu.Lock()
		delete(c.entries, name)
		c.mu.Unlock()
		return "", err
	}

	c.mu.Lock()
	c.entries[name] = cacheEntry{value: value, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()

	logger.Debug("Secret %q refreshed, cached for %v", name, c.ttl)
	return value, nil
}
