package cache

import (
	"fmt"
	"time"

	"github.com/reformshop/backend/internal/domain/cart"
	"github.com/reformshop/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// CartStoreFactory creates cart cache stores based on configuration
type CartStoreFactory struct {
	redisConfig           config.RedisConfig
	lockTTL               time.Duration
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// CartStoreFactoryOption is a functional option for configuring the factory
type CartStoreFactoryOption func(*CartStoreFactory)

// WithLogger sets the logger for the factory and the stores it creates
func WithLogger(logger *zap.Logger) CartStoreFactoryOption {
	return func(f *CartStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to an in-memory store
// when Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) CartStoreFactoryOption {
	return func(f *CartStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// WithMergeLockTTL overrides the merge lock TTL for created stores
func WithMergeLockTTL(ttl time.Duration) CartStoreFactoryOption {
	return func(f *CartStoreFactory) {
		f.lockTTL = ttl
	}
}

// NewCartStoreFactory creates a new factory
func NewCartStoreFactory(cfg config.RedisConfig, opts ...CartStoreFactoryOption) *CartStoreFactory {
	f := &CartStoreFactory{
		redisConfig:           cfg,
		lockTTL:               cart.DefaultMergeLockTTL,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateRedisStore creates a Redis-backed cart cache store
func (f *CartStoreFactory) CreateRedisStore() (cart.CacheStore, error) {
	store, err := NewRedisCartStore(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	},
		WithRedisLogger(f.logger),
		WithRedisLockTTL(f.lockTTL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis cart store: %w", err)
	}
	return store, nil
}

// CreateInMemoryStore creates an in-memory cart cache store.
// WARNING: in-memory stores do not share the merge lock across process
// instances, so the double-merge guard only covers one instance.
func (f *CartStoreFactory) CreateInMemoryStore() cart.CacheStore {
	return NewInMemoryCartStore(WithInMemoryLockTTL(f.lockTTL))
}

// CreateStore creates a cart cache store, preferring Redis and falling back
// to in-memory when Redis is unavailable and fallback is allowed
func (f *CartStoreFactory) CreateStore() (cart.CacheStore, error) {
	store, err := f.CreateRedisStore()
	if err == nil {
		f.logger.Info("using Redis cart cache store",
			zap.String("host", f.redisConfig.Host),
			zap.Int("port", f.redisConfig.Port))
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, err
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory cart cache store",
		zap.Error(err))
	return f.CreateInMemoryStore(), nil
}
