package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/reformshop/backend/internal/domain/cart"
	"github.com/reformshop/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// RedisCartStore implements cart.CacheStore using Redis. This is the
// production backend: device cache namespaces survive process restarts and
// are shared across instances, which is what makes the TTL-based merge lock
// meaningful under duplicate tabs and rapid reloads.
type RedisCartStore struct {
	client    *redis.Client
	keyPrefix string
	lockTTL   time.Duration
	logger    *zap.Logger
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// RedisCartStoreOption is a functional option for configuring the store
type RedisCartStoreOption func(*RedisCartStore)

// WithRedisLogger sets the logger used for degraded-read warnings
func WithRedisLogger(logger *zap.Logger) RedisCartStoreOption {
	return func(s *RedisCartStore) {
		s.logger = logger
	}
}

// WithRedisLockTTL overrides the merge lock TTL
func WithRedisLockTTL(ttl time.Duration) RedisCartStoreOption {
	return func(s *RedisCartStore) {
		s.lockTTL = ttl
	}
}

// NewRedisCartStore creates a Redis-backed cart cache store
func NewRedisCartStore(cfg RedisConfig, opts ...RedisCartStoreOption) (*RedisCartStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisCartStoreWithClient(client, opts...), nil
}

// NewRedisCartStoreWithClient creates a store with an existing Redis client.
// This is useful for testing or when sharing a client across components.
func NewRedisCartStoreWithClient(client *redis.Client, opts ...RedisCartStoreOption) *RedisCartStore {
	return newRedisCartStoreWithClient(client, opts...)
}

func newRedisCartStoreWithClient(client *redis.Client, opts ...RedisCartStoreOption) *RedisCartStore {
	store := &RedisCartStore{
		client:    client,
		keyPrefix: "cart:device:",
		lockTTL:   cart.DefaultMergeLockTTL,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// AnonymousItems returns the device's anonymous snapshot, or empty
func (s *RedisCartStore) AnonymousItems(ctx context.Context, device cart.DeviceID) ([]cart.Item, error) {
	return s.readSnapshot(ctx, "get anonymous items", anonymousKey(device))
}

// SetAnonymousItems stores the device's anonymous snapshot
func (s *RedisCartStore) SetAnonymousItems(ctx context.Context, device cart.DeviceID, items []cart.Item) error {
	return s.writeSnapshot(ctx, "set anonymous items", anonymousKey(device), items)
}

// ClearAnonymous removes the device's anonymous snapshot
func (s *RedisCartStore) ClearAnonymous(ctx context.Context, device cart.DeviceID) error {
	return s.deleteKey(ctx, "clear anonymous items", anonymousKey(device))
}

// CachedItems returns the device's cached snapshot for the identity
func (s *RedisCartStore) CachedItems(ctx context.Context, device cart.DeviceID, identity cart.Identity) ([]cart.Item, error) {
	return s.readSnapshot(ctx, "get cached items", cachedKey(device, identity))
}

// SetCachedItems stores the device's cached snapshot for the identity
func (s *RedisCartStore) SetCachedItems(ctx context.Context, device cart.DeviceID, identity cart.Identity, items []cart.Item) error {
	return s.writeSnapshot(ctx, "set cached items", cachedKey(device, identity), items)
}

// ClearCached removes the device's cached snapshot for the identity
func (s *RedisCartStore) ClearCached(ctx context.Context, device cart.DeviceID, identity cart.Identity) error {
	return s.deleteKey(ctx, "clear cached items", cachedKey(device, identity))
}

// AcquireMergeLock records a merge-in-progress marker for the identity.
// Redis expires the key at the lock TTL, so a crashed merge self-heals.
func (s *RedisCartStore) AcquireMergeLock(ctx context.Context, device cart.DeviceID, identity cart.Identity) error {
	millis := strconv.FormatInt(time.Now().UnixMilli(), 10)
	key := s.keyPrefix + lockKey(device, identity)
	if err := s.client.Set(ctx, key, millis, s.lockTTL).Err(); err != nil {
		return shared.NewStorageError("acquire merge lock", err)
	}
	return nil
}

// HasValidMergeLock reports whether a lock younger than the TTL exists.
// Expiry is enforced by Redis key TTL; the stored timestamp is checked as
// well in case the key was written with a longer TTL by an older release.
func (s *RedisCartStore) HasValidMergeLock(ctx context.Context, device cart.DeviceID, identity cart.Identity) (bool, error) {
	key := s.keyPrefix + lockKey(device, identity)
	raw, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, shared.NewStorageError("check merge lock", err)
	}

	millis, parseErr := strconv.ParseInt(raw, 10, 64)
	if parseErr != nil {
		return false, nil
	}
	return time.Since(time.UnixMilli(millis)) < s.lockTTL, nil
}

// ReleaseMergeLock removes the merge lock, if any
func (s *RedisCartStore) ReleaseMergeLock(ctx context.Context, device cart.DeviceID, identity cart.Identity) error {
	return s.deleteKey(ctx, "release merge lock", lockKey(device, identity))
}

// Close closes the Redis client
func (s *RedisCartStore) Close() error {
	return s.client.Close()
}

func (s *RedisCartStore) readSnapshot(ctx context.Context, op, key string) ([]cart.Item, error) {
	raw, err := s.client.Get(ctx, s.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, shared.NewStorageError(op, err)
	}

	items := decodeSnapshot(raw)
	if items == nil && len(raw) > 0 {
		// corrupt or stale-schema payload reads as empty
		s.logger.Warn("discarding unreadable cart snapshot",
			zap.String("key", key),
			zap.Int("bytes", len(raw)))
	}
	return items, nil
}

func (s *RedisCartStore) writeSnapshot(ctx context.Context, op, key string, items []cart.Item) error {
	data, err := encodeSnapshot(items)
	if err != nil {
		return shared.NewStorageError(op, err)
	}
	if err := s.client.Set(ctx, s.keyPrefix+key, data, 0).Err(); err != nil {
		return shared.NewStorageError(op, err)
	}
	return nil
}

func (s *RedisCartStore) deleteKey(ctx context.Context, op, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return shared.NewStorageError(op, err)
	}
	return nil
}

// Ensure RedisCartStore implements cart.CacheStore
var _ cart.CacheStore = (*RedisCartStore)(nil)
