package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/reformshop/backend/internal/domain/cart"
	"github.com/reformshop/backend/internal/domain/shared"
)

// InMemoryCartStore implements cart.CacheStore using an in-memory map.
// This is suitable for single-instance deployments and testing.
type InMemoryCartStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
	lockTTL time.Duration
	now     func() time.Time
}

// InMemoryCartStoreOption is a functional option for configuring the store
type InMemoryCartStoreOption func(*InMemoryCartStore)

// WithInMemoryClock substitutes the time source, so tests can control merge
// lock expiry
func WithInMemoryClock(now func() time.Time) InMemoryCartStoreOption {
	return func(s *InMemoryCartStore) {
		s.now = now
	}
}

// WithInMemoryLockTTL overrides the merge lock TTL
func WithInMemoryLockTTL(ttl time.Duration) InMemoryCartStoreOption {
	return func(s *InMemoryCartStore) {
		s.lockTTL = ttl
	}
}

// NewInMemoryCartStore creates a new in-memory cart cache store
func NewInMemoryCartStore(opts ...InMemoryCartStoreOption) *InMemoryCartStore {
	store := &InMemoryCartStore{
		entries: make(map[string][]byte),
		lockTTL: cart.DefaultMergeLockTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// AnonymousItems returns the device's anonymous snapshot, or empty
func (s *InMemoryCartStore) AnonymousItems(_ context.Context, device cart.DeviceID) ([]cart.Item, error) {
	return s.readSnapshot(anonymousKey(device)), nil
}

// SetAnonymousItems stores the device's anonymous snapshot
func (s *InMemoryCartStore) SetAnonymousItems(_ context.Context, device cart.DeviceID, items []cart.Item) error {
	return s.writeSnapshot("set anonymous items", anonymousKey(device), items)
}

// ClearAnonymous removes the device's anonymous snapshot
func (s *InMemoryCartStore) ClearAnonymous(_ context.Context, device cart.DeviceID) error {
	s.delete(anonymousKey(device))
	return nil
}

// CachedItems returns the device's cached snapshot for the identity
func (s *InMemoryCartStore) CachedItems(_ context.Context, device cart.DeviceID, identity cart.Identity) ([]cart.Item, error) {
	return s.readSnapshot(cachedKey(device, identity)), nil
}

// SetCachedItems stores the device's cached snapshot for the identity
func (s *InMemoryCartStore) SetCachedItems(_ context.Context, device cart.DeviceID, identity cart.Identity, items []cart.Item) error {
	return s.writeSnapshot("set cached items", cachedKey(device, identity), items)
}

// ClearCached removes the device's cached snapshot for the identity
func (s *InMemoryCartStore) ClearCached(_ context.Context, device cart.DeviceID, identity cart.Identity) error {
	s.delete(cachedKey(device, identity))
	return nil
}

// AcquireMergeLock records a merge-in-progress marker for the identity.
// An existing lock is overwritten; the lock is advisory.
func (s *InMemoryCartStore) AcquireMergeLock(_ context.Context, device cart.DeviceID, identity cart.Identity) error {
	millis := strconv.FormatInt(s.now().UnixMilli(), 10)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[lockKey(device, identity)] = []byte(millis)
	return nil
}

// HasValidMergeLock reports whether a lock younger than the TTL exists.
// A corrupt or expired lock reads as absent.
func (s *InMemoryCartStore) HasValidMergeLock(_ context.Context, device cart.DeviceID, identity cart.Identity) (bool, error) {
	s.mu.RLock()
	raw, exists := s.entries[lockKey(device, identity)]
	s.mu.RUnlock()
	if !exists {
		return false, nil
	}

	millis, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return false, nil
	}
	age := s.now().Sub(time.UnixMilli(millis))
	return age < s.lockTTL, nil
}

// ReleaseMergeLock removes the merge lock, if any
func (s *InMemoryCartStore) ReleaseMergeLock(_ context.Context, device cart.DeviceID, identity cart.Identity) error {
	s.delete(lockKey(device, identity))
	return nil
}

func (s *InMemoryCartStore) readSnapshot(key string) []cart.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return decodeSnapshot(s.entries[key])
}

func (s *InMemoryCartStore) writeSnapshot(op, key string, items []cart.Item) error {
	data, err := encodeSnapshot(items)
	if err != nil {
		return shared.NewStorageError(op, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = data
	return nil
}

func (s *InMemoryCartStore) delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Ensure InMemoryCartStore implements cart.CacheStore
var _ cart.CacheStore = (*InMemoryCartStore)(nil)
