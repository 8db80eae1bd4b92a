package cart

import (
	"context"
	"time"
)

// DefaultMergeLockTTL bounds how long a crashed or interrupted merge can
// block a subsequent merge attempt for the same identity.
const DefaultMergeLockTTL = 5 * time.Minute

// RemoteRepository is the only port allowed to reach the backend store of
// record for cart data. It exposes whole-snapshot operations only: the
// engine always reasons in full snapshots, which removes lost-update bugs
// at the cost of write amplification (carts stay under ~50 lines).
//
// Error contract: Fetch returns a SessionError when no authenticated
// context exists for the identity, and a NetworkError for transport or
// backend failures. ReplaceAll and Clear return NetworkError on failure.
type RemoteRepository interface {
	// Fetch returns the persisted snapshot for the identity
	Fetch(ctx context.Context, identity Identity) ([]Item, error)
	// ReplaceAll atomically replaces the persisted snapshot (delete existing
	// plus insert new). Callers always pass the full desired snapshot.
	ReplaceAll(ctx context.Context, identity Identity, items []Item) error
	// Clear removes the persisted snapshot for the identity
	Clear(ctx context.Context, identity Identity) error
}

// CacheStore is the device-scoped key/value port holding the anonymous cart,
// the per-identity fast-render cache, and the time-boxed merge lock.
//
// Reads never fail the caller on corrupt or unknown-version payloads; those
// read as "no data". Backend failures on reads surface as StorageError and
// callers treat them as empty. Writes propagate StorageError.
type CacheStore interface {
	// AnonymousItems returns the device's anonymous snapshot, or empty
	AnonymousItems(ctx context.Context, device DeviceID) ([]Item, error)
	// SetAnonymousItems stores the device's anonymous snapshot
	SetAnonymousItems(ctx context.Context, device DeviceID, items []Item) error
	// ClearAnonymous removes the device's anonymous snapshot
	ClearAnonymous(ctx context.Context, device DeviceID) error

	// CachedItems returns the device's cached snapshot for the identity
	CachedItems(ctx context.Context, device DeviceID, identity Identity) ([]Item, error)
	// SetCachedItems stores the device's cached snapshot for the identity
	SetCachedItems(ctx context.Context, device DeviceID, identity Identity, items []Item) error
	// ClearCached removes the device's cached snapshot for the identity
	ClearCached(ctx context.Context, device DeviceID, identity Identity) error

	// AcquireMergeLock records a merge-in-progress marker for the identity.
	// The lock is advisory: cooperating processes must check it, and it
	// self-heals via TTL expiry rather than being strictly exclusive.
	AcquireMergeLock(ctx context.Context, device DeviceID, identity Identity) error
	// HasValidMergeLock reports whether a lock younger than the TTL exists
	HasValidMergeLock(ctx context.Context, device DeviceID, identity Identity) (bool, error)
	// ReleaseMergeLock removes the merge lock, if any
	ReleaseMergeLock(ctx context.Context, device DeviceID, identity Identity) error
}
