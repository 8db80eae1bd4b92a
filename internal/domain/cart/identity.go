package cart

import "github.com/google/uuid"

// AnonymousKey is the single canonical key for the anonymous identity.
// It is never represented as an absent/empty value, so two anonymous
// identities always compare equal.
const AnonymousKey = "anonymous"

// Identity is the owner of a cart snapshot at a point in time: either the
// anonymous device identity or one authenticated user. The engine never
// learns why an identity changed, only that it did.
type Identity struct {
	userID        uuid.UUID
	authenticated bool
}

// Anonymous returns the anonymous identity
func Anonymous() Identity {
	return Identity{}
}

// Authenticated returns the identity of the given user
func Authenticated(userID uuid.UUID) Identity {
	return Identity{userID: userID, authenticated: true}
}

// IsAuthenticated reports whether the identity carries a user id
func (id Identity) IsAuthenticated() bool {
	return id.authenticated
}

// UserID returns the authenticated user id, or uuid.Nil for anonymous
func (id Identity) UserID() uuid.UUID {
	if !id.authenticated {
		return uuid.Nil
	}
	return id.userID
}

// Key returns the canonical string key for this identity, used for cache
// namespacing, merge locks, and in-flight deduplication.
func (id Identity) Key() string {
	if !id.authenticated {
		return AnonymousKey
	}
	return id.userID.String()
}

// Equal compares identities by canonical key
func (id Identity) Equal(other Identity) bool {
	return id.Key() == other.Key()
}

// String implements fmt.Stringer
func (id Identity) String() string {
	return id.Key()
}

// DeviceID identifies the device whose local cache namespace holds the
// anonymous cart and per-identity cached snapshots.
type DeviceID string

// String returns the raw device id
func (d DeviceID) String() string {
	return string(d)
}
