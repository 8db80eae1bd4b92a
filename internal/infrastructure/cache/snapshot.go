package cache

import (
	"encoding/json"

	"github.com/reformshop/backend/internal/domain/cart"
)

// snapshotSchemaVersion is bumped whenever the persisted item shape changes.
// Payloads with any other version are discarded on read instead of crashing
// a parse.
const snapshotSchemaVersion = 1

// Storage key layout inside a device namespace. The per-identity keys append
// the identity's canonical key.
const (
	guestCartKey       = "cart_guest"
	userCachePrefix    = "cart_cache_user_"
	mergeLockPrefix    = "merge_lock_"
	deviceKeySeparator = ":"
)

type snapshotEnvelope struct {
	Version int         `json:"version"`
	Items   []cart.Item `json:"items"`
}

// encodeSnapshot serializes a snapshot with its schema version
func encodeSnapshot(items []cart.Item) ([]byte, error) {
	return json.Marshal(snapshotEnvelope{
		Version: snapshotSchemaVersion,
		Items:   items,
	})
}

// decodeSnapshot parses a stored snapshot. Corrupt payloads and unknown
// schema versions decode as "no data" - reads never fail the caller.
func decodeSnapshot(data []byte) []cart.Item {
	if len(data) == 0 {
		return nil
	}
	var envelope snapshotEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil
	}
	if envelope.Version != snapshotSchemaVersion {
		return nil
	}
	return envelope.Items
}

func deviceKey(device cart.DeviceID, key string) string {
	return device.String() + deviceKeySeparator + key
}

func anonymousKey(device cart.DeviceID) string {
	return deviceKey(device, guestCartKey)
}

func cachedKey(device cart.DeviceID, identity cart.Identity) string {
	return deviceKey(device, userCachePrefix+identity.Key())
}

func lockKey(device cart.DeviceID, identity cart.Identity) string {
	return deviceKey(device, mergeLockPrefix+identity.Key())
}
