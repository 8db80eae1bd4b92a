package cart

import "github.com/google/uuid"

// Merge combines a device-local snapshot with the server-side snapshot into
// one. It is pure: no I/O, no mutation of either input.
//
// The remote snapshot is the authoritative baseline (it may reflect state
// from other devices); local items are folded into it:
//
//   - A local product item whose (product, selected option) pair already
//     exists in the result adds its quantity to the existing line. Both
//     contributions are preserved.
//   - A local product item with no matching pair is appended, unless an
//     existing line already holds its id.
//   - A local reform item is appended unless an existing line already holds
//     its id. Reform requests are never quantity-merged; each represents a
//     distinct physical item.
//
// A local product item whose id collides with a remote line of a different
// (product, option) pair is dropped: remote wins. This policy is deliberate
// and covered by a regression test; see the id-collision case in merge tests
// before changing it.
func Merge(localItems, remoteItems []Item) []Item {
	merged := CloneItems(remoteItems)

	ids := make(map[uuid.UUID]struct{}, len(merged))
	for idx := range merged {
		ids[merged[idx].ID] = struct{}{}
	}

	for idx := range localItems {
		local := &localItems[idx]

		if local.Kind == KindProduct {
			if existing := findProductSelection(merged, local); existing != nil {
				existing.Quantity += local.Quantity
				continue
			}
		}

		if _, taken := ids[local.ID]; taken {
			continue
		}
		merged = append(merged, local.Clone())
		ids[local.ID] = struct{}{}
	}

	return merged
}

func findProductSelection(items []Item, target *Item) *Item {
	for idx := range items {
		if items[idx].SameProductSelection(target) {
			return &items[idx]
		}
	}
	return nil
}
