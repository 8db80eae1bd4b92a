package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/reformshop/backend/internal/domain/shared"
	"github.com/reformshop/backend/internal/domain/shared/valueobject"
)

// ItemKind discriminates the two cart item variants
type ItemKind string

const (
	// KindProduct is a catalog product line, identified for merging by its
	// (product, selected option) pair
	KindProduct ItemKind = "PRODUCT"
	// KindReform is a bespoke alteration request; each instance is a
	// physically distinct item and is never quantity-merged
	KindReform ItemKind = "REFORM"
)

// IsValid checks if the kind is a known ItemKind
func (k ItemKind) IsValid() bool {
	return k == KindProduct || k == KindReform
}

// String returns the string representation of ItemKind
func (k ItemKind) String() string {
	return string(k)
}

// ReformPayload describes a bespoke alteration request attached to a reform
// cart item. Measurement is the customer-entered measurement spec;
// ReferenceImageKey is an optional object storage key for a reference photo.
type ReformPayload struct {
	Measurement       string `json:"measurement"`
	ReferenceImageKey string `json:"referenceImageKey,omitempty"`
}

// Item is one cart line. It is a tagged union discriminated by Kind:
// product fields are meaningful only for KindProduct, reform fields only for
// KindReform. ID is unique within a snapshot and is the identity used for
// replace/remove; it is not a merge key.
type Item struct {
	ID       uuid.UUID `json:"id"`
	Kind     ItemKind  `json:"kind"`
	Quantity int64     `json:"quantity"`

	// AppliedCouponRef is a weak reference to a coupon owned by the coupon
	// subsystem. The engine carries it through merges and never validates it.
	AppliedCouponRef *uuid.UUID `json:"appliedCouponRef,omitempty"`

	// Product fields
	ProductRef        uuid.UUID  `json:"productRef,omitempty"`
	SelectedOptionRef *uuid.UUID `json:"selectedOptionRef,omitempty"`

	// Reform fields
	Reform *ReformPayload    `json:"reform,omitempty"`
	Cost   valueobject.Money `json:"cost,omitzero"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewProductItem creates a product cart line
func NewProductItem(productRef uuid.UUID, selectedOptionRef *uuid.UUID, quantity int64) (*Item, error) {
	if productRef == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product reference cannot be empty")
	}
	if quantity < 1 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be at least 1")
	}

	now := time.Now()
	return &Item{
		ID:                uuid.New(),
		Kind:              KindProduct,
		Quantity:          quantity,
		ProductRef:        productRef,
		SelectedOptionRef: cloneRef(selectedOptionRef),
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// NewReformItem creates a reform cart line. Quantity is conventionally 1;
// each reform request represents a distinct physical item.
func NewReformItem(payload ReformPayload, cost valueobject.Money) (*Item, error) {
	if payload.Measurement == "" {
		return nil, shared.NewDomainError("INVALID_REFORM", "Reform measurement cannot be empty")
	}
	if cost.IsNegative() {
		return nil, shared.NewDomainError("INVALID_COST", "Reform cost cannot be negative")
	}

	now := time.Now()
	p := payload
	return &Item{
		ID:        uuid.New(),
		Kind:      KindReform,
		Quantity:  1,
		Reform:    &p,
		Cost:      cost,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Validate checks the item invariants
func (i *Item) Validate() error {
	if i.ID == uuid.Nil {
		return shared.NewDomainError("INVALID_ITEM_ID", "Item ID cannot be empty")
	}
	if !i.Kind.IsValid() {
		return shared.NewDomainError("INVALID_ITEM_KIND", "Unknown item kind")
	}
	if i.Quantity < 1 {
		return shared.NewDomainError("INVALID_QUANTITY", "Quantity must be at least 1")
	}
	switch i.Kind {
	case KindProduct:
		if i.ProductRef == uuid.Nil {
			return shared.NewDomainError("INVALID_PRODUCT", "Product reference cannot be empty")
		}
	case KindReform:
		if i.Reform == nil || i.Reform.Measurement == "" {
			return shared.NewDomainError("INVALID_REFORM", "Reform measurement cannot be empty")
		}
	}
	return nil
}

// UpdateQuantity sets the quantity. Removal is modeled as item deletion,
// never quantity 0.
func (i *Item) UpdateQuantity(quantity int64) error {
	if quantity < 1 {
		return shared.NewDomainError("INVALID_QUANTITY", "Quantity must be at least 1")
	}
	i.Quantity = quantity
	i.UpdatedAt = time.Now()
	return nil
}

// ApplyCoupon attaches a coupon reference to the item
func (i *Item) ApplyCoupon(couponRef uuid.UUID) error {
	if couponRef == uuid.Nil {
		return shared.NewDomainError("INVALID_COUPON", "Coupon reference cannot be empty")
	}
	ref := couponRef
	i.AppliedCouponRef = &ref
	i.UpdatedAt = time.Now()
	return nil
}

// RemoveCoupon detaches the coupon reference, if any
func (i *Item) RemoveCoupon() {
	i.AppliedCouponRef = nil
	i.UpdatedAt = time.Now()
}

// SelectOption changes the selected product option. Only valid for product
// items.
func (i *Item) SelectOption(optionRef *uuid.UUID) error {
	if i.Kind != KindProduct {
		return shared.NewDomainError("INVALID_ITEM_KIND", "Only product items have options")
	}
	i.SelectedOptionRef = cloneRef(optionRef)
	i.UpdatedAt = time.Now()
	return nil
}

// SameProductSelection reports whether the other item refers to the same
// (product, selected option) pair. This is the merge identity for product
// items; reform items never match.
func (i *Item) SameProductSelection(other *Item) bool {
	if i.Kind != KindProduct || other.Kind != KindProduct {
		return false
	}
	if i.ProductRef != other.ProductRef {
		return false
	}
	return refEqual(i.SelectedOptionRef, other.SelectedOptionRef)
}

// Clone returns a deep copy of the item
func (i *Item) Clone() Item {
	c := *i
	c.AppliedCouponRef = cloneRef(i.AppliedCouponRef)
	c.SelectedOptionRef = cloneRef(i.SelectedOptionRef)
	if i.Reform != nil {
		p := *i.Reform
		c.Reform = &p
	}
	return c
}

// CloneItems returns a deep copy of a snapshot. A nil input yields an empty,
// non-nil slice so callers can treat snapshots uniformly.
func CloneItems(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for idx := range items {
		out = append(out, items[idx].Clone())
	}
	return out
}

// ValidateItems checks snapshot-level invariants: every item valid, ids
// unique within the snapshot.
func ValidateItems(items []Item) error {
	seen := make(map[uuid.UUID]struct{}, len(items))
	for idx := range items {
		if err := items[idx].Validate(); err != nil {
			return err
		}
		if _, dup := seen[items[idx].ID]; dup {
			return shared.NewDomainError("DUPLICATE_ITEM_ID", "Item IDs must be unique within a cart")
		}
		seen[items[idx].ID] = struct{}{}
	}
	return nil
}

func cloneRef(ref *uuid.UUID) *uuid.UUID {
	if ref == nil {
		return nil
	}
	r := *ref
	return &r
}

func refEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
