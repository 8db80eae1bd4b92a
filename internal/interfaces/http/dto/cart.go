package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/reformshop/backend/internal/domain/cart"
	"github.com/reformshop/backend/internal/domain/shared"
	"github.com/reformshop/backend/internal/domain/shared/valueobject"
)

// CartItemRequest is one cart line in a snapshot replace request. The body
// carries the full desired snapshot; the engine never diffs.
type CartItemRequest struct {
	ID                string                `json:"id" binding:"required,uuid"`
	Kind              string                `json:"kind" binding:"required,oneof=PRODUCT REFORM"`
	Quantity          int64                 `json:"quantity" binding:"required,min=1"`
	AppliedCouponRef  *string               `json:"appliedCouponRef" binding:"omitempty,uuid"`
	ProductRef        string                `json:"productRef" binding:"omitempty,uuid"`
	SelectedOptionRef *string               `json:"selectedOptionRef" binding:"omitempty,uuid"`
	Reform            *ReformPayloadRequest `json:"reform"`
	Cost              *MoneyRequest         `json:"cost"`
}

// ReformPayloadRequest carries the bespoke alteration details of a reform line
type ReformPayloadRequest struct {
	Measurement       string `json:"measurement" binding:"required"`
	ReferenceImageKey string `json:"referenceImageKey"`
}

// MoneyRequest carries a decimal amount with its currency
type MoneyRequest struct {
	Amount   string `json:"amount" binding:"required"`
	Currency string `json:"currency" binding:"required,len=3"`
}

// ReplaceCartRequest replaces the identity's whole cart snapshot
type ReplaceCartRequest struct {
	Items []CartItemRequest `json:"items" binding:"required,dive"`
}

// PresignUploadRequest asks for a presigned PUT URL for a reference image
type PresignUploadRequest struct {
	ContentType string `json:"contentType" binding:"required"`
}

// PresignDownloadRequest asks for a presigned GET URL for an existing image
type PresignDownloadRequest struct {
	Key string `json:"key" binding:"required"`
}

// CartResponse is the published snapshot for a device and identity
type CartResponse struct {
	Identity string      `json:"identity"`
	Items    []cart.Item `json:"items"`
}

// ToDomain converts the request line into a domain item
func (r *CartItemRequest) ToDomain() (cart.Item, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return cart.Item{}, shared.NewDomainError("INVALID_ITEM_ID", "Item ID must be a UUID")
	}

	now := time.Now()
	item := cart.Item{
		ID:        id,
		Kind:      cart.ItemKind(r.Kind),
		Quantity:  r.Quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if r.AppliedCouponRef != nil {
		couponRef, err := uuid.Parse(*r.AppliedCouponRef)
		if err != nil {
			return cart.Item{}, shared.NewDomainError("INVALID_COUPON", "Coupon reference must be a UUID")
		}
		item.AppliedCouponRef = &couponRef
	}

	switch item.Kind {
	case cart.KindProduct:
		productRef, err := uuid.Parse(r.ProductRef)
		if err != nil {
			return cart.Item{}, shared.NewDomainError("INVALID_PRODUCT", "Product reference must be a UUID")
		}
		item.ProductRef = productRef
		if r.SelectedOptionRef != nil {
			optionRef, err := uuid.Parse(*r.SelectedOptionRef)
			if err != nil {
				return cart.Item{}, shared.NewDomainError("INVALID_OPTION", "Option reference must be a UUID")
			}
			item.SelectedOptionRef = &optionRef
		}
	case cart.KindReform:
		if r.Reform == nil {
			return cart.Item{}, shared.NewDomainError("INVALID_REFORM", "Reform payload is required")
		}
		item.Reform = &cart.ReformPayload{
			Measurement:       r.Reform.Measurement,
			ReferenceImageKey: r.Reform.ReferenceImageKey,
		}
		if r.Cost != nil {
			cost, err := valueobject.NewMoneyFromString(r.Cost.Amount, valueobject.Currency(r.Cost.Currency))
			if err != nil {
				return cart.Item{}, err
			}
			item.Cost = cost
		}
	}

	if err := item.Validate(); err != nil {
		return cart.Item{}, err
	}
	return item, nil
}

// ToDomainItems converts the full request snapshot, enforcing snapshot
// invariants.
func (r *ReplaceCartRequest) ToDomainItems() ([]cart.Item, error) {
	items := make([]cart.Item, 0, len(r.Items))
	for idx := range r.Items {
		item, err := r.Items[idx].ToDomain()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := cart.ValidateItems(items); err != nil {
		return nil, err
	}
	return items, nil
}
