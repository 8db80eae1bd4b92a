package persistence

import (
	"time"

	"github.com/google/uuid"
	"github.com/reformshop/backend/internal/domain/cart"
	"github.com/reformshop/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// CartItemModel is the persistence model for one cart line. The persisted
// snapshot for a user is the set of rows with their user id; ReplaceAll
// rewrites that set atomically.
type CartItemModel struct {
	ID                uuid.UUID       `gorm:"type:uuid;primary_key"`
	UserID            uuid.UUID       `gorm:"type:uuid;not null;index"`
	Kind              string          `gorm:"type:varchar(16);not null"`
	Quantity          int64           `gorm:"not null"`
	ProductRef        *uuid.UUID      `gorm:"type:uuid"`
	SelectedOptionRef *uuid.UUID      `gorm:"type:uuid"`
	AppliedCouponRef  *uuid.UUID      `gorm:"type:uuid"`
	ReformMeasurement string          `gorm:"type:text"`
	ReformImageKey    string          `gorm:"type:varchar(512)"`
	CostAmount        decimal.Decimal `gorm:"type:numeric(12,2)"`
	CostCurrency      string          `gorm:"type:varchar(3)"`
	CreatedAt         time.Time       `gorm:"not null"`
	UpdatedAt         time.Time       `gorm:"not null"`
}

// TableName sets the table name for GORM
func (CartItemModel) TableName() string {
	return "cart_items"
}

// CartItemModelFromDomain converts a domain item to its persistence model
func CartItemModelFromDomain(userID uuid.UUID, item *cart.Item) *CartItemModel {
	model := &CartItemModel{
		ID:               item.ID,
		UserID:           userID,
		Kind:             item.Kind.String(),
		Quantity:         item.Quantity,
		AppliedCouponRef: item.AppliedCouponRef,
		CreatedAt:        item.CreatedAt,
		UpdatedAt:        item.UpdatedAt,
	}

	switch item.Kind {
	case cart.KindProduct:
		ref := item.ProductRef
		model.ProductRef = &ref
		model.SelectedOptionRef = item.SelectedOptionRef
	case cart.KindReform:
		if item.Reform != nil {
			model.ReformMeasurement = item.Reform.Measurement
			model.ReformImageKey = item.Reform.ReferenceImageKey
		}
		model.CostAmount = item.Cost.Amount()
		model.CostCurrency = string(item.Cost.Currency())
	}

	return model
}

// ToDomain converts the persistence model back to a domain item
func (m *CartItemModel) ToDomain() cart.Item {
	item := cart.Item{
		ID:               m.ID,
		Kind:             cart.ItemKind(m.Kind),
		Quantity:         m.Quantity,
		AppliedCouponRef: m.AppliedCouponRef,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}

	switch item.Kind {
	case cart.KindProduct:
		if m.ProductRef != nil {
			item.ProductRef = *m.ProductRef
		}
		item.SelectedOptionRef = m.SelectedOptionRef
	case cart.KindReform:
		item.Reform = &cart.ReformPayload{
			Measurement:       m.ReformMeasurement,
			ReferenceImageKey: m.ReformImageKey,
		}
		currency := valueobject.Currency(m.CostCurrency)
		if currency == "" {
			currency = valueobject.DefaultCurrency
		}
		if cost, err := valueobject.NewMoney(m.CostAmount, currency); err == nil {
			item.Cost = cost
		}
	}

	return item
}
