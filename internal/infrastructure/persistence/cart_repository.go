package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/reformshop/backend/internal/domain/cart"
	"github.com/reformshop/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormCartRepository implements cart.RemoteRepository using GORM. It is the
// only component that reaches the backend store of record for cart data.
type GormCartRepository struct {
	db *gorm.DB
}

// NewGormCartRepository creates a new GormCartRepository
func NewGormCartRepository(db *gorm.DB) *GormCartRepository {
	return &GormCartRepository{db: db}
}

// Fetch returns the persisted snapshot for the identity, ordered by creation
// time so devices observe a stable line order
func (r *GormCartRepository) Fetch(ctx context.Context, identity cart.Identity) ([]cart.Item, error) {
	userID, err := requireUser(identity)
	if err != nil {
		return nil, err
	}

	var models []CartItemModel
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at asc").
		Find(&models)
	if result.Error != nil {
		return nil, shared.NewNetworkError("fetch cart", result.Error)
	}

	items := make([]cart.Item, 0, len(models))
	for idx := range models {
		items = append(items, models[idx].ToDomain())
	}
	return items, nil
}

// ReplaceAll atomically replaces the persisted snapshot: delete existing
// rows plus insert the new ones in one transaction. Callers always pass the
// full desired snapshot.
func (r *GormCartRepository) ReplaceAll(ctx context.Context, identity cart.Identity, items []cart.Item) error {
	userID, err := requireUser(identity)
	if err != nil {
		return err
	}

	txErr := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&CartItemModel{}).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}

		models := make([]*CartItemModel, 0, len(items))
		for idx := range items {
			models = append(models, CartItemModelFromDomain(userID, &items[idx]))
		}
		return tx.Create(models).Error
	})
	if txErr != nil {
		return shared.NewNetworkError("replace cart", txErr)
	}
	return nil
}

// Clear removes the persisted snapshot for the identity
func (r *GormCartRepository) Clear(ctx context.Context, identity cart.Identity) error {
	userID, err := requireUser(identity)
	if err != nil {
		return err
	}

	result := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&CartItemModel{})
	if result.Error != nil {
		return shared.NewNetworkError("clear cart", result.Error)
	}
	return nil
}

func requireUser(identity cart.Identity) (uuid.UUID, error) {
	if !identity.IsAuthenticated() {
		return uuid.Nil, shared.NewSessionError("anonymous identity has no server-side cart")
	}
	return identity.UserID(), nil
}

// Ensure GormCartRepository implements cart.RemoteRepository
var _ cart.RemoteRepository = (*GormCartRepository)(nil)
