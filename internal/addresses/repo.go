package addresses

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mechastore/mecha-backend/pkg/db/models"
)

// Repository reads saved shipping addresses. Address management lives in the
// account service; checkout only needs ownership-scoped lookups.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOwned(ctx context.Context, userID, addressID uuid.UUID) (*models.ShippingAddress, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an addresses repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindOwned returns the address only when it belongs to userID. A hit on
// another user's address is indistinguishable from a miss.
func (r *repository) FindOwned(ctx context.Context, userID, addressID uuid.UUID) (*models.ShippingAddress, error) {
	var addr models.ShippingAddress
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", addressID, userID).
		First(&addr).Error
	if err != nil {
		return nil, err
	}
	return &addr, nil
}
