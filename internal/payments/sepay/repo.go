package sepay

import (
	"context"

	"gorm.io/gorm"

	"github.com/mechastore/mecha-backend/pkg/db/models"
)

// Repository persists the webhook audit trail.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ExistsBySepayID(ctx context.Context, sepayID int64) (bool, error)
	Create(ctx context.Context, txn *models.SepayTransaction) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a sepay transaction repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ExistsBySepayID(ctx context.Context, sepayID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SepayTransaction{}).
		Where("sepay_id = ?", sepayID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) Create(ctx context.Context, txn *models.SepayTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}
