package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mechastore/mecha-backend/pkg/db/models"
)

// Repository manages stock levels for physical products.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	StockFor(ctx context.Context, productID uuid.UUID) (int, error)
	// Decrement atomically subtracts qty from the product's stock. It
	// returns false when the remaining stock is insufficient; nothing is
	// changed in that case.
	Decrement(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
	Restock(ctx context.Context, productID uuid.UUID, qty int) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) StockFor(ctx context.Context, productID uuid.UUID) (int, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Select("stock_quantity").
		Where("id = ?", productID).
		First(&product).Error
	if err != nil {
		return 0, err
	}
	return product.StockQuantity, nil
}

func (r *repository) Decrement(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock_quantity >= ?", productID, qty).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Restock(ctx context.Context, productID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity + ?", qty)).Error
}
