package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mechastore/mecha-backend/pkg/db/models"
)

// Repository exposes catalog reads used by the cart and checkout flows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindServiceByID(ctx context.Context, id uuid.UUID) (*models.ServiceOffering, error)
	ListProducts(ctx context.Context, limit, offset int) ([]models.Product, error)
	ListActiveServices(ctx context.Context, limit, offset int) ([]models.ServiceOffering, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("TierPrices").
		Where("id = ?", id).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) FindServiceByID(ctx context.Context, id uuid.UUID) (*models.ServiceOffering, error) {
	var svc models.ServiceOffering
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&svc).Error
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

func (r *repository) ListProducts(ctx context.Context, limit, offset int) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Preload("TierPrices").
		Order("name ASC").
		Limit(limit).
		Offset(offset).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repository) ListActiveServices(ctx context.Context, limit, offset int) ([]models.ServiceOffering, error) {
	var services []models.ServiceOffering
	err := r.db.WithContext(ctx).
		Where("status = ?", "ACTIVE").
		Order("name ASC").
		Limit(limit).
		Offset(offset).
		Find(&services).Error
	if err != nil {
		return nil, err
	}
	return services, nil
}
