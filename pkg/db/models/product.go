package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a physical catalog item with stock on hand. StockQuantity is
// mutated only by the inventory guard inside a checkout transaction.
type Product struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SKU           string             `gorm:"column:sku;not null;uniqueIndex"`
	Name          string             `gorm:"column:name;not null"`
	Description   *string            `gorm:"column:description"`
	UnitOfMeasure *string            `gorm:"column:unit_of_measure"`
	BasePrice     decimal.Decimal    `gorm:"column:base_price;type:numeric(14,2);not null"`
	StockQuantity int                `gorm:"column:stock_quantity;not null;default:0"`
	TierPrices    []ProductTierPrice `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// ProductTierPrice overrides the base price for a quantity range. A nil
// MaxQty means the range is open-ended.
type ProductTierPrice struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index"`
	MinQty    int             `gorm:"column:min_qty;not null"`
	MaxQty    *int            `gorm:"column:max_qty"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(14,2);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
