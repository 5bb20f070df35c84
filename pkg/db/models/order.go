package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mechastore/mecha-backend/pkg/enums"
)

// Order is the immutable record produced from a cart at checkout. Only
// Status, PaymentStatus and Note may change after creation; TotalAmount is
// frozen at creation regardless of later catalog price changes.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderCode       string              `gorm:"column:order_code;not null;uniqueIndex"`
	CustomerID      uuid.UUID           `gorm:"column:customer_id;type:uuid;not null;index"`
	TotalAmount     decimal.Decimal     `gorm:"column:total_amount;type:numeric(14,2);not null"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	PaymentStatus   enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'PENDING'"`
	Status          enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'PENDING'"`
	ShippingAddress string              `gorm:"column:shipping_address;not null"`
	ContactPhone    string              `gorm:"column:contact_phone;not null"`
	Note            *string             `gorm:"column:note"`
	Items           []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem is the frozen snapshot of a cart line. Never re-priced.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ItemKind  enums.ItemKind  `gorm:"column:item_kind;type:text;not null"`
	ProductID *uuid.UUID      `gorm:"column:product_id;type:uuid"`
	ServiceID *uuid.UUID      `gorm:"column:service_id;type:uuid"`
	ItemName  string          `gorm:"column:item_name;not null"`
	Quantity  int             `gorm:"column:quantity;not null"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(14,2);not null"`
	LineTotal decimal.Decimal `gorm:"column:line_total;type:numeric(14,2);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
