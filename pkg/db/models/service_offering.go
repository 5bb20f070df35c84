package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mechastore/mecha-backend/pkg/enums"
)

// ServiceOffering is a workshop service sold alongside products. Services
// carry no stock and always price at BasePrice.
type ServiceOffering struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string              `gorm:"column:name;not null"`
	Description *string             `gorm:"column:description"`
	BasePrice   decimal.Decimal     `gorm:"column:base_price;type:numeric(14,2);not null"`
	Status      enums.ServiceStatus `gorm:"column:status;type:text;not null;default:'ACTIVE'"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
