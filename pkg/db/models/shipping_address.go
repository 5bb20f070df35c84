package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ShippingAddress is a saved delivery address owned by a user. The address
// book itself is managed elsewhere; checkout only reads these rows.
type ShippingAddress struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	AddressLine string    `gorm:"column:address_line;not null"`
	Ward        string    `gorm:"column:ward"`
	District    string    `gorm:"column:district"`
	City        string    `gorm:"column:city"`
	Phone       string    `gorm:"column:phone;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// FullText joins the non-blank address components into the single line
// recorded on an order.
func (a *ShippingAddress) FullText() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{a.AddressLine, a.Ward, a.District, a.City} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, strings.TrimSpace(p))
		}
	}
	return strings.Join(parts, ", ")
}
