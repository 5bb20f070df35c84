package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mechastore/mecha-backend/pkg/enums"
)

// User is the thin projection of the identity service's account record that
// orders and carts reference by id.
type User struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email     string         `gorm:"column:email;not null;uniqueIndex"`
	FullName  string         `gorm:"column:full_name;not null"`
	Role      enums.UserRole `gorm:"column:role;type:text;not null;default:'CUSTOMER'"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
