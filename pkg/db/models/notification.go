package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification is an in-app message for a user, written in the same
// transaction as the event that produced it.
type Notification struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index"`
	OrderID   *uuid.UUID `gorm:"column:order_id;type:uuid"`
	Title     string     `gorm:"column:title;not null"`
	Body      string     `gorm:"column:body;not null"`
	ReadAt    *time.Time `gorm:"column:read_at"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}
