package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/mechastore/mecha-backend/pkg/enums"
)

// SearchFilters narrows the admin order listing. Nil fields match everything.
type SearchFilters struct {
	CustomerID    *uuid.UUID
	OrderCode     *string
	Status        *enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
	PaymentMethod *enums.PaymentMethod
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	Limit         int
	Offset        int
}

// StatusUpdateInput carries an admin-driven order state change.
type StatusUpdateInput struct {
	OrderID     uuid.UUID
	Status      enums.OrderStatus
	Note        *string
	ActorUserID uuid.UUID
}

// PaymentOverrideInput carries the operator correction of a payment status.
type PaymentOverrideInput struct {
	OrderID       uuid.UUID
	PaymentStatus enums.PaymentStatus
	Note          *string
	ActorUserID   uuid.UUID
}
