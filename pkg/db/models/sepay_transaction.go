package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SepayTransaction stores every webhook delivery from the Sepay gateway,
// matched or not. SepayID carries the gateway's own transaction id and is
// the dedup key: redeliveries insert nothing.
type SepayTransaction struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SepayID           int64           `gorm:"column:sepay_id;not null;uniqueIndex"`
	Gateway           string          `gorm:"column:gateway"`
	TransactionDate   *time.Time      `gorm:"column:transaction_date"`
	AccountNumber     string          `gorm:"column:account_number"`
	Code              *string         `gorm:"column:code"`
	Content           string          `gorm:"column:content"`
	TransferType      string          `gorm:"column:transfer_type;not null"`
	TransferAmount    decimal.Decimal `gorm:"column:transfer_amount;type:numeric(14,2);not null"`
	Accumulated       decimal.Decimal `gorm:"column:accumulated;type:numeric(14,2)"`
	SubAccount        *string         `gorm:"column:sub_account"`
	ReferenceCode     *string         `gorm:"column:reference_code"`
	Description       *string         `gorm:"column:description"`
	OrderID           *uuid.UUID      `gorm:"column:order_id;type:uuid;index"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
}
