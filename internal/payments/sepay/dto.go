package sepay

import (
	"time"

	"github.com/shopspring/decimal"
)

// transactionDateLayout is what the gateway sends, local bank time.
const transactionDateLayout = "2006-01-02 15:04:05"

// WebhookPayload mirrors the Sepay webhook body field for field. Only a
// missing id is treated as a malformed delivery; everything else is stored
// as received.
type WebhookPayload struct {
	ID              int64           `json:"id"`
	Gateway         string          `json:"gateway"`
	TransactionDate string          `json:"transactionDate"`
	AccountNumber   string          `json:"accountNumber"`
	Code            *string         `json:"code"`
	Content         string          `json:"content"`
	TransferType    string          `json:"transferType"`
	TransferAmount  decimal.Decimal `json:"transferAmount"`
	Accumulated     decimal.Decimal `json:"accumulated"`
	SubAccount      *string         `json:"subAccount"`
	ReferenceCode   *string         `json:"referenceCode"`
	Description     *string         `json:"description"`
}

// parseTransactionDate tolerates malformed dates: the transaction is stored
// either way, just without a parsed timestamp.
func parseTransactionDate(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(transactionDateLayout, raw)
	if err != nil {
		return nil
	}
	return &t
}

// Outcome classifies what the reconciler did with a webhook delivery.
type Outcome string

const (
	// OutcomeApplied means the referenced order was marked paid.
	OutcomeApplied Outcome = "APPLIED"
	// OutcomeDuplicate means this sepay transaction id was seen before.
	OutcomeDuplicate Outcome = "DUPLICATE"
	// OutcomeUnmatched means no order reference was found in the content.
	OutcomeUnmatched Outcome = "UNMATCHED"
	// OutcomeRejected means an order was found but a guard blocked the apply.
	OutcomeRejected Outcome = "REJECTED"
)

// Result reports the reconciliation outcome for one delivery.
type Result struct {
	Outcome Outcome
	Reason  string
	// OrderCode is set when a reference was extracted from the content.
	OrderCode string
}

// PaymentInfo carries the bank transfer instructions for a pending order.
type PaymentInfo struct {
	BankName          string          `json:"bank_name"`
	AccountNumber     string          `json:"account_number"`
	AccountHolderName string          `json:"account_holder_name"`
	Amount            decimal.Decimal `json:"amount"`
	TransferContent   string          `json:"transfer_content"`
	QRImageURL        string          `json:"qr_image_url"`
}
