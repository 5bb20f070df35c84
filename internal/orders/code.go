package orders

import (
	"strings"

	"github.com/google/uuid"
)

const codePrefix = "ORD-"

// NewOrderCode mints a customer-facing order code: ORD- followed by the first
// eight characters of a random UUID, uppercased. Collisions are caught by the
// unique index on order_code.
func NewOrderCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return codePrefix + strings.ToUpper(raw[:8])
}
