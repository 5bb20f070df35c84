package enums

import "fmt"

// TransferDirection is the money flow reported by the payment gateway.
type TransferDirection string

const (
	TransferDirectionIn  TransferDirection = "in"
	TransferDirectionOut TransferDirection = "out"
)

var validTransferDirections = []TransferDirection{
	TransferDirectionIn,
	TransferDirectionOut,
}

// String implements fmt.Stringer.
func (t TransferDirection) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TransferDirection.
func (t TransferDirection) IsValid() bool {
	for _, candidate := range validTransferDirections {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransferDirection converts raw input into a TransferDirection.
func ParseTransferDirection(value string) (TransferDirection, error) {
	for _, candidate := range validTransferDirections {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transfer direction %q", value)
}
