package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrTooManyDecimals = errors.New("amount has more than two decimal places")
)

// ParseMinor parses a decimal money string ("500.00") into minor units
// (50000). Two decimal places at most.
func ParseMinor(input string) (int64, error) {
	amount, err := decimal.NewFromString(input)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if amount.Exponent() < -2 {
		return 0, ErrTooManyDecimals
	}
	return amount.Shift(2).IntPart(), nil
}

func FormatMinor(value int64) string {
	negative := value < 0
	if negative {
		value = -value
	}
	formatted := fmt.Sprintf("%d.%02d", value/100, value%100)
	if negative {
		return "-" + formatted
	}
	return formatted
}
