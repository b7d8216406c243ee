package valueobject

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of decimal places every stored money column keeps.
const AmountScale = 2

// ValidateAmount rejects amounts that are not positive or that carry more
// precision than AmountScale.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: got %s", ErrInvalidAmount, amount)
	}
	if !amount.Equal(amount.Truncate(AmountScale)) {
		return fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, amount, AmountScale)
	}
	return nil
}
