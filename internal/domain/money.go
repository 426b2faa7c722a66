package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// NormalizeCurrency upper-cases and validates a 3-letter currency code.
func NormalizeCurrency(cur string) (string, error) {
	cur = strings.ToUpper(strings.TrimSpace(cur))
	if len(cur) != 3 {
		return "", fmt.Errorf("%w: currency must be a 3-letter code", ErrValidation)
	}
	for _, r := range cur {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("%w: currency must be a 3-letter code", ErrValidation)
		}
	}
	return cur, nil
}

// ValidAmount reports whether amount is usable for a transaction: strictly
// positive and within the two-decimal scale the ledger persists.
func ValidAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Exponent() >= -2
}
