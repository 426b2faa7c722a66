package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// Account numbers are 12 digits: a non-zero leading digit, ten random digits
// and a Luhn check digit, so downstream systems can cheap-check typos the
// same way card networks do.
const accountNumberLength = 12

// NewAccountNumber generates a fresh account number. Uniqueness is enforced
// by the store's unique constraint, not here; collisions over a 10^11 space
// surface as a conflict on insert.
func NewAccountNumber() (string, error) {
	digits := make([]byte, 0, accountNumberLength)

	first, err := randDigit(9)
	if err != nil {
		return "", err
	}
	digits = append(digits, '1'+first)

	for i := 1; i < accountNumberLength-1; i++ {
		d, err := randDigit(10)
		if err != nil {
			return "", err
		}
		digits = append(digits, '0'+d)
	}

	digits = append(digits, luhnCheckDigit(string(digits)))
	return string(digits), nil
}

// ValidAccountNumber checks length, digit content and the Luhn check digit.
func ValidAccountNumber(number string) bool {
	if len(number) != accountNumberLength {
		return false
	}
	for _, r := range number {
		if r < '0' || r > '9' {
			return false
		}
	}
	return luhnCheckDigit(number[:accountNumberLength-1]) == number[accountNumberLength-1]
}

// NewTransactionNumber produces a system-generated idempotency key for
// callers that do not supply their own.
func NewTransactionNumber() string {
	return "txn-" + uuid.NewString()
}

func randDigit(n int64) (byte, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0, fmt.Errorf("account number entropy: %w", err)
	}
	return byte(v.Int64()), nil
}

// luhnCheckDigit computes the mod-10 check digit for a digit string.
func luhnCheckDigit(digits string) byte {
	sum := 0
	double := true
	for i := len(digits) - 1; i >= 0; i-- {
		n := int(digits[i] - '0')
		if double {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		double = !double
	}
	return byte('0' + (10-sum%10)%10)
}
