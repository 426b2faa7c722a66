package domain_test

import (
	"strings"
	"testing"

	"ledger-engine/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccountNumber(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		n, err := domain.NewAccountNumber()
		require.NoError(t, err)
		assert.Len(t, n, 12)
		assert.True(t, domain.ValidAccountNumber(n), "generated number must pass its own check: %s", n)
		assert.NotEqual(t, byte('0'), n[0], "account numbers must not have a leading zero")
		seen[n] = true
	}
	assert.Greater(t, len(seen), 190, "200 draws from a 10^11 space should not collide")
}

func TestValidAccountNumber(t *testing.T) {
	n, err := domain.NewAccountNumber()
	require.NoError(t, err)

	// Any single-digit corruption must break the Luhn check digit.
	for i := 0; i < len(n); i++ {
		corrupted := []byte(n)
		corrupted[i] = '0' + (corrupted[i]-'0'+1)%10
		assert.False(t, domain.ValidAccountNumber(string(corrupted)), "corruption at %d accepted", i)
	}

	assert.False(t, domain.ValidAccountNumber(""))
	assert.False(t, domain.ValidAccountNumber("12345"))
	assert.False(t, domain.ValidAccountNumber("12345678901a"))
}

func TestNewTransactionNumber(t *testing.T) {
	a := domain.NewTransactionNumber()
	b := domain.NewTransactionNumber()
	assert.True(t, strings.HasPrefix(a, "txn-"))
	assert.NotEqual(t, a, b)
}

func TestNormalizeCurrency(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "usd", want: "USD"},
		{in: " TZS ", want: "TZS"},
		{in: "EUR", want: "EUR"},
		{in: "eu", wantErr: true},
		{in: "euro", wantErr: true},
		{in: "e1r", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := domain.NormalizeCurrency(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, domain.ErrValidation, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestValidAmount(t *testing.T) {
	assert.True(t, domain.ValidAmount(decimal.RequireFromString("0.01")))
	assert.True(t, domain.ValidAmount(decimal.RequireFromString("100")))
	assert.False(t, domain.ValidAmount(decimal.Zero))
	assert.False(t, domain.ValidAmount(decimal.RequireFromString("-5")))
	assert.False(t, domain.ValidAmount(decimal.RequireFromString("1.005")), "sub-cent amounts are not representable")
}
