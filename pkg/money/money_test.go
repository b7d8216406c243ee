package money

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCurrency(t *testing.T) {
	t.Run("valid codes", func(t *testing.T) {
		for _, code := range []string{"KES", "UGX", "TZS", "USD"} {
			c, err := NewCurrency(code)
			require.NoError(t, err)
			assert.Equal(t, code, c.Code())
		}
	})

	t.Run("invalid codes", func(t *testing.T) {
		for _, code := range []string{"", "kes", "Kes", "KE", "KESH", "K3S"} {
			_, err := NewCurrency(code)
			assert.Error(t, err, "code %q", code)
		}
	})

	t.Run("must panics on bad code", func(t *testing.T) {
		assert.Panics(t, func() { MustCurrency("bad") })
	})
}

func TestNewFromString(t *testing.T) {
	m, err := NewFromString("1250.50", "KES")
	require.NoError(t, err)
	assert.True(t, m.Amount().Equal(decimal.RequireFromString("1250.5")))
	assert.Equal(t, KES, m.Currency())

	_, err = NewFromString("abc", "KES")
	assert.Error(t, err)

	_, err = NewFromString("10", "shilling")
	assert.Error(t, err)
}

func TestMoneyArithmetic(t *testing.T) {
	a := New(decimal.NewFromInt(400), KES)
	b := New(decimal.NewFromInt(150), KES)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.True(t, sum.Equal(New(decimal.NewFromInt(550), KES)))

	diff, err := a.Subtract(b)
	require.NoError(t, err)
	assert.Equal(t, "250.00 KES", diff.String())

	_, err = a.Add(New(decimal.NewFromInt(1), UGX))
	assert.True(t, errors.Is(err, ErrCurrencyMismatch))

	_, err = a.Subtract(New(decimal.NewFromInt(1), USD))
	assert.True(t, errors.Is(err, ErrCurrencyMismatch))
}

func TestMoneyPredicates(t *testing.T) {
	assert.True(t, Zero(KES).IsZero())
	assert.False(t, Zero(KES).IsPositive())
	assert.True(t, New(decimal.NewFromFloat(0.01), KES).IsPositive())
	assert.False(t, New(decimal.NewFromInt(5), KES).Equal(New(decimal.NewFromInt(5), TZS)))
	assert.True(t, Currency{}.IsZero())
}
