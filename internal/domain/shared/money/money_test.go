package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecimal(t *testing.T) {
	cases := map[string]int64{
		"150":    15000,
		"150.5":  15050,
		"150.05": 15005,
		"0.99":   99,
		"-2.50":  -250,
	}
	for raw, want := range cases {
		m, err := ParseDecimal(raw, "usd")
		require.NoError(t, err, raw)
		assert.Equal(t, want, m.Amount, raw)
		assert.Equal(t, "USD", m.Currency)
	}

	for _, bad := range []string{"", "abc", "1.234", "1.", ".5"} {
		_, err := ParseDecimal(bad, "USD")
		assert.ErrorIs(t, err, ErrInvalidAmount, bad)
	}
}

func TestDecimalFormatting(t *testing.T) {
	assert.Equal(t, "150.00", Must(15000, "USD").Decimal())
	assert.Equal(t, "0.05", Must(5, "USD").Decimal())
	assert.Equal(t, "12.34 EUR", Must(1234, "eur").String())
}

func TestArithmeticGuardsCurrency(t *testing.T) {
	usd := Must(10000, "USD")
	_, err := usd.Sub(Must(100, "EUR"))
	require.ErrorIs(t, err, ErrCurrencyMismatch)

	diff, err := usd.Sub(usd.Percent(10))
	require.NoError(t, err)
	assert.Equal(t, int64(9000), diff.Amount)
	assert.Equal(t, int64(3), Must(33, "USD").Percent(10).Amount)
	assert.True(t, usd.Percent(0).IsZero())
	assert.Equal(t, int64(30000), usd.Multiply(3).Amount)
}
