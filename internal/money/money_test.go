package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/tablepay/pkg/apperr"
)

func TestFormat(t *testing.T) {
	cases := []struct {
		amount string
		code   string
		want   string
	}{
		{"1234.5", "USD", "$1,234.50"},
		{"0", "USD", "$0.00"},
		{"12.5", "eur", "12,50 €"},
		{"1234567.891", "EUR", "1.234.567,89 €"},
		{"-30", "GBP", "-£30.00"},
		{"1500", "JPY", "¥1,500"},
		{"999.999", "CZK", "1 000,00 Kč"},
	}
	for _, tc := range cases {
		t.Run(tc.code+"_"+tc.amount, func(t *testing.T) {
			got, err := Format(decimal.RequireFromString(tc.amount), tc.code)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFormatUnknownCurrency(t *testing.T) {
	_, err := Format(decimal.NewFromInt(1), "XXX")
	require.ErrorIs(t, err, ErrUnknownCurrency)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	assert.Equal(t, "1.00 XXX", MustFormat(decimal.NewFromInt(1), "XXX"))
}

func TestMinorUnits(t *testing.T) {
	c := Default()

	minor, err := c.ToMinor(decimal.RequireFromString("346.50"), "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(34650), minor)

	minor, err = c.ToMinor(decimal.RequireFromString("1500"), "JPY")
	require.NoError(t, err)
	assert.Equal(t, int64(1500), minor)

	back, err := c.FromMinor(34650, "USD")
	require.NoError(t, err)
	assert.True(t, back.Equal(decimal.RequireFromString("346.5")))
}

func TestPercentRoundsToCents(t *testing.T) {
	assert.Equal(t, "30.00", Percent(decimal.NewFromInt(300), decimal.NewFromInt(10)).StringFixed(2))
	assert.Equal(t, "1.24", Percent(decimal.RequireFromString("10.33"), decimal.NewFromInt(12)).StringFixed(2))
}

func TestLoadCatalogRejectsMissingCode(t *testing.T) {
	_, err := LoadCatalog([]byte("currencies:\n  - symbol: \"$\"\n"))
	require.Error(t, err)
}
