package format

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestUtilizationZeroCollateral(t *testing.T) {
	got := Utilization(decimal.NewFromInt(100), decimal.Zero)
	assert.True(t, got.IsZero(), "expected 0, got %s", got)

	got = Utilization(decimal.NewFromInt(100), decimal.NewFromInt(-5))
	assert.True(t, got.IsZero(), "negative collateral must floor to 0, got %s", got)
}

func TestUtilizationRatio(t *testing.T) {
	cases := []struct {
		debt, collateral string
		want             string
	}{
		{"0", "1000", "0.00"},
		{"250", "1000", "25.00"},
		{"1000", "1000", "100.00"},
		{"1500", "1000", "150.00"},
		{"1", "3", "33.33"},
	}
	for _, tc := range cases {
		got := Utilization(decimal.RequireFromString(tc.debt), decimal.RequireFromString(tc.collateral))
		assert.Equal(t, tc.want, got.StringFixed(2), "debt=%s collateral=%s", tc.debt, tc.collateral)
	}
}

func TestFixedPointScaling(t *testing.T) {
	hf, _ := new(big.Int).SetString("1523000000000000000", 10)
	assert.Equal(t, "1.52", FormatHealthFactor(HealthFactor(hf)))

	assert.Equal(t, "12345.678", BaseCurrency(big.NewInt(1234567800000)).String())
	assert.Equal(t, "82.5", Percent(big.NewInt(8250)).String())
	assert.True(t, FromFixed(nil, 18).IsZero())
}

func TestFormatHealthFactorUnbounded(t *testing.T) {
	assert.Equal(t, "∞", FormatHealthFactor(HealthFactor(math.MaxBig256)))
	assert.Equal(t, "1.30", FormatHealthFactor(decimal.RequireFromString("1.3")))
}

func TestFormatCurrencyAndPercent(t *testing.T) {
	assert.Equal(t, "$1,234.57", FormatCurrency(decimal.RequireFromString("1234.567")))
	assert.Equal(t, "$0.00", FormatCurrency(decimal.Zero))
	assert.Equal(t, "$65,000.00", FormatCurrency(decimal.NewFromInt(65000)))
	assert.Equal(t, "33.33%", FormatPercent(decimal.RequireFromString("33.333")))
}
