// Package format turns raw on-chain fixed-point figures into display values.
package format

import (
	"math/big"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	// HealthFactorDecimals is the fixed-point scale of Aave health factors.
	HealthFactorDecimals = 18
	// BaseCurrencyDecimals is the scale of Aave base-currency (USD) amounts.
	BaseCurrencyDecimals = 8
	// PercentDecimals is the scale of Aave basis-point percentages.
	PercentDecimals = 2
)

var (
	hundred = decimal.NewFromInt(100)

	// Aave reports uint256 max for positions without debt; anything above
	// this bound is shown as unbounded.
	unboundedHealthFactor = decimal.New(1, 12)

	printer = message.NewPrinter(language.English)
)

// FromFixed scales a raw on-chain integer down by 10^decimals.
func FromFixed(raw *big.Int, decimals int32) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -decimals)
}

// HealthFactor scales a raw 1e18 health factor.
func HealthFactor(raw *big.Int) decimal.Decimal {
	return FromFixed(raw, HealthFactorDecimals)
}

// BaseCurrency scales a raw 1e8 currency amount.
func BaseCurrency(raw *big.Int) decimal.Decimal {
	return FromFixed(raw, BaseCurrencyDecimals)
}

// Percent scales a basis-point value (8250) into a 0-100 percentage (82.5).
func Percent(raw *big.Int) decimal.Decimal {
	return FromFixed(raw, PercentDecimals)
}

// Utilization returns debt/collateral*100, or zero when collateral <= 0.
func Utilization(totalDebt, totalCollateral decimal.Decimal) decimal.Decimal {
	if totalCollateral.Sign() <= 0 {
		return decimal.Zero
	}
	return totalDebt.Div(totalCollateral).Mul(hundred)
}

// FormatHealthFactor renders a health factor with two decimals.
func FormatHealthFactor(hf decimal.Decimal) string {
	if hf.GreaterThan(unboundedHealthFactor) {
		return "∞"
	}
	return hf.StringFixed(2)
}

// FormatCurrency renders a USD amount as $1,234.56.
func FormatCurrency(v decimal.Decimal) string {
	return "$" + printer.Sprintf("%.2f", v.Round(2).InexactFloat64())
}

// FormatPercent renders a 0-100 percentage as 12.34%.
func FormatPercent(v decimal.Decimal) string {
	return v.StringFixed(2) + "%"
}
