package alerting

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aave-hf-watcher/internal/fetcher"
)

var wallet = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func testComposer() Composer {
	return Composer{
		Retry:       60 * time.Second,
		Expire:      time.Hour,
		ActionURL:   "https://app.aave.com/",
		ActionLabel: "AAVE App",
	}
}

func testPosition(hf string) fetcher.Position {
	return fetcher.Position{
		Wallet:               wallet,
		HealthFactor:         decimal.RequireFromString(hf),
		TotalCollateral:      decimal.RequireFromString("10000"),
		TotalDebt:            decimal.RequireFromString("7500.5"),
		AvailableBorrows:     decimal.RequireFromString("499.5"),
		LiquidationThreshold: decimal.RequireFromString("82.5"),
		LoanToValue:          decimal.RequireFromString("80"),
		Utilization:          decimal.RequireFromString("75.005"),
	}
}

func TestComposeEmergency(t *testing.T) {
	req, err := testComposer().Compose(Emergency{
		Position:  testPosition("1.1049"),
		Threshold: decimal.RequireFromString("1.3"),
		Chain:     "arbitrum",
	})
	require.NoError(t, err)

	assert.Equal(t, KindEmergency, req.Kind)
	assert.Equal(t, PriorityEmergency, req.Priority)
	assert.Equal(t, "🚨 AAVE Alert: HF 1.10", req.Title)
	assert.Equal(t, 60*time.Second, req.Retry)
	assert.Equal(t, time.Hour, req.Expire)
	assert.Equal(t, "https://app.aave.com/", req.ActionURL)
	assert.NotEqual(t, uuid.Nil, req.ID)

	for _, want := range []string{
		"Health Factor: 1.10",
		"Threshold: 1.30",
		"Chain: arbitrum",
		"• Collateral: $10,000.00",
		"• Debt: $7,500.50",
		"• Available to Borrow: $499.50",
		"• Liquidation Threshold: 82.50%",
		"• Utilization: 75.01%",
		"• LTV: 80.00%",
		"Wallet: " + wallet.Hex(),
		liquidationWarning,
	} {
		assert.Contains(t, req.Message, want)
	}
}

func TestComposeReports(t *testing.T) {
	prices := fetcher.Prices{
		Primary:   fetcher.Price{Symbol: "ETH", FormattedPrice: "$3,456.78"},
		Secondary: fetcher.Price{Symbol: "BTC", FormattedPrice: "$65,000.12"},
	}

	morning, err := testComposer().Compose(Report{TimeOfDay: Morning, Position: testPosition("2.5"), Prices: prices, Chain: "ethereum"})
	require.NoError(t, err)
	assert.Equal(t, "☀️ Morning AAVE Report", morning.Title)
	assert.Equal(t, KindMorning, morning.Kind)
	assert.Equal(t, PriorityNormal, morning.Priority)
	assert.Zero(t, morning.Retry)
	assert.Zero(t, morning.Expire)
	assert.Contains(t, morning.Message, "Health Factor: 2.50")
	assert.Contains(t, morning.Message, "• ETH: $3,456.78")
	assert.Contains(t, morning.Message, "• BTC: $65,000.12")
	assert.Contains(t, morning.Message, "Chain: ethereum")
	assert.Contains(t, morning.Message, "Wallet: "+wallet.Hex())
	assert.NotContains(t, morning.Message, liquidationWarning)

	evening, err := testComposer().Compose(Report{TimeOfDay: Evening, Position: testPosition("2.5"), Prices: prices, Chain: "ethereum"})
	require.NoError(t, err)
	assert.Equal(t, "🌙 Evening AAVE Report", evening.Title)
	assert.Equal(t, KindEvening, evening.Kind)
}

func TestComposeRejectsUnknownTimeOfDay(t *testing.T) {
	_, err := testComposer().Compose(Report{TimeOfDay: "Noon", Position: testPosition("2")})
	assert.Error(t, err)
}

func TestComposeEmergencyRequiresHints(t *testing.T) {
	c := testComposer()
	c.Expire = 0
	_, err := c.Compose(Emergency{Position: testPosition("1.0"), Threshold: decimal.NewFromInt(1)})
	assert.Error(t, err)
}

func TestRequestValidate(t *testing.T) {
	req := reportRequest()
	req.Retry = time.Minute
	assert.Error(t, req.Validate(), "normal priority must not carry retry")

	assert.NoError(t, emergencyRequest().Validate())
	assert.NoError(t, reportRequest().Validate())
}
