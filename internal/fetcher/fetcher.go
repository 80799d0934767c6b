package fetcher

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Position is one read of the account's risk figures. Percent fields are in
// the 0-100 range.
type Position struct {
	Wallet               common.Address
	HealthFactor         decimal.Decimal
	TotalCollateral      decimal.Decimal
	TotalDebt            decimal.Decimal
	AvailableBorrows     decimal.Decimal
	LiquidationThreshold decimal.Decimal
	LoanToValue          decimal.Decimal
	Utilization          decimal.Decimal
	BlockNumber          uint64
	FetchedAt            time.Time
}

// Price is one reference asset quote in USD.
type Price struct {
	Symbol         string
	Price          decimal.Decimal
	FormattedPrice string
	UpdatedAt      time.Time
}

// Prices holds the two tracked reference assets.
type Prices struct {
	Primary   Price
	Secondary Price
}

// Feed identifies a Chainlink aggregator.
type Feed struct {
	Symbol  string
	Address common.Address
}

// FeedPair names the primary and secondary reference feeds.
type FeedPair struct {
	Primary   Feed
	Secondary Feed
}

// PositionSource reads the lending position of a wallet.
type PositionSource interface {
	FetchPosition(ctx context.Context, wallet common.Address) (Position, error)
}

// PriceSource reads the reference asset prices.
type PriceSource interface {
	FetchPrices(ctx context.Context, feeds FeedPair) (Prices, error)
}
