package app

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"aave-hf-watcher/internal/fetcher"
	"aave-hf-watcher/internal/format"
)

// Check reads the position and prices once and prints them.
func (a *App) Check(ctx context.Context, w io.Writer) error {
	r, err := a.newReaders()
	if err != nil {
		return err
	}
	defer r.client.Close()

	var (
		pos    fetcher.Position
		prices fetcher.Prices
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pos, err = r.positions.FetchPosition(gctx, a.wallet())
		return err
	})
	g.Go(func() error {
		var err error
		prices, err = r.prices.FetchPrices(gctx, a.feeds(r.network))
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	return printSnapshot(w, r.network.Name, a.threshold(), pos, prices)
}

func printSnapshot(w io.Writer, chainName string, threshold decimal.Decimal, pos fetcher.Position, prices fetcher.Prices) error {
	status := "OK"
	if pos.HealthFactor.LessThan(threshold) {
		status = "BELOW THRESHOLD"
	}

	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	rows := [][2]string{
		{"Wallet", pos.Wallet.Hex()},
		{"Chain", chainName},
		{"Block", fmt.Sprintf("%d", pos.BlockNumber)},
		{"Health Factor", format.FormatHealthFactor(pos.HealthFactor)},
		{"Threshold", format.FormatHealthFactor(threshold)},
		{"Status", status},
		{"Collateral", format.FormatCurrency(pos.TotalCollateral)},
		{"Debt", format.FormatCurrency(pos.TotalDebt)},
		{"Available to Borrow", format.FormatCurrency(pos.AvailableBorrows)},
		{"Liquidation Threshold", format.FormatPercent(pos.LiquidationThreshold)},
		{"LTV", format.FormatPercent(pos.LoanToValue)},
		{"Utilization", format.FormatPercent(pos.Utilization)},
		{prices.Primary.Symbol, prices.Primary.FormattedPrice},
		{prices.Secondary.Symbol, prices.Secondary.FormattedPrice},
	}
	for _, row := range rows {
		fmt.Fprintf(writer, "%s\t%s\n", row[0], row[1])
	}
	if !pos.FetchedAt.IsZero() {
		fmt.Fprintf(writer, "Fetched (UTC)\t%s\n", pos.FetchedAt.UTC().Format(time.RFC3339))
	}
	return writer.Flush()
}
