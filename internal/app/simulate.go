package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"aave-hf-watcher/internal/alerting"
	"aave-hf-watcher/internal/fetcher"
	"aave-hf-watcher/internal/format"
	"aave-hf-watcher/internal/monitor"
)

// SimulateAlert 用给定的健康因子走一遍告警流程，并通过已配置的通道发送。
func (a *App) SimulateAlert(ctx context.Context, hf decimal.Decimal) error {
	notifier, err := a.newNotifier()
	if err != nil {
		return err
	}
	network, err := a.Config.Network()
	if err != nil {
		return err
	}
	return a.simulate(ctx, hf, network.Name, notifier)
}

func (a *App) simulate(ctx context.Context, hf decimal.Decimal, chainName string, notifier alerting.Notifier) error {
	threshold := a.threshold()
	if !hf.LessThan(threshold) {
		return fmt.Errorf("health factor %s is not below threshold %s", format.FormatHealthFactor(hf), format.FormatHealthFactor(threshold))
	}

	source := &staticPositionSource{pos: syntheticPosition(a.wallet(), hf)}
	engine := monitor.NewAlertEngine(monitor.AlertOptions{
		Wallet:    a.wallet(),
		Chain:     chainName,
		Threshold: threshold,
		Expire:    a.Config.Alerting.Pushover.Expire,
	}, source, a.composer(), notifier, nil, monitor.Hooks{}, a.Logger)

	if outcome := engine.Check(ctx, time.Now()); outcome != monitor.OutcomeAlerted {
		return fmt.Errorf("simulated alert not delivered: %s", outcome)
	}
	return nil
}

// syntheticPosition fills plausible account figures around hf with an 80%
// liquidation threshold.
func syntheticPosition(wallet common.Address, hf decimal.Decimal) fetcher.Position {
	collateral := decimal.NewFromInt(10000)
	lt := decimal.NewFromInt(80)
	debt := decimal.Zero
	if hf.IsPositive() {
		debt = collateral.Mul(lt).Div(decimal.NewFromInt(100)).Div(hf).Round(2)
	}
	return fetcher.Position{
		Wallet:               wallet,
		HealthFactor:         hf,
		TotalCollateral:      collateral,
		TotalDebt:            debt,
		AvailableBorrows:     decimal.Zero,
		LiquidationThreshold: lt,
		LoanToValue:          decimal.NewFromInt(75),
		Utilization:          format.Utilization(debt, collateral),
		FetchedAt:            time.Now().UTC(),
	}
}

type staticPositionSource struct {
	pos fetcher.Position
}

func (s *staticPositionSource) FetchPosition(context.Context, common.Address) (fetcher.Position, error) {
	return s.pos, nil
}

var _ fetcher.PositionSource = (*staticPositionSource)(nil)
