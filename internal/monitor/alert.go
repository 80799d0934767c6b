package monitor

import (
	"context"
	"math"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"aave-hf-watcher/internal/alerting"
	"aave-hf-watcher/internal/fetcher"
	"aave-hf-watcher/internal/format"
)

// AlertOutcome describes what one alert check did.
type AlertOutcome string

const (
	OutcomeSafe        AlertOutcome = "safe"
	OutcomeRecovered   AlertOutcome = "recovered"
	OutcomeAlerted     AlertOutcome = "alerted"
	OutcomeAlertFailed AlertOutcome = "alert_failed"
	OutcomeSuppressed  AlertOutcome = "suppressed"
	OutcomeFetchFailed AlertOutcome = "fetch_failed"
)

// AlertOptions configure the alert engine.
type AlertOptions struct {
	Wallet    common.Address
	Chain     string
	Threshold decimal.Decimal
	// Expire is both the emergency expire hint and the cooldown length.
	Expire time.Duration
}

// AlertEngine raises emergency notifications when the health factor drops
// below the threshold, at most once per cooldown window.
type AlertEngine struct {
	opts      AlertOptions
	positions fetcher.PositionSource
	composer  alerting.Composer
	notifier  alerting.Notifier
	state     *CooldownState
	hooks     Hooks
	logger    zerolog.Logger
}

// NewAlertEngine wires an engine around its own state object.
func NewAlertEngine(opts AlertOptions, positions fetcher.PositionSource, composer alerting.Composer, notifier alerting.Notifier, state *CooldownState, hooks Hooks, logger zerolog.Logger) *AlertEngine {
	if state == nil {
		state = &CooldownState{}
	}
	return &AlertEngine{
		opts:      opts,
		positions: positions,
		composer:  composer,
		notifier:  notifier,
		state:     state,
		hooks:     hooks,
		logger:    logger.With().Str("component", "alert_engine").Logger(),
	}
}

// State exposes the engine's cooldown state.
func (e *AlertEngine) State() *CooldownState {
	return e.state
}

// Check runs one evaluation at now. Errors are logged, never returned.
func (e *AlertEngine) Check(ctx context.Context, now time.Time) AlertOutcome {
	outcome := e.check(ctx, now)
	e.hooks.Metrics.ObserveAlert(string(outcome), e.state.Cooling())
	return outcome
}

func (e *AlertEngine) check(ctx context.Context, now time.Time) AlertOutcome {
	pos, err := e.positions.FetchPosition(ctx, e.opts.Wallet)
	if err != nil {
		e.hooks.Metrics.ObserveFetchError("position")
		e.logger.Error().Err(err).Msg("error checking health factor")
		return OutcomeFetchFailed
	}

	e.hooks.Metrics.ObservePosition(pos.HealthFactor, pos.Utilization)
	e.logger.Info().
		Str("health_factor", format.FormatHealthFactor(pos.HealthFactor)).
		Str("collateral", format.FormatCurrency(pos.TotalCollateral)).
		Str("debt", format.FormatCurrency(pos.TotalDebt)).
		Str("utilization", format.FormatPercent(pos.Utilization)).
		Str("liquidation_threshold", format.FormatPercent(pos.LiquidationThreshold)).
		Msg("health factor check")

	if e.hooks.Samples != nil {
		if err := e.hooks.Samples.RecordSample(ctx, pos); err != nil {
			e.logger.Error().Err(err).Msg("failed to record position sample")
		}
	}

	if !pos.HealthFactor.LessThan(e.opts.Threshold) {
		if e.state.Cooling() {
			e.state.clear()
			e.logger.Info().
				Str("health_factor", format.FormatHealthFactor(pos.HealthFactor)).
				Msg("health factor recovered above threshold")
			return OutcomeRecovered
		}
		return OutcomeSafe
	}

	e.logger.Warn().
		Str("current", format.FormatHealthFactor(pos.HealthFactor)).
		Str("threshold", format.FormatHealthFactor(e.opts.Threshold)).
		Str("utilization", format.FormatPercent(pos.Utilization)).
		Msg("health factor below threshold")

	if !e.state.allows(now) {
		next, _ := e.state.NextAllowedAt()
		remaining := int64(math.Ceil(next.Sub(now).Seconds()))
		e.logger.Info().
			Int64("remaining_seconds", remaining).
			Time("next_alert_allowed_at", next).
			Msgf("alert cooldown active, next alert allowed in %ds", remaining)
		return OutcomeSuppressed
	}

	return e.dispatch(ctx, now, pos)
}

// dispatch sends the emergency and enters the cooldown whether or not the
// send succeeded.
func (e *AlertEngine) dispatch(ctx context.Context, now time.Time, pos fetcher.Position) AlertOutcome {
	req, err := e.composer.Compose(alerting.Emergency{
		Position:  pos,
		Threshold: e.opts.Threshold,
		Chain:     e.opts.Chain,
	})
	if err == nil {
		err = e.notifier.Send(ctx, req)
		e.recordNotification(ctx, req, err, now)
	}

	next := now.Add(e.opts.Expire)
	e.state.enter(next)

	if err != nil {
		e.logger.Error().Err(err).Time("next_alert_allowed_at", next).Msg("failed to dispatch emergency alert")
		return OutcomeAlertFailed
	}

	e.logger.Info().
		Str("id", req.ID.String()).
		Dur("retry_interval", req.Retry).
		Dur("expiration", req.Expire).
		Time("next_alert_allowed_at", next).
		Msg("emergency alert sent")
	return OutcomeAlerted
}

func (e *AlertEngine) recordNotification(ctx context.Context, req alerting.Request, sendErr error, at time.Time) {
	if e.hooks.Notifications == nil {
		return
	}
	if err := e.hooks.Notifications.RecordNotification(ctx, req, sendErr, at); err != nil {
		e.logger.Error().Err(err).Str("id", req.ID.String()).Msg("failed to record notification")
	}
}
