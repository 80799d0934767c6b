package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"aave-hf-watcher/internal/alerting"
	"aave-hf-watcher/internal/fetcher"
)

const dateLayout = "2006-01-02"

// ReportOptions configure the scheduled report engine.
type ReportOptions struct {
	Wallet      common.Address
	Chain       string
	Feeds       fetcher.FeedPair
	MorningHour int
	EveningHour int
	Location    *time.Location
}

// ReportResult describes one slot that was due at a tick.
type ReportResult struct {
	TimeOfDay alerting.TimeOfDay
	Day       string
	Err       error
}

// ReportEngine sends the morning and evening reports, each at most once per
// local calendar day.
type ReportEngine struct {
	opts      ReportOptions
	positions fetcher.PositionSource
	prices    fetcher.PriceSource
	composer  alerting.Composer
	notifier  alerting.Notifier
	state     *ScheduleState
	hooks     Hooks
	logger    zerolog.Logger
}

// NewReportEngine wires an engine around its own state object.
func NewReportEngine(opts ReportOptions, positions fetcher.PositionSource, prices fetcher.PriceSource, composer alerting.Composer, notifier alerting.Notifier, state *ScheduleState, hooks Hooks, logger zerolog.Logger) *ReportEngine {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if state == nil {
		state = &ScheduleState{}
	}
	return &ReportEngine{
		opts:      opts,
		positions: positions,
		prices:    prices,
		composer:  composer,
		notifier:  notifier,
		state:     state,
		hooks:     hooks,
		logger:    logger.With().Str("component", "report_engine").Logger(),
	}
}

// State exposes the engine's schedule state.
func (e *ReportEngine) State() *ScheduleState {
	return e.state
}

// Check evaluates both slots at now and returns the ones that were due.
func (e *ReportEngine) Check(ctx context.Context, now time.Time) []ReportResult {
	local := now.In(e.opts.Location)
	hour := local.Hour()
	today := local.Format(dateLayout)

	var results []ReportResult
	for _, slot := range []struct {
		tod  alerting.TimeOfDay
		hour int
	}{
		{alerting.Morning, e.opts.MorningHour},
		{alerting.Evening, e.opts.EveningHour},
	} {
		if hour < slot.hour || e.state.last(slot.tod) == today {
			continue
		}
		err := e.fire(ctx, slot.tod, now)
		if err == nil {
			e.state.mark(slot.tod, today)
		}
		results = append(results, ReportResult{TimeOfDay: slot.tod, Day: today, Err: err})
	}
	return results
}

func (e *ReportEngine) fire(ctx context.Context, tod alerting.TimeOfDay, now time.Time) error {
	slot := string(tod.Kind())
	log := e.logger.With().Str("slot", slot).Logger()
	log.Info().Msg("sending scheduled notification")

	var (
		pos    fetcher.Position
		prices fetcher.Prices
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if pos, err = e.positions.FetchPosition(gctx, e.opts.Wallet); err != nil {
			e.hooks.Metrics.ObserveFetchError("position")
			return fmt.Errorf("fetch position: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if prices, err = e.prices.FetchPrices(gctx, e.opts.Feeds); err != nil {
			e.hooks.Metrics.ObserveFetchError("prices")
			return fmt.Errorf("fetch prices: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		e.hooks.Metrics.ObserveReport(slot, "fetch_failed")
		log.Error().Err(err).Msg("error sending scheduled notification")
		return err
	}

	req, err := e.composer.Compose(alerting.Report{
		TimeOfDay: tod,
		Position:  pos,
		Prices:    prices,
		Chain:     e.opts.Chain,
	})
	if err != nil {
		e.hooks.Metrics.ObserveReport(slot, "compose_failed")
		log.Error().Err(err).Msg("error composing scheduled notification")
		return err
	}

	err = e.notifier.Send(ctx, req)
	if e.hooks.Notifications != nil {
		if recErr := e.hooks.Notifications.RecordNotification(ctx, req, err, now); recErr != nil {
			log.Error().Err(recErr).Str("id", req.ID.String()).Msg("failed to record notification")
		}
	}
	if err != nil {
		e.hooks.Metrics.ObserveReport(slot, "send_failed")
		log.Error().Err(err).Msg("error sending scheduled notification")
		return fmt.Errorf("send %s report: %w", slot, err)
	}

	e.hooks.Metrics.ObserveReport(slot, "sent")
	log.Info().Str("id", req.ID.String()).Msg("scheduled notification sent")
	return nil
}
