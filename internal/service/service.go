package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"aave-hf-watcher/internal/metrics"
	"aave-hf-watcher/internal/monitor"
	"aave-hf-watcher/internal/scheduler"
)

// AlertChecker is the alert engine as seen by the service.
type AlertChecker interface {
	Check(ctx context.Context, now time.Time) monitor.AlertOutcome
}

// ReportChecker is the scheduled report engine as seen by the service.
type ReportChecker interface {
	Check(ctx context.Context, now time.Time) []monitor.ReportResult
}

// Service runs both engines once per poll.
type Service struct {
	scheduler *scheduler.Scheduler
	alerts    AlertChecker
	reports   ReportChecker
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

// New constructs the monitoring service.
func New(sched *scheduler.Scheduler, alerts AlertChecker, reports ReportChecker, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		scheduler: sched,
		alerts:    alerts,
		reports:   reports,
		metrics:   m,
		logger:    logger.With().Str("component", "service").Logger(),
		now:       time.Now,
	}
}

// Run begins the poll loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.Tick)
}

// Tick 并发执行告警与日报两个引擎，任一失败都不影响另一个。
func (s *Service) Tick(ctx context.Context, started time.Time) error {
	var g errgroup.Group

	if s.alerts != nil {
		g.Go(func() error {
			s.runGuarded("alert", func() {
				outcome := s.alerts.Check(ctx, started)
				s.logger.Debug().Str("outcome", string(outcome)).Msg("alert check finished")
			})
			return nil
		})
	}
	if s.reports != nil {
		g.Go(func() error {
			s.runGuarded("report", func() {
				for _, r := range s.reports.Check(ctx, started) {
					ev := s.logger.Debug()
					if r.Err != nil {
						ev = s.logger.Warn().Err(r.Err)
					}
					ev.Str("slot", string(r.TimeOfDay)).Str("day", r.Day).Msg("scheduled report due")
				}
			})
			return nil
		})
	}

	_ = g.Wait()
	s.metrics.ObserveTick(s.now().Sub(started))
	return nil
}

// runGuarded keeps a panicking engine from taking the loop down.
func (s *Service) runGuarded(engine string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("engine", engine).Interface("panic", r).Msg("engine check panicked")
		}
	}()
	fn()
}
