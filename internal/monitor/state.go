// Package monitor holds the alert and scheduled-report engines together with
// the state each of them owns.
package monitor

import (
	"context"
	"time"

	"aave-hf-watcher/internal/alerting"
	"aave-hf-watcher/internal/fetcher"
	"aave-hf-watcher/internal/metrics"
)

// CooldownState is the alert engine's Normal/Cooling state. The zero value
// is Normal.
type CooldownState struct {
	nextAllowedAt time.Time
}

// Cooling reports whether a cooldown is set.
func (s *CooldownState) Cooling() bool {
	return !s.nextAllowedAt.IsZero()
}

// NextAllowedAt returns the end of the current cooldown window.
func (s *CooldownState) NextAllowedAt() (time.Time, bool) {
	return s.nextAllowedAt, s.Cooling()
}

func (s *CooldownState) allows(now time.Time) bool {
	return !s.Cooling() || !now.Before(s.nextAllowedAt)
}

func (s *CooldownState) enter(until time.Time) {
	s.nextAllowedAt = until
}

func (s *CooldownState) clear() {
	s.nextAllowedAt = time.Time{}
}

// ScheduleState records the local date (YYYY-MM-DD) each report last fired.
// Empty means never.
type ScheduleState struct {
	LastMorning string
	LastEvening string
}

func (s *ScheduleState) last(tod alerting.TimeOfDay) string {
	if tod == alerting.Evening {
		return s.LastEvening
	}
	return s.LastMorning
}

func (s *ScheduleState) mark(tod alerting.TimeOfDay, day string) {
	if tod == alerting.Evening {
		s.LastEvening = day
		return
	}
	s.LastMorning = day
}

// SampleRecorder persists position reads for history.
type SampleRecorder interface {
	RecordSample(ctx context.Context, pos fetcher.Position) error
}

// NotificationRecorder persists dispatch attempts for auditing.
type NotificationRecorder interface {
	RecordNotification(ctx context.Context, req alerting.Request, sendErr error, at time.Time) error
}

// Hooks are optional side channels; none of them influence state transitions.
type Hooks struct {
	Samples       SampleRecorder
	Notifications NotificationRecorder
	Metrics       *metrics.Metrics
}
