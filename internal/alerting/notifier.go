package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Priority mirrors the Pushover priority scale.
type Priority int

const (
	PriorityNormal    Priority = 0
	PriorityEmergency Priority = 2
)

func (p Priority) String() string {
	switch p {
	case PriorityEmergency:
		return "emergency"
	case PriorityNormal:
		return "normal"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// Request 是一次推送的完整内容。Retry/Expire 仅在紧急优先级时设置。
type Request struct {
	ID          uuid.UUID
	Kind        Kind
	Title       string
	Message     string
	Priority    Priority
	Retry       time.Duration
	Expire      time.Duration
	ActionURL   string
	ActionLabel string
}

// Validate enforces that retry/expire accompany emergency priority only.
func (r Request) Validate() error {
	if r.Title == "" || r.Message == "" {
		return errors.New("notification title and message are required")
	}
	emergency := r.Priority == PriorityEmergency
	hasHints := r.Retry > 0 || r.Expire > 0
	if emergency && (r.Retry <= 0 || r.Expire <= 0) {
		return errors.New("emergency notification requires retry and expire")
	}
	if !emergency && hasHints {
		return fmt.Errorf("%s notification must not carry retry/expire", r.Priority)
	}
	return nil
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Send(ctx context.Context, req Request) error
}

// Named pairs a notifier with its channel name for logging.
type Named struct {
	Channel  string
	Notifier Notifier
}

// Fanout delivers to every channel. It fails only when no channel accepted
// the request, so a partially delivered report is not re-sent.
type Fanout struct {
	targets []Named
	logger  zerolog.Logger
}

// NewFanout builds a multi-channel notifier.
func NewFanout(logger zerolog.Logger, targets ...Named) *Fanout {
	return &Fanout{targets: targets, logger: logger.With().Str("component", "alert_fanout").Logger()}
}

// Send delivers req to every configured channel.
func (f *Fanout) Send(ctx context.Context, req Request) error {
	if len(f.targets) == 0 {
		return errors.New("no notification channels configured")
	}

	var errs []error
	for _, t := range f.targets {
		if err := t.Notifier.Send(ctx, req); err != nil {
			f.logger.Error().Err(err).Str("channel", t.Channel).Str("id", req.ID.String()).Msg("channel delivery failed")
			errs = append(errs, fmt.Errorf("%s: %w", t.Channel, err))
		}
	}
	if len(errs) == len(f.targets) {
		return errors.Join(errs...)
	}
	return nil
}

var _ Notifier = (*Fanout)(nil)
