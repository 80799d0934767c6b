package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PositionSample is one persisted health-factor read.
type PositionSample struct {
	ID                   int64
	Wallet               string
	Chain                string
	HealthFactor         decimal.Decimal
	TotalCollateral      decimal.Decimal
	TotalDebt            decimal.Decimal
	Utilization          decimal.Decimal
	LiquidationThreshold decimal.Decimal
	BlockNumber          *int64
	SampledAt            time.Time
}

// NotificationRecord captures a dispatch attempt for auditing.
type NotificationRecord struct {
	ID       uuid.UUID
	Kind     string
	Title    string
	Priority int
	SentAt   time.Time
	Error    *string
}

// Delivered reports whether the attempt succeeded.
func (r NotificationRecord) Delivered() bool {
	return r.Error == nil
}
