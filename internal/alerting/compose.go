package alerting

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"aave-hf-watcher/internal/fetcher"
	"aave-hf-watcher/internal/format"
)

// Kind tags the notification variant.
type Kind string

const (
	KindEmergency Kind = "emergency"
	KindMorning   Kind = "morning"
	KindEvening   Kind = "evening"
)

// TimeOfDay labels a scheduled report.
type TimeOfDay string

const (
	Morning TimeOfDay = "Morning"
	Evening TimeOfDay = "Evening"
)

// Kind maps the time of day onto its notification kind.
func (t TimeOfDay) Kind() Kind {
	if t == Evening {
		return KindEvening
	}
	return KindMorning
}

const liquidationWarning = "⚠️ Your position is at risk of liquidation. Take action immediately!"

// Notification is either an Emergency or a Report.
type Notification interface {
	notificationKind() Kind
}

// Emergency is raised when the health factor drops below the threshold.
type Emergency struct {
	Position  fetcher.Position
	Threshold decimal.Decimal
	Chain     string
}

func (Emergency) notificationKind() Kind { return KindEmergency }

// Report is the scheduled informational summary.
type Report struct {
	TimeOfDay TimeOfDay
	Position  fetcher.Position
	Prices    fetcher.Prices
	Chain     string
}

func (r Report) notificationKind() Kind { return r.TimeOfDay.Kind() }

// Composer turns notifications into requests.
type Composer struct {
	Retry       time.Duration
	Expire      time.Duration
	ActionURL   string
	ActionLabel string
}

// Compose builds the request for n.
func (c Composer) Compose(n Notification) (Request, error) {
	var req Request
	switch v := n.(type) {
	case Emergency:
		req = Request{
			Title:    fmt.Sprintf("🚨 AAVE Alert: HF %s", format.FormatHealthFactor(v.Position.HealthFactor)),
			Message:  emergencyMessage(v),
			Priority: PriorityEmergency,
			Retry:    c.Retry,
			Expire:   c.Expire,
		}
	case Report:
		if v.TimeOfDay != Morning && v.TimeOfDay != Evening {
			return Request{}, fmt.Errorf("unknown report time of day %q", v.TimeOfDay)
		}
		req = Request{
			Title:    reportTitle(v.TimeOfDay),
			Message:  reportMessage(v),
			Priority: PriorityNormal,
		}
	default:
		return Request{}, fmt.Errorf("unsupported notification %T", n)
	}

	req.ID = uuid.New()
	req.Kind = n.notificationKind()
	req.ActionURL = c.ActionURL
	req.ActionLabel = c.ActionLabel
	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

func emergencyMessage(e Emergency) string {
	p := e.Position
	b := strings.Builder{}
	b.WriteString("🚨 AAVE Health Factor Alert\n\n")
	b.WriteString(fmt.Sprintf("Health Factor: %s\n", format.FormatHealthFactor(p.HealthFactor)))
	b.WriteString(fmt.Sprintf("Threshold: %s\n", format.FormatHealthFactor(e.Threshold)))
	b.WriteString(fmt.Sprintf("Chain: %s\n\n", e.Chain))
	b.WriteString("Account Details:\n")
	b.WriteString(fmt.Sprintf("• Collateral: %s\n", format.FormatCurrency(p.TotalCollateral)))
	b.WriteString(fmt.Sprintf("• Debt: %s\n", format.FormatCurrency(p.TotalDebt)))
	b.WriteString(fmt.Sprintf("• Available to Borrow: %s\n", format.FormatCurrency(p.AvailableBorrows)))
	b.WriteString(fmt.Sprintf("• Liquidation Threshold: %s\n", format.FormatPercent(p.LiquidationThreshold)))
	b.WriteString(fmt.Sprintf("• Utilization: %s\n", format.FormatPercent(p.Utilization)))
	b.WriteString(fmt.Sprintf("• LTV: %s\n\n", format.FormatPercent(p.LoanToValue)))
	b.WriteString(fmt.Sprintf("Wallet: %s\n\n", p.Wallet.Hex()))
	b.WriteString(liquidationWarning)
	return b.String()
}

func reportTitle(tod TimeOfDay) string {
	emoji := "☀️"
	if tod == Evening {
		emoji = "🌙"
	}
	return fmt.Sprintf("%s %s AAVE Report", emoji, tod)
}

func reportMessage(r Report) string {
	b := strings.Builder{}
	b.WriteString(fmt.Sprintf("📊 %s AAVE Report\n\n", r.TimeOfDay))
	b.WriteString(fmt.Sprintf("Health Factor: %s\n\n", format.FormatHealthFactor(r.Position.HealthFactor)))
	b.WriteString("Market Prices:\n")
	b.WriteString(fmt.Sprintf("• %s: %s\n", r.Prices.Primary.Symbol, r.Prices.Primary.FormattedPrice))
	b.WriteString(fmt.Sprintf("• %s: %s\n\n", r.Prices.Secondary.Symbol, r.Prices.Secondary.FormattedPrice))
	b.WriteString(fmt.Sprintf("Chain: %s\n", r.Chain))
	b.WriteString(fmt.Sprintf("Wallet: %s", r.Position.Wallet.Hex()))
	return b.String()
}
