package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveTick(time.Second)
		m.ObservePosition(decimal.NewFromInt(1), decimal.Zero)
		m.ObserveAlert("alerted", true)
		m.ObserveReport("morning", "sent")
		m.ObserveFetchError("position")
	})
}

func TestObserve(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveTick(200 * time.Millisecond)
	m.ObservePosition(decimal.RequireFromString("1.25"), decimal.RequireFromString("60"))
	m.ObserveAlert("alerted", true)
	m.ObserveAlert("suppressed", true)
	m.ObserveReport("morning", "sent")
	m.ObserveFetchError("prices")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Ticks))
	assert.Equal(t, 1.25, testutil.ToFloat64(m.HealthFactor))
	assert.Equal(t, 60.0, testutil.ToFloat64(m.Utilization))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertOutcomes.WithLabelValues("alerted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CooldownActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReportOutcomes.WithLabelValues("morning", "sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchErrors.WithLabelValues("prices")))

	m.ObserveAlert("recovered", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.CooldownActive))
}
