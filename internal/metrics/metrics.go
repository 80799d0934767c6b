// Package metrics exposes Prometheus collectors for the monitor. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const namespace = "hfwatcher"

// Metrics groups every collector the monitor updates.
type Metrics struct {
	Ticks          prometheus.Counter
	TickDuration   prometheus.Histogram
	HealthFactor   prometheus.Gauge
	Utilization    prometheus.Gauge
	AlertOutcomes  *prometheus.CounterVec
	ReportOutcomes *prometheus.CounterVec
	FetchErrors    *prometheus.CounterVec
	CooldownActive prometheus.Gauge
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Ticks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Number of poll loop iterations",
		}),
		TickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Wall time of one poll iteration, both engines included",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		HealthFactor: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "health_factor",
			Help:      "Last observed health factor",
		}),
		Utilization: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "utilization_percent",
			Help:      "Last observed debt/collateral ratio in percent",
		}),
		AlertOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alert",
			Name:      "checks_total",
			Help:      "Alert engine evaluations by outcome",
		}, []string{"outcome"}),
		ReportOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "dispatches_total",
			Help:      "Scheduled report attempts by slot and result",
		}, []string{"slot", "result"}),
		FetchErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Failed reads by source",
		}, []string{"source"}),
		CooldownActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "alert",
			Name:      "cooldown_active",
			Help:      "1 while emergency alerts are suppressed by the cooldown",
		}),
	}
}

// ObserveTick records one loop iteration.
func (m *Metrics) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.Ticks.Inc()
	m.TickDuration.Observe(d.Seconds())
}

// ObservePosition records the latest position figures.
func (m *Metrics) ObservePosition(hf, utilization decimal.Decimal) {
	if m == nil {
		return
	}
	m.HealthFactor.Set(hf.InexactFloat64())
	m.Utilization.Set(utilization.InexactFloat64())
}

// ObserveAlert records an alert engine outcome and the cooldown flag.
func (m *Metrics) ObserveAlert(outcome string, cooling bool) {
	if m == nil {
		return
	}
	m.AlertOutcomes.WithLabelValues(outcome).Inc()
	if cooling {
		m.CooldownActive.Set(1)
	} else {
		m.CooldownActive.Set(0)
	}
}

// ObserveReport records a report attempt.
func (m *Metrics) ObserveReport(slot, result string) {
	if m == nil {
		return
	}
	m.ReportOutcomes.WithLabelValues(slot, result).Inc()
}

// ObserveFetchError counts a failed read.
func (m *Metrics) ObserveFetchError(source string) {
	if m == nil {
		return
	}
	m.FetchErrors.WithLabelValues(source).Inc()
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("metrics endpoint listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
