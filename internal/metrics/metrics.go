// Package metrics records backtest and optimizer activity as Prometheus
// collectors. A nil *Recorder is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tradelab"

// Recorder holds the collectors on a private registry.
type Recorder struct {
	reg *prometheus.Registry

	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	trades        *prometheus.CounterVec
	skipped       *prometheus.CounterVec
	trials        *prometheus.CounterVec
	trialDuration prometheus.Histogram
}

// New creates a Recorder registered on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		runs: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backtest_runs_total",
				Help:      "Backtest runs by strategy and outcome.",
			},
			[]string{"strategy", "outcome"},
		),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backtest_run_duration_seconds",
			Help:      "Wall time of a single backtest run.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
		trades: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backtest_trades_total",
				Help:      "Executed simulated trades by side and reason.",
			},
			[]string{"side", "reason"},
		),
		skipped: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backtest_skipped_orders_total",
				Help:      "Orders skipped as unaffordable or unfillable.",
			},
			[]string{"side"},
		),
		trials: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "optimizer_trials_total",
				Help:      "Optimizer trials by final status.",
			},
			[]string{"status"},
		),
		trialDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "optimizer_trial_duration_seconds",
			Help:      "Wall time of a single optimizer trial.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
	}
}

// Registry exposes the underlying registry for gathering.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// RecordRun counts one finished run. outcome is "ok" or "error".
func (r *Recorder) RecordRun(strategy, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(strategy, outcome).Inc()
	r.runDuration.Observe(d.Seconds())
}

func (r *Recorder) RecordTrade(side, reason string) {
	if r == nil {
		return
	}
	r.trades.WithLabelValues(side, reason).Inc()
}

func (r *Recorder) RecordSkipped(side string) {
	if r == nil {
		return
	}
	r.skipped.WithLabelValues(side).Inc()
}

// RecordTrial counts one optimizer trial with its status and wall time.
func (r *Recorder) RecordTrial(status string, d time.Duration) {
	if r == nil {
		return
	}
	r.trials.WithLabelValues(status).Inc()
	r.trialDuration.Observe(d.Seconds())
}

// WriteTextfile writes every collected metric to path in the text exposition
// format read by the node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.reg)
}
