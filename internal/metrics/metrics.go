// Package metrics exposes the dosing subsystem's Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DosesExecuted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reefdb_doses_executed_total",
		Help: "Doses successfully triggered (and confirmed, when a doser is bound).",
	})
	DosesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reefdb_doses_failed_total",
		Help: "Doses that failed at the trigger or confirmation step.",
	})
	DosesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reefdb_doses_skipped_total",
		Help: "Doses dropped before firing, by reason.",
	}, []string{"reason"})
	QueueSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reefdb_dose_queue_size",
		Help: "Entries currently in the dose queue.",
	})
	DoseLateness = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reefdb_dose_lateness_seconds",
		Help:    "How late doses reach the executor relative to their planned time.",
		Buckets: []float64{0.1, 1, 5, 15, 30, 60, 120, 300, 900, 3600},
	})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
