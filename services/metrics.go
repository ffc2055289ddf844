package services

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds the domain Prometheus collectors. They register once per process,
// so tests may construct any number of services.
type Metrics struct {
	Sweeps          *prometheus.CounterVec
	SweepDuration   prometheus.Histogram
	SweepSprints    *prometheus.CounterVec
	Insights        *prometheus.CounterVec
	ProgressEntries prometheus.Counter
	SprintsCreated  *prometheus.CounterVec
}

// NewMetrics returns the process-wide metrics.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			Sweeps: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "learnsprint_sweeps_total",
					Help: "Insight sweeps by outcome (completed, skipped, failed)",
				},
				[]string{"result"},
			),
			SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "learnsprint_sweep_duration_seconds",
				Help:    "Wall time of completed insight sweeps",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			}),
			SweepSprints: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "learnsprint_sweep_sprints_total",
					Help: "Per-sprint analyses attempted by the sweep, by result",
				},
				[]string{"result"},
			),
			Insights: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "learnsprint_insights_total",
					Help: "Pattern analyses by result",
				},
				[]string{"result"},
			),
			ProgressEntries: promauto.NewCounter(prometheus.CounterOpts{
				Name: "learnsprint_progress_entries_total",
				Help: "Progress entries recorded",
			}),
			SprintsCreated: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "learnsprint_sprints_created_total",
					Help: "Sprint creation attempts by result",
				},
				[]string{"result"},
			),
		}
	})
	return globalMetrics
}
