package llm

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for generation calls.
//
//   - learnsprint_llm_requests_total{prompt,result}
//   - learnsprint_llm_request_duration_seconds{prompt}
type Metrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewMetrics registers the metrics once per process.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			Requests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "learnsprint_llm_requests_total",
					Help: "Generation calls by prompt and result (including retries)",
				},
				[]string{"prompt", "result"},
			),
			Duration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "learnsprint_llm_request_duration_seconds",
					Help:    "Wall time of generation calls including retries",
					Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
				},
				[]string{"prompt"},
			),
		}
	})
	return globalMetrics
}

func (m *Metrics) observe(prompt, result string, start time.Time) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(prompt, result).Inc()
	m.Duration.WithLabelValues(prompt).Observe(time.Since(start).Seconds())
}
