// ABOUTME: Prometheus metrics for registry requests: counts and latency
// ABOUTME: Registered on a caller-supplied registerer so tests and the panel server stay isolated

package registry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records registry traffic.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the registry metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "npm_explorer",
			Subsystem: "registry",
			Name:      "requests_total",
			Help:      "Registry HTTP requests by endpoint and status code",
		}, []string{"endpoint", "code"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "npm_explorer",
			Subsystem: "registry",
			Name:      "request_duration_seconds",
			Help:      "Registry HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}

func (m *Metrics) observe(endpoint string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	m.requests.WithLabelValues(endpoint, label).Inc()
	m.duration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

