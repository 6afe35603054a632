package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/agonych/udp-chat/pkg/metrics"
)

// storeMetrics is the Prometheus implementation of metrics.StoreMetrics.
type storeMetrics struct {
	queryDuration *prometheus.HistogramVec
}

// NewStoreMetrics creates a new Prometheus-backed StoreMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewStoreMetrics() metrics.StoreMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	return newStoreMetrics(metrics.GetRegistry())
}

func newStoreMetrics(reg prometheus.Registerer) *storeMetrics {
	return &storeMetrics{
		queryDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "udpchat_database_operation_seconds",
				Help: "Duration of database operations by statement kind and table",
				Buckets: []float64{
					0.0001, // indexed point lookups
					0.0005,
					0.001,
					0.005,
					0.01,
					0.05,
					0.1,
					0.5,
					1,
				},
			},
			[]string{"operation", "table"},
		),
	}
}

func (m *storeMetrics) ObserveQuery(operation string, table string, duration time.Duration) {
	if m == nil {
		return
	}
	if table == "" {
		table = "unknown"
	}
	m.queryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}
