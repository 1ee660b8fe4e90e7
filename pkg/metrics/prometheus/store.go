package prometheus

import (
	"time"

	"github.com/marmos91/dittoquota/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// storeMetrics is the Prometheus implementation of metrics.StoreMetrics.
type storeMetrics struct {
	storeType           string
	transactionsTotal   *prometheus.CounterVec
	transactionDuration *prometheus.HistogramVec
	conflictRetries     *prometheus.CounterVec
}

// NewStoreMetrics creates a new Prometheus-backed StoreMetrics instance.
//
// Parameters:
//   - storeType: Type of metadata store (e.g., "memory", "badger")
//     Used as a label to distinguish metrics from different store implementations.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not called).
func NewStoreMetrics(storeType string) metrics.StoreMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopStoreMetrics()
	}
	return newStoreMetrics(metrics.GetRegistry(), storeType)
}

func newStoreMetrics(reg prometheus.Registerer, storeType string) *storeMetrics {
	return &storeMetrics{
		storeType: storeType,
		transactionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittoquota_metadata_transactions_total",
				Help: "Total number of metadata transactions by store type, kind, and status",
			},
			[]string{"store_type", "kind", "status"},
		),
		transactionDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittoquota_metadata_transaction_duration_seconds",
				Help: "Duration of metadata transactions in seconds",
				Buckets: []float64{
					0.0001, // 100µs
					0.0005, // 500µs
					0.001,  // 1ms
					0.005,  // 5ms
					0.01,   // 10ms
					0.05,   // 50ms
					0.1,    // 100ms
					0.5,    // 500ms
					1,      // 1s
				},
			},
			[]string{"store_type", "kind"},
		),
		conflictRetries: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittoquota_metadata_conflict_retries_total",
				Help: "Total number of update transactions re-run after a write conflict",
			},
			[]string{"store_type"},
		),
	}
}

func (m *storeMetrics) RecordTransaction(kind string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.transactionsTotal.WithLabelValues(m.storeType, kind, status).Inc()
	m.transactionDuration.WithLabelValues(m.storeType, kind).Observe(duration.Seconds())
}

func (m *storeMetrics) RecordConflictRetry() {
	m.conflictRetries.WithLabelValues(m.storeType).Inc()
}
