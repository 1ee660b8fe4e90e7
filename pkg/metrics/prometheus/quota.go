package prometheus

import (
	"github.com/marmos91/dittoquota/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// quotaMetrics is the Prometheus implementation of metrics.QuotaMetrics.
type quotaMetrics struct {
	decisionsTotal  *prometheus.CounterVec
	violationsTotal *prometheus.CounterVec
	controlTotal    *prometheus.CounterVec
	totalObjects    *prometheus.GaugeVec
	totalBytes      *prometheus.GaugeVec
}

// NewQuotaMetrics creates a new Prometheus-backed QuotaMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not called).
func NewQuotaMetrics() metrics.QuotaMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopQuotaMetrics()
	}
	return newQuotaMetrics(metrics.GetRegistry())
}

func newQuotaMetrics(reg prometheus.Registerer) *quotaMetrics {
	return &quotaMetrics{
		decisionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittoquota_policy_decisions_total",
				Help: "Total number of quota pre-checks by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		violationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittoquota_policy_violations_total",
				Help: "Total number of rejected operations by violation kind",
			},
			[]string{"kind"},
		),
		controlTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittoquota_control_commands_total",
				Help: "Total number of quota control commands by command and status",
			},
			[]string{"command", "status"},
		),
		totalObjects: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dittoquota_collection_total_objects",
				Help: "Number of data objects tracked in a monitored collection",
			},
			[]string{"collection"},
		),
		totalBytes: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dittoquota_collection_total_bytes",
				Help: "Logical bytes tracked in a monitored collection",
			},
			[]string{"collection"},
		),
	}
}

func (m *quotaMetrics) RecordDecision(operation string, outcome string) {
	m.decisionsTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *quotaMetrics) RecordViolation(kind string) {
	m.violationsTotal.WithLabelValues(kind).Inc()
}

func (m *quotaMetrics) RecordControl(command string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.controlTotal.WithLabelValues(command, status).Inc()
}

func (m *quotaMetrics) SetTotals(collection string, objects uint64, bytes uint64) {
	m.totalObjects.WithLabelValues(collection).Set(float64(objects))
	m.totalBytes.WithLabelValues(collection).Set(float64(bytes))
}

func (m *quotaMetrics) ForgetCollection(collection string) {
	m.totalObjects.DeleteLabelValues(collection)
	m.totalBytes.DeleteLabelValues(collection)
}
