package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestQuotaMetrics(t *testing.T) {
	m := newQuotaMetrics(prometheus.NewRegistry())

	m.RecordDecision("put", "accepted")
	m.RecordDecision("put", "accepted")
	m.RecordDecision("put", "rejected")
	m.RecordViolation("size_exceeded")
	m.RecordControl("start_monitoring_collection", nil)
	m.RecordControl("start_monitoring_collection", errors.New("boom"))
	m.SetTotals("/zone/home", 3, 1024)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.decisionsTotal.WithLabelValues("put", "accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisionsTotal.WithLabelValues("put", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.violationsTotal.WithLabelValues("size_exceeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.controlTotal.WithLabelValues("start_monitoring_collection", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.totalObjects.WithLabelValues("/zone/home")))
	assert.Equal(t, 1024.0, testutil.ToFloat64(m.totalBytes.WithLabelValues("/zone/home")))

	m.ForgetCollection("/zone/home")
	assert.Equal(t, 0, testutil.CollectAndCount(m.totalObjects))
}

func TestStoreMetrics(t *testing.T) {
	m := newStoreMetrics(prometheus.NewRegistry(), "badger")

	m.RecordTransaction("update", time.Millisecond, nil)
	m.RecordTransaction("update", time.Millisecond, errors.New("conflict"))
	m.RecordConflictRetry()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.transactionsTotal.WithLabelValues("badger", "update", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transactionsTotal.WithLabelValues("badger", "update", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.conflictRetries.WithLabelValues("badger")))
}
