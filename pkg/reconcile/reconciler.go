// Package reconcile provides periodic recounting of monitored collections.
//
// Running totals are maintained incrementally by the policy engine. They can
// drift from the catalog when it changes outside the engine, for instance:
//   - A replica is marked stale or good again
//   - Metadata is edited directly in the store
//   - The ledger was configured after data was ingested
//
// The reconciler recounts every monitored collection and overwrites its
// totals with the recount.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/dittoquota/internal/logger"
	"github.com/marmos91/dittoquota/internal/ratelimiter"
	"github.com/marmos91/dittoquota/pkg/metrics"
	"github.com/marmos91/dittoquota/pkg/quota"
	"github.com/marmos91/dittoquota/pkg/store/metadata"
)

// Reconciler periodically recalculates the totals of monitored collections.
//
// Each collection is recounted in its own transaction so a long run never
// holds one large transaction open.
//
// Thread Safety: Safe for concurrent use.
type Reconciler struct {
	store   metadata.Store
	ledger  *quota.Ledger
	metrics metrics.QuotaMetrics
	config  Config
	limiter *ratelimiter.RateLimiter
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// Config contains configuration for the reconciler.
type Config struct {
	// Enabled controls whether periodic reconciliation is active
	Enabled bool

	// Interval is how often to reconcile (default: 1h)
	Interval time.Duration

	// Timeout bounds a single periodic run (default: 10m)
	Timeout time.Duration

	// RecountsPerSecond throttles recounts within a run (0 = unlimited)
	RecountsPerSecond float64
}

// NewReconciler creates a reconciler. Call Start to begin background runs.
//
// Parameters:
//   - store: Metadata store holding the ledger
//   - ledger: Quota ledger to reconcile
//   - m: Metrics collector updated with the recounted totals (nil for no-op)
//   - config: Reconciler configuration
//
// Returns:
//   - *Reconciler: Initialized reconciler (not started)
//   - error: Returns error if the ledger is not configured
func NewReconciler(store metadata.Store, ledger *quota.Ledger, m metrics.QuotaMetrics, config Config) (*Reconciler, error) {
	if store == nil {
		return nil, fmt.Errorf("reconciler requires a metadata store")
	}
	if ledger == nil || ledger.Attributes() == nil {
		return nil, quota.NewConfigurationMissingError("reconciler has no ledger")
	}
	if m == nil {
		m = metrics.NewNoopQuotaMetrics()
	}

	if config.Interval == 0 {
		config.Interval = time.Hour
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Minute
	}

	return &Reconciler{
		store:   store,
		ledger:  ledger,
		metrics: m,
		config:  config,
		limiter: ratelimiter.New(config.RecountsPerSecond, 1),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Start begins background reconciliation at the configured interval.
func (r *Reconciler) Start() {
	if !r.config.Enabled {
		logger.Info("Quota reconciliation disabled")
		return
	}

	logger.Info("Starting quota reconciler: interval=%s recounts_per_second=%g",
		r.config.Interval, r.config.RecountsPerSecond)
	go r.worker()
}

// Stop signals the worker to stop and waits for an in-progress run.
//
// Returns:
//   - error: Returns ctx.Err() if ctx expires before the worker exits
func (r *Reconciler) Stop(ctx context.Context) error {
	if !r.config.Enabled {
		return nil
	}

	logger.Info("Stopping quota reconciler...")
	close(r.stopCh)

	select {
	case <-r.doneCh:
		logger.Info("Quota reconciler stopped")
		return nil
	case <-ctx.Done():
		logger.Warn("Quota reconciler shutdown timeout")
		return ctx.Err()
	}
}

// RunNow reconciles every monitored collection immediately and blocks until
// the run completes or ctx is cancelled.
func (r *Reconciler) RunNow(ctx context.Context) (*Stats, error) {
	logger.Info("Running quota reconciliation (manual trigger)...")
	return r.reconcile(ctx)
}

func (r *Reconciler) worker() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), r.config.Timeout)
			stats, err := r.reconcile(ctx)
			cancel()

			if err != nil {
				logger.Error("Quota reconciliation failed: %v", err)
			} else {
				logger.Info("Quota reconciliation completed: %s", stats.Summary())
			}

		case <-r.stopCh:
			return
		}
	}
}

// reconcile lists the monitored collections and recounts each one.
// A collection that fails (removed concurrently, stopped in the meantime)
// is counted as failed and the run continues.
func (r *Reconciler) reconcile(ctx context.Context) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}

	var collections []string
	err := r.store.View(ctx, func(tx metadata.Transaction) error {
		var err error
		collections, err = r.ledger.MonitoredCollections(tx)
		return err
	})
	if err != nil {
		stats.EndTime = time.Now()
		return stats, fmt.Errorf("failed to list monitored collections: %w", err)
	}
	stats.Monitored = uint64(len(collections))

	for _, collection := range collections {
		if err := r.limiter.Wait(ctx); err != nil {
			stats.EndTime = time.Now()
			return stats, err
		}

		var before, after quota.Totals
		err := r.store.Update(ctx, func(tx metadata.Transaction) error {
			var err error
			if before, err = r.ledger.Totals(tx, collection); err != nil {
				return err
			}
			after, err = r.ledger.RecalculateTotals(tx, collection)
			return err
		})
		if err != nil {
			logger.Warn("Reconcile: failed to recount %s: %v", collection, err)
			stats.Failed++
			continue
		}

		stats.Reconciled++
		r.metrics.SetTotals(collection, after.Objects, after.Bytes)

		if before != after {
			stats.Drifted++
			logger.Info("Reconcile: corrected %s (objects %d -> %d, bytes %d -> %d)",
				collection, before.Objects, after.Objects, before.Bytes, after.Bytes)
		}
	}

	stats.EndTime = time.Now()
	return stats, nil
}

// Stats contains statistics from a reconciliation run.
type Stats struct {
	StartTime  time.Time // When the run started
	EndTime    time.Time // When the run ended
	Monitored  uint64    // Monitored collections found
	Reconciled uint64    // Collections recounted successfully
	Drifted    uint64    // Collections whose totals changed
	Failed     uint64    // Collections that could not be recounted
}

// Duration returns the total run duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns a human-readable summary of the run.
func (s *Stats) Summary() string {
	return fmt.Sprintf("monitored=%d reconciled=%d drifted=%d failed=%d duration=%s",
		s.Monitored, s.Reconciled, s.Drifted, s.Failed, s.Duration())
}
