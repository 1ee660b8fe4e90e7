package metrics

import (
	"time"
)

// StoreMetrics provides observability for metadata store transactions.
//
// This interface is optional - stores use NewNoopStoreMetrics until a
// collector is installed, so transactions proceed without metrics
// collection (zero overhead).
//
// Example usage:
//
//	store := badger.NewBadgerMetadataStore(ctx, cfg)
//	store.SetMetrics(prometheus.NewStoreMetrics("badger"))
type StoreMetrics interface {
	// RecordTransaction records a completed transaction.
	//
	// Parameters:
	//   - kind: "view" or "update"
	//   - duration: Time taken to run the transaction function and commit
	//   - err: Error if the transaction failed or was rolled back, nil if committed
	RecordTransaction(kind string, duration time.Duration, err error)

	// RecordConflictRetry records an update re-run after losing a write
	// conflict to a concurrent transaction.
	RecordConflictRetry()
}

// noopStoreMetrics is a no-op implementation of StoreMetrics with zero overhead.
type noopStoreMetrics struct{}

// NewNoopStoreMetrics returns a StoreMetrics that discards everything.
func NewNoopStoreMetrics() StoreMetrics {
	return noopStoreMetrics{}
}

func (noopStoreMetrics) RecordTransaction(kind string, duration time.Duration, err error) {}
func (noopStoreMetrics) RecordConflictRetry()                                             {}
