package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/dittoquota/internal/logger"
	"github.com/marmos91/dittoquota/pkg/metrics"
	"github.com/marmos91/dittoquota/pkg/store/metadata"
)

// BadgerMetadataStore implements metadata.Store using BadgerDB for persistence.
//
// It is suitable for:
//   - Production environments requiring persistence across restarts
//   - Catalogs with many collections and data objects
//
// Key Features:
//   - Persistent storage with crash recovery (WAL-based)
//   - Path-embedded keys so a subtree is a single prefix scan
//   - ACID transactions: a quota check, the catalog mutation and the totals
//     update commit together or not at all
//
// Concurrency:
// BadgerDB uses optimistic concurrency control. Two Update transactions that
// read and write the same key (for instance the totals of a shared monitored
// ancestor) cannot both commit: the second one fails with badger.ErrConflict
// and Update re-runs its function against fresh data, up to ConflictRetries
// times. No in-process lock is held.
type BadgerMetadataStore struct {
	// db is the BadgerDB database handle (thread-safe, uses internal MVCC)
	db *badger.DB

	// conflictRetries is the number of times Update re-runs a transaction
	// that lost a write conflict
	conflictRetries int

	// metrics records transaction outcomes (never nil)
	metrics metrics.StoreMetrics
}

// BadgerMetadataStoreConfig contains configuration for creating a BadgerDB
// metadata store.
type BadgerMetadataStoreConfig struct {
	// DBPath is the directory where BadgerDB will store its files
	DBPath string `mapstructure:"db_path"`

	// InMemory keeps the whole database in memory (DBPath is ignored)
	InMemory bool `mapstructure:"in_memory"`

	// RootOwner is the owner recorded on the root collection when the
	// database is created
	RootOwner string `mapstructure:"root_owner"`

	// ConflictRetries is how many times a conflicting Update is retried
	// (default: 16)
	ConflictRetries int `mapstructure:"conflict_retries"`

	// BlockCacheSizeMB is BadgerDB's block cache size in MB (default: 64)
	BlockCacheSizeMB int64 `mapstructure:"block_cache_size_mb"`

	// IndexCacheSizeMB is BadgerDB's index cache size in MB (default: 32)
	IndexCacheSizeMB int64 `mapstructure:"index_cache_size_mb"`
}

// NewBadgerMetadataStore opens (or creates) a BadgerDB metadata store.
//
// The root collection is created on first open.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - config: Configuration including DB path and cache sizes
//
// Returns:
//   - *BadgerMetadataStore: A new store instance ready for use
//   - error: Error if database initialization fails or context is cancelled
//
// Example:
//
//	store, err := NewBadgerMetadataStore(ctx, BadgerMetadataStoreConfig{
//	    DBPath: "/var/lib/dittoquota/metadata",
//	})
func NewBadgerMetadataStore(ctx context.Context, config BadgerMetadataStoreConfig) (*BadgerMetadataStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !config.InMemory && config.DBPath == "" {
		return nil, fmt.Errorf("badger db_path is required")
	}

	var opts badger.Options
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithMemTableSize(16 << 20)
	} else {
		opts = badger.DefaultOptions(config.DBPath)
	}

	// Catalog records are small JSON blobs: compression is not worth it
	opts = opts.WithLoggingLevel(badger.WARNING)
	opts = opts.WithCompression(options.None)

	blockCacheMB := config.BlockCacheSizeMB
	if blockCacheMB == 0 {
		blockCacheMB = 64
	}
	indexCacheMB := config.IndexCacheSizeMB
	if indexCacheMB == 0 {
		indexCacheMB = 32
	}
	opts = opts.WithBlockCacheSize(blockCacheMB << 20)
	opts = opts.WithIndexCacheSize(indexCacheMB << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}

	retries := config.ConflictRetries
	if retries <= 0 {
		retries = 16
	}

	store := &BadgerMetadataStore{
		db:              db,
		conflictRetries: retries,
		metrics:         metrics.NewNoopStoreMetrics(),
	}

	if err := store.initializeRoot(ctx, config.RootOwner); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize root collection: %w", err)
	}

	return store, nil
}

// initializeRoot creates the root collection if the database is new.
func (s *BadgerMetadataStore) initializeRoot(ctx context.Context, owner string) error {
	return s.Update(ctx, func(tx metadata.Transaction) error {
		_, err := tx.Stat(metadata.RootPath)
		if err == nil {
			return nil
		}
		if !metadata.IsNotFound(err) {
			return err
		}

		t := tx.(*transaction)
		return t.writeCollection(&metadata.Collection{
			Path:      metadata.RootPath,
			Owner:     owner,
			CreatedAt: time.Now(),
		})
	})
}

// SetMetrics replaces the metrics collector. Passing nil restores the no-op
// collector. Must be called before the store is shared between goroutines.
func (s *BadgerMetadataStore) SetMetrics(m metrics.StoreMetrics) {
	if m == nil {
		m = metrics.NewNoopStoreMetrics()
	}
	s.metrics = m
}

// View runs fn in a read-only BadgerDB transaction.
func (s *BadgerMetadataStore) View(ctx context.Context, fn func(tx metadata.Transaction) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	err := s.db.View(func(txn *badger.Txn) error {
		return fn(&transaction{txn: txn})
	})
	s.metrics.RecordTransaction("view", time.Since(start), err)
	return err
}

// Update runs fn in a read-write BadgerDB transaction, retrying on write
// conflicts. fn may therefore run more than once and must not have side
// effects outside the transaction.
func (s *BadgerMetadataStore) Update(ctx context.Context, fn func(tx metadata.Transaction) error) error {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		err := s.db.Update(func(txn *badger.Txn) error {
			return fn(&transaction{txn: txn, writable: true})
		})

		if errors.Is(err, badger.ErrConflict) && attempt < s.conflictRetries {
			s.metrics.RecordConflictRetry()
			logger.Debug("Badger transaction conflict, retrying (attempt %d)", attempt+1)
			continue
		}

		s.metrics.RecordTransaction("update", time.Since(start), err)
		return err
	}
}

// Healthcheck verifies the database is open and the root collection is
// readable.
func (s *BadgerMetadataStore) Healthcheck(ctx context.Context) error {
	if s.db.IsClosed() {
		return fmt.Errorf("badger database is closed")
	}
	return s.View(ctx, func(tx metadata.Transaction) error {
		_, err := tx.Stat(metadata.RootPath)
		return err
	})
}

// Close closes the BadgerDB database.
func (s *BadgerMetadataStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}

	return nil
}
