package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/dittoquota/pkg/metrics"
	"github.com/marmos91/dittoquota/pkg/store/metadata"
)

// MemoryMetadataStore implements metadata.Store using in-memory storage.
//
// It is suitable for:
//   - Testing and development environments
//   - Ephemeral namespaces where persistence is not required
//
// Thread Safety:
// All transactions are protected by a single read-write mutex (mu). View
// holds the read lock and Update holds the write lock for the whole
// transaction, so every Update is serialized against every other one. This
// coarse-grained locking is simple and correct, though fine-grained locking
// could improve concurrency for high-throughput scenarios.
//
// Storage Model:
//
//  1. Collections (collections):
//     Maps a collection path to its record. The root "/" always exists.
//
//  2. Data Objects (objects):
//     Maps a data object path to its record, replicas included.
//
//  3. Attributes (attributes):
//     Maps a collection path to its attributes keyed by name. A collection
//     without attributes has no entry.
//
// Rollback:
// Update transactions record an undo closure for every primitive write. When
// the transaction function fails, the closures are replayed in reverse
// order before the write lock is released.
type MemoryMetadataStore struct {
	// mu protects all fields below.
	mu sync.RWMutex

	// collections maps collection paths to collection records.
	collections map[string]*metadata.Collection

	// objects maps data object paths to data object records.
	objects map[string]*metadata.DataObject

	// attributes maps collection paths to their attributes by name.
	attributes map[string]map[string]metadata.Attribute

	// metrics records transaction outcomes (never nil).
	metrics metrics.StoreMetrics
}

// MemoryMetadataStoreConfig contains configuration for the in-memory store.
type MemoryMetadataStoreConfig struct {
	// RootOwner is the owner recorded on the root collection
	RootOwner string `mapstructure:"root_owner"`
}

// NewMemoryMetadataStore creates an empty in-memory store holding only the
// root collection.
func NewMemoryMetadataStore(config MemoryMetadataStoreConfig) *MemoryMetadataStore {
	store := &MemoryMetadataStore{
		collections: make(map[string]*metadata.Collection),
		objects:     make(map[string]*metadata.DataObject),
		attributes:  make(map[string]map[string]metadata.Attribute),
		metrics:     metrics.NewNoopStoreMetrics(),
	}

	store.collections[metadata.RootPath] = &metadata.Collection{
		Path:      metadata.RootPath,
		Owner:     config.RootOwner,
		CreatedAt: time.Now(),
	}

	return store
}

// NewMemoryMetadataStoreWithDefaults creates an in-memory store owned by
// "rods".
func NewMemoryMetadataStoreWithDefaults() *MemoryMetadataStore {
	return NewMemoryMetadataStore(MemoryMetadataStoreConfig{RootOwner: "rods"})
}

// SetMetrics replaces the metrics collector. Passing nil restores the no-op
// collector.
func (store *MemoryMetadataStore) SetMetrics(m metrics.StoreMetrics) {
	if m == nil {
		m = metrics.NewNoopStoreMetrics()
	}
	store.mu.Lock()
	store.metrics = m
	store.mu.Unlock()
}

// View runs fn under the read lock.
func (store *MemoryMetadataStore) View(ctx context.Context, fn func(tx metadata.Transaction) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	store.mu.RLock()
	defer store.mu.RUnlock()

	start := time.Now()
	err := fn(&transaction{store: store})
	store.metrics.RecordTransaction("view", time.Since(start), err)
	return err
}

// Update runs fn under the write lock and rolls back every write if fn
// returns an error or panics. A panic is re-raised after the rollback.
func (store *MemoryMetadataStore) Update(ctx context.Context, fn func(tx metadata.Transaction) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	start := time.Now()
	tx := &transaction{store: store, writable: true}

	defer func() {
		if r := recover(); r != nil {
			tx.rollback()
			store.metrics.RecordTransaction("update", time.Since(start), fmt.Errorf("panic: %v", r))
			panic(r)
		}
	}()

	err := fn(tx)
	if err != nil {
		tx.rollback()
	}
	store.metrics.RecordTransaction("update", time.Since(start), err)
	return err
}

// Close is a no-op for the in-memory store.
func (store *MemoryMetadataStore) Close() error {
	return nil
}
