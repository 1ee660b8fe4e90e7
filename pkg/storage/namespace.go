// Package storage is the reference storage layer of the quota engine.
//
// Namespace performs catalog mutations (collections, data objects and their
// replicas) and runs the policy engine around each of them: the engine's
// pre-check, the physical mutation and the totals update share a single
// metadata store transaction.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittoquota/internal/logger"
	"github.com/marmos91/dittoquota/pkg/policy"
	"github.com/marmos91/dittoquota/pkg/store/metadata"
)

// DefaultResource is the resource that holds new replicas when none is
// configured.
const DefaultResource = "demoResc"

// Namespace is the storage layer. It is safe for concurrent use.
type Namespace struct {
	store           metadata.Store
	engine          *policy.Engine
	defaultResource string
}

// NewNamespace creates a storage layer over store, enforcing quotas with
// engine.
//
// Parameters:
//   - store: Metadata catalog
//   - engine: Policy engine invoked around every mutation
//   - defaultResource: Resource for new replicas (empty for DefaultResource)
func NewNamespace(store metadata.Store, engine *policy.Engine, defaultResource string) *Namespace {
	if defaultResource == "" {
		defaultResource = DefaultResource
	}
	return &Namespace{
		store:           store,
		engine:          engine,
		defaultResource: defaultResource,
	}
}

// Store returns the underlying metadata store.
func (n *Namespace) Store() metadata.Store {
	return n.store
}

// PutOptions controls Put and BulkPut.
type PutOptions struct {
	// Force replaces existing data objects
	Force bool

	// Resource holds the new replica (empty for the namespace default)
	Resource string
}

// BulkFile is one file of a BulkPut, relative to the target collection.
type BulkFile struct {
	RelativePath string
	Size         uint64
}

// run executes one mutating operation: validate checks the physical
// preconditions, the engine plans and checks the quota effect, mutate
// performs the change, and the engine commits the plan. Any error discards
// the whole transaction.
func (n *Namespace) run(ctx context.Context, op policy.Operation, validate, mutate func(tx metadata.Transaction) error) error {
	var plan *policy.Plan

	err := n.store.Update(ctx, func(tx metadata.Transaction) error {
		if validate != nil {
			if err := validate(tx); err != nil {
				return err
			}
		}

		var err error
		plan, err = n.engine.Before(tx, op)
		if err != nil {
			return err
		}

		outcome := mutate(tx)
		if err := n.engine.After(tx, plan, outcome); err != nil {
			return err
		}
		return outcome
	})
	if err != nil {
		logger.Debug("%s %s by %s failed: %v", op.Kind, op.Path, op.User, err)
		return err
	}

	n.engine.Publish(plan)
	return nil
}

func (n *Namespace) newObject(path, owner, resource string, size uint64) metadata.DataObject {
	if resource == "" {
		resource = n.defaultResource
	}
	now := time.Now()
	return metadata.DataObject{
		ID:    uuid.New(),
		Path:  path,
		Owner: owner,
		Replicas: []metadata.Replica{
			{Number: 0, Resource: resource, Size: size, Status: metadata.ReplicaGood},
		},
		CreatedAt:  now,
		ModifiedAt: now,
	}
}

// ============================================================================
// Collections
// ============================================================================

// Mkdir creates a collection owned by user. With parents set, missing
// ancestors are created too and an existing collection is not an error.
// Collections hold no usage, so the policy engine is not involved.
func (n *Namespace) Mkdir(ctx context.Context, user, path string, parents bool) error {
	path, err := metadata.CleanPath(path)
	if err != nil {
		return err
	}

	return n.store.Update(ctx, func(tx metadata.Transaction) error {
		if !parents {
			return tx.CreateCollection(metadata.Collection{Path: path, Owner: user, CreatedAt: time.Now()})
		}
		return ensureCollections(tx, user, path)
	})
}

// ensureCollections creates every missing collection along path.
func ensureCollections(tx metadata.Transaction, owner, path string) error {
	chain := metadata.Ancestors(path)
	for i := len(chain) - 1; i >= -1; i-- {
		dir := path
		if i >= 0 {
			dir = chain[i]
		}

		entry, err := tx.Stat(dir)
		if err == nil {
			if !entry.IsCollection() {
				return &metadata.StoreError{Code: metadata.ErrNotDirectory, Message: "path is a data object", Path: dir}
			}
			continue
		}
		if !metadata.IsNotFound(err) {
			return err
		}
		if err := tx.CreateCollection(metadata.Collection{Path: dir, Owner: owner, CreatedAt: time.Now()}); err != nil {
			return err
		}
	}
	return nil
}

// RemoveCollection removes a collection and everything beneath it. The
// usage of the whole subtree is released from monitored ancestors.
func (n *Namespace) RemoveCollection(ctx context.Context, user, path string) error {
	path, err := metadata.CleanPath(path)
	if err != nil {
		return err
	}

	op := policy.Operation{Kind: policy.KindRemoveCollection, Path: path, User: user}
	return n.run(ctx, op,
		func(tx metadata.Transaction) error {
			return requireType(tx, path, metadata.EntryCollection)
		},
		func(tx metadata.Transaction) error {
			return tx.RemoveCollection(path)
		})
}

// ============================================================================
// Queries
// ============================================================================

// Stat returns the entry at path.
func (n *Namespace) Stat(ctx context.Context, path string) (*metadata.Entry, error) {
	path, err := metadata.CleanPath(path)
	if err != nil {
		return nil, err
	}

	var entry *metadata.Entry
	err = n.store.View(ctx, func(tx metadata.Transaction) error {
		var err error
		entry, err = tx.Stat(path)
		return err
	})
	return entry, err
}

// List returns the direct children of a collection.
func (n *Namespace) List(ctx context.Context, path string) ([]metadata.Entry, error) {
	path, err := metadata.CleanPath(path)
	if err != nil {
		return nil, err
	}

	var entries []metadata.Entry
	err = n.store.View(ctx, func(tx metadata.Transaction) error {
		var err error
		entries, err = tx.ListCollection(path)
		return err
	})
	return entries, err
}

// ============================================================================
// Helpers
// ============================================================================

// requireType fails unless an entry of the given type exists at path.
func requireType(tx metadata.Transaction, path string, want metadata.EntryType) error {
	entry, err := tx.Stat(path)
	if err != nil {
		return err
	}
	if entry.Type == want {
		return nil
	}
	if want == metadata.EntryCollection {
		return &metadata.StoreError{Code: metadata.ErrNotDirectory, Message: "path is a data object", Path: path}
	}
	return &metadata.StoreError{Code: metadata.ErrIsDirectory, Message: "path is a collection", Path: path}
}

// requireFree fails when something already exists at path.
func requireFree(tx metadata.Transaction, path string) error {
	_, err := tx.Stat(path)
	if err == nil {
		return metadata.NewAlreadyExistsError(path)
	}
	if metadata.IsNotFound(err) {
		return nil
	}
	return err
}

// requireParentCollection fails unless the parent of path is an existing
// collection.
func requireParentCollection(tx metadata.Transaction, path string) error {
	return requireType(tx, metadata.Parent(path), metadata.EntryCollection)
}

// getObject returns the data object at path.
func getObject(tx metadata.Transaction, path string) (*metadata.DataObject, error) {
	entry, err := tx.Stat(path)
	if err != nil {
		return nil, err
	}
	if entry.IsCollection() {
		return nil, &metadata.StoreError{Code: metadata.ErrIsDirectory, Message: "path is a collection", Path: path}
	}
	return entry.Object, nil
}
