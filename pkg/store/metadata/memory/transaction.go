package memory

import (
	"github.com/marmos91/dittoquota/pkg/store/metadata"
)

// transaction implements metadata.Transaction over the store maps. It is
// only valid while the caller holds the store lock.
type transaction struct {
	store    *MemoryMetadataStore
	writable bool
	undo     []func()
}

var errReadOnly = &metadata.StoreError{
	Code:    metadata.ErrInvalidArgument,
	Message: "write in read-only transaction",
}

// rollback replays the undo log in reverse order.
func (tx *transaction) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

func (tx *transaction) checkWritable() error {
	if !tx.writable {
		return errReadOnly
	}
	return nil
}

// ============================================================================
// Primitive writes (each records its own undo)
// ============================================================================

func (tx *transaction) putCollection(path string, coll *metadata.Collection) {
	prev, existed := tx.store.collections[path]
	tx.undo = append(tx.undo, func() {
		if existed {
			tx.store.collections[path] = prev
		} else {
			delete(tx.store.collections, path)
		}
	})

	if coll == nil {
		delete(tx.store.collections, path)
	} else {
		tx.store.collections[path] = coll
	}
}

func (tx *transaction) putObject(path string, obj *metadata.DataObject) {
	prev, existed := tx.store.objects[path]
	tx.undo = append(tx.undo, func() {
		if existed {
			tx.store.objects[path] = prev
		} else {
			delete(tx.store.objects, path)
		}
	})

	if obj == nil {
		delete(tx.store.objects, path)
	} else {
		tx.store.objects[path] = obj
	}
}

// putAttributes replaces the attribute map of a collection. A nil or empty
// map removes the entry.
func (tx *transaction) putAttributes(path string, attrs map[string]metadata.Attribute) {
	prev, existed := tx.store.attributes[path]
	tx.undo = append(tx.undo, func() {
		if existed {
			tx.store.attributes[path] = prev
		} else {
			delete(tx.store.attributes, path)
		}
	})

	if len(attrs) == 0 {
		delete(tx.store.attributes, path)
	} else {
		tx.store.attributes[path] = attrs
	}
}

// ============================================================================
// Lookup helpers
// ============================================================================

// lookupCollection resolves path to a collection record.
func (tx *transaction) lookupCollection(path string) (*metadata.Collection, error) {
	if coll, ok := tx.store.collections[path]; ok {
		return coll, nil
	}
	if _, ok := tx.store.objects[path]; ok {
		return nil, &metadata.StoreError{
			Code:    metadata.ErrNotDirectory,
			Message: "not a collection",
			Path:    path,
		}
	}
	return nil, metadata.NewNotFoundError(path, "collection")
}

// requireParent checks that the parent of path is an existing collection.
func (tx *transaction) requireParent(path string) error {
	_, err := tx.lookupCollection(metadata.Parent(path))
	return err
}

func (tx *transaction) exists(path string) bool {
	if _, ok := tx.store.collections[path]; ok {
		return true
	}
	_, ok := tx.store.objects[path]
	return ok
}

// copyAttributes returns a private copy of the attribute map of path.
func (tx *transaction) copyAttributes(path string) map[string]metadata.Attribute {
	current := tx.store.attributes[path]
	attrs := make(map[string]metadata.Attribute, len(current)+1)
	for name, attr := range current {
		attrs[name] = attr
	}
	return attrs
}
