package badger

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/dittoquota/pkg/store/metadata"
)

// transaction implements metadata.Transaction on top of a badger.Txn.
//
// BadgerDB allows a single open iterator per read-write transaction, so
// scans collect their results before any further read or write happens.
type transaction struct {
	txn      *badger.Txn
	writable bool
}

var errReadOnly = &metadata.StoreError{
	Code:    metadata.ErrInvalidArgument,
	Message: "write in read-only transaction",
}

func (tx *transaction) checkWritable() error {
	if !tx.writable {
		return errReadOnly
	}
	return nil
}

// ioError wraps a database failure.
func ioError(op string, err error) error {
	return fmt.Errorf("badger %s: %w", op, err)
}

// ============================================================================
// Record access
// ============================================================================

// getValue returns a copy of the value stored at key.
func (tx *transaction) getValue(key []byte) ([]byte, bool, error) {
	item, err := tx.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, ioError("get", err)
	}

	value, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, ioError("read value", err)
	}
	return value, true, nil
}

func (tx *transaction) getCollection(path string) (*metadata.Collection, bool, error) {
	value, ok, err := tx.getValue(keyCollection(path))
	if err != nil || !ok {
		return nil, ok, err
	}
	coll, err := decodeCollection(value)
	if err != nil {
		return nil, false, err
	}
	return coll, true, nil
}

func (tx *transaction) getObject(path string) (*metadata.DataObject, bool, error) {
	value, ok, err := tx.getValue(keyObject(path))
	if err != nil || !ok {
		return nil, ok, err
	}
	obj, err := decodeObject(value)
	if err != nil {
		return nil, false, err
	}
	return obj, true, nil
}

func (tx *transaction) writeCollection(coll *metadata.Collection) error {
	value, err := encodeCollection(coll)
	if err != nil {
		return err
	}
	if err := tx.txn.Set(keyCollection(coll.Path), value); err != nil {
		return ioError("set", err)
	}
	return nil
}

func (tx *transaction) writeObject(obj *metadata.DataObject) error {
	value, err := encodeObject(obj)
	if err != nil {
		return err
	}
	if err := tx.txn.Set(keyObject(obj.Path), value); err != nil {
		return ioError("set", err)
	}
	return nil
}

func (tx *transaction) delete(key []byte) error {
	if err := tx.txn.Delete(key); err != nil {
		return ioError("delete", err)
	}
	return nil
}

// kv is a key/value pair collected by scan.
type kv struct {
	key   []byte
	value []byte
}

// scan returns every key/value pair under prefix in key order.
func (tx *transaction) scan(prefix []byte, withValues bool) ([]kv, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = withValues

	it := tx.txn.NewIterator(opts)
	defer it.Close()

	var pairs []kv
	for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		pair := kv{key: item.KeyCopy(nil)}
		if withValues {
			value, err := item.ValueCopy(nil)
			if err != nil {
				return nil, ioError("read value", err)
			}
			pair.value = value
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

// ============================================================================
// Lookup helpers
// ============================================================================

// lookupCollection resolves path to a collection record.
func (tx *transaction) lookupCollection(path string) (*metadata.Collection, error) {
	coll, ok, err := tx.getCollection(path)
	if err != nil {
		return nil, err
	}
	if ok {
		return coll, nil
	}

	_, isObject, err := tx.getObject(path)
	if err != nil {
		return nil, err
	}
	if isObject {
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

func (tx *transaction) exists(path string) (bool, error) {
	_, ok, err := tx.getCollection(path)
	if err != nil || ok {
		return ok, err
	}
	_, ok, err = tx.getObject(path)
	return ok, err
}

// subtree returns the collection paths (root included) and data object
// paths at or beneath root, each in key order.
func (tx *transaction) subtree(root string) (collections, objects []string, err error) {
	if _, ok, err := tx.getCollection(root); err != nil {
		return nil, nil, err
	} else if ok {
		collections = append(collections, root)
	}

	pairs, err := tx.scan(keySubtreePrefix(prefixCollection, root), false)
	if err != nil {
		return nil, nil, err
	}
	for _, pair := range pairs {
		path := pathFromKey(prefixCollection, pair.key)
		if path != root {
			collections = append(collections, path)
		}
	}

	pairs, err = tx.scan(keySubtreePrefix(prefixObject, root), false)
	if err != nil {
		return nil, nil, err
	}
	for _, pair := range pairs {
		objects = append(objects, pathFromKey(prefixObject, pair.key))
	}
	return collections, objects, nil
}
