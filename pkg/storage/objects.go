package storage

import (
	"context"
	"time"

	"github.com/marmos91/dittoquota/pkg/policy"
	"github.com/marmos91/dittoquota/pkg/store/metadata"
)

// Create creates an empty data object (touch). Touching an existing data
// object only updates its modification time.
func (n *Namespace) Create(ctx context.Context, user, path string) (*metadata.DataObject, error) {
	path, err := metadata.CleanPath(path)
	if err != nil {
		return nil, err
	}

	var result metadata.DataObject
	op := policy.Operation{Kind: policy.KindCreate, Path: path, User: user}
	err = n.run(ctx, op,
		func(tx metadata.Transaction) error {
			return requireParentCollection(tx, path)
		},
		func(tx metadata.Transaction) error {
			entry, err := tx.Stat(path)
			switch {
			case metadata.IsNotFound(err):
				result = n.newObject(path, user, "", 0)
			case err != nil:
				return err
			case entry.IsCollection():
				return &metadata.StoreError{Code: metadata.ErrIsDirectory, Message: "path is a collection", Path: path}
			default:
				result = *entry.Object
				result.ModifiedAt = time.Now()
			}
			return tx.PutDataObject(result)
		})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Put stores a data object of size bytes. An existing data object is
// replaced only with opts.Force; its replicas all take the new size.
func (n *Namespace) Put(ctx context.Context, user, path string, size uint64, opts PutOptions) (*metadata.DataObject, error) {
	path, err := metadata.CleanPath(path)
	if err != nil {
		return nil, err
	}

	var result metadata.DataObject
	op := policy.Operation{Kind: policy.KindPut, Path: path, Size: size, User: user}
	err = n.run(ctx, op,
		func(tx metadata.Transaction) error {
			if err := requireParentCollection(tx, path); err != nil {
				return err
			}
			return n.checkOverwrite(tx, path, opts.Force)
		},
		func(tx metadata.Transaction) error {
			obj, err := n.prepareObject(tx, path, user, size, opts)
			if err != nil {
				return err
			}
			result = obj
			return tx.PutDataObject(obj)
		})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// checkOverwrite fails when path is a collection, or a data object that may
// not be replaced.
func (n *Namespace) checkOverwrite(tx metadata.Transaction, path string, force bool) error {
	entry, err := tx.Stat(path)
	if metadata.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if entry.IsCollection() {
		return &metadata.StoreError{Code: metadata.ErrIsDirectory, Message: "path is a collection", Path: path}
	}
	if !force {
		return &metadata.StoreError{Code: metadata.ErrAlreadyExists, Message: "data object already exists, use force to overwrite", Path: path}
	}
	return nil
}

// prepareObject returns the record to store for a put: a new object, or
// the existing one rewritten with the new size.
func (n *Namespace) prepareObject(tx metadata.Transaction, path, user string, size uint64, opts PutOptions) (metadata.DataObject, error) {
	entry, err := tx.Stat(path)
	if metadata.IsNotFound(err) {
		return n.newObject(path, user, opts.Resource, size), nil
	}
	if err != nil {
		return metadata.DataObject{}, err
	}

	obj := *entry.Object
	obj.SetSize(size)
	obj.ModifiedAt = time.Now()
	return obj, nil
}

// Write appends size bytes to an existing data object.
func (n *Namespace) Write(ctx context.Context, user, path string, size uint64) (*metadata.DataObject, error) {
	return n.resize(ctx, policy.Operation{Kind: policy.KindWrite, Size: size, User: user}, path,
		func(old uint64) uint64 { return old + size })
}

// Truncate sets the size of an existing data object.
func (n *Namespace) Truncate(ctx context.Context, user, path string, size uint64) (*metadata.DataObject, error) {
	return n.resize(ctx, policy.Operation{Kind: policy.KindTruncate, Size: size, User: user}, path,
		func(uint64) uint64 { return size })
}

func (n *Namespace) resize(ctx context.Context, op policy.Operation, path string, newSize func(old uint64) uint64) (*metadata.DataObject, error) {
	path, err := metadata.CleanPath(path)
	if err != nil {
		return nil, err
	}
	op.Path = path

	var result metadata.DataObject
	err = n.run(ctx, op,
		func(tx metadata.Transaction) error {
			return requireType(tx, path, metadata.EntryDataObject)
		},
		func(tx metadata.Transaction) error {
			obj, err := getObject(tx, path)
			if err != nil {
				return err
			}
			obj.SetSize(newSize(obj.LogicalSize()))
			obj.ModifiedAt = time.Now()
			result = *obj
			return tx.PutDataObject(result)
		})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Remove removes a data object and every replica of it.
func (n *Namespace) Remove(ctx context.Context, user, path string) error {
	path, err := metadata.CleanPath(path)
	if err != nil {
		return err
	}

	op := policy.Operation{Kind: policy.KindRemove, Path: path, User: user}
	return n.run(ctx, op,
		func(tx metadata.Transaction) error {
			return requireType(tx, path, metadata.EntryDataObject)
		},
		func(tx metadata.Transaction) error {
			return tx.RemoveDataObject(path)
		})
}

// BulkPut stores every file beneath the collection root, creating missing
// intermediate collections. The quota effect of all files is checked
// before anything is written, so the operation is all-or-nothing.
func (n *Namespace) BulkPut(ctx context.Context, user, root string, files []BulkFile, opts PutOptions) error {
	root, err := metadata.CleanPath(root)
	if err != nil {
		return err
	}

	entries := make([]policy.BulkEntry, 0, len(files))
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		path := metadata.Join(root, f.RelativePath)
		if path == root || !metadata.IsWithin(path, root) {
			return &metadata.StoreError{Code: metadata.ErrInvalidArgument, Message: "file escapes the target collection", Path: f.RelativePath}
		}
		if seen[path] {
			return &metadata.StoreError{Code: metadata.ErrInvalidArgument, Message: "duplicate file in bulk put", Path: path}
		}
		seen[path] = true
		entries = append(entries, policy.BulkEntry{Path: path, Size: f.Size})
	}

	op := policy.Operation{Kind: policy.KindBulkPut, Path: root, Entries: entries, User: user}
	return n.run(ctx, op,
		func(tx metadata.Transaction) error {
			if err := requireParentCollection(tx, root); err != nil {
				return err
			}
			for _, e := range entries {
				if err := n.checkOverwrite(tx, e.Path, opts.Force); err != nil {
					return err
				}
			}
			return nil
		},
		func(tx metadata.Transaction) error {
			for _, e := range entries {
				if err := ensureCollections(tx, user, metadata.Parent(e.Path)); err != nil {
					return err
				}
				obj, err := n.prepareObject(tx, e.Path, user, e.Size, opts)
				if err != nil {
					return err
				}
				if err := tx.PutDataObject(obj); err != nil {
					return err
				}
			}
			return nil
		})
}
