package storage

import (
	"context"
	"time"

	"github.com/marmos91/dittoquota/pkg/policy"
	"github.com/marmos91/dittoquota/pkg/store/metadata"
)

// Copy copies a data object or a whole collection to dst, which must not
// exist. Copies are owned by user, get one replica on the default resource
// and, for collections, carry no attributes.
func (n *Namespace) Copy(ctx context.Context, user, src, dst string) error {
	src, dst, err := cleanPair(src, dst)
	if err != nil {
		return err
	}

	op := policy.Operation{Kind: policy.KindCopy, Path: src, Destination: dst, User: user}
	return n.run(ctx, op,
		func(tx metadata.Transaction) error {
			return validateTransfer(tx, src, dst)
		},
		func(tx metadata.Transaction) error {
			entry, err := tx.Stat(src)
			if err != nil {
				return err
			}
			if !entry.IsCollection() {
				return tx.PutDataObject(n.copyObject(entry.Object, dst, user))
			}
			return n.copyCollection(tx, src, dst, user)
		})
}

func (n *Namespace) copyObject(obj *metadata.DataObject, dst, owner string) metadata.DataObject {
	return n.newObject(dst, owner, "", obj.LogicalSize())
}

func (n *Namespace) copyCollection(tx metadata.Transaction, src, dst, owner string) error {
	// Collect first: the walk must not observe the copies it creates.
	type copied struct {
		path  string
		isDir bool
		obj   *metadata.DataObject
	}
	var todo []copied

	var walk func(dir string) error
	walk = func(dir string) error {
		todo = append(todo, copied{path: dir, isDir: true})
		children, err := tx.ListCollection(dir)
		if err != nil {
			return err
		}
		for _, child := range children {
			if child.IsCollection() {
				if err := walk(child.Path); err != nil {
					return err
				}
				continue
			}
			todo = append(todo, copied{path: child.Path, obj: child.Object})
		}
		return nil
	}
	if err := walk(src); err != nil {
		return err
	}

	now := time.Now()
	for _, c := range todo {
		target := metadata.Rebase(c.path, src, dst)
		if c.isDir {
			if err := tx.CreateCollection(metadata.Collection{Path: target, Owner: owner, CreatedAt: now}); err != nil {
				return err
			}
			continue
		}
		if err := tx.PutDataObject(n.copyObject(c.obj, target, owner)); err != nil {
			return err
		}
	}
	return nil
}

// Rename moves a data object or a collection subtree to dst, which must
// not exist. Attributes of moved collections travel with them.
func (n *Namespace) Rename(ctx context.Context, user, src, dst string) error {
	src, dst, err := cleanPair(src, dst)
	if err != nil {
		return err
	}

	op := policy.Operation{Kind: policy.KindRename, Path: src, Destination: dst, User: user}
	return n.run(ctx, op,
		func(tx metadata.Transaction) error {
			return validateTransfer(tx, src, dst)
		},
		func(tx metadata.Transaction) error {
			return tx.MoveEntry(src, dst)
		})
}

func cleanPair(src, dst string) (string, string, error) {
	src, err := metadata.CleanPath(src)
	if err != nil {
		return "", "", err
	}
	dst, err = metadata.CleanPath(dst)
	if err != nil {
		return "", "", err
	}
	return src, dst, nil
}

// validateTransfer checks the physical preconditions shared by copy and
// rename.
func validateTransfer(tx metadata.Transaction, src, dst string) error {
	if src == metadata.RootPath {
		return &metadata.StoreError{Code: metadata.ErrInvalidArgument, Message: "cannot move or copy the root collection", Path: src}
	}
	if _, err := tx.Stat(src); err != nil {
		return err
	}
	if metadata.IsWithin(dst, src) {
		return &metadata.StoreError{Code: metadata.ErrInvalidArgument, Message: "destination is inside the source", Path: dst}
	}
	if err := requireParentCollection(tx, dst); err != nil {
		return err
	}
	return requireFree(tx, dst)
}

// ============================================================================
// Replicas
// ============================================================================

// Replicate adds a good replica of a data object on resource. Replicas
// never change the logical usage of the object.
func (n *Namespace) Replicate(ctx context.Context, user, path, resource string) (*metadata.DataObject, error) {
	path, err := metadata.CleanPath(path)
	if err != nil {
		return nil, err
	}
	if resource == "" {
		resource = n.defaultResource
	}

	var result metadata.DataObject
	err = n.store.Update(ctx, func(tx metadata.Transaction) error {
		obj, err := getObject(tx, path)
		if err != nil {
			return err
		}
		if !hasGoodReplica(obj) {
			return &metadata.StoreError{Code: metadata.ErrInvalidArgument, Message: "no good replica to replicate from", Path: path}
		}
		for _, r := range obj.Replicas {
			if r.Resource == resource {
				return &metadata.StoreError{Code: metadata.ErrAlreadyExists, Message: "replica already exists on resource " + resource, Path: path}
			}
		}

		obj.Replicas = append(obj.Replicas, metadata.Replica{
			Number:   obj.NextReplicaNumber(),
			Resource: resource,
			Size:     obj.LogicalSize(),
			Status:   metadata.ReplicaGood,
		})
		result = *obj
		return tx.PutDataObject(result)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// SetReplicaStatus changes the status of one replica. The ledger is not
// adjusted: a recount reflects the new status.
func (n *Namespace) SetReplicaStatus(ctx context.Context, user, path string, number int, status metadata.ReplicaStatus) error {
	path, err := metadata.CleanPath(path)
	if err != nil {
		return err
	}

	return n.store.Update(ctx, func(tx metadata.Transaction) error {
		obj, err := getObject(tx, path)
		if err != nil {
			return err
		}
		replica, ok := obj.Replica(number)
		if !ok {
			return metadata.NewNotFoundError(path, "replica")
		}
		replica.Status = status
		return tx.PutDataObject(*obj)
	})
}

func hasGoodReplica(obj *metadata.DataObject) bool {
	for _, r := range obj.Replicas {
		if r.Status == metadata.ReplicaGood {
			return true
		}
	}
	return false
}
