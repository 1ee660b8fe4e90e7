package badger

import (
	"github.com/marmos91/dittoquota/pkg/store/metadata"
)

func (tx *transaction) Stat(p string) (*metadata.Entry, error) {
	path, err := metadata.CleanPath(p)
	if err != nil {
		return nil, err
	}

	coll, ok, err := tx.getCollection(path)
	if err != nil {
		return nil, err
	}
	if ok {
		return &metadata.Entry{Type: metadata.EntryCollection, Path: path, Collection: coll}, nil
	}

	obj, ok, err := tx.getObject(path)
	if err != nil {
		return nil, err
	}
	if ok {
		return &metadata.Entry{Type: metadata.EntryDataObject, Path: path, Object: obj}, nil
	}
	return nil, metadata.NewNotFoundError(path, "entry")
}

func (tx *transaction) ListCollection(p string) ([]metadata.Entry, error) {
	path, err := metadata.CleanPath(p)
	if err != nil {
		return nil, err
	}
	if _, err := tx.lookupCollection(path); err != nil {
		return nil, err
	}

	var entries []metadata.Entry

	pairs, err := tx.scan(keySubtreePrefix(prefixCollection, path), true)
	if err != nil {
		return nil, err
	}
	for _, pair := range pairs {
		childPath := pathFromKey(prefixCollection, pair.key)
		if childPath == path || metadata.Parent(childPath) != path {
			continue
		}
		coll, err := decodeCollection(pair.value)
		if err != nil {
			return nil, err
		}
		entries = append(entries, metadata.Entry{Type: metadata.EntryCollection, Path: childPath, Collection: coll})
	}

	pairs, err = tx.scan(keySubtreePrefix(prefixObject, path), true)
	if err != nil {
		return nil, err
	}
	for _, pair := range pairs {
		childPath := pathFromKey(prefixObject, pair.key)
		if metadata.Parent(childPath) != path {
			continue
		}
		obj, err := decodeObject(pair.value)
		if err != nil {
			return nil, err
		}
		entries = append(entries, metadata.Entry{Type: metadata.EntryDataObject, Path: childPath, Object: obj})
	}

	metadata.SortEntries(entries)
	return entries, nil
}

func (tx *transaction) CreateCollection(coll metadata.Collection) error {
	if err := tx.checkWritable(); err != nil {
		return err
	}

	path, err := metadata.CleanPath(coll.Path)
	if err != nil {
		return err
	}
	taken, err := tx.exists(path)
	if err != nil {
		return err
	}
	if taken {
		return metadata.NewAlreadyExistsError(path)
	}
	if err := tx.requireParent(path); err != nil {
		return err
	}

	coll.Path = path
	return tx.writeCollection(&coll)
}

func (tx *transaction) PutDataObject(obj metadata.DataObject) error {
	if err := tx.checkWritable(); err != nil {
		return err
	}

	path, err := metadata.CleanPath(obj.Path)
	if err != nil {
		return err
	}
	_, isColl, err := tx.getCollection(path)
	if err != nil {
		return err
	}
	if isColl {
		return &metadata.StoreError{
			Code:    metadata.ErrIsDirectory,
			Message: "path is a collection",
			Path:    path,
		}
	}
	if err := tx.requireParent(path); err != nil {
		return err
	}

	obj.Path = path
	return tx.writeObject(&obj)
}

func (tx *transaction) RemoveDataObject(p string) error {
	if err := tx.checkWritable(); err != nil {
		return err
	}

	path, err := metadata.CleanPath(p)
	if err != nil {
		return err
	}
	_, ok, err := tx.getObject(path)
	if err != nil {
		return err
	}
	if !ok {
		_, isColl, err := tx.getCollection(path)
		if err != nil {
			return err
		}
		if isColl {
			return &metadata.StoreError{
				Code:    metadata.ErrIsDirectory,
				Message: "path is a collection",
				Path:    path,
			}
		}
		return metadata.NewNotFoundError(path, "data object")
	}

	return tx.delete(keyObject(path))
}

func (tx *transaction) RemoveCollection(p string) error {
	if err := tx.checkWritable(); err != nil {
		return err
	}

	path, err := metadata.CleanPath(p)
	if err != nil {
		return err
	}
	if path == metadata.RootPath {
		return &metadata.StoreError{
			Code:    metadata.ErrInvalidArgument,
			Message: "cannot remove the root collection",
			Path:    path,
		}
	}
	if _, err := tx.lookupCollection(path); err != nil {
		return err
	}

	collections, objects, err := tx.subtree(path)
	if err != nil {
		return err
	}
	for _, objPath := range objects {
		if err := tx.delete(keyObject(objPath)); err != nil {
			return err
		}
	}
	for _, collPath := range collections {
		if err := tx.dropAttributes(collPath); err != nil {
			return err
		}
		if err := tx.delete(keyCollection(collPath)); err != nil {
			return err
		}
	}
	return nil
}

func (tx *transaction) MoveEntry(src, dst string) error {
	if err := tx.checkWritable(); err != nil {
		return err
	}

	srcPath, err := metadata.CleanPath(src)
	if err != nil {
		return err
	}
	dstPath, err := metadata.CleanPath(dst)
	if err != nil {
		return err
	}

	if srcPath == metadata.RootPath || metadata.IsWithin(dstPath, srcPath) {
		return &metadata.StoreError{
			Code:    metadata.ErrInvalidArgument,
			Message: "cannot move an entry into itself",
			Path:    srcPath,
		}
	}

	found, err := tx.exists(srcPath)
	if err != nil {
		return err
	}
	if !found {
		return metadata.NewNotFoundError(srcPath, "entry")
	}
	taken, err := tx.exists(dstPath)
	if err != nil {
		return err
	}
	if taken {
		return metadata.NewAlreadyExistsError(dstPath)
	}
	if err := tx.requireParent(dstPath); err != nil {
		return err
	}

	if obj, ok, err := tx.getObject(srcPath); err != nil {
		return err
	} else if ok {
		if err := tx.delete(keyObject(srcPath)); err != nil {
			return err
		}
		obj.Path = dstPath
		return tx.writeObject(obj)
	}

	collections, objects, err := tx.subtree(srcPath)
	if err != nil {
		return err
	}

	for _, objPath := range objects {
		obj, _, err := tx.getObject(objPath)
		if err != nil {
			return err
		}
		if err := tx.delete(keyObject(objPath)); err != nil {
			return err
		}
		obj.Path = metadata.Rebase(objPath, srcPath, dstPath)
		if err := tx.writeObject(obj); err != nil {
			return err
		}
	}

	for _, collPath := range collections {
		coll, _, err := tx.getCollection(collPath)
		if err != nil {
			return err
		}
		newPath := metadata.Rebase(collPath, srcPath, dstPath)

		if err := tx.moveAttributes(collPath, newPath); err != nil {
			return err
		}
		if err := tx.delete(keyCollection(collPath)); err != nil {
			return err
		}
		coll.Path = newPath
		if err := tx.writeCollection(coll); err != nil {
			return err
		}
	}
	return nil
}

func (tx *transaction) WalkDataObjects(root string, fn func(obj *metadata.DataObject) error) error {
	path, err := metadata.CleanPath(root)
	if err != nil {
		return err
	}

	if obj, ok, err := tx.getObject(path); err != nil {
		return err
	} else if ok {
		return fn(obj)
	}
	if _, err := tx.lookupCollection(path); err != nil {
		return err
	}

	pairs, err := tx.scan(keySubtreePrefix(prefixObject, path), true)
	if err != nil {
		return err
	}
	for _, pair := range pairs {
		obj, err := decodeObject(pair.value)
		if err != nil {
			return err
		}
		if err := fn(obj); err != nil {
			return err
		}
	}
	return nil
}

func (tx *transaction) QueryHierarchyAggregate(root string) (metadata.Aggregate, error) {
	var agg metadata.Aggregate
	err := tx.WalkDataObjects(root, func(obj *metadata.DataObject) error {
		agg.Add(obj)
		return nil
	})
	return agg, err
}
