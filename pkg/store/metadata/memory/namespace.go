package memory

import (
	"sort"

	"github.com/marmos91/dittoquota/pkg/store/metadata"
)

func (tx *transaction) Stat(p string) (*metadata.Entry, error) {
	path, err := metadata.CleanPath(p)
	if err != nil {
		return nil, err
	}

	if coll, ok := tx.store.collections[path]; ok {
		c := *coll
		return &metadata.Entry{Type: metadata.EntryCollection, Path: path, Collection: &c}, nil
	}
	if obj, ok := tx.store.objects[path]; ok {
		return &metadata.Entry{Type: metadata.EntryDataObject, Path: path, Object: obj.Clone()}, nil
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
	for childPath, coll := range tx.store.collections {
		if childPath == path || metadata.Parent(childPath) != path {
			continue
		}
		c := *coll
		entries = append(entries, metadata.Entry{Type: metadata.EntryCollection, Path: childPath, Collection: &c})
	}
	for childPath, obj := range tx.store.objects {
		if metadata.Parent(childPath) != path {
			continue
		}
		entries = append(entries, metadata.Entry{Type: metadata.EntryDataObject, Path: childPath, Object: obj.Clone()})
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
	if tx.exists(path) {
		return metadata.NewAlreadyExistsError(path)
	}
	if err := tx.requireParent(path); err != nil {
		return err
	}

	coll.Path = path
	tx.putCollection(path, &coll)
	return nil
}

func (tx *transaction) PutDataObject(obj metadata.DataObject) error {
	if err := tx.checkWritable(); err != nil {
		return err
	}

	path, err := metadata.CleanPath(obj.Path)
	if err != nil {
		return err
	}
	if _, ok := tx.store.collections[path]; ok {
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
	tx.putObject(path, obj.Clone())
	return nil
}

func (tx *transaction) RemoveDataObject(p string) error {
	if err := tx.checkWritable(); err != nil {
		return err
	}

	path, err := metadata.CleanPath(p)
	if err != nil {
		return err
	}
	if _, ok := tx.store.objects[path]; !ok {
		if _, isColl := tx.store.collections[path]; isColl {
			return &metadata.StoreError{
				Code:    metadata.ErrIsDirectory,
				Message: "path is a collection",
				Path:    path,
			}
		}
		return metadata.NewNotFoundError(path, "data object")
	}

	tx.putObject(path, nil)
	return nil
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

	collections, objects := tx.subtree(path)
	for _, objPath := range objects {
		tx.putObject(objPath, nil)
	}
	for _, collPath := range collections {
		tx.putAttributes(collPath, nil)
		tx.putCollection(collPath, nil)
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
	if !tx.exists(srcPath) {
		return metadata.NewNotFoundError(srcPath, "entry")
	}
	if tx.exists(dstPath) {
		return metadata.NewAlreadyExistsError(dstPath)
	}
	if err := tx.requireParent(dstPath); err != nil {
		return err
	}

	if obj, ok := tx.store.objects[srcPath]; ok {
		moved := obj.Clone()
		moved.Path = dstPath
		tx.putObject(srcPath, nil)
		tx.putObject(dstPath, moved)
		return nil
	}

	collections, objects := tx.subtree(srcPath)
	for _, objPath := range objects {
		moved := tx.store.objects[objPath].Clone()
		moved.Path = metadata.Rebase(objPath, srcPath, dstPath)
		tx.putObject(objPath, nil)
		tx.putObject(moved.Path, moved)
	}
	for _, collPath := range collections {
		newPath := metadata.Rebase(collPath, srcPath, dstPath)

		moved := *tx.store.collections[collPath]
		moved.Path = newPath
		attrs := tx.store.attributes[collPath]

		tx.putAttributes(collPath, nil)
		tx.putCollection(collPath, nil)
		tx.putCollection(newPath, &moved)
		tx.putAttributes(newPath, attrs)
	}
	return nil
}

func (tx *transaction) WalkDataObjects(root string, fn func(obj *metadata.DataObject) error) error {
	path, err := metadata.CleanPath(root)
	if err != nil {
		return err
	}
	if obj, ok := tx.store.objects[path]; ok {
		return fn(obj.Clone())
	}
	if _, err := tx.lookupCollection(path); err != nil {
		return err
	}

	_, objects := tx.subtree(path)
	for _, objPath := range objects {
		if err := fn(tx.store.objects[objPath].Clone()); err != nil {
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

// subtree returns the collections (root included) and data objects at or
// beneath root, each sorted by path.
func (tx *transaction) subtree(root string) (collections, objects []string) {
	for path := range tx.store.collections {
		if metadata.IsWithin(path, root) {
			collections = append(collections, path)
		}
	}
	for path := range tx.store.objects {
		if metadata.IsWithin(path, root) {
			objects = append(objects, path)
		}
	}
	sort.Strings(collections)
	sort.Strings(objects)
	return collections, objects
}
