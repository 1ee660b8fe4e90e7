package badger

import (
	"sort"

	"github.com/marmos91/dittoquota/pkg/store/metadata"
)

func (tx *transaction) GetAttribute(collection, name string) (metadata.Attribute, bool, error) {
	path, err := metadata.CleanPath(collection)
	if err != nil {
		return metadata.Attribute{}, false, err
	}
	if _, err := tx.lookupCollection(path); err != nil {
		return metadata.Attribute{}, false, err
	}

	value, ok, err := tx.getValue(keyAttribute(path, name))
	if err != nil || !ok {
		return metadata.Attribute{}, ok, err
	}
	attr, err := decodeAttribute(value)
	if err != nil {
		return metadata.Attribute{}, false, err
	}
	return attr, true, nil
}

func (tx *transaction) ListAttributes(collection string) ([]metadata.Attribute, error) {
	path, err := metadata.CleanPath(collection)
	if err != nil {
		return nil, err
	}
	if _, err := tx.lookupCollection(path); err != nil {
		return nil, err
	}

	pairs, err := tx.scan(keyAttributePrefix(path), true)
	if err != nil {
		return nil, err
	}

	attrs := make([]metadata.Attribute, 0, len(pairs))
	for _, pair := range pairs {
		attr, err := decodeAttribute(pair.value)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, attr)
	}
	metadata.SortAttributes(attrs)
	return attrs, nil
}

func (tx *transaction) SetAttribute(collection string, attr metadata.Attribute) error {
	return tx.writeAttribute(collection, attr, false)
}

func (tx *transaction) AddAttribute(collection string, attr metadata.Attribute) error {
	return tx.writeAttribute(collection, attr, true)
}

func (tx *transaction) writeAttribute(collection string, attr metadata.Attribute, exclusive bool) error {
	if err := tx.checkWritable(); err != nil {
		return err
	}
	if attr.Name == "" {
		return &metadata.StoreError{
			Code:    metadata.ErrInvalidArgument,
			Message: "attribute name is empty",
			Path:    collection,
		}
	}

	path, err := metadata.CleanPath(collection)
	if err != nil {
		return err
	}
	if _, err := tx.lookupCollection(path); err != nil {
		return err
	}

	key := keyAttribute(path, attr.Name)
	if exclusive {
		// The read registers the key for conflict detection, so two
		// concurrent adds of the same name cannot both commit.
		_, ok, err := tx.getValue(key)
		if err != nil {
			return err
		}
		if ok {
			return metadata.NewDuplicateAttributeError(path, attr.Name)
		}
	}

	value, err := encodeAttribute(attr)
	if err != nil {
		return err
	}
	if err := tx.txn.Set(key, value); err != nil {
		return ioError("set", err)
	}
	return nil
}

func (tx *transaction) UnsetAttribute(collection, name string) error {
	if err := tx.checkWritable(); err != nil {
		return err
	}

	path, err := metadata.CleanPath(collection)
	if err != nil {
		return err
	}
	if _, err := tx.lookupCollection(path); err != nil {
		return err
	}

	return tx.delete(keyAttribute(path, name))
}

func (tx *transaction) CollectionsWithAttribute(name string) ([]string, error) {
	pairs, err := tx.scan([]byte(prefixAttribute), false)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, pair := range pairs {
		collection, attrName, ok := parseAttributeKey(pair.key)
		if ok && attrName == name {
			paths = append(paths, collection)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// moveAttributes re-keys every attribute of src under dst.
func (tx *transaction) moveAttributes(src, dst string) error {
	pairs, err := tx.scan(keyAttributePrefix(src), true)
	if err != nil {
		return err
	}
	for _, pair := range pairs {
		_, name, ok := parseAttributeKey(pair.key)
		if !ok {
			continue
		}
		if err := tx.delete(pair.key); err != nil {
			return err
		}
		if err := tx.txn.Set(keyAttribute(dst, name), pair.value); err != nil {
			return ioError("set", err)
		}
	}
	return nil
}

// dropAttributes deletes every attribute of a collection.
func (tx *transaction) dropAttributes(collection string) error {
	pairs, err := tx.scan(keyAttributePrefix(collection), false)
	if err != nil {
		return err
	}
	for _, pair := range pairs {
		if err := tx.delete(pair.key); err != nil {
			return err
		}
	}
	return nil
}
