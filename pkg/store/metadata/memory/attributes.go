package memory

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

	attr, ok := tx.store.attributes[path][name]
	return attr, ok, nil
}

func (tx *transaction) ListAttributes(collection string) ([]metadata.Attribute, error) {
	path, err := metadata.CleanPath(collection)
	if err != nil {
		return nil, err
	}
	if _, err := tx.lookupCollection(path); err != nil {
		return nil, err
	}

	attrs := make([]metadata.Attribute, 0, len(tx.store.attributes[path]))
	for _, attr := range tx.store.attributes[path] {
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

	if exclusive {
		if _, ok := tx.store.attributes[path][attr.Name]; ok {
			return metadata.NewDuplicateAttributeError(path, attr.Name)
		}
	}

	attrs := tx.copyAttributes(path)
	attrs[attr.Name] = attr
	tx.putAttributes(path, attrs)
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

	if _, ok := tx.store.attributes[path][name]; !ok {
		return nil
	}

	attrs := tx.copyAttributes(path)
	delete(attrs, name)
	tx.putAttributes(path, attrs)
	return nil
}

func (tx *transaction) CollectionsWithAttribute(name string) ([]string, error) {
	var paths []string
	for path, attrs := range tx.store.attributes {
		if _, ok := attrs[name]; ok {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths, nil
}
