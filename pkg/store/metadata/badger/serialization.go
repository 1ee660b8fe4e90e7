package badger

import (
	"encoding/json"
	"fmt"

	"github.com/marmos91/dittoquota/pkg/store/metadata"
)

// Serialization Strategy
// ======================
//
// BadgerDB stores data as raw bytes, so catalog records are JSON encoded:
// human-readable, tolerant of added fields, and easy to inspect with the
// badger CLI. Records are small, so the size overhead does not matter.

// encodeCollection serializes a collection record.
func encodeCollection(coll *metadata.Collection) ([]byte, error) {
	bytes, err := json.Marshal(coll)
	if err != nil {
		return nil, fmt.Errorf("failed to encode collection: %w", err)
	}
	return bytes, nil
}

// decodeCollection deserializes a collection record.
func decodeCollection(bytes []byte) (*metadata.Collection, error) {
	var coll metadata.Collection
	if err := json.Unmarshal(bytes, &coll); err != nil {
		return nil, fmt.Errorf("failed to decode collection: %w", err)
	}
	return &coll, nil
}

// encodeObject serializes a data object record, replicas included.
func encodeObject(obj *metadata.DataObject) ([]byte, error) {
	bytes, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to encode data object: %w", err)
	}
	return bytes, nil
}

// decodeObject deserializes a data object record.
func decodeObject(bytes []byte) (*metadata.DataObject, error) {
	var obj metadata.DataObject
	if err := json.Unmarshal(bytes, &obj); err != nil {
		return nil, fmt.Errorf("failed to decode data object: %w", err)
	}
	return &obj, nil
}

// encodeAttribute serializes an attribute.
func encodeAttribute(attr metadata.Attribute) ([]byte, error) {
	bytes, err := json.Marshal(attr)
	if err != nil {
		return nil, fmt.Errorf("failed to encode attribute: %w", err)
	}
	return bytes, nil
}

// decodeAttribute deserializes an attribute.
func decodeAttribute(bytes []byte) (metadata.Attribute, error) {
	var attr metadata.Attribute
	if err := json.Unmarshal(bytes, &attr); err != nil {
		return metadata.Attribute{}, fmt.Errorf("failed to decode attribute: %w", err)
	}
	return attr, nil
}
