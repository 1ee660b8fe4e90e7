package quota

import (
	"strings"
)

// DefaultNamespace is the attribute namespace used when none is configured.
const DefaultNamespace = "logical_quotas"

// Stable status keys. They double as the default attribute names.
const (
	KeyMaximumNumberOfDataObjects = "maximum_number_of_data_objects"
	KeyMaximumSizeInBytes         = "maximum_size_in_bytes"
	KeyTotalNumberOfDataObjects   = "total_number_of_data_objects"
	KeyTotalSizeInBytes           = "total_size_in_bytes"
)

// AttributeNames maps each ledger attribute to the name it is stored under,
// before namespacing.
type AttributeNames struct {
	MaximumNumberOfDataObjects string
	MaximumSizeInBytes         string
	TotalNumberOfDataObjects   string
	TotalSizeInBytes           string
}

// DefaultAttributeNames returns the names used when the deployment does not
// override them.
func DefaultAttributeNames() AttributeNames {
	return AttributeNames{
		MaximumNumberOfDataObjects: KeyMaximumNumberOfDataObjects,
		MaximumSizeInBytes:         KeyMaximumSizeInBytes,
		TotalNumberOfDataObjects:   KeyTotalNumberOfDataObjects,
		TotalSizeInBytes:           KeyTotalSizeInBytes,
	}
}

// Attributes is the resolved attribute-name mapping shared by the ledger
// and the metadata guard. Each name is fully qualified as
// "<namespace>::<name>".
//
// Attributes is immutable after NewAttributes and safe for concurrent use.
type Attributes struct {
	maxObjects   string
	maxBytes     string
	totalObjects string
	totalBytes   string
}

// NewAttributes validates the mapping and qualifies every name with the
// namespace.
//
// Returns ErrConfigurationMissing when the namespace or any name is empty,
// when a name contains the "::" separator, or when two ledger attributes
// map to the same name.
func NewAttributes(namespace string, names AttributeNames) (*Attributes, error) {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		return nil, NewConfigurationMissingError("namespace is empty")
	}

	fields := []struct {
		key   string
		value string
	}{
		{KeyMaximumNumberOfDataObjects, names.MaximumNumberOfDataObjects},
		{KeyMaximumSizeInBytes, names.MaximumSizeInBytes},
		{KeyTotalNumberOfDataObjects, names.TotalNumberOfDataObjects},
		{KeyTotalSizeInBytes, names.TotalSizeInBytes},
	}

	seen := make(map[string]string, len(fields))
	qualified := make([]string, 0, len(fields))
	for _, f := range fields {
		name := strings.TrimSpace(f.value)
		if name == "" {
			return nil, NewConfigurationMissingError("attribute name for [%s] is empty", f.key)
		}
		if strings.Contains(name, "::") {
			return nil, NewConfigurationMissingError("attribute name [%s] must not contain '::'", name)
		}
		if other, ok := seen[name]; ok {
			return nil, NewConfigurationMissingError("[%s] and [%s] map to the same attribute name [%s]", other, f.key, name)
		}
		seen[name] = f.key
		qualified = append(qualified, namespace+"::"+name)
	}

	return &Attributes{
		maxObjects:   qualified[0],
		maxBytes:     qualified[1],
		totalObjects: qualified[2],
		totalBytes:   qualified[3],
	}, nil
}

// MaximumNumberOfDataObjects returns the qualified name of the object-count maximum.
func (a *Attributes) MaximumNumberOfDataObjects() string { return a.maxObjects }

// MaximumSizeInBytes returns the qualified name of the byte-size maximum.
func (a *Attributes) MaximumSizeInBytes() string { return a.maxBytes }

// TotalNumberOfDataObjects returns the qualified name of the object-count total.
func (a *Attributes) TotalNumberOfDataObjects() string { return a.totalObjects }

// TotalSizeInBytes returns the qualified name of the byte-size total.
func (a *Attributes) TotalSizeInBytes() string { return a.totalBytes }

// Names returns the four qualified names.
func (a *Attributes) Names() []string {
	return []string{a.maxObjects, a.maxBytes, a.totalObjects, a.totalBytes}
}

// IsReserved reports whether name is one of the ledger attributes.
func (a *Attributes) IsReserved(name string) bool {
	switch name {
	case a.maxObjects, a.maxBytes, a.totalObjects, a.totalBytes:
		return true
	}
	return false
}

// StatusKey returns the stable status key of a qualified ledger attribute
// name, or "" when name is not reserved.
func (a *Attributes) StatusKey(name string) string {
	switch name {
	case a.maxObjects:
		return KeyMaximumNumberOfDataObjects
	case a.maxBytes:
		return KeyMaximumSizeInBytes
	case a.totalObjects:
		return KeyTotalNumberOfDataObjects
	case a.totalBytes:
		return KeyTotalSizeInBytes
	}
	return ""
}
