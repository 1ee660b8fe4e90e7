package badger

import (
	"strings"

	"github.com/marmos91/dittoquota/pkg/store/metadata"
)

// Database Key Namespace Design
// ==============================
//
// BadgerDB is a key-value store, so we use prefixed keys to organize the
// catalog into logical namespaces. Keys embed the logical path, which makes
// every subtree a contiguous key range:
//
// Data Type       Prefix   Key Format                         Value Type
// =======================================================================
// Collections     "c:"     c:<path>                           Collection (JSON)
// Data Objects    "o:"     o:<path>                           DataObject (JSON)
// Attributes      "a:"     a:<collectionPath>\x00<name>       Attribute (JSON)
//
// Key Design Rationale:
//
// 1. Collections (c:) and Data Objects (o:)
//    - One entry per collection / logical data object (replicas are stored
//      inside the object value, so replica dedup is structural)
//    - Point lookup by path: O(1)
//    - Subtree scan: prefix "c:<root>/" or "o:<root>/"
//    - Example: o:/tempZone/home/alice/report.pdf
//
// 2. Attributes (a:)
//    - One entry per attribute, so setting one attribute never rewrites
//      the others and concurrent writers only conflict on the same name
//    - The \x00 separator cannot appear in a path, so "a:<path>\x00" never
//      matches attributes of a sibling whose name extends <path>
//    - Example: a:/tempZone/home/alice\x00logical_quotas::total_size_in_bytes

const (
	// prefixCollection is the key prefix for collection records
	prefixCollection = "c:"

	// prefixObject is the key prefix for data object records
	prefixObject = "o:"

	// prefixAttribute is the key prefix for collection attributes
	prefixAttribute = "a:"

	// attributeSeparator separates the collection path from the attribute name
	attributeSeparator = "\x00"
)

// keyCollection generates a key for a collection record.
//
// Format: "c:<path>"
func keyCollection(path string) []byte {
	return []byte(prefixCollection + path)
}

// keyObject generates a key for a data object record.
//
// Format: "o:<path>"
func keyObject(path string) []byte {
	return []byte(prefixObject + path)
}

// keyAttribute generates a key for one attribute of a collection.
//
// Format: "a:<collectionPath>\x00<name>"
func keyAttribute(collection, name string) []byte {
	return []byte(prefixAttribute + collection + attributeSeparator + name)
}

// keyAttributePrefix generates the prefix shared by every attribute of a
// collection.
func keyAttributePrefix(collection string) []byte {
	return []byte(prefixAttribute + collection + attributeSeparator)
}

// keySubtreePrefix generates the prefix shared by every strict descendant of
// root under the given namespace prefix.
func keySubtreePrefix(prefix, root string) []byte {
	return []byte(prefix + metadata.SubtreePrefix(root))
}

// parseAttributeKey splits an attribute key into collection path and name.
func parseAttributeKey(key []byte) (collection, name string, ok bool) {
	rest := strings.TrimPrefix(string(key), prefixAttribute)
	collection, name, ok = strings.Cut(rest, attributeSeparator)
	return collection, name, ok
}

// pathFromKey strips the namespace prefix from a collection or object key.
func pathFromKey(prefix string, key []byte) string {
	return strings.TrimPrefix(string(key), prefix)
}
