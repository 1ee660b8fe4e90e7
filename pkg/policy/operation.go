package policy

// Kind identifies a mutating storage operation.
type Kind int

const (
	// KindCreate creates an empty data object (touch). Creating an object
	// that already exists changes nothing.
	KindCreate Kind = iota

	// KindPut stores a data object of Size bytes, replacing an existing one
	// when the storage layer allows it.
	KindPut

	// KindWrite appends Size bytes to an existing data object.
	KindWrite

	// KindTruncate sets the size of an existing data object to Size.
	KindTruncate

	// KindCopy copies the data object or collection at Path to Destination.
	KindCopy

	// KindRename moves the data object or collection at Path to Destination.
	KindRename

	// KindRemove removes the data object at Path.
	KindRemove

	// KindRemoveCollection removes the collection at Path recursively.
	KindRemoveCollection

	// KindBulkPut stores every entry of Entries in one operation.
	KindBulkPut
)

// String returns the operation name used in logs and metrics labels.
func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindPut:
		return "put"
	case KindWrite:
		return "write"
	case KindTruncate:
		return "truncate"
	case KindCopy:
		return "copy"
	case KindRename:
		return "rename"
	case KindRemove:
		return "remove"
	case KindRemoveCollection:
		return "remove_collection"
	case KindBulkPut:
		return "bulk_put"
	default:
		return "unknown"
	}
}

// Operation describes a pending storage operation.
//
// It is built by the storage layer before the physical mutation and exists
// only for the duration of that call.
type Operation struct {
	// Kind is the operation type
	Kind Kind

	// Path is the target, or the source for copy and rename
	Path string

	// Destination is the target of copy and rename
	Destination string

	// Size is the new object size for put and truncate, and the number of
	// appended bytes for write
	Size uint64

	// Entries lists the data objects stored by a bulk put
	Entries []BulkEntry

	// User is the caller performing the operation (informational)
	User string
}

// BulkEntry is one data object of a bulk put.
type BulkEntry struct {
	Path string
	Size uint64
}
