package metadata

import (
	"context"
)

// ============================================================================
// Store Interface
// ============================================================================

// Store is the metadata catalog of the namespace: collections, data objects
// with their replicas, and the attributes attached to collections.
//
// All reads and writes go through transactions. Update runs its function as
// a single atomic read-modify-write unit: either every write made through
// the Transaction becomes visible, or (when the function returns an error)
// none does. Concurrent Update calls that touch the same entries are
// serialized by the implementation, so a read-check-write sequence inside a
// single Update never loses a concurrent update.
//
// Design Principles:
//   - Consistent error handling: business errors are *StoreError values
//   - Context-aware: the context is checked before a transaction starts
//   - Paths are absolute logical paths, normalized with CleanPath
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
// A Transaction must not be used outside the function it was passed to.
type Store interface {
	// View runs fn in a read-only transaction.
	//
	// Write methods called on the transaction fail with ErrInvalidArgument.
	View(ctx context.Context, fn func(tx Transaction) error) error

	// Update runs fn in a read-write transaction and commits it if fn
	// returns nil. Any error returned by fn discards every write.
	Update(ctx context.Context, fn func(tx Transaction) error) error

	// Healthcheck verifies the store is operational.
	Healthcheck(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}

// Transaction groups the operations available inside View and Update.
type Transaction interface {
	AttributeStore
	Namespace
}

// ============================================================================
// Attribute Operations
// ============================================================================

// AttributeStore reads and writes attributes attached to collections.
//
// Every method fails with ErrNotFound when the collection does not exist,
// and with ErrNotDirectory when the path names a data object.
type AttributeStore interface {
	// GetAttribute returns the attribute named name.
	//
	// Returns:
	//   - Attribute: The attribute (zero value when absent)
	//   - bool: Whether the attribute exists
	//   - error: Lookup failure
	GetAttribute(collection, name string) (Attribute, bool, error)

	// ListAttributes returns every attribute of the collection, ordered by name.
	ListAttributes(collection string) ([]Attribute, error)

	// SetAttribute creates the attribute or replaces its value and unit.
	SetAttribute(collection string, attr Attribute) error

	// AddAttribute creates the attribute, failing with ErrDuplicateAttribute
	// when the name is already present with any value or unit.
	AddAttribute(collection string, attr Attribute) error

	// UnsetAttribute removes the attribute. Removing an absent attribute is
	// not an error.
	UnsetAttribute(collection, name string) error

	// CollectionsWithAttribute returns the paths of every collection that
	// carries an attribute named name, ordered by path.
	CollectionsWithAttribute(name string) ([]string, error)
}

// ============================================================================
// Namespace Operations
// ============================================================================

// Namespace reads and mutates the collection hierarchy.
type Namespace interface {
	// Stat returns the entry at path, or ErrNotFound.
	Stat(path string) (*Entry, error)

	// ListCollection returns the direct children of a collection ordered
	// by path.
	ListCollection(path string) ([]Entry, error)

	// CreateCollection creates a collection. The parent must exist and be a
	// collection; the path must be free.
	//
	// Errors:
	//   - ErrNotFound: parent missing
	//   - ErrNotDirectory: parent is a data object
	//   - ErrAlreadyExists: path already taken
	CreateCollection(coll Collection) error

	// PutDataObject creates the data object or replaces the stored record
	// of an existing one. The parent must exist and be a collection.
	//
	// Errors:
	//   - ErrNotFound: parent missing
	//   - ErrNotDirectory: parent is a data object
	//   - ErrIsDirectory: path names a collection
	PutDataObject(obj DataObject) error

	// RemoveDataObject removes the data object at path.
	//
	// Errors:
	//   - ErrNotFound: nothing at path
	//   - ErrIsDirectory: path names a collection
	RemoveDataObject(path string) error

	// RemoveCollection removes the collection at path together with every
	// descendant entry and every attribute attached to them.
	//
	// Errors:
	//   - ErrNotFound: nothing at path
	//   - ErrNotDirectory: path names a data object
	//   - ErrInvalidArgument: path is the root
	RemoveCollection(path string) error

	// MoveEntry relocates a data object or a whole collection subtree.
	// Attributes of moved collections travel with them.
	//
	// Errors:
	//   - ErrNotFound: source or destination parent missing
	//   - ErrAlreadyExists: destination taken
	//   - ErrInvalidArgument: destination inside the source subtree, or
	//     source is the root
	MoveEntry(src, dst string) error

	// WalkDataObjects calls fn for every data object at or beneath root,
	// in path order. Returning an error from fn stops the walk.
	WalkDataObjects(root string, fn func(obj *DataObject) error) error

	// QueryHierarchyAggregate counts the distinct logical data objects
	// beneath root and sums their LogicalSize.
	//
	// Each logical object is counted once regardless of how many replicas
	// it has, and stale or intermediate replicas never contribute bytes.
	QueryHierarchyAggregate(root string) (Aggregate, error)
}
