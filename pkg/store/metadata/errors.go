package metadata

import "errors"

// StoreError represents a domain error from metadata store operations.
//
// These are business logic errors (collection not found, attribute already
// present, wrong entry type) as opposed to infrastructure errors (disk or
// database failures), which are returned wrapped with fmt.Errorf.
type StoreError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Path is the logical path related to the error (if applicable)
	Path string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Path != "" {
		return e.Message + ": " + e.Path
	}
	return e.Message
}

// ErrorCode represents the category of a store error.
type ErrorCode int

const (
	// ErrNotFound indicates the requested collection or data object doesn't exist
	ErrNotFound ErrorCode = iota

	// ErrAlreadyExists indicates an entry with the same path already exists
	ErrAlreadyExists

	// ErrNotEmpty indicates a collection still has children
	ErrNotEmpty

	// ErrIsDirectory indicates the operation expected a data object but got a collection
	ErrIsDirectory

	// ErrNotDirectory indicates the operation expected a collection but got a data object
	ErrNotDirectory

	// ErrDuplicateAttribute indicates an attribute with the same name is already
	// attached to the collection
	ErrDuplicateAttribute

	// ErrInvalidArgument indicates a malformed path, name or value
	ErrInvalidArgument

	// ErrIOError indicates the backing database failed
	ErrIOError
)

// String returns a short identifier for the code, used as a metrics label.
func (c ErrorCode) String() string {
	switch c {
	case ErrNotFound:
		return "not_found"
	case ErrAlreadyExists:
		return "already_exists"
	case ErrNotEmpty:
		return "not_empty"
	case ErrIsDirectory:
		return "is_collection"
	case ErrNotDirectory:
		return "not_collection"
	case ErrDuplicateAttribute:
		return "duplicate_attribute"
	case ErrInvalidArgument:
		return "invalid_argument"
	case ErrIOError:
		return "io_error"
	default:
		return "unknown"
	}
}

// NewNotFoundError returns an ErrNotFound error for path.
func NewNotFoundError(path, kind string) *StoreError {
	return &StoreError{
		Code:    ErrNotFound,
		Message: kind + " not found",
		Path:    path,
	}
}

// NewAlreadyExistsError returns an ErrAlreadyExists error for path.
func NewAlreadyExistsError(path string) *StoreError {
	return &StoreError{
		Code:    ErrAlreadyExists,
		Message: "entry already exists",
		Path:    path,
	}
}

// NewDuplicateAttributeError returns an ErrDuplicateAttribute error.
func NewDuplicateAttributeError(collection, name string) *StoreError {
	return &StoreError{
		Code:    ErrDuplicateAttribute,
		Message: "attribute [" + name + "] already exists",
		Path:    collection,
	}
}

// IsCode reports whether err is a *StoreError carrying code.
func IsCode(err error, code ErrorCode) bool {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Code == code
	}
	return false
}

// IsNotFound reports whether err is an ErrNotFound store error.
func IsNotFound(err error) bool {
	return IsCode(err, ErrNotFound)
}
