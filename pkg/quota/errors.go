package quota

import (
	"errors"
	"fmt"
)

// Error represents a quota engine error.
//
// Quota violations, authorization failures and configuration problems are
// all returned as *Error so callers can branch on Code. Infrastructure
// failures from the metadata store are returned wrapped with fmt.Errorf.
type Error struct {
	// Code is the error category
	Code ErrorCode

	// Message is the human-readable description surfaced to the caller
	Message string

	// Collection is the collection related to the error (if applicable)
	Collection string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Collection != "" {
		return e.Message + " [" + e.Collection + "]"
	}
	return e.Message
}

// ErrorCode represents the category of a quota error.
type ErrorCode int

const (
	// ErrAlreadyMonitored indicates start-monitoring on a collection that
	// already carries totals
	ErrAlreadyMonitored ErrorCode = iota

	// ErrNotMonitored indicates an operation that needs totals on a
	// collection that has none
	ErrNotMonitored

	// ErrObjectCountExceeded indicates the operation would push a collection
	// past its maximum number of data objects
	ErrObjectCountExceeded

	// ErrSizeExceeded indicates the operation would push a collection past
	// its maximum size in bytes
	ErrSizeExceeded

	// ErrInsufficientPrivileges indicates a control operation invoked by a
	// non-administrator
	ErrInsufficientPrivileges

	// ErrDuplicateAttribute indicates an attempt to add an attribute name
	// that is already present on the collection
	ErrDuplicateAttribute

	// ErrNotAllowed indicates an out-of-band metadata change to a reserved
	// ledger attribute
	ErrNotAllowed

	// ErrConfigurationMissing indicates the attribute-name mapping is
	// incomplete or the engine was not configured
	ErrConfigurationMissing

	// ErrUnsupportedInput indicates a malformed or unknown control request
	ErrUnsupportedInput

	// ErrInternal indicates a ledger attribute holds an unreadable value
	ErrInternal
)

// String returns a short identifier for the code, used as a metrics label.
func (c ErrorCode) String() string {
	switch c {
	case ErrAlreadyMonitored:
		return "already_monitored"
	case ErrNotMonitored:
		return "not_monitored"
	case ErrObjectCountExceeded:
		return "object_count_exceeded"
	case ErrSizeExceeded:
		return "size_exceeded"
	case ErrInsufficientPrivileges:
		return "insufficient_privileges"
	case ErrDuplicateAttribute:
		return "duplicate_attribute"
	case ErrNotAllowed:
		return "not_allowed"
	case ErrConfigurationMissing:
		return "configuration_missing"
	case ErrUnsupportedInput:
		return "unsupported_input"
	case ErrInternal:
		return "internal"
	default:
		return "unknown"
	}
}

const (
	policyPrefix          = "Logical Quotas Policy: "
	policyViolationPrefix = "Logical Quotas Policy Violation: "
)

// NewError returns an error with the given code. The message is prefixed
// with the policy name.
func NewError(code ErrorCode, collection, format string, args ...any) *Error {
	return &Error{
		Code:       code,
		Message:    policyPrefix + fmt.Sprintf(format, args...),
		Collection: collection,
	}
}

// NewAlreadyMonitoredError returns an ErrAlreadyMonitored error.
func NewAlreadyMonitoredError(collection string) *Error {
	return NewError(ErrAlreadyMonitored, collection, "Collection is already being monitored")
}

// NewNotMonitoredError returns an ErrNotMonitored error.
func NewNotMonitoredError(collection string) *Error {
	return NewError(ErrNotMonitored, collection, "Collection is not a monitored collection")
}

// NewObjectCountExceededError returns an ErrObjectCountExceeded violation.
func NewObjectCountExceededError(collection string) *Error {
	return &Error{
		Code:       ErrObjectCountExceeded,
		Message:    policyViolationPrefix + "Adding object exceeds maximum number of objects limit",
		Collection: collection,
	}
}

// NewSizeExceededError returns an ErrSizeExceeded violation.
func NewSizeExceededError(collection string) *Error {
	return &Error{
		Code:       ErrSizeExceeded,
		Message:    policyViolationPrefix + "Adding object exceeds maximum data size in bytes limit",
		Collection: collection,
	}
}

// NewInsufficientPrivilegesError returns an ErrInsufficientPrivileges error.
func NewInsufficientPrivilegesError() *Error {
	return NewError(ErrInsufficientPrivileges, "", "Insufficient privileges")
}

// NewConfigurationMissingError returns an ErrConfigurationMissing error.
func NewConfigurationMissingError(format string, args ...any) *Error {
	return NewError(ErrConfigurationMissing, "", "Missing configuration: "+format, args...)
}

// NewUnsupportedInputError returns an ErrUnsupportedInput error.
func NewUnsupportedInputError(format string, args ...any) *Error {
	return NewError(ErrUnsupportedInput, "", format, args...)
}

// IsCode reports whether err is a *Error carrying code.
func IsCode(err error, code ErrorCode) bool {
	var quotaErr *Error
	if errors.As(err, &quotaErr) {
		return quotaErr.Code == code
	}
	return false
}

// IsViolation reports whether err rejects an operation because a maximum
// would be exceeded.
func IsViolation(err error) bool {
	return IsCode(err, ErrObjectCountExceeded) || IsCode(err, ErrSizeExceeded)
}
