package admin

import (
	"context"

	"github.com/marmos91/dittoquota/internal/logger"
	"github.com/marmos91/dittoquota/pkg/quota"
	"github.com/marmos91/dittoquota/pkg/store/metadata"
)

// Generic metadata request kinds.
const (
	MetadataAdd = "add"
	MetadataSet = "set"
	MetadataRm  = "rm"
)

// MetadataRequest is a generic, out-of-band attribute change on a
// collection.
type MetadataRequest struct {
	// Operation is "add", "set" or "rm"
	Operation string

	// Collection is the target collection
	Collection string

	// Attribute is the attribute to change (only Name is used by rm)
	Attribute metadata.Attribute
}

// Guard applies generic metadata requests while protecting the ledger
// attributes.
//
// Rules for the four reserved ledger attributes:
//   - non-administrators may not add, set or remove them
//   - administrators may not add one that already exists, since that would
//     give the attribute a second value
//
// Other attributes are passed through to the store.
type Guard struct {
	store metadata.Store
	attrs *quota.Attributes
}

// NewGuard creates a metadata guard.
func NewGuard(store metadata.Store, attrs *quota.Attributes) *Guard {
	return &Guard{store: store, attrs: attrs}
}

// ModifyMetadata applies req on behalf of caller.
//
// Errors:
//   - ErrNotAllowed: the request targets a reserved attribute and is refused
//   - ErrDuplicateAttribute: add of an attribute name already present
//   - ErrUnsupportedInput: unknown request kind or empty attribute name
//   - ErrConfigurationMissing: the guard has no attribute mapping
func (g *Guard) ModifyMetadata(ctx context.Context, caller Caller, req MetadataRequest) error {
	if g == nil || g.attrs == nil {
		return quota.NewConfigurationMissingError("metadata guard has no attribute mapping")
	}

	switch req.Operation {
	case MetadataAdd, MetadataSet, MetadataRm:
	default:
		return quota.NewUnsupportedInputError("Invalid metadata operation [%s]", req.Operation)
	}
	if req.Attribute.Name == "" {
		return quota.NewUnsupportedInputError("Missing attribute name")
	}

	path, err := metadata.CleanPath(req.Collection)
	if err != nil {
		return err
	}

	reserved := g.attrs.IsReserved(req.Attribute.Name)
	if reserved && !caller.Privileged {
		logger.Warn("Refused %s of %s on %s by %s", req.Operation, req.Attribute.Name, path, caller.User)
		return notAllowed(path)
	}

	return g.store.Update(ctx, func(tx metadata.Transaction) error {
		switch req.Operation {
		case MetadataSet:
			return tx.SetAttribute(path, req.Attribute)
		case MetadataRm:
			return tx.UnsetAttribute(path, req.Attribute.Name)
		}

		err := tx.AddAttribute(path, req.Attribute)
		if !metadata.IsCode(err, metadata.ErrDuplicateAttribute) {
			return err
		}
		if reserved {
			logger.Warn("Refused duplicate %s on %s by %s", req.Attribute.Name, path, caller.User)
			return notAllowed(path)
		}
		return quota.NewError(quota.ErrDuplicateAttribute, path, "Attribute [%s] already exists", req.Attribute.Name)
	})
}

func notAllowed(collection string) *quota.Error {
	return quota.NewError(quota.ErrNotAllowed, collection, "User not allowed to modify administrative metadata")
}
