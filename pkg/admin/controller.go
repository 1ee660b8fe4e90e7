// Package admin implements the control plane of the quota engine: the
// privileged quota-control operations and the guard protecting ledger
// attributes from out-of-band metadata edits.
package admin

import (
	"context"
	"time"

	"github.com/marmos91/dittoquota/internal/logger"
	"github.com/marmos91/dittoquota/pkg/metrics"
	"github.com/marmos91/dittoquota/pkg/quota"
	"github.com/marmos91/dittoquota/pkg/store/metadata"
)

// Caller identifies who invokes a control operation.
type Caller struct {
	// User is the user name (informational)
	User string

	// Privileged is true for administrators
	Privileged bool
}

// RequirePrivilege fails with ErrInsufficientPrivileges unless the caller
// is an administrator.
func (c Caller) RequirePrivilege() error {
	if !c.Privileged {
		return quota.NewInsufficientPrivilegesError()
	}
	return nil
}

// Controller runs quota-control operations on behalf of administrators.
//
// Every operation requires a privileged caller. Administrators may act on
// any collection regardless of ownership: the controller performs the
// change on behalf of the collection owner.
//
// Controller is safe for concurrent use.
type Controller struct {
	store   metadata.Store
	ledger  *quota.Ledger
	metrics metrics.QuotaMetrics
}

// NewController creates a controller.
//
// Parameters:
//   - store: Metadata store holding the ledger attributes
//   - ledger: Quota ledger
//   - m: Metrics collector (nil for no-op)
func NewController(store metadata.Store, ledger *quota.Ledger, m metrics.QuotaMetrics) *Controller {
	if m == nil {
		m = metrics.NewNoopQuotaMetrics()
	}
	return &Controller{store: store, ledger: ledger, metrics: m}
}

// StartMonitoring starts tracking totals on collection.
func (c *Controller) StartMonitoring(ctx context.Context, caller Caller, collection string) (quota.Totals, error) {
	var totals quota.Totals
	err := c.update(ctx, caller, OpStartMonitoring, collection, func(tx metadata.Transaction, path string) error {
		var err error
		totals, err = c.ledger.StartMonitoring(tx, path)
		return err
	})
	if err != nil {
		return quota.Totals{}, err
	}
	c.metrics.SetTotals(metricLabel(collection), totals.Objects, totals.Bytes)
	return totals, nil
}

// StopMonitoring removes the totals from collection.
func (c *Controller) StopMonitoring(ctx context.Context, caller Caller, collection string) error {
	err := c.update(ctx, caller, OpStopMonitoring, collection, func(tx metadata.Transaction, path string) error {
		return c.ledger.StopMonitoring(tx, path)
	})
	if err == nil {
		c.metrics.ForgetCollection(metricLabel(collection))
	}
	return err
}

// SetMaxObjectCount sets the maximum number of data objects.
func (c *Controller) SetMaxObjectCount(ctx context.Context, caller Caller, collection string, n uint64) error {
	return c.update(ctx, caller, OpSetMaxObjects, collection, func(tx metadata.Transaction, path string) error {
		return c.ledger.SetMaxObjectCount(tx, path, n)
	})
}

// UnsetMaxObjectCount removes the maximum number of data objects.
func (c *Controller) UnsetMaxObjectCount(ctx context.Context, caller Caller, collection string) error {
	return c.update(ctx, caller, OpUnsetMaxObjects, collection, func(tx metadata.Transaction, path string) error {
		return c.ledger.UnsetMaxObjectCount(tx, path)
	})
}

// SetMaxSizeBytes sets the maximum size in bytes.
func (c *Controller) SetMaxSizeBytes(ctx context.Context, caller Caller, collection string, n uint64) error {
	return c.update(ctx, caller, OpSetMaxBytes, collection, func(tx metadata.Transaction, path string) error {
		return c.ledger.SetMaxSizeBytes(tx, path, n)
	})
}

// UnsetMaxSizeBytes removes the maximum size in bytes.
func (c *Controller) UnsetMaxSizeBytes(ctx context.Context, caller Caller, collection string) error {
	return c.update(ctx, caller, OpUnsetMaxBytes, collection, func(tx metadata.Transaction, path string) error {
		return c.ledger.UnsetMaxSizeBytes(tx, path)
	})
}

// RecalculateTotals recounts collection and overwrites both totals.
func (c *Controller) RecalculateTotals(ctx context.Context, caller Caller, collection string) (quota.Totals, error) {
	var totals quota.Totals
	err := c.update(ctx, caller, OpRecalculateTotals, collection, func(tx metadata.Transaction, path string) error {
		var err error
		totals, err = c.ledger.RecalculateTotals(tx, path)
		return err
	})
	if err != nil {
		return quota.Totals{}, err
	}
	c.metrics.SetTotals(metricLabel(collection), totals.Objects, totals.Bytes)
	return totals, nil
}

// CountTotalObjects recounts and overwrites only the object total.
func (c *Controller) CountTotalObjects(ctx context.Context, caller Caller, collection string) (uint64, error) {
	var n uint64
	err := c.update(ctx, caller, OpCountObjects, collection, func(tx metadata.Transaction, path string) error {
		var err error
		n, err = c.ledger.CountTotalObjects(tx, path)
		return err
	})
	return n, err
}

// CountTotalBytes recounts and overwrites only the byte total.
func (c *Controller) CountTotalBytes(ctx context.Context, caller Caller, collection string) (uint64, error) {
	var n uint64
	err := c.update(ctx, caller, OpCountBytes, collection, func(tx metadata.Transaction, path string) error {
		var err error
		n, err = c.ledger.CountTotalBytes(tx, path)
		return err
	})
	return n, err
}

// Status returns the ledger attributes present on collection.
func (c *Controller) Status(ctx context.Context, caller Caller, collection string) (quota.Status, error) {
	var status quota.Status
	err := c.run(ctx, caller, OpGetStatus, collection, c.store.View, func(tx metadata.Transaction, path string) error {
		var err error
		status, err = c.ledger.Status(tx, path)
		return err
	})
	return status, err
}

func (c *Controller) update(ctx context.Context, caller Caller, command, collection string, fn func(tx metadata.Transaction, path string) error) error {
	return c.run(ctx, caller, command, collection, c.store.Update, fn)
}

type txRunner func(ctx context.Context, fn func(tx metadata.Transaction) error) error

// run authorizes the caller, resolves the collection owner and runs fn in
// a transaction.
func (c *Controller) run(ctx context.Context, caller Caller, command, collection string, runTx txRunner, fn func(tx metadata.Transaction, path string) error) error {
	start := time.Now()
	err := c.execute(ctx, caller, command, collection, runTx, fn)
	c.metrics.RecordControl(command, err)

	if err != nil {
		logger.Warn("Control %s on %s by %s failed: %v", command, collection, caller.User, err)
		return err
	}
	logger.Debug("Control %s on %s by %s completed in %s", command, collection, caller.User, time.Since(start))
	return nil
}

func (c *Controller) execute(ctx context.Context, caller Caller, command, collection string, runTx txRunner, fn func(tx metadata.Transaction, path string) error) error {
	if err := caller.RequirePrivilege(); err != nil {
		return err
	}
	if c.ledger == nil || c.ledger.Attributes() == nil {
		return quota.NewConfigurationMissingError("controller has no ledger")
	}

	path, err := metadata.CleanPath(collection)
	if err != nil {
		return err
	}

	return runTx(ctx, func(tx metadata.Transaction) error {
		owner, err := ownerOf(tx, path)
		if err != nil {
			return err
		}
		logger.Debug("Control %s on %s: acting as owner %s for %s", command, path, owner, caller.User)
		return fn(tx, path)
	})
}

// ownerOf returns the owner of the collection at path.
func ownerOf(tx metadata.Transaction, path string) (string, error) {
	entry, err := tx.Stat(path)
	if metadata.IsNotFound(err) {
		return "", &metadata.StoreError{
			Code:    metadata.ErrNotFound,
			Message: "Logical Quotas Policy: No owner found for path",
			Path:    path,
		}
	}
	if err != nil {
		return "", err
	}
	if !entry.IsCollection() {
		return "", &metadata.StoreError{
			Code:    metadata.ErrNotDirectory,
			Message: "Logical Quotas Policy: Invalid object type",
			Path:    path,
		}
	}
	return entry.Collection.Owner, nil
}

// metricLabel returns the normalized collection path used as a metrics label.
func metricLabel(collection string) string {
	if path, err := metadata.CleanPath(collection); err == nil {
		return path
	}
	return collection
}
