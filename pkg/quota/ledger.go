package quota

import (
	"fmt"
	"strconv"

	"github.com/marmos91/dittoquota/internal/logger"
	"github.com/marmos91/dittoquota/pkg/store/metadata"
)

// Ledger maintains the quota attributes of monitored collections.
//
// Every method operates inside a metadata store transaction supplied by the
// caller. This lets the policy engine run its limit checks, the physical
// catalog mutation and the totals update as one atomic unit, and lets the
// store serialize concurrent read-modify-write cycles on the same
// collection.
//
// A Ledger holds no mutable state of its own and is safe for concurrent use.
// A zero Ledger fails every call with ErrConfigurationMissing.
type Ledger struct {
	attrs              *Attributes
	recalculateOnStart bool
}

// NewLedger creates a ledger for the given attribute mapping.
func NewLedger(attrs *Attributes) *Ledger {
	return &Ledger{attrs: attrs}
}

// SetRecalculateOnStart makes StartMonitoring initialize the totals with an
// authoritative recount instead of zero.
func (l *Ledger) SetRecalculateOnStart(enabled bool) {
	l.recalculateOnStart = enabled
}

// Attributes returns the attribute mapping of the ledger.
func (l *Ledger) Attributes() *Attributes {
	return l.attrs
}

func (l *Ledger) ready() error {
	if l == nil || l.attrs == nil {
		return NewConfigurationMissingError("ledger has no attribute mapping")
	}
	return nil
}

// ============================================================================
// Monitoring lifecycle
// ============================================================================

// StartMonitoring creates both totals on collection.
//
// The totals start at zero, or at the result of a recount when
// recalculate-on-start is enabled. Maximums already present are left as
// they are.
//
// Errors:
//   - ErrAlreadyMonitored: the totals already exist
//   - metadata.ErrNotFound: the collection does not exist
func (l *Ledger) StartMonitoring(tx metadata.Transaction, collection string) (Totals, error) {
	if err := l.ready(); err != nil {
		return Totals{}, err
	}

	status, err := l.Status(tx, collection)
	if err != nil {
		return Totals{}, err
	}
	if status.Monitored() {
		return Totals{}, NewAlreadyMonitoredError(collection)
	}

	var totals Totals
	if l.recalculateOnStart {
		agg, err := tx.QueryHierarchyAggregate(collection)
		if err != nil {
			return Totals{}, fmt.Errorf("recount %s: %w", collection, err)
		}
		totals = Totals{Objects: agg.Objects, Bytes: agg.Bytes}
	}

	if err := l.writeTotals(tx, collection, totals); err != nil {
		return Totals{}, err
	}

	logger.Info("Started monitoring %s (objects=%d bytes=%d)", collection, totals.Objects, totals.Bytes)
	return totals, nil
}

// StopMonitoring removes both totals from collection. Maximums are kept.
//
// Errors:
//   - ErrNotMonitored: the totals do not exist
func (l *Ledger) StopMonitoring(tx metadata.Transaction, collection string) error {
	if err := l.ready(); err != nil {
		return err
	}

	monitored, err := l.IsMonitored(tx, collection)
	if err != nil {
		return err
	}
	if !monitored {
		return NewNotMonitoredError(collection)
	}

	if err := tx.UnsetAttribute(collection, l.attrs.TotalNumberOfDataObjects()); err != nil {
		return err
	}
	if err := tx.UnsetAttribute(collection, l.attrs.TotalSizeInBytes()); err != nil {
		return err
	}

	logger.Info("Stopped monitoring %s", collection)
	return nil
}

// IsMonitored reports whether collection carries both totals.
func (l *Ledger) IsMonitored(tx metadata.Transaction, collection string) (bool, error) {
	if err := l.ready(); err != nil {
		return false, err
	}

	_, hasObjects, err := tx.GetAttribute(collection, l.attrs.TotalNumberOfDataObjects())
	if err != nil {
		return false, err
	}
	if !hasObjects {
		return false, nil
	}
	_, hasBytes, err := tx.GetAttribute(collection, l.attrs.TotalSizeInBytes())
	if err != nil {
		return false, err
	}
	return hasBytes, nil
}

// MonitoredCollections returns every monitored collection ordered by path.
func (l *Ledger) MonitoredCollections(tx metadata.Transaction) ([]string, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}

	candidates, err := tx.CollectionsWithAttribute(l.attrs.TotalNumberOfDataObjects())
	if err != nil {
		return nil, err
	}

	monitored := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ok, err := l.IsMonitored(tx, c)
		if err != nil {
			return nil, err
		}
		if ok {
			monitored = append(monitored, c)
		}
	}
	return monitored, nil
}

// ============================================================================
// Maximums
// ============================================================================

// SetMaxObjectCount sets the maximum number of data objects of collection.
// The collection does not need to be monitored.
func (l *Ledger) SetMaxObjectCount(tx metadata.Transaction, collection string, n uint64) error {
	if err := l.ready(); err != nil {
		return err
	}
	return l.writeValue(tx, collection, l.attrs.MaximumNumberOfDataObjects(), n)
}

// SetMaxSizeBytes sets the maximum size in bytes of collection. The
// collection does not need to be monitored.
func (l *Ledger) SetMaxSizeBytes(tx metadata.Transaction, collection string, n uint64) error {
	if err := l.ready(); err != nil {
		return err
	}
	return l.writeValue(tx, collection, l.attrs.MaximumSizeInBytes(), n)
}

// UnsetMaxObjectCount removes the maximum number of data objects. Removing
// an absent maximum is not an error, whether or not the collection is
// monitored.
func (l *Ledger) UnsetMaxObjectCount(tx metadata.Transaction, collection string) error {
	if err := l.ready(); err != nil {
		return err
	}
	return tx.UnsetAttribute(collection, l.attrs.MaximumNumberOfDataObjects())
}

// UnsetMaxSizeBytes removes the maximum size in bytes. Removing an absent
// maximum is not an error, whether or not the collection is monitored.
func (l *Ledger) UnsetMaxSizeBytes(tx metadata.Transaction, collection string) error {
	if err := l.ready(); err != nil {
		return err
	}
	return tx.UnsetAttribute(collection, l.attrs.MaximumSizeInBytes())
}

// ============================================================================
// Status and recount
// ============================================================================

// Status returns the ledger attributes present on collection.
//
// Errors:
//   - metadata.ErrNotFound: the collection does not exist
//   - ErrInternal: a ledger attribute holds a value that is not a decimal
//     unsigned integer
func (l *Ledger) Status(tx metadata.Transaction, collection string) (Status, error) {
	if err := l.ready(); err != nil {
		return Status{}, err
	}

	attrs, err := tx.ListAttributes(collection)
	if err != nil {
		return Status{}, err
	}

	var status Status
	for _, attr := range attrs {
		var field **uint64
		switch attr.Name {
		case l.attrs.MaximumNumberOfDataObjects():
			field = &status.MaximumNumberOfDataObjects
		case l.attrs.MaximumSizeInBytes():
			field = &status.MaximumSizeInBytes
		case l.attrs.TotalNumberOfDataObjects():
			field = &status.TotalNumberOfDataObjects
		case l.attrs.TotalSizeInBytes():
			field = &status.TotalSizeInBytes
		default:
			continue
		}

		v, err := strconv.ParseUint(attr.Value, 10, 64)
		if err != nil {
			return Status{}, NewError(ErrInternal, collection, "Invalid value [%s] for attribute [%s]", attr.Value, attr.Name)
		}
		*field = &v
	}
	return status, nil
}

// Totals returns the totals of a monitored collection.
//
// Errors:
//   - ErrNotMonitored: the collection carries no totals
func (l *Ledger) Totals(tx metadata.Transaction, collection string) (Totals, error) {
	status, err := l.Status(tx, collection)
	if err != nil {
		return Totals{}, err
	}
	if !status.Monitored() {
		return Totals{}, NewNotMonitoredError(collection)
	}
	return status.Totals(), nil
}

// RecalculateTotals recounts the hierarchy rooted at collection and
// overwrites both totals, whatever their current values.
//
// Errors:
//   - ErrNotMonitored: the collection carries no totals
func (l *Ledger) RecalculateTotals(tx metadata.Transaction, collection string) (Totals, error) {
	agg, err := l.recount(tx, collection)
	if err != nil {
		return Totals{}, err
	}

	totals := Totals{Objects: agg.Objects, Bytes: agg.Bytes}
	if err := l.writeTotals(tx, collection, totals); err != nil {
		return Totals{}, err
	}

	logger.Debug("Recalculated totals of %s (objects=%d bytes=%d)", collection, totals.Objects, totals.Bytes)
	return totals, nil
}

// CountTotalObjects recounts the data objects beneath collection and
// overwrites only the object-count total.
func (l *Ledger) CountTotalObjects(tx metadata.Transaction, collection string) (uint64, error) {
	agg, err := l.recount(tx, collection)
	if err != nil {
		return 0, err
	}
	if err := l.writeValue(tx, collection, l.attrs.TotalNumberOfDataObjects(), agg.Objects); err != nil {
		return 0, err
	}
	return agg.Objects, nil
}

// CountTotalBytes recounts the logical size beneath collection and
// overwrites only the byte-size total.
func (l *Ledger) CountTotalBytes(tx metadata.Transaction, collection string) (uint64, error) {
	agg, err := l.recount(tx, collection)
	if err != nil {
		return 0, err
	}
	if err := l.writeValue(tx, collection, l.attrs.TotalSizeInBytes(), agg.Bytes); err != nil {
		return 0, err
	}
	return agg.Bytes, nil
}

func (l *Ledger) recount(tx metadata.Transaction, collection string) (metadata.Aggregate, error) {
	monitored, err := l.IsMonitored(tx, collection)
	if err != nil {
		return metadata.Aggregate{}, err
	}
	if !monitored {
		return metadata.Aggregate{}, NewNotMonitoredError(collection)
	}

	agg, err := tx.QueryHierarchyAggregate(collection)
	if err != nil {
		return metadata.Aggregate{}, fmt.Errorf("recount %s: %w", collection, err)
	}
	return agg, nil
}

// ============================================================================
// Deltas and limits
// ============================================================================

// ApplyDelta adds delta to the totals of a monitored collection and returns
// the new totals.
//
// Only dimensions with a non-zero delta are written. A total that would
// drop below zero is clamped at zero and logged; this can only happen after
// the totals were edited out of band.
//
// Errors:
//   - ErrNotMonitored: the collection carries no totals
func (l *Ledger) ApplyDelta(tx metadata.Transaction, collection string, delta Delta) (Totals, error) {
	current, err := l.Totals(tx, collection)
	if err != nil {
		return Totals{}, err
	}
	if delta.IsZero() {
		return current, nil
	}

	next := current
	var clamped bool
	if delta.Objects != 0 {
		next.Objects, clamped = applySigned(current.Objects, delta.Objects)
		if clamped {
			logger.Warn("Object total of %s would drop below zero (current=%d delta=%d), clamping", collection, current.Objects, delta.Objects)
		}
		if err := l.writeValue(tx, collection, l.attrs.TotalNumberOfDataObjects(), next.Objects); err != nil {
			return Totals{}, err
		}
	}
	if delta.Bytes != 0 {
		next.Bytes, clamped = applySigned(current.Bytes, delta.Bytes)
		if clamped {
			logger.Warn("Byte total of %s would drop below zero (current=%d delta=%d), clamping", collection, current.Bytes, delta.Bytes)
		}
		if err := l.writeValue(tx, collection, l.attrs.TotalSizeInBytes(), next.Bytes); err != nil {
			return Totals{}, err
		}
	}

	logger.Debug("Applied delta to %s: objects %d%+d bytes %d%+d", collection, current.Objects, delta.Objects, current.Bytes, delta.Bytes)
	return next, nil
}

// CheckLimits reports whether applying delta to collection would exceed one
// of its maximums. It never writes.
//
// The object count is checked before the byte size. A dimension without a
// maximum, or whose delta is not positive, never violates, so releasing
// usage is always allowed even above a lowered maximum.
//
// Returns:
//   - nil when the delta fits
//   - *Error with ErrObjectCountExceeded or ErrSizeExceeded otherwise
func (l *Ledger) CheckLimits(tx metadata.Transaction, collection string, delta Delta) error {
	status, err := l.Status(tx, collection)
	if err != nil {
		return err
	}

	current := status.Totals()
	if limit := status.MaximumNumberOfDataObjects; limit != nil && exceeds(current.Objects, delta.Objects, *limit) {
		return NewObjectCountExceededError(collection)
	}
	if limit := status.MaximumSizeInBytes; limit != nil && exceeds(current.Bytes, delta.Bytes, *limit) {
		return NewSizeExceededError(collection)
	}
	return nil
}

// ============================================================================
// Helpers
// ============================================================================

func (l *Ledger) writeTotals(tx metadata.Transaction, collection string, totals Totals) error {
	if err := l.writeValue(tx, collection, l.attrs.TotalNumberOfDataObjects(), totals.Objects); err != nil {
		return err
	}
	if err := l.writeValue(tx, collection, l.attrs.TotalSizeInBytes(), totals.Bytes); err != nil {
		return err
	}
	return nil
}

func (l *Ledger) writeValue(tx metadata.Transaction, collection, name string, v uint64) error {
	return tx.SetAttribute(collection, metadata.Attribute{
		Name:  name,
		Value: strconv.FormatUint(v, 10),
	})
}
