package quota

import "math"

// Totals is the usage tracked on a monitored collection.
type Totals struct {
	Objects uint64 `json:"objects"`
	Bytes   uint64 `json:"bytes"`
}

// Delta is a signed change to the usage of a collection.
type Delta struct {
	Objects int64 `json:"objects"`
	Bytes   int64 `json:"bytes"`
}

// IsZero reports whether the delta changes nothing.
func (d Delta) IsZero() bool {
	return d.Objects == 0 && d.Bytes == 0
}

// Add returns the sum of two deltas, saturating at the int64 range.
func (d Delta) Add(other Delta) Delta {
	return Delta{Objects: addSaturated(d.Objects, other.Objects), Bytes: addSaturated(d.Bytes, other.Bytes)}
}

func addSaturated(a, b int64) int64 {
	switch {
	case b > 0 && a > math.MaxInt64-b:
		return math.MaxInt64
	case b < 0 && a < math.MinInt64-b:
		return math.MinInt64
	}
	return a + b
}

// Negate returns the opposite delta.
func (d Delta) Negate() Delta {
	return Delta{Objects: -d.Objects, Bytes: -d.Bytes}
}

// Status is the set of ledger attributes present on a collection. A nil
// field means the attribute is absent.
type Status struct {
	MaximumNumberOfDataObjects *uint64
	MaximumSizeInBytes         *uint64
	TotalNumberOfDataObjects   *uint64
	TotalSizeInBytes           *uint64
}

// Monitored reports whether both totals are present.
func (s Status) Monitored() bool {
	return s.TotalNumberOfDataObjects != nil && s.TotalSizeInBytes != nil
}

// Totals returns the tracked totals, zero for absent attributes.
func (s Status) Totals() Totals {
	var t Totals
	if s.TotalNumberOfDataObjects != nil {
		t.Objects = *s.TotalNumberOfDataObjects
	}
	if s.TotalSizeInBytes != nil {
		t.Bytes = *s.TotalSizeInBytes
	}
	return t
}

// Map returns the present attributes keyed by their stable status keys.
// Absent attributes are omitted.
func (s Status) Map() map[string]uint64 {
	m := make(map[string]uint64, 4)
	if s.MaximumNumberOfDataObjects != nil {
		m[KeyMaximumNumberOfDataObjects] = *s.MaximumNumberOfDataObjects
	}
	if s.MaximumSizeInBytes != nil {
		m[KeyMaximumSizeInBytes] = *s.MaximumSizeInBytes
	}
	if s.TotalNumberOfDataObjects != nil {
		m[KeyTotalNumberOfDataObjects] = *s.TotalNumberOfDataObjects
	}
	if s.TotalSizeInBytes != nil {
		m[KeyTotalSizeInBytes] = *s.TotalSizeInBytes
	}
	return m
}

// applySigned adds a signed delta to an unsigned value. The second result
// reports whether the result had to be clamped at zero.
func applySigned(v uint64, delta int64) (uint64, bool) {
	if delta >= 0 {
		next := v + uint64(delta)
		if next < v {
			return math.MaxUint64, false
		}
		return next, false
	}
	dec := uint64(-delta)
	if dec > v {
		return 0, true
	}
	return v - dec, false
}

// exceeds reports whether current+delta is above limit. Only positive
// deltas can exceed.
func exceeds(current uint64, delta int64, limit uint64) bool {
	if delta <= 0 {
		return false
	}
	next := current + uint64(delta)
	if next < current {
		return true
	}
	return next > limit
}
