package policy

import (
	"github.com/google/uuid"
	"github.com/marmos91/dittoquota/pkg/quota"
)

// Adjustment is the change planned for one monitored collection.
type Adjustment struct {
	// Collection is the monitored collection
	Collection string

	// Delta is the net change to its totals
	Delta quota.Delta

	// Result holds the totals after After committed the delta
	Result quota.Totals
}

// Plan is the outcome of a successful pre-check: the adjustments to commit
// once the physical operation succeeds.
type Plan struct {
	// ID correlates the log lines of one operation
	ID uuid.UUID

	// Operation is the checked operation
	Operation Operation

	// Adjustments are ordered nearest collection first
	Adjustments []Adjustment

	committed bool
}

// Empty reports whether the plan touches no monitored collection.
func (p *Plan) Empty() bool {
	return p == nil || len(p.Adjustments) == 0
}

// Committed reports whether After applied the adjustments.
func (p *Plan) Committed() bool {
	return p != nil && p.committed
}
