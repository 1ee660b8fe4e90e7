package metrics

// QuotaMetrics provides observability for quota enforcement.
//
// Implementations record every decision taken by the policy engine, every
// violation by kind, and the latest known totals of monitored collections.
type QuotaMetrics interface {
	// RecordDecision records the outcome of a pre-operation check.
	//
	// Parameters:
	//   - operation: Operation kind (e.g., "put", "copy", "rename")
	//   - outcome: "accepted" or "rejected"
	RecordDecision(operation string, outcome string)

	// RecordViolation records a rejected operation by violation kind.
	//
	// Parameters:
	//   - kind: Violation kind (e.g., "object_count_exceeded", "size_exceeded")
	RecordViolation(kind string)

	// RecordControl records a control command invocation.
	//
	// Parameters:
	//   - command: Command name (e.g., "start_monitoring_collection")
	//   - err: Error if the command failed, nil if successful
	RecordControl(command string, err error)

	// SetTotals publishes the current totals of a monitored collection.
	SetTotals(collection string, objects uint64, bytes uint64)

	// ForgetCollection drops the published totals of a collection that is no
	// longer monitored.
	ForgetCollection(collection string)
}

// noopQuotaMetrics is a no-op implementation of QuotaMetrics with zero overhead.
type noopQuotaMetrics struct{}

// NewNoopQuotaMetrics returns a QuotaMetrics that discards everything.
func NewNoopQuotaMetrics() QuotaMetrics {
	return noopQuotaMetrics{}
}

func (noopQuotaMetrics) RecordDecision(operation string, outcome string)          {}
func (noopQuotaMetrics) RecordViolation(kind string)                              {}
func (noopQuotaMetrics) RecordControl(command string, err error)                  {}
func (noopQuotaMetrics) SetTotals(collection string, objects uint64, bytes uint64) {}
func (noopQuotaMetrics) ForgetCollection(collection string)                       {}
