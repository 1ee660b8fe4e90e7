package policy

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/marmos91/dittoquota/internal/logger"
	"github.com/marmos91/dittoquota/pkg/metrics"
	"github.com/marmos91/dittoquota/pkg/quota"
	"github.com/marmos91/dittoquota/pkg/store/metadata"
)

// Engine enforces logical quotas around storage operations.
//
// The storage layer calls Before with the pending operation, performs the
// physical mutation only if Before succeeds, and then calls After with the
// outcome. All three steps must run inside the same metadata store Update
// so the checks, the mutation and the totals update commit together and
// concurrent operations on overlapping ancestor chains are serialized by
// the store.
//
// Engine is stateless and safe for concurrent use.
type Engine struct {
	ledger  *quota.Ledger
	metrics metrics.QuotaMetrics
}

// NewEngine creates a policy engine backed by ledger.
//
// Parameters:
//   - ledger: Quota ledger holding the attribute mapping
//   - m: Metrics collector (nil for no-op)
func NewEngine(ledger *quota.Ledger, m metrics.QuotaMetrics) *Engine {
	if m == nil {
		m = metrics.NewNoopQuotaMetrics()
	}
	return &Engine{ledger: ledger, metrics: m}
}

// Ledger returns the ledger used by the engine.
func (e *Engine) Ledger() *quota.Ledger {
	return e.ledger
}

// Before computes the effect of op on every monitored ancestor and checks
// it against their maximums. It never writes.
//
// The whole operation is planned up front, including every object of a
// bulk put, recursive copy, recursive remove or subtree move, so a
// violation anywhere rejects the operation before any physical change.
// Operations whose target is missing or of the wrong type are planned as
// empty so the storage layer can report the physical error.
//
// Returns:
//   - *Plan: Adjustments to pass to After
//   - error: *quota.Error with ErrObjectCountExceeded or ErrSizeExceeded
//     when a maximum would be exceeded, or a store error
func (e *Engine) Before(tx metadata.Transaction, op Operation) (*Plan, error) {
	if e == nil || e.ledger == nil || e.ledger.Attributes() == nil {
		return nil, quota.NewConfigurationMissingError("policy engine has no ledger")
	}

	plan := &Plan{ID: uuid.New(), Operation: op}
	log := logger.With("operation_id", plan.ID.String())

	p := newPlanner(tx, e.ledger)
	if err := p.plan(op); err != nil {
		return nil, err
	}
	plan.Adjustments = p.adjustments()

	for _, adj := range plan.Adjustments {
		if err := e.ledger.CheckLimits(tx, adj.Collection, adj.Delta); err != nil {
			var quotaErr *quota.Error
			if errors.As(err, &quotaErr) {
				e.metrics.RecordViolation(quotaErr.Code.String())
			}
			e.metrics.RecordDecision(op.Kind.String(), "rejected")
			log.Warn().
				Str("kind", op.Kind.String()).
				Str("path", op.Path).
				Str("user", op.User).
				Str("collection", adj.Collection).
				Int64("objects", adj.Delta.Objects).
				Int64("bytes", adj.Delta.Bytes).
				Msgf("Rejected: %v", err)
			return nil, err
		}
	}

	e.metrics.RecordDecision(op.Kind.String(), "accepted")
	log.Debug().
		Str("kind", op.Kind.String()).
		Str("path", op.Path).
		Int("adjustments", len(plan.Adjustments)).
		Msg("Accepted")
	return plan, nil
}

// After commits the planned adjustments once the physical operation
// succeeded. When outcome is non-nil nothing is written: the storage layer
// returns outcome from its Update function, which discards the whole
// transaction.
func (e *Engine) After(tx metadata.Transaction, plan *Plan, outcome error) error {
	if plan == nil {
		return nil
	}
	log := logger.With("operation_id", plan.ID.String())

	if outcome != nil {
		log.Debug().
			Str("kind", plan.Operation.Kind.String()).
			Str("path", plan.Operation.Path).
			Msgf("Operation failed, totals unchanged: %v", outcome)
		return nil
	}

	for i := range plan.Adjustments {
		adj := &plan.Adjustments[i]
		totals, err := e.ledger.ApplyDelta(tx, adj.Collection, adj.Delta)
		if err != nil {
			return err
		}
		adj.Result = totals
	}
	plan.committed = true
	return nil
}

// Publish exports the totals of a committed plan to metrics. It must be
// called after the enclosing transaction committed.
func (e *Engine) Publish(plan *Plan) {
	if !plan.Committed() {
		return
	}
	for _, adj := range plan.Adjustments {
		e.metrics.SetTotals(adj.Collection, adj.Result.Objects, adj.Result.Bytes)
	}
}

// ============================================================================
// Planning
// ============================================================================

// planner accumulates the net delta of one operation per monitored
// collection.
type planner struct {
	tx        metadata.Transaction
	ledger    *quota.Ledger
	monitored map[string]bool
	deltas    map[string]quota.Delta
}

func newPlanner(tx metadata.Transaction, ledger *quota.Ledger) *planner {
	return &planner{
		tx:        tx,
		ledger:    ledger,
		monitored: make(map[string]bool),
		deltas:    make(map[string]quota.Delta),
	}
}

func (p *planner) plan(op Operation) error {
	switch op.Kind {
	case KindCreate:
		return p.planCreate(op.Path)
	case KindPut:
		return p.planPut(op.Path, op.Size)
	case KindWrite:
		return p.planResize(op.Path, func(old uint64) uint64 {
			if op.Size > math.MaxUint64-old {
				return math.MaxUint64
			}
			return old + op.Size
		})
	case KindTruncate:
		return p.planResize(op.Path, func(uint64) uint64 { return op.Size })
	case KindRemove:
		return p.planRemove(op.Path)
	case KindRemoveCollection:
		return p.planRemoveCollection(op.Path)
	case KindCopy:
		return p.planCopy(op.Path, op.Destination)
	case KindRename:
		return p.planRename(op.Path, op.Destination)
	case KindBulkPut:
		var total uint64
		for _, entry := range op.Entries {
			if entry.Size > math.MaxInt64-total {
				return oversizeError(op.Path)
			}
			total += entry.Size
			if err := p.planPut(entry.Path, entry.Size); err != nil {
				return err
			}
		}
		return nil
	default:
		return quota.NewUnsupportedInputError("Unsupported operation kind [%d]", int(op.Kind))
	}
}

// stat returns the entry at path, or nil when nothing is there.
func (p *planner) stat(path string) (*metadata.Entry, error) {
	entry, err := p.tx.Stat(path)
	if metadata.IsNotFound(err) {
		return nil, nil
	}
	return entry, err
}

func (p *planner) planCreate(path string) error {
	entry, err := p.stat(path)
	if err != nil || entry != nil {
		return err
	}
	return p.addToAncestors(path, quota.Delta{Objects: 1})
}

func (p *planner) planPut(path string, size uint64) error {
	bytes, err := signedSize(path, size)
	if err != nil {
		return err
	}
	entry, err := p.stat(path)
	if err != nil {
		return err
	}
	if entry == nil {
		return p.addToAncestors(path, quota.Delta{Objects: 1, Bytes: bytes})
	}
	if entry.IsCollection() {
		return nil
	}
	old, err := signedSize(path, entry.Object.LogicalSize())
	if err != nil {
		return err
	}
	return p.addToAncestors(path, quota.Delta{Bytes: bytes - old})
}

func (p *planner) planResize(path string, newSize func(old uint64) uint64) error {
	entry, err := p.stat(path)
	if err != nil || entry == nil || entry.IsCollection() {
		return err
	}
	old, err := signedSize(path, entry.Object.LogicalSize())
	if err != nil {
		return err
	}
	next, err := signedSize(path, newSize(uint64(old)))
	if err != nil {
		return err
	}
	return p.addToAncestors(path, quota.Delta{Bytes: next - old})
}

func (p *planner) planRemove(path string) error {
	entry, err := p.stat(path)
	if err != nil || entry == nil || entry.IsCollection() {
		return err
	}
	bytes, err := signedSize(path, entry.Object.LogicalSize())
	if err != nil {
		return err
	}
	return p.addToAncestors(path, quota.Delta{Objects: -1, Bytes: -bytes})
}

func (p *planner) planRemoveCollection(path string) error {
	amount, ok, err := p.contents(path)
	if err != nil || !ok {
		return err
	}
	return p.addToAncestors(path, amount.Negate())
}

func (p *planner) planCopy(src, dst string) error {
	amount, ok, err := p.contents(src)
	if err != nil || !ok {
		return err
	}
	return p.addToAncestors(dst, amount)
}

// planRename removes the moved usage from monitored ancestors of the source
// only and adds it to monitored ancestors of the destination only.
func (p *planner) planRename(src, dst string) error {
	amount, ok, err := p.contents(src)
	if err != nil || !ok {
		return err
	}

	srcChain, err := p.monitoredChain(src)
	if err != nil {
		return err
	}
	dstChain, err := p.monitoredChain(dst)
	if err != nil {
		return err
	}

	if strings.Join(srcChain, "\x00") == strings.Join(dstChain, "\x00") {
		logger.Debug("Rename %s -> %s stays under the same monitored collections", src, dst)
		return nil
	}

	inDst := make(map[string]bool, len(dstChain))
	for _, c := range dstChain {
		inDst[c] = true
	}
	inSrc := make(map[string]bool, len(srcChain))
	for _, c := range srcChain {
		inSrc[c] = true
	}

	for _, c := range srcChain {
		if !inDst[c] {
			p.add(c, amount.Negate())
		}
	}
	for _, c := range dstChain {
		if !inSrc[c] {
			p.add(c, amount)
		}
	}
	return nil
}

// contents returns the usage held at path: one object and its logical size
// for a data object, or the recount of a collection subtree. The boolean
// is false when nothing exists at path.
func (p *planner) contents(path string) (quota.Delta, bool, error) {
	entry, err := p.stat(path)
	if err != nil || entry == nil {
		return quota.Delta{}, false, err
	}
	if !entry.IsCollection() {
		bytes, err := signedSize(path, entry.Object.LogicalSize())
		if err != nil {
			return quota.Delta{}, false, err
		}
		return quota.Delta{Objects: 1, Bytes: bytes}, true, nil
	}

	agg, err := p.tx.QueryHierarchyAggregate(path)
	if err != nil {
		return quota.Delta{}, false, err
	}
	objects, err := signedSize(path, agg.Objects)
	if err != nil {
		return quota.Delta{}, false, err
	}
	bytes, err := signedSize(path, agg.Bytes)
	if err != nil {
		return quota.Delta{}, false, err
	}
	return quota.Delta{Objects: objects, Bytes: bytes}, true, nil
}

// signedSize converts a size or count into a delta component. Values that
// do not fit in an int64 are refused.
func signedSize(path string, n uint64) (int64, error) {
	if n > math.MaxInt64 {
		return 0, oversizeError(path)
	}
	return int64(n), nil
}

func oversizeError(path string) error {
	return &metadata.StoreError{
		Code:    metadata.ErrInvalidArgument,
		Message: fmt.Sprintf("size exceeds the maximum of %d bytes", int64(math.MaxInt64)),
		Path:    path,
	}
}

// monitoredChain returns the monitored collections containing path, nearest
// first. Ancestors that do not exist yet are skipped.
func (p *planner) monitoredChain(path string) ([]string, error) {
	var chain []string
	for _, dir := range metadata.Ancestors(path) {
		monitored, ok := p.monitored[dir]
		if !ok {
			var err error
			monitored, err = p.ledger.IsMonitored(p.tx, dir)
			if metadata.IsNotFound(err) || metadata.IsCode(err, metadata.ErrNotDirectory) {
				monitored, err = false, nil
			}
			if err != nil {
				return nil, err
			}
			p.monitored[dir] = monitored
		}
		if monitored {
			chain = append(chain, dir)
		}
	}
	return chain, nil
}

func (p *planner) addToAncestors(path string, delta quota.Delta) error {
	if delta.IsZero() {
		return nil
	}
	chain, err := p.monitoredChain(path)
	if err != nil {
		return err
	}
	for _, c := range chain {
		p.add(c, delta)
	}
	return nil
}

func (p *planner) add(collection string, delta quota.Delta) {
	p.deltas[collection] = p.deltas[collection].Add(delta)
}

// adjustments returns the non-zero deltas, deepest collection first.
func (p *planner) adjustments() []Adjustment {
	out := make([]Adjustment, 0, len(p.deltas))
	for c, d := range p.deltas {
		if d.IsZero() {
			continue
		}
		out = append(out, Adjustment{Collection: c, Delta: d})
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := depth(out[i].Collection), depth(out[j].Collection)
		if di != dj {
			return di > dj
		}
		return out[i].Collection < out[j].Collection
	})
	return out
}

func depth(p string) int {
	if p == metadata.RootPath {
		return 0
	}
	return strings.Count(p, "/")
}
