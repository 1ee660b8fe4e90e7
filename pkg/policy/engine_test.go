package policy

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/marmos91/dittoquota/pkg/quota"
	"github.com/marmos91/dittoquota/pkg/store/metadata"
	"github.com/marmos91/dittoquota/pkg/store/metadata/memory"
	metadatatest "github.com/marmos91/dittoquota/pkg/store/metadata/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingMetrics captures decisions and violations.
type recordingMetrics struct {
	mu         sync.Mutex
	decisions  map[string]int
	violations map[string]int
	totals     map[string]quota.Totals
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		decisions:  make(map[string]int),
		violations: make(map[string]int),
		totals:     make(map[string]quota.Totals),
	}
}

func (m *recordingMetrics) RecordDecision(operation string, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions[operation+"/"+outcome]++
}

func (m *recordingMetrics) RecordViolation(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.violations[kind]++
}

func (m *recordingMetrics) RecordControl(command string, err error) {}

func (m *recordingMetrics) SetTotals(collection string, objects uint64, bytes uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totals[collection] = quota.Totals{Objects: objects, Bytes: bytes}
}

func (m *recordingMetrics) ForgetCollection(collection string) {}

type fixture struct {
	engine  *Engine
	ledger  *quota.Ledger
	store   metadata.Store
	metrics *recordingMetrics
}

// newFixture builds the tree
//
//	/zone/a          monitored
//	/zone/a/b        monitored
//	/zone/a/plain    not monitored
//	/zone/c          monitored
//	/zone/free       not monitored
func newFixture(t *testing.T) *fixture {
	t.Helper()

	attrs, err := quota.NewAttributes(quota.DefaultNamespace, quota.DefaultAttributeNames())
	require.NoError(t, err)
	ledger := quota.NewLedger(attrs)
	m := newRecordingMetrics()

	store := memory.NewMemoryMetadataStoreWithDefaults()
	for _, dir := range []string{"/zone/a/b", "/zone/a/plain", "/zone/c", "/zone/free"} {
		metadatatest.MustMkdir(t, store, dir)
	}
	err = store.Update(context.Background(), func(tx metadata.Transaction) error {
		for _, c := range []string{"/zone/a", "/zone/a/b", "/zone/c"} {
			if _, err := ledger.StartMonitoring(tx, c); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	return &fixture{engine: NewEngine(ledger, m), ledger: ledger, store: store, metrics: m}
}

func (f *fixture) plan(t *testing.T, op Operation) (*Plan, error) {
	t.Helper()

	var plan *Plan
	err := f.store.View(context.Background(), func(tx metadata.Transaction) error {
		var err error
		plan, err = f.engine.Before(tx, op)
		return err
	})
	return plan, err
}

func (f *fixture) adjustments(t *testing.T, op Operation) map[string]quota.Delta {
	t.Helper()

	plan, err := f.plan(t, op)
	require.NoError(t, err)

	out := make(map[string]quota.Delta, len(plan.Adjustments))
	for _, adj := range plan.Adjustments {
		out[adj.Collection] = adj.Delta
	}
	return out
}

func (f *fixture) totals(t *testing.T, collection string) quota.Totals {
	t.Helper()

	var totals quota.Totals
	err := f.store.View(context.Background(), func(tx metadata.Transaction) error {
		var err error
		totals, err = f.ledger.Totals(tx, collection)
		return err
	})
	require.NoError(t, err)
	return totals
}

func TestBefore_Deltas(t *testing.T) {
	f := newFixture(t)
	metadatatest.MustPut(t, f.store, "/zone/a/b/existing", 10)
	metadatatest.MustPut(t, f.store, "/zone/a/plain/existing", 4)
	metadatatest.MustPut(t, f.store, "/zone/free/existing", 6)

	tests := []struct {
		name string
		op   Operation
		want map[string]quota.Delta
	}{
		{
			name: "create new",
			op:   Operation{Kind: KindCreate, Path: "/zone/a/b/new"},
			want: map[string]quota.Delta{"/zone/a/b": {Objects: 1}, "/zone/a": {Objects: 1}},
		},
		{
			name: "create existing",
			op:   Operation{Kind: KindCreate, Path: "/zone/a/b/existing"},
			want: map[string]quota.Delta{},
		},
		{
			name: "put new skips unmonitored parent",
			op:   Operation{Kind: KindPut, Path: "/zone/a/plain/new", Size: 7},
			want: map[string]quota.Delta{"/zone/a": {Objects: 1, Bytes: 7}},
		},
		{
			name: "put overwrite",
			op:   Operation{Kind: KindPut, Path: "/zone/a/b/existing", Size: 3},
			want: map[string]quota.Delta{"/zone/a/b": {Bytes: -7}, "/zone/a": {Bytes: -7}},
		},
		{
			name: "append",
			op:   Operation{Kind: KindWrite, Path: "/zone/a/b/existing", Size: 5},
			want: map[string]quota.Delta{"/zone/a/b": {Bytes: 5}, "/zone/a": {Bytes: 5}},
		},
		{
			name: "truncate",
			op:   Operation{Kind: KindTruncate, Path: "/zone/a/b/existing", Size: 2},
			want: map[string]quota.Delta{"/zone/a/b": {Bytes: -8}, "/zone/a": {Bytes: -8}},
		},
		{
			name: "remove",
			op:   Operation{Kind: KindRemove, Path: "/zone/a/b/existing"},
			want: map[string]quota.Delta{"/zone/a/b": {Objects: -1, Bytes: -10}, "/zone/a": {Objects: -1, Bytes: -10}},
		},
		{
			name: "remove collection",
			op:   Operation{Kind: KindRemoveCollection, Path: "/zone/a/b"},
			want: map[string]quota.Delta{"/zone/a": {Objects: -1, Bytes: -10}},
		},
		{
			name: "copy object into monitored collection",
			op:   Operation{Kind: KindCopy, Path: "/zone/free/existing", Destination: "/zone/c/copy"},
			want: map[string]quota.Delta{"/zone/c": {Objects: 1, Bytes: 6}},
		},
		{
			name: "copy collection",
			op:   Operation{Kind: KindCopy, Path: "/zone/a", Destination: "/zone/c/a"},
			want: map[string]quota.Delta{"/zone/c": {Objects: 2, Bytes: 14}},
		},
		{
			name: "rename across monitored collections",
			op:   Operation{Kind: KindRename, Path: "/zone/a/b/existing", Destination: "/zone/c/moved"},
			want: map[string]quota.Delta{
				"/zone/a/b": {Objects: -1, Bytes: -10},
				"/zone/a":   {Objects: -1, Bytes: -10},
				"/zone/c":   {Objects: 1, Bytes: 10},
			},
		},
		{
			name: "rename keeps common ancestors",
			op:   Operation{Kind: KindRename, Path: "/zone/a/b/existing", Destination: "/zone/a/plain/moved"},
			want: map[string]quota.Delta{"/zone/a/b": {Objects: -1, Bytes: -10}},
		},
		{
			name: "rename within the same collection",
			op:   Operation{Kind: KindRename, Path: "/zone/a/b/existing", Destination: "/zone/a/b/renamed"},
			want: map[string]quota.Delta{},
		},
		{
			name: "rename monitored subtree",
			op:   Operation{Kind: KindRename, Path: "/zone/a/b", Destination: "/zone/c/b"},
			want: map[string]quota.Delta{"/zone/a": {Objects: -1, Bytes: -10}, "/zone/c": {Objects: 1, Bytes: 10}},
		},
		{
			name: "bulk put",
			op: Operation{Kind: KindBulkPut, Entries: []BulkEntry{
				{Path: "/zone/c/new/x", Size: 1},
				{Path: "/zone/c/new/deeper/y", Size: 2},
				{Path: "/zone/a/b/existing", Size: 12},
			}},
			want: map[string]quota.Delta{
				"/zone/c":   {Objects: 2, Bytes: 3},
				"/zone/a/b": {Bytes: 2},
				"/zone/a":   {Bytes: 2},
			},
		},
		{
			name: "missing target plans nothing",
			op:   Operation{Kind: KindRemove, Path: "/zone/a/missing"},
			want: map[string]quota.Delta{},
		},
		{
			name: "outside monitored collections",
			op:   Operation{Kind: KindPut, Path: "/zone/free/new", Size: 100},
			want: map[string]quota.Delta{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.adjustments(t, tt.op))
		})
	}
}

func TestBefore_NearestFirst(t *testing.T) {
	f := newFixture(t)

	plan, err := f.plan(t, Operation{Kind: KindPut, Path: "/zone/a/b/file", Size: 1})
	require.NoError(t, err)
	require.Len(t, plan.Adjustments, 2)
	assert.Equal(t, "/zone/a/b", plan.Adjustments[0].Collection)
	assert.Equal(t, "/zone/a", plan.Adjustments[1].Collection)
}

func TestBefore_RejectsOnAnyAncestor(t *testing.T) {
	f := newFixture(t)
	err := f.store.Update(context.Background(), func(tx metadata.Transaction) error {
		return f.ledger.SetMaxSizeBytes(tx, "/zone/a", 5)
	})
	require.NoError(t, err)

	_, err = f.plan(t, Operation{Kind: KindPut, Path: "/zone/a/b/file", Size: 6})
	require.Error(t, err)
	assert.True(t, quota.IsCode(err, quota.ErrSizeExceeded), "got %v", err)
	assert.Contains(t, err.Error(), "/zone/a]")

	assert.Equal(t, 1, f.metrics.violations["size_exceeded"])
	assert.Equal(t, 1, f.metrics.decisions["put/rejected"])
}

func TestBefore_BulkPutAllOrNothing(t *testing.T) {
	f := newFixture(t)
	err := f.store.Update(context.Background(), func(tx metadata.Transaction) error {
		return f.ledger.SetMaxObjectCount(tx, "/zone/c", 1)
	})
	require.NoError(t, err)

	_, err = f.plan(t, Operation{Kind: KindBulkPut, Entries: []BulkEntry{
		{Path: "/zone/c/dir/f1", Size: 20},
		{Path: "/zone/c/dir/f2", Size: 20},
		{Path: "/zone/c/dir/f3", Size: 20},
	}})
	assert.True(t, quota.IsCode(err, quota.ErrObjectCountExceeded), "got %v", err)
}

func TestBefore_NoLedger(t *testing.T) {
	var e *Engine
	_, err := e.Before(nil, Operation{Kind: KindPut, Path: "/x"})
	assert.True(t, quota.IsCode(err, quota.ErrConfigurationMissing), "got %v", err)

	_, err = NewEngine(&quota.Ledger{}, nil).Before(nil, Operation{Kind: KindPut, Path: "/x"})
	assert.True(t, quota.IsCode(err, quota.ErrConfigurationMissing), "got %v", err)
}

func TestBefore_UnknownKind(t *testing.T) {
	f := newFixture(t)

	_, err := f.plan(t, Operation{Kind: Kind(99), Path: "/zone/a/file"})
	assert.True(t, quota.IsCode(err, quota.ErrUnsupportedInput), "got %v", err)
}

func TestAfter_CommitsPlan(t *testing.T) {
	f := newFixture(t)

	var plan *Plan
	err := f.store.Update(context.Background(), func(tx metadata.Transaction) error {
		var err error
		op := Operation{Kind: KindPut, Path: "/zone/a/b/file", Size: 9}
		plan, err = f.engine.Before(tx, op)
		if err != nil {
			return err
		}
		outcome := tx.PutDataObject(metadatatest.NewObject(op.Path, op.Size))
		if err := f.engine.After(tx, plan, outcome); err != nil {
			return err
		}
		return outcome
	})
	require.NoError(t, err)
	f.engine.Publish(plan)

	assert.True(t, plan.Committed())
	assert.Equal(t, quota.Totals{Objects: 1, Bytes: 9}, f.totals(t, "/zone/a/b"))
	assert.Equal(t, quota.Totals{Objects: 1, Bytes: 9}, f.totals(t, "/zone/a"))
	assert.Equal(t, quota.Totals{Objects: 1, Bytes: 9}, f.metrics.totals["/zone/a"])
}

func TestAfter_FailedOperationChangesNothing(t *testing.T) {
	f := newFixture(t)
	errPhysical := errors.New("resource unavailable")

	err := f.store.Update(context.Background(), func(tx metadata.Transaction) error {
		plan, err := f.engine.Before(tx, Operation{Kind: KindPut, Path: "/zone/a/b/file", Size: 9})
		if err != nil {
			return err
		}
		require.NoError(t, f.engine.After(tx, plan, errPhysical))
		assert.False(t, plan.Committed())
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, quota.Totals{}, f.totals(t, "/zone/a/b"))
	assert.Equal(t, quota.Totals{}, f.totals(t, "/zone/a"))
}

func TestAfter_NilPlan(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.engine.After(nil, nil, nil))
	f.engine.Publish(nil)
}
