package storage

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/marmos91/dittoquota/pkg/policy"
	"github.com/marmos91/dittoquota/pkg/quota"
	"github.com/marmos91/dittoquota/pkg/store/metadata"
	badgerstore "github.com/marmos91/dittoquota/pkg/store/metadata/badger"
	"github.com/marmos91/dittoquota/pkg/store/metadata/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type testNamespace struct {
	*Namespace
	ledger *quota.Ledger
}

func newMemoryStore(t *testing.T) metadata.Store {
	return memory.NewMemoryMetadataStoreWithDefaults()
}

func newBadgerStore(t *testing.T) metadata.Store {
	t.Helper()

	store, err := badgerstore.NewBadgerMetadataStore(context.Background(), badgerstore.BadgerMetadataStoreConfig{
		InMemory:        true,
		RootOwner:       "rods",
		ConflictRetries: 1000,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

var backends = []struct {
	name     string
	newStore func(t *testing.T) metadata.Store
}{
	{name: "memory", newStore: newMemoryStore},
	{name: "badger", newStore: newBadgerStore},
}

func newTestNamespace(t *testing.T, store metadata.Store) *testNamespace {
	t.Helper()

	attrs, err := quota.NewAttributes(quota.DefaultNamespace, quota.DefaultAttributeNames())
	require.NoError(t, err)
	ledger := quota.NewLedger(attrs)

	ns := NewNamespace(store, policy.NewEngine(ledger, nil), "")
	require.NoError(t, ns.Mkdir(context.Background(), "rods", "/tempZone/home", true))
	return &testNamespace{Namespace: ns, ledger: ledger}
}

func (ns *testNamespace) control(t *testing.T, fn func(tx metadata.Transaction) error) {
	t.Helper()
	require.NoError(t, ns.Store().Update(context.Background(), fn))
}

func (ns *testNamespace) monitor(t *testing.T, collection string, maxObjects, maxBytes *uint64) {
	t.Helper()

	ns.control(t, func(tx metadata.Transaction) error {
		if _, err := ns.ledger.StartMonitoring(tx, collection); err != nil {
			return err
		}
		if maxObjects != nil {
			if err := ns.ledger.SetMaxObjectCount(tx, collection, *maxObjects); err != nil {
				return err
			}
		}
		if maxBytes != nil {
			return ns.ledger.SetMaxSizeBytes(tx, collection, *maxBytes)
		}
		return nil
	})
}

func (ns *testNamespace) totals(t *testing.T, collection string) quota.Totals {
	t.Helper()

	var totals quota.Totals
	err := ns.Store().View(context.Background(), func(tx metadata.Transaction) error {
		var err error
		totals, err = ns.ledger.Totals(tx, collection)
		return err
	})
	require.NoError(t, err)
	return totals
}

func (ns *testNamespace) recount(t *testing.T, collection string) quota.Totals {
	t.Helper()

	var agg metadata.Aggregate
	err := ns.Store().View(context.Background(), func(tx metadata.Transaction) error {
		var err error
		agg, err = tx.QueryHierarchyAggregate(collection)
		return err
	})
	require.NoError(t, err)
	return quota.Totals{Objects: agg.Objects, Bytes: agg.Bytes}
}

func (ns *testNamespace) exists(t *testing.T, path string) bool {
	t.Helper()

	_, err := ns.Stat(context.Background(), path)
	if metadata.IsNotFound(err) {
		return false
	}
	require.NoError(t, err)
	return true
}

func u64(v uint64) *uint64 {
	return &v
}

func TestScenario_ObjectAndSizeLimits(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ns := newTestNamespace(t, b.newStore(t))
			ctx := context.Background()
			coll := "/tempZone/home/C"

			require.NoError(t, ns.Mkdir(ctx, "alice", coll, false))
			ns.monitor(t, coll, u64(2), u64(15))

			_, err := ns.Put(ctx, "alice", coll+"/four", 4, PutOptions{})
			require.NoError(t, err)
			assert.Equal(t, quota.Totals{Objects: 1, Bytes: 4}, ns.totals(t, coll))

			_, err = ns.Put(ctx, "alice", coll+"/hundred", 100, PutOptions{})
			assert.True(t, quota.IsCode(err, quota.ErrSizeExceeded), "got %v", err)
			assert.Equal(t, quota.Totals{Objects: 1, Bytes: 4}, ns.totals(t, coll))
			assert.False(t, ns.exists(t, coll+"/hundred"))

			_, err = ns.Put(ctx, "alice", coll+"/six", 6, PutOptions{})
			require.NoError(t, err)
			assert.Equal(t, quota.Totals{Objects: 2, Bytes: 10}, ns.totals(t, coll))

			_, err = ns.Put(ctx, "alice", coll+"/one", 1, PutOptions{})
			assert.True(t, quota.IsCode(err, quota.ErrObjectCountExceeded), "got %v", err)
			_, err = ns.Create(ctx, "alice", coll+"/empty")
			assert.True(t, quota.IsCode(err, quota.ErrObjectCountExceeded), "got %v", err)
			assert.Equal(t, quota.Totals{Objects: 2, Bytes: 10}, ns.totals(t, coll))
		})
	}
}

func TestScenario_BulkPutRejectedEntirely(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ns := newTestNamespace(t, b.newStore(t))
			ctx := context.Background()
			coll := "/tempZone/home/col"

			require.NoError(t, ns.Mkdir(ctx, "alice", coll, false))
			ns.monitor(t, coll, u64(1), nil)

			err := ns.BulkPut(ctx, "alice", coll+"/dir", []BulkFile{
				{RelativePath: "f1", Size: 20},
				{RelativePath: "f2", Size: 20},
				{RelativePath: "sub/f3", Size: 20},
			}, PutOptions{})
			assert.True(t, quota.IsCode(err, quota.ErrObjectCountExceeded), "got %v", err)

			assert.Equal(t, quota.Totals{}, ns.totals(t, coll))
			assert.False(t, ns.exists(t, coll+"/dir"))
			assert.False(t, ns.exists(t, coll+"/dir/f1"))
		})
	}
}

func TestScenario_CopyPropagatesToMonitoredAncestor(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ns := newTestNamespace(t, b.newStore(t))
			ctx := context.Background()
			a := "/tempZone/home/A"
			child := a + "/B"

			require.NoError(t, ns.Mkdir(ctx, "alice", child, true))
			_, err := ns.Put(ctx, "alice", a+"/foo", 1, PutOptions{})
			require.NoError(t, err)

			ns.control(t, func(tx metadata.Transaction) error {
				if _, err := ns.ledger.StartMonitoring(tx, a); err != nil {
					return err
				}
				_, err := ns.ledger.RecalculateTotals(tx, a)
				return err
			})
			ns.control(t, func(tx metadata.Transaction) error {
				if err := ns.ledger.SetMaxObjectCount(tx, a, 4); err != nil {
					return err
				}
				return ns.ledger.SetMaxSizeBytes(tx, a, 100)
			})
			ns.monitor(t, child, u64(1), u64(100))

			require.NoError(t, ns.Copy(ctx, "alice", a+"/foo", child+"/foo"))
			assert.Equal(t, quota.Totals{Objects: 1, Bytes: 1}, ns.totals(t, child))
			assert.Equal(t, quota.Totals{Objects: 2, Bytes: 2}, ns.totals(t, a))

			err = ns.Copy(ctx, "alice", a+"/foo", child+"/bar")
			assert.True(t, quota.IsCode(err, quota.ErrObjectCountExceeded), "got %v", err)
			assert.Equal(t, quota.Totals{Objects: 2, Bytes: 2}, ns.totals(t, a))
		})
	}
}

func TestHierarchicalPropagation(t *testing.T) {
	ns := newTestNamespace(t, newMemoryStore(t))
	ctx := context.Background()

	require.NoError(t, ns.Mkdir(ctx, "alice", "/tempZone/home/outer/middle/inner", true))
	ns.monitor(t, "/tempZone/home/outer", nil, nil)
	ns.monitor(t, "/tempZone/home/outer/middle/inner", nil, nil)

	_, err := ns.Put(ctx, "alice", "/tempZone/home/outer/middle/inner/file", 42, PutOptions{})
	require.NoError(t, err)

	assert.Equal(t, quota.Totals{Objects: 1, Bytes: 42}, ns.totals(t, "/tempZone/home/outer"))
	assert.Equal(t, quota.Totals{Objects: 1, Bytes: 42}, ns.totals(t, "/tempZone/home/outer/middle/inner"))
}

func TestObjectLifecycle(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ns := newTestNamespace(t, b.newStore(t))
			ctx := context.Background()
			coll := "/tempZone/home/life"
			file := coll + "/file"

			require.NoError(t, ns.Mkdir(ctx, "alice", coll, false))
			ns.monitor(t, coll, nil, u64(50))

			steps := []struct {
				name string
				run  func() error
				want quota.Totals
			}{
				{name: "touch", run: func() error { _, err := ns.Create(ctx, "alice", file); return err }, want: quota.Totals{Objects: 1}},
				{name: "touch again", run: func() error { _, err := ns.Create(ctx, "alice", file); return err }, want: quota.Totals{Objects: 1}},
				{name: "append", run: func() error { _, err := ns.Write(ctx, "alice", file, 10); return err }, want: quota.Totals{Objects: 1, Bytes: 10}},
				{name: "overwrite", run: func() error { _, err := ns.Put(ctx, "alice", file, 30, PutOptions{Force: true}); return err }, want: quota.Totals{Objects: 1, Bytes: 30}},
				{name: "truncate", run: func() error { _, err := ns.Truncate(ctx, "alice", file, 5); return err }, want: quota.Totals{Objects: 1, Bytes: 5}},
				{name: "remove", run: func() error { return ns.Remove(ctx, "alice", file) }, want: quota.Totals{}},
			}

			for _, step := range steps {
				require.NoError(t, step.run(), step.name)
				assert.Equal(t, step.want, ns.totals(t, coll), step.name)
			}
		})
	}
}

func TestRejectedOperationsLeaveLedgerUntouched(t *testing.T) {
	ns := newTestNamespace(t, newMemoryStore(t))
	ctx := context.Background()
	coll := "/tempZone/home/tight"

	require.NoError(t, ns.Mkdir(ctx, "alice", coll, false))
	_, err := ns.Put(ctx, "alice", "/tempZone/home/big", 80, PutOptions{})
	require.NoError(t, err)
	ns.monitor(t, coll, nil, u64(20))
	_, err = ns.Put(ctx, "alice", coll+"/small", 10, PutOptions{})
	require.NoError(t, err)

	before := ns.totals(t, coll)

	_, err = ns.Write(ctx, "alice", coll+"/small", 11)
	assert.True(t, quota.IsViolation(err), "got %v", err)
	err = ns.Copy(ctx, "alice", "/tempZone/home/big", coll+"/big")
	assert.True(t, quota.IsViolation(err), "got %v", err)
	err = ns.Rename(ctx, "alice", "/tempZone/home/big", coll+"/big")
	assert.True(t, quota.IsViolation(err), "got %v", err)
	_, err = ns.Put(ctx, "alice", coll+"/small", 21, PutOptions{Force: true})
	assert.True(t, quota.IsViolation(err), "got %v", err)

	assert.Equal(t, before, ns.totals(t, coll))
	assert.True(t, ns.exists(t, "/tempZone/home/big"))
	assert.False(t, ns.exists(t, coll+"/big"))
}

func TestPhysicalFailureLeavesLedgerUntouched(t *testing.T) {
	ns := newTestNamespace(t, newMemoryStore(t))
	ctx := context.Background()
	coll := "/tempZone/home/c"

	require.NoError(t, ns.Mkdir(ctx, "alice", coll, false))
	ns.monitor(t, coll, nil, nil)
	_, err := ns.Put(ctx, "alice", coll+"/file", 3, PutOptions{})
	require.NoError(t, err)

	tests := []struct {
		name string
		run  func() error
		code metadata.ErrorCode
	}{
		{name: "put without force", run: func() error { _, err := ns.Put(ctx, "alice", coll+"/file", 9, PutOptions{}); return err }, code: metadata.ErrAlreadyExists},
		{name: "put into missing collection", run: func() error { _, err := ns.Put(ctx, "alice", coll+"/nope/file", 9, PutOptions{}); return err }, code: metadata.ErrNotFound},
		{name: "write missing object", run: func() error { _, err := ns.Write(ctx, "alice", coll+"/missing", 9); return err }, code: metadata.ErrNotFound},
		{name: "remove collection as object", run: func() error { return ns.Remove(ctx, "alice", coll) }, code: metadata.ErrIsDirectory},
		{name: "copy onto existing", run: func() error { return ns.Copy(ctx, "alice", coll+"/file", coll+"/file") }, code: metadata.ErrInvalidArgument},
		{name: "rename into itself", run: func() error { return ns.Rename(ctx, "alice", coll, coll+"/sub") }, code: metadata.ErrInvalidArgument},
		{name: "relative path", run: func() error { return ns.Remove(ctx, "alice", "file") }, code: metadata.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			assert.True(t, metadata.IsCode(err, tt.code), "got %v", err)
			assert.Equal(t, quota.Totals{Objects: 1, Bytes: 3}, ns.totals(t, coll))
		})
	}
}

func TestOversizedObjectsRejected(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ns := newTestNamespace(t, b.newStore(t))
			ctx := context.Background()
			coll := "/tempZone/home/C"

			require.NoError(t, ns.Mkdir(ctx, "alice", coll, false))
			ns.monitor(t, coll, u64(10), u64(15))
			_, err := ns.Put(ctx, "alice", coll+"/small", 4, PutOptions{})
			require.NoError(t, err)

			tests := []struct {
				name string
				run  func() error
			}{
				{name: "put", run: func() error { _, err := ns.Put(ctx, "alice", coll+"/huge", 1<<63, PutOptions{}); return err }},
				{name: "put max uint64", run: func() error {
					_, err := ns.Put(ctx, "alice", coll+"/huge", math.MaxUint64, PutOptions{})
					return err
				}},
				{name: "forced overwrite", run: func() error {
					_, err := ns.Put(ctx, "alice", coll+"/small", 1<<63, PutOptions{Force: true})
					return err
				}},
				{name: "append", run: func() error { _, err := ns.Write(ctx, "alice", coll+"/small", math.MaxInt64); return err }},
				{name: "truncate", run: func() error { _, err := ns.Truncate(ctx, "alice", coll+"/small", 1<<63); return err }},
				{name: "bulk put sum", run: func() error {
					return ns.BulkPut(ctx, "alice", coll+"/bulk", []BulkFile{
						{RelativePath: "a", Size: 1 << 62},
						{RelativePath: "b", Size: 1 << 62},
					}, PutOptions{})
				}},
				{name: "put outside monitored collection", run: func() error {
					_, err := ns.Put(ctx, "alice", "/tempZone/home/huge", 1<<63, PutOptions{})
					return err
				}},
			}

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					err := tt.run()
					require.Error(t, err)
					assert.True(t, metadata.IsCode(err, metadata.ErrInvalidArgument), "got %v", err)
					assert.Equal(t, quota.Totals{Objects: 1, Bytes: 4}, ns.totals(t, coll))
					assert.Equal(t, ns.recount(t, coll), ns.totals(t, coll))
				})
			}

			assert.False(t, ns.exists(t, coll+"/huge"))
			assert.False(t, ns.exists(t, coll+"/bulk"))
			assert.False(t, ns.exists(t, "/tempZone/home/huge"))

			_, err = ns.Put(ctx, "alice", coll+"/big", math.MaxInt64, PutOptions{})
			assert.True(t, quota.IsCode(err, quota.ErrSizeExceeded), "got %v", err)
			assert.Equal(t, quota.Totals{Objects: 1, Bytes: 4}, ns.totals(t, coll))
		})
	}
}

func TestRenameAndRemoveCollection(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ns := newTestNamespace(t, b.newStore(t))
			ctx := context.Background()
			src := "/tempZone/home/src"
			dst := "/tempZone/home/dst"

			require.NoError(t, ns.Mkdir(ctx, "alice", src+"/sub", true))
			require.NoError(t, ns.Mkdir(ctx, "alice", dst, false))
			ns.monitor(t, src, nil, nil)
			ns.monitor(t, src+"/sub", nil, nil)
			ns.monitor(t, dst, nil, nil)
			ns.monitor(t, "/tempZone/home", nil, nil)

			_, err := ns.Put(ctx, "alice", src+"/sub/a", 5, PutOptions{})
			require.NoError(t, err)
			_, err = ns.Put(ctx, "alice", src+"/b", 7, PutOptions{})
			require.NoError(t, err)

			// Rename in place: no monitored collection changes
			require.NoError(t, ns.Rename(ctx, "alice", src+"/b", src+"/b2"))
			assert.Equal(t, quota.Totals{Objects: 2, Bytes: 12}, ns.totals(t, src))

			// Move the monitored subtree to dst, keeping its own totals
			require.NoError(t, ns.Rename(ctx, "alice", src+"/sub", dst+"/sub"))
			assert.Equal(t, quota.Totals{Objects: 1, Bytes: 7}, ns.totals(t, src))
			assert.Equal(t, quota.Totals{Objects: 1, Bytes: 5}, ns.totals(t, dst))
			assert.Equal(t, quota.Totals{Objects: 1, Bytes: 5}, ns.totals(t, dst+"/sub"))
			assert.Equal(t, quota.Totals{Objects: 2, Bytes: 12}, ns.totals(t, "/tempZone/home"))

			require.NoError(t, ns.RemoveCollection(ctx, "alice", dst+"/sub"))
			assert.Equal(t, quota.Totals{}, ns.totals(t, dst))
			assert.Equal(t, quota.Totals{Objects: 1, Bytes: 7}, ns.totals(t, "/tempZone/home"))

			// A copied collection does not inherit the ledger attributes
			require.NoError(t, ns.Copy(ctx, "alice", src, dst+"/copy"))
			assert.Equal(t, quota.Totals{Objects: 1, Bytes: 7}, ns.totals(t, dst))
			err = ns.Store().View(ctx, func(tx metadata.Transaction) error {
				monitored, err := ns.ledger.IsMonitored(tx, dst+"/copy")
				assert.False(t, monitored)
				return err
			})
			require.NoError(t, err)
		})
	}
}

func TestReplicasDoNotChangeUsage(t *testing.T) {
	ns := newTestNamespace(t, newMemoryStore(t))
	ctx := context.Background()
	coll := "/tempZone/home/rep"

	require.NoError(t, ns.Mkdir(ctx, "alice", coll, false))
	ns.monitor(t, coll, u64(1), nil)
	_, err := ns.Put(ctx, "alice", coll+"/file", 8, PutOptions{})
	require.NoError(t, err)

	obj, err := ns.Replicate(ctx, "alice", coll+"/file", "archive")
	require.NoError(t, err)
	assert.Len(t, obj.Replicas, 2)

	_, err = ns.Replicate(ctx, "alice", coll+"/file", "archive")
	assert.True(t, metadata.IsCode(err, metadata.ErrAlreadyExists), "got %v", err)

	assert.Equal(t, quota.Totals{Objects: 1, Bytes: 8}, ns.totals(t, coll))
	assert.Equal(t, quota.Totals{Objects: 1, Bytes: 8}, ns.recount(t, coll))

	// Stale replicas are excluded from the recount
	require.NoError(t, ns.SetReplicaStatus(ctx, "alice", coll+"/file", 0, metadata.ReplicaStale))
	require.NoError(t, ns.SetReplicaStatus(ctx, "alice", coll+"/file", 1, metadata.ReplicaStale))
	assert.Equal(t, quota.Totals{Objects: 1, Bytes: 0}, ns.recount(t, coll))

	_, err = ns.Replicate(ctx, "alice", coll+"/file", "cache")
	assert.True(t, metadata.IsCode(err, metadata.ErrInvalidArgument), "got %v", err)
}

func TestTotalsMatchRecount(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ns := newTestNamespace(t, b.newStore(t))
			ctx := context.Background()
			root := "/tempZone/home/mix"

			require.NoError(t, ns.Mkdir(ctx, "alice", root+"/x/y", true))
			require.NoError(t, ns.Mkdir(ctx, "alice", "/tempZone/home/other", false))
			ns.monitor(t, root, nil, nil)
			ns.monitor(t, root+"/x/y", nil, nil)

			require.NoError(t, ns.BulkPut(ctx, "alice", root+"/bulk", []BulkFile{
				{RelativePath: "a", Size: 3},
				{RelativePath: "deep/b", Size: 4},
			}, PutOptions{}))
			_, err := ns.Put(ctx, "alice", root+"/x/y/f", 11, PutOptions{})
			require.NoError(t, err)
			_, err = ns.Put(ctx, "alice", "/tempZone/home/other/g", 13, PutOptions{})
			require.NoError(t, err)
			require.NoError(t, ns.Rename(ctx, "alice", "/tempZone/home/other/g", root+"/x/g"))
			require.NoError(t, ns.Copy(ctx, "alice", root+"/bulk", root+"/x/y/bulk"))
			_, err = ns.Write(ctx, "alice", root+"/x/y/bulk/a", 2)
			require.NoError(t, err)
			require.NoError(t, ns.Rename(ctx, "alice", root+"/x/y/f", "/tempZone/home/other/f"))
			require.NoError(t, ns.RemoveCollection(ctx, "alice", root+"/bulk/deep"))

			for _, c := range []string{root, root + "/x/y"} {
				assert.Equal(t, ns.recount(t, c), ns.totals(t, c), c)
			}
		})
	}
}

func TestConcurrentPutsMatchRecount(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ns := newTestNamespace(t, b.newStore(t))
			ctx := context.Background()
			root := "/tempZone/home/shared"

			const workers = 8
			const perWorker = 10

			for w := 0; w < workers; w++ {
				require.NoError(t, ns.Mkdir(ctx, "alice", fmt.Sprintf("%s/w%d", root, w), true))
			}
			ns.monitor(t, root, nil, nil)
			ns.monitor(t, "/tempZone/home", nil, nil)

			var g errgroup.Group
			for w := 0; w < workers; w++ {
				g.Go(func() error {
					for i := 0; i < perWorker; i++ {
						path := fmt.Sprintf("%s/w%d/f%d", root, w, i)
						if _, err := ns.Put(ctx, "alice", path, uint64(i+1), PutOptions{}); err != nil {
							return err
						}
					}
					return nil
				})
			}
			require.NoError(t, g.Wait())

			want := quota.Totals{Objects: workers * perWorker, Bytes: workers * (perWorker * (perWorker + 1) / 2)}
			assert.Equal(t, want, ns.totals(t, root))
			assert.Equal(t, want, ns.totals(t, "/tempZone/home"))
			assert.Equal(t, ns.recount(t, root), ns.totals(t, root))
		})
	}
}
