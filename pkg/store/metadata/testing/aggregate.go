package testing

import (
	"context"
	"testing"

	"github.com/marmos91/dittoquota/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *StoreTestSuite) RunAggregateTests(test *testing.T) {
	test.Run("Aggregate_Hierarchy", suite.TestAggregate_Hierarchy)
	test.Run("Aggregate_ReplicaDedup", suite.TestAggregate_ReplicaDedup)
	test.Run("Aggregate_StaleReplicas", suite.TestAggregate_StaleReplicas)
	test.Run("Aggregate_Empty", suite.TestAggregate_Empty)
	test.Run("WalkDataObjects_Order", suite.TestWalkDataObjects_Order)
}

// TestAggregate_Hierarchy verifies the recount covers nested collections only
// beneath the requested root.
func (suite *StoreTestSuite) TestAggregate_Hierarchy(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()
	MustMkdir(test, store, "/zone/a/b")
	MustMkdir(test, store, "/zone/ab")
	MustPut(test, store, "/zone/a/f1", 10)
	MustPut(test, store, "/zone/a/b/f2", 20)
	MustPut(test, store, "/zone/ab/f3", 40)

	err := store.View(ctx, func(tx metadata.Transaction) error {
		agg, err := tx.QueryHierarchyAggregate("/zone/a")
		require.NoError(test, err)
		assert.Equal(test, metadata.Aggregate{Objects: 2, Bytes: 30}, agg)

		agg, err = tx.QueryHierarchyAggregate(metadata.RootPath)
		require.NoError(test, err)
		assert.Equal(test, metadata.Aggregate{Objects: 3, Bytes: 70}, agg)
		return nil
	})
	require.NoError(test, err)
}

// TestAggregate_ReplicaDedup verifies extra replicas never add objects or bytes.
func (suite *StoreTestSuite) TestAggregate_ReplicaDedup(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()
	MustMkdir(test, store, "/zone")

	obj := NewObject("/zone/replicated", 8)
	obj.Replicas = append(obj.Replicas,
		metadata.Replica{Number: 1, Resource: "archive", Size: 8, Status: metadata.ReplicaGood},
		metadata.Replica{Number: 2, Resource: "cache", Size: 8, Status: metadata.ReplicaGood},
	)

	err := store.Update(ctx, func(tx metadata.Transaction) error {
		return tx.PutDataObject(obj)
	})
	require.NoError(test, err)

	err = store.View(ctx, func(tx metadata.Transaction) error {
		agg, err := tx.QueryHierarchyAggregate("/zone")
		require.NoError(test, err)
		assert.Equal(test, metadata.Aggregate{Objects: 1, Bytes: 8}, agg)
		return nil
	})
	require.NoError(test, err)
}

// TestAggregate_StaleReplicas verifies stale replicas are excluded from the
// byte sum and the first good replica is used.
func (suite *StoreTestSuite) TestAggregate_StaleReplicas(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()
	MustMkdir(test, store, "/zone")

	mixed := NewObject("/zone/mixed", 100)
	mixed.Replicas[0].Status = metadata.ReplicaStale
	mixed.Replicas = append(mixed.Replicas,
		metadata.Replica{Number: 1, Resource: "archive", Size: 12, Status: metadata.ReplicaGood},
	)

	allStale := NewObject("/zone/stale", 50)
	allStale.Replicas[0].Status = metadata.ReplicaStale

	err := store.Update(ctx, func(tx metadata.Transaction) error {
		if err := tx.PutDataObject(mixed); err != nil {
			return err
		}
		return tx.PutDataObject(allStale)
	})
	require.NoError(test, err)

	err = store.View(ctx, func(tx metadata.Transaction) error {
		agg, err := tx.QueryHierarchyAggregate("/zone")
		require.NoError(test, err)
		assert.Equal(test, metadata.Aggregate{Objects: 2, Bytes: 12}, agg)
		return nil
	})
	require.NoError(test, err)
}

// TestAggregate_Empty verifies an empty collection recounts to zero and a
// missing one is an error.
func (suite *StoreTestSuite) TestAggregate_Empty(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()
	MustMkdir(test, store, "/zone")

	err := store.View(ctx, func(tx metadata.Transaction) error {
		agg, err := tx.QueryHierarchyAggregate("/zone")
		require.NoError(test, err)
		assert.Equal(test, metadata.Aggregate{}, agg)

		_, err = tx.QueryHierarchyAggregate("/missing")
		requireCode(test, err, metadata.ErrNotFound)
		return nil
	})
	require.NoError(test, err)
}

// TestWalkDataObjects_Order verifies the walk visits objects in path order.
func (suite *StoreTestSuite) TestWalkDataObjects_Order(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()
	MustMkdir(test, store, "/zone/b")
	MustPut(test, store, "/zone/c", 1)
	MustPut(test, store, "/zone/b/a", 1)
	MustPut(test, store, "/zone/a", 1)

	var visited []string
	err := store.View(ctx, func(tx metadata.Transaction) error {
		return tx.WalkDataObjects("/zone", func(obj *metadata.DataObject) error {
			visited = append(visited, obj.Path)
			return nil
		})
	})
	require.NoError(test, err)
	assert.Equal(test, []string{"/zone/a", "/zone/b/a", "/zone/c"}, visited)
}
