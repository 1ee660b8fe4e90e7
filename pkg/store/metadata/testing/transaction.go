package testing

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/marmos91/dittoquota/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func (suite *StoreTestSuite) RunTransactionTests(test *testing.T) {
	test.Run("Update_RollbackOnError", suite.TestUpdate_RollbackOnError)
	test.Run("Update_RollbackOnPanic", suite.TestUpdate_RollbackOnPanic)
	test.Run("Update_ReadYourWrites", suite.TestUpdate_ReadYourWrites)
	test.Run("Update_ConcurrentIncrements", suite.TestUpdate_ConcurrentIncrements)
	test.Run("Update_CancelledContext", suite.TestUpdate_CancelledContext)
}

// TestUpdate_RollbackOnError verifies a failing transaction leaves no trace.
func (suite *StoreTestSuite) TestUpdate_RollbackOnError(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()
	MustMkdir(test, store, "/zone/keep")
	MustPut(test, store, "/zone/keep/file", 5)

	errAbort := errors.New("abort")
	err := store.Update(ctx, func(tx metadata.Transaction) error {
		if err := tx.CreateCollection(metadata.Collection{Path: "/zone/new"}); err != nil {
			return err
		}
		if err := tx.PutDataObject(NewObject("/zone/new/file", 1)); err != nil {
			return err
		}
		if err := tx.SetAttribute("/zone/keep", metadata.Attribute{Name: "k", Value: "v"}); err != nil {
			return err
		}
		if err := tx.MoveEntry("/zone/keep/file", "/zone/new/moved"); err != nil {
			return err
		}
		return errAbort
	})
	require.ErrorIs(test, err, errAbort)

	err = store.View(ctx, func(tx metadata.Transaction) error {
		_, err := tx.Stat("/zone/new")
		requireCode(test, err, metadata.ErrNotFound)

		entry, err := tx.Stat("/zone/keep/file")
		require.NoError(test, err)
		assert.Equal(test, uint64(5), entry.Object.LogicalSize())

		_, ok, err := tx.GetAttribute("/zone/keep", "k")
		require.NoError(test, err)
		assert.False(test, ok)
		return nil
	})
	require.NoError(test, err)
}

// TestUpdate_RollbackOnPanic verifies a panicking transaction is discarded,
// the panic reaches the caller and the store stays usable.
func (suite *StoreTestSuite) TestUpdate_RollbackOnPanic(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()
	MustMkdir(test, store, "/zone/keep")
	MustPut(test, store, "/zone/keep/file", 5)

	require.PanicsWithValue(test, "boom", func() {
		_ = store.Update(ctx, func(tx metadata.Transaction) error {
			if err := tx.CreateCollection(metadata.Collection{Path: "/zone/new"}); err != nil {
				return err
			}
			if err := tx.SetAttribute("/zone/keep", metadata.Attribute{Name: "k", Value: "v"}); err != nil {
				return err
			}
			if err := tx.RemoveDataObject("/zone/keep/file"); err != nil {
				return err
			}
			panic("boom")
		})
	})

	err := store.View(ctx, func(tx metadata.Transaction) error {
		_, err := tx.Stat("/zone/new")
		requireCode(test, err, metadata.ErrNotFound)

		entry, err := tx.Stat("/zone/keep/file")
		require.NoError(test, err)
		assert.Equal(test, uint64(5), entry.Object.LogicalSize())

		_, ok, err := tx.GetAttribute("/zone/keep", "k")
		require.NoError(test, err)
		assert.False(test, ok)
		return nil
	})
	require.NoError(test, err)

	MustPut(test, store, "/zone/keep/other", 1)
}

// TestUpdate_ReadYourWrites verifies reads inside Update observe earlier writes.
func (suite *StoreTestSuite) TestUpdate_ReadYourWrites(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()
	MustMkdir(test, store, "/zone")

	err := store.Update(ctx, func(tx metadata.Transaction) error {
		if err := tx.CreateCollection(metadata.Collection{Path: "/zone/sub"}); err != nil {
			return err
		}
		if err := tx.PutDataObject(NewObject("/zone/sub/file", 9)); err != nil {
			return err
		}

		agg, err := tx.QueryHierarchyAggregate("/zone")
		require.NoError(test, err)
		assert.Equal(test, metadata.Aggregate{Objects: 1, Bytes: 9}, agg)

		entries, err := tx.ListCollection("/zone/sub")
		require.NoError(test, err)
		assert.Len(test, entries, 1)
		return nil
	})
	require.NoError(test, err)
}

// TestUpdate_ConcurrentIncrements verifies read-modify-write transactions are
// serialized: no increment is lost.
func (suite *StoreTestSuite) TestUpdate_ConcurrentIncrements(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()
	MustMkdir(test, store, "/zone")

	const workers = 8
	const perWorker = 25

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := 0; i < perWorker; i++ {
				err := store.Update(ctx, func(tx metadata.Transaction) error {
					attr, _, err := tx.GetAttribute("/zone", "counter")
					if err != nil {
						return err
					}
					n, _ := strconv.ParseUint(attr.Value, 10, 64)
					return tx.SetAttribute("/zone", metadata.Attribute{
						Name:  "counter",
						Value: strconv.FormatUint(n+1, 10),
					})
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(test, g.Wait())

	err := store.View(ctx, func(tx metadata.Transaction) error {
		attr, ok, err := tx.GetAttribute("/zone", "counter")
		require.NoError(test, err)
		require.True(test, ok)
		assert.Equal(test, strconv.Itoa(workers*perWorker), attr.Value)
		return nil
	})
	require.NoError(test, err)
}

// TestUpdate_CancelledContext verifies a cancelled context prevents the
// transaction from running.
func (suite *StoreTestSuite) TestUpdate_CancelledContext(test *testing.T) {
	store := suite.NewStore(test)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	err := store.Update(ctx, func(tx metadata.Transaction) error {
		ran = true
		return nil
	})
	require.ErrorIs(test, err, context.Canceled)
	assert.False(test, ran)
}
