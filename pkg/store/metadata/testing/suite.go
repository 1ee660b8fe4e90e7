package testing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittoquota/pkg/store/metadata"
	"github.com/stretchr/testify/require"
)

// StoreTestSuite is a comprehensive test suite for metadata.Store
// implementations. It tests the interface contract, not implementation
// details, making it reusable across the memory and badger backends.
type StoreTestSuite struct {
	// NewStore is a factory function that creates a fresh Store instance
	// for each test. This ensures test isolation.
	NewStore func(test *testing.T) metadata.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(test *testing.T) {
	test.Run("Attributes", suite.RunAttributeTests)
	test.Run("Namespace", suite.RunNamespaceTests)
	test.Run("Aggregate", suite.RunAggregateTests)
	test.Run("Transactions", suite.RunTransactionTests)
	test.Run("Healthcheck", suite.TestHealthcheck)
}

// TestHealthcheck verifies a fresh store reports healthy and holds the root.
func (suite *StoreTestSuite) TestHealthcheck(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()

	require.NoError(test, store.Healthcheck(ctx))

	err := store.View(ctx, func(tx metadata.Transaction) error {
		entry, err := tx.Stat(metadata.RootPath)
		if err != nil {
			return err
		}
		require.True(test, entry.IsCollection())
		return nil
	})
	require.NoError(test, err)
}

// ============================================================================
// Helpers
// ============================================================================

// MustMkdir creates every collection along path.
func MustMkdir(test *testing.T, store metadata.Store, path string) {
	test.Helper()

	err := store.Update(context.Background(), func(tx metadata.Transaction) error {
		for _, dir := range append(reverse(metadata.Ancestors(path)), path) {
			if _, err := tx.Stat(dir); err == nil {
				continue
			}
			if err := tx.CreateCollection(metadata.Collection{Path: dir, Owner: "alice", CreatedAt: time.Now()}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(test, err)
}

// MustPut stores a data object with one good replica of the given size.
func MustPut(test *testing.T, store metadata.Store, path string, size uint64) {
	test.Helper()

	err := store.Update(context.Background(), func(tx metadata.Transaction) error {
		return tx.PutDataObject(NewObject(path, size))
	})
	require.NoError(test, err)
}

// NewObject builds a data object with one good replica.
func NewObject(path string, size uint64) metadata.DataObject {
	now := time.Now()
	return metadata.DataObject{
		ID:    uuid.New(),
		Path:  path,
		Owner: "alice",
		Replicas: []metadata.Replica{
			{Number: 0, Resource: "demoResc", Size: size, Status: metadata.ReplicaGood},
		},
		CreatedAt:  now,
		ModifiedAt: now,
	}
}

func reverse(paths []string) []string {
	out := make([]string, 0, len(paths))
	for i := len(paths) - 1; i >= 0; i-- {
		out = append(out, paths[i])
	}
	return out
}

// requireCode asserts err is a *metadata.StoreError with the given code.
func requireCode(test *testing.T, err error, code metadata.ErrorCode) {
	test.Helper()

	require.Error(test, err)
	require.True(test, metadata.IsCode(err, code), "expected %s, got %v", code, err)
}
