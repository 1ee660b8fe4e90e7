package badger

import (
	"context"
	"testing"

	"github.com/marmos91/dittoquota/pkg/store/metadata"
	metadatatesting "github.com/marmos91/dittoquota/pkg/store/metadata/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, config BadgerMetadataStoreConfig) *BadgerMetadataStore {
	t.Helper()

	store, err := NewBadgerMetadataStore(context.Background(), config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// TestBadgerMetadataStore runs the complete Store test suite against an
// in-memory BadgerDB instance.
func TestBadgerMetadataStore(t *testing.T) {
	suite := &metadatatesting.StoreTestSuite{
		NewStore: func(t *testing.T) metadata.Store {
			return newTestStore(t, BadgerMetadataStoreConfig{
				InMemory:        true,
				RootOwner:       "rods",
				ConflictRetries: 1000,
			})
		},
	}

	suite.Run(t)
}

// TestBadgerMetadataStore_Persistence verifies the catalog survives a reopen.
func TestBadgerMetadataStore_Persistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewBadgerMetadataStore(ctx, BadgerMetadataStoreConfig{DBPath: dir, RootOwner: "rods"})
	require.NoError(t, err)

	metadatatesting.MustMkdir(t, store, "/zone/home")
	metadatatesting.MustPut(t, store, "/zone/home/file", 42)
	err = store.Update(ctx, func(tx metadata.Transaction) error {
		return tx.SetAttribute("/zone/home", metadata.Attribute{Name: "k", Value: "v"})
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened := newTestStore(t, BadgerMetadataStoreConfig{DBPath: dir, RootOwner: "someone-else"})

	err = reopened.View(ctx, func(tx metadata.Transaction) error {
		root, err := tx.Stat(metadata.RootPath)
		require.NoError(t, err)
		assert.Equal(t, "rods", root.Collection.Owner)

		entry, err := tx.Stat("/zone/home/file")
		require.NoError(t, err)
		assert.Equal(t, uint64(42), entry.Object.LogicalSize())

		attr, ok, err := tx.GetAttribute("/zone/home", "k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "v", attr.Value)
		return nil
	})
	require.NoError(t, err)
}

// TestNewBadgerMetadataStore_RequiresPath verifies a missing db_path is rejected.
func TestNewBadgerMetadataStore_RequiresPath(t *testing.T) {
	_, err := NewBadgerMetadataStore(context.Background(), BadgerMetadataStoreConfig{})
	require.Error(t, err)
}

func TestParseAttributeKey(t *testing.T) {
	collection, name, ok := parseAttributeKey(keyAttribute("/zone/a", "ns::total"))
	require.True(t, ok)
	assert.Equal(t, "/zone/a", collection)
	assert.Equal(t, "ns::total", name)
}
