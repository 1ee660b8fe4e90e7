package testing

import (
	"context"
	"testing"

	"github.com/marmos91/dittoquota/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *StoreTestSuite) RunNamespaceTests(test *testing.T) {
	test.Run("CreateCollection_Success", suite.TestCreateCollection_Success)
	test.Run("CreateCollection_Errors", suite.TestCreateCollection_Errors)
	test.Run("PutDataObject_CreateAndReplace", suite.TestPutDataObject_CreateAndReplace)
	test.Run("PutDataObject_Errors", suite.TestPutDataObject_Errors)
	test.Run("ListCollection_DirectChildren", suite.TestListCollection_DirectChildren)
	test.Run("RemoveDataObject", suite.TestRemoveDataObject)
	test.Run("RemoveCollection_Recursive", suite.TestRemoveCollection_Recursive)
	test.Run("MoveEntry_DataObject", suite.TestMoveEntry_DataObject)
	test.Run("MoveEntry_Subtree", suite.TestMoveEntry_Subtree)
	test.Run("MoveEntry_Errors", suite.TestMoveEntry_Errors)
	test.Run("InvalidPath", suite.TestInvalidPath)
}

// TestCreateCollection_Success verifies nested collections can be created.
func (suite *StoreTestSuite) TestCreateCollection_Success(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()
	MustMkdir(test, store, "/zone/home/alice")

	err := store.View(ctx, func(tx metadata.Transaction) error {
		entry, err := tx.Stat("/zone/home/alice/")
		require.NoError(test, err)
		assert.True(test, entry.IsCollection())
		assert.Equal(test, "/zone/home/alice", entry.Path)
		assert.Equal(test, "alice", entry.Collection.Owner)
		return nil
	})
	require.NoError(test, err)
}

// TestCreateCollection_Errors verifies parent and uniqueness checks.
func (suite *StoreTestSuite) TestCreateCollection_Errors(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()
	MustMkdir(test, store, "/zone")
	MustPut(test, store, "/zone/file", 1)

	tests := []struct {
		name string
		path string
		code metadata.ErrorCode
	}{
		{name: "missing_parent", path: "/nope/child", code: metadata.ErrNotFound},
		{name: "parent_is_object", path: "/zone/file/child", code: metadata.ErrNotDirectory},
		{name: "collection_exists", path: "/zone", code: metadata.ErrAlreadyExists},
		{name: "object_exists", path: "/zone/file", code: metadata.ErrAlreadyExists},
	}

	for _, tt := range tests {
		test.Run(tt.name, func(t *testing.T) {
			err := store.Update(ctx, func(tx metadata.Transaction) error {
				return tx.CreateCollection(metadata.Collection{Path: tt.path})
			})
			requireCode(t, err, tt.code)
		})
	}
}

// TestPutDataObject_CreateAndReplace verifies put replaces the stored record.
func (suite *StoreTestSuite) TestPutDataObject_CreateAndReplace(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()
	MustMkdir(test, store, "/zone")
	MustPut(test, store, "/zone/file", 10)
	MustPut(test, store, "/zone/file", 25)

	err := store.View(ctx, func(tx metadata.Transaction) error {
		entry, err := tx.Stat("/zone/file")
		require.NoError(test, err)
		assert.False(test, entry.IsCollection())
		assert.Equal(test, uint64(25), entry.Object.LogicalSize())
		assert.Len(test, entry.Object.Replicas, 1)
		return nil
	})
	require.NoError(test, err)
}

// TestPutDataObject_Errors verifies put rejects bad targets.
func (suite *StoreTestSuite) TestPutDataObject_Errors(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()
	MustMkdir(test, store, "/zone/coll")
	MustPut(test, store, "/zone/file", 1)

	tests := []struct {
		name string
		path string
		code metadata.ErrorCode
	}{
		{name: "missing_parent", path: "/nope/file", code: metadata.ErrNotFound},
		{name: "parent_is_object", path: "/zone/file/child", code: metadata.ErrNotDirectory},
		{name: "target_is_collection", path: "/zone/coll", code: metadata.ErrIsDirectory},
	}

	for _, tt := range tests {
		test.Run(tt.name, func(t *testing.T) {
			err := store.Update(ctx, func(tx metadata.Transaction) error {
				return tx.PutDataObject(NewObject(tt.path, 1))
			})
			requireCode(t, err, tt.code)
		})
	}
}

// TestListCollection_DirectChildren verifies listing excludes grandchildren
// and siblings sharing a name prefix.
func (suite *StoreTestSuite) TestListCollection_DirectChildren(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()
	MustMkdir(test, store, "/zone/a/sub")
	MustMkdir(test, store, "/zone/ab")
	MustPut(test, store, "/zone/a/file1", 1)
	MustPut(test, store, "/zone/a/sub/file2", 1)
	MustPut(test, store, "/zone/ab/file3", 1)

	err := store.View(ctx, func(tx metadata.Transaction) error {
		entries, err := tx.ListCollection("/zone/a")
		require.NoError(test, err)
		require.Len(test, entries, 2)
		assert.Equal(test, "/zone/a/file1", entries[0].Path)
		assert.Equal(test, metadata.EntryDataObject, entries[0].Type)
		assert.Equal(test, "/zone/a/sub", entries[1].Path)
		assert.Equal(test, metadata.EntryCollection, entries[1].Type)
		return nil
	})
	require.NoError(test, err)
}

// TestRemoveDataObject verifies removal and its error cases.
func (suite *StoreTestSuite) TestRemoveDataObject(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()
	MustMkdir(test, store, "/zone")
	MustPut(test, store, "/zone/file", 1)

	err := store.Update(ctx, func(tx metadata.Transaction) error {
		return tx.RemoveDataObject("/zone/file")
	})
	require.NoError(test, err)

	err = store.Update(ctx, func(tx metadata.Transaction) error {
		return tx.RemoveDataObject("/zone/file")
	})
	requireCode(test, err, metadata.ErrNotFound)

	err = store.Update(ctx, func(tx metadata.Transaction) error {
		return tx.RemoveDataObject("/zone")
	})
	requireCode(test, err, metadata.ErrIsDirectory)
}

// TestRemoveCollection_Recursive verifies a subtree and its attributes are
// removed while siblings survive.
func (suite *StoreTestSuite) TestRemoveCollection_Recursive(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()
	MustMkdir(test, store, "/zone/a/sub")
	MustMkdir(test, store, "/zone/ab")
	MustPut(test, store, "/zone/a/file", 1)
	MustPut(test, store, "/zone/a/sub/file", 1)
	MustPut(test, store, "/zone/ab/file", 1)

	err := store.Update(ctx, func(tx metadata.Transaction) error {
		if err := tx.SetAttribute("/zone/a/sub", metadata.Attribute{Name: "k", Value: "v"}); err != nil {
			return err
		}
		return tx.RemoveCollection("/zone/a")
	})
	require.NoError(test, err)

	err = store.View(ctx, func(tx metadata.Transaction) error {
		for _, path := range []string{"/zone/a", "/zone/a/sub", "/zone/a/file", "/zone/a/sub/file"} {
			_, err := tx.Stat(path)
			requireCode(test, err, metadata.ErrNotFound)
		}
		_, err := tx.Stat("/zone/ab/file")
		require.NoError(test, err)

		paths, err := tx.CollectionsWithAttribute("k")
		require.NoError(test, err)
		assert.Empty(test, paths)
		return nil
	})
	require.NoError(test, err)

	err = store.Update(ctx, func(tx metadata.Transaction) error {
		return tx.RemoveCollection(metadata.RootPath)
	})
	requireCode(test, err, metadata.ErrInvalidArgument)
}

// TestMoveEntry_DataObject verifies a data object keeps its identity when moved.
func (suite *StoreTestSuite) TestMoveEntry_DataObject(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()
	MustMkdir(test, store, "/zone/a")
	MustMkdir(test, store, "/zone/b")
	MustPut(test, store, "/zone/a/file", 7)

	var before *metadata.Entry
	err := store.Update(ctx, func(tx metadata.Transaction) error {
		var err error
		before, err = tx.Stat("/zone/a/file")
		if err != nil {
			return err
		}
		return tx.MoveEntry("/zone/a/file", "/zone/b/renamed")
	})
	require.NoError(test, err)

	err = store.View(ctx, func(tx metadata.Transaction) error {
		_, err := tx.Stat("/zone/a/file")
		requireCode(test, err, metadata.ErrNotFound)

		entry, err := tx.Stat("/zone/b/renamed")
		require.NoError(test, err)
		assert.Equal(test, before.Object.ID, entry.Object.ID)
		assert.Equal(test, "/zone/b/renamed", entry.Object.Path)
		assert.Equal(test, uint64(7), entry.Object.LogicalSize())
		return nil
	})
	require.NoError(test, err)
}

// TestMoveEntry_Subtree verifies descendants and attributes move with a collection.
func (suite *StoreTestSuite) TestMoveEntry_Subtree(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()
	MustMkdir(test, store, "/zone/src/inner")
	MustMkdir(test, store, "/zone/dst")
	MustPut(test, store, "/zone/src/inner/file", 3)

	err := store.Update(ctx, func(tx metadata.Transaction) error {
		if err := tx.SetAttribute("/zone/src/inner", metadata.Attribute{Name: "k", Value: "v"}); err != nil {
			return err
		}
		return tx.MoveEntry("/zone/src", "/zone/dst/moved")
	})
	require.NoError(test, err)

	err = store.View(ctx, func(tx metadata.Transaction) error {
		_, err := tx.Stat("/zone/src")
		requireCode(test, err, metadata.ErrNotFound)

		entry, err := tx.Stat("/zone/dst/moved/inner/file")
		require.NoError(test, err)
		assert.Equal(test, uint64(3), entry.Object.LogicalSize())

		attr, ok, err := tx.GetAttribute("/zone/dst/moved/inner", "k")
		require.NoError(test, err)
		require.True(test, ok)
		assert.Equal(test, "v", attr.Value)
		return nil
	})
	require.NoError(test, err)
}

// TestMoveEntry_Errors verifies move preconditions.
func (suite *StoreTestSuite) TestMoveEntry_Errors(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()
	MustMkdir(test, store, "/zone/a/inner")
	MustMkdir(test, store, "/zone/b")
	MustPut(test, store, "/zone/b/file", 1)

	tests := []struct {
		name string
		src  string
		dst  string
		code metadata.ErrorCode
	}{
		{name: "missing_source", src: "/zone/none", dst: "/zone/x", code: metadata.ErrNotFound},
		{name: "destination_taken", src: "/zone/a", dst: "/zone/b/file", code: metadata.ErrAlreadyExists},
		{name: "missing_destination_parent", src: "/zone/a", dst: "/nope/a", code: metadata.ErrNotFound},
		{name: "into_itself", src: "/zone/a", dst: "/zone/a/inner/a", code: metadata.ErrInvalidArgument},
		{name: "root", src: "/", dst: "/zone/root", code: metadata.ErrInvalidArgument},
	}

	for _, tt := range tests {
		test.Run(tt.name, func(t *testing.T) {
			err := store.Update(ctx, func(tx metadata.Transaction) error {
				return tx.MoveEntry(tt.src, tt.dst)
			})
			requireCode(t, err, tt.code)
		})
	}
}

// TestInvalidPath verifies relative paths are rejected.
func (suite *StoreTestSuite) TestInvalidPath(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()

	err := store.View(ctx, func(tx metadata.Transaction) error {
		_, err := tx.Stat("relative/path")
		return err
	})
	requireCode(test, err, metadata.ErrInvalidArgument)
}
