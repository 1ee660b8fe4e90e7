package testing

import (
	"context"
	"testing"

	"github.com/marmos91/dittoquota/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *StoreTestSuite) RunAttributeTests(test *testing.T) {
	test.Run("SetAttribute_Upsert", suite.TestSetAttribute_Upsert)
	test.Run("AddAttribute_Duplicate", suite.TestAddAttribute_Duplicate)
	test.Run("UnsetAttribute_Idempotent", suite.TestUnsetAttribute_Idempotent)
	test.Run("ListAttributes_Sorted", suite.TestListAttributes_Sorted)
	test.Run("Attributes_MissingCollection", suite.TestAttributes_MissingCollection)
	test.Run("Attributes_OnDataObject", suite.TestAttributes_OnDataObject)
	test.Run("CollectionsWithAttribute", suite.TestCollectionsWithAttribute)
	test.Run("Attributes_ReadOnlyView", suite.TestAttributes_ReadOnlyView)
}

// TestSetAttribute_Upsert verifies set creates and then replaces a single value.
func (suite *StoreTestSuite) TestSetAttribute_Upsert(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()
	MustMkdir(test, store, "/zone/home")

	err := store.Update(ctx, func(tx metadata.Transaction) error {
		if err := tx.SetAttribute("/zone/home", metadata.Attribute{Name: "quota", Value: "1"}); err != nil {
			return err
		}
		return tx.SetAttribute("/zone/home", metadata.Attribute{Name: "quota", Value: "2", Unit: "bytes"})
	})
	require.NoError(test, err)

	err = store.View(ctx, func(tx metadata.Transaction) error {
		attr, ok, err := tx.GetAttribute("/zone/home", "quota")
		require.NoError(test, err)
		require.True(test, ok)
		assert.Equal(test, "2", attr.Value)
		assert.Equal(test, "bytes", attr.Unit)

		attrs, err := tx.ListAttributes("/zone/home")
		require.NoError(test, err)
		assert.Len(test, attrs, 1)
		return nil
	})
	require.NoError(test, err)
}

// TestAddAttribute_Duplicate verifies add refuses an existing name whatever
// its value or unit.
func (suite *StoreTestSuite) TestAddAttribute_Duplicate(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()
	MustMkdir(test, store, "/zone")

	tests := []struct {
		name string
		attr metadata.Attribute
	}{
		{name: "same_value", attr: metadata.Attribute{Name: "k", Value: "v"}},
		{name: "other_value", attr: metadata.Attribute{Name: "k", Value: "w"}},
		{name: "other_unit", attr: metadata.Attribute{Name: "k", Value: "v", Unit: "u"}},
	}

	err := store.Update(ctx, func(tx metadata.Transaction) error {
		return tx.AddAttribute("/zone", metadata.Attribute{Name: "k", Value: "v"})
	})
	require.NoError(test, err)

	for _, tt := range tests {
		test.Run(tt.name, func(t *testing.T) {
			err := store.Update(ctx, func(tx metadata.Transaction) error {
				return tx.AddAttribute("/zone", tt.attr)
			})
			requireCode(t, err, metadata.ErrDuplicateAttribute)
		})
	}

	err = store.View(ctx, func(tx metadata.Transaction) error {
		attr, _, err := tx.GetAttribute("/zone", "k")
		require.NoError(test, err)
		assert.Equal(test, metadata.Attribute{Name: "k", Value: "v"}, attr)
		return nil
	})
	require.NoError(test, err)
}

// TestUnsetAttribute_Idempotent verifies removing an absent attribute succeeds.
func (suite *StoreTestSuite) TestUnsetAttribute_Idempotent(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()
	MustMkdir(test, store, "/zone")

	err := store.Update(ctx, func(tx metadata.Transaction) error {
		if err := tx.SetAttribute("/zone", metadata.Attribute{Name: "k", Value: "v"}); err != nil {
			return err
		}
		if err := tx.UnsetAttribute("/zone", "k"); err != nil {
			return err
		}
		return tx.UnsetAttribute("/zone", "k")
	})
	require.NoError(test, err)

	err = store.View(ctx, func(tx metadata.Transaction) error {
		_, ok, err := tx.GetAttribute("/zone", "k")
		require.NoError(test, err)
		assert.False(test, ok)
		return nil
	})
	require.NoError(test, err)
}

// TestListAttributes_Sorted verifies listing order and isolation between
// collections sharing a path prefix.
func (suite *StoreTestSuite) TestListAttributes_Sorted(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()
	MustMkdir(test, store, "/zone/a")
	MustMkdir(test, store, "/zone/ab")

	err := store.Update(ctx, func(tx metadata.Transaction) error {
		for _, name := range []string{"c", "a", "b"} {
			if err := tx.SetAttribute("/zone/a", metadata.Attribute{Name: name, Value: name}); err != nil {
				return err
			}
		}
		return tx.SetAttribute("/zone/ab", metadata.Attribute{Name: "z", Value: "z"})
	})
	require.NoError(test, err)

	err = store.View(ctx, func(tx metadata.Transaction) error {
		attrs, err := tx.ListAttributes("/zone/a")
		require.NoError(test, err)
		require.Len(test, attrs, 3)
		assert.Equal(test, "a", attrs[0].Name)
		assert.Equal(test, "b", attrs[1].Name)
		assert.Equal(test, "c", attrs[2].Name)
		return nil
	})
	require.NoError(test, err)
}

// TestAttributes_MissingCollection verifies every attribute call reports
// ErrNotFound for an unknown collection.
func (suite *StoreTestSuite) TestAttributes_MissingCollection(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()

	err := store.Update(ctx, func(tx metadata.Transaction) error {
		_, _, err := tx.GetAttribute("/missing", "k")
		requireCode(test, err, metadata.ErrNotFound)

		_, err = tx.ListAttributes("/missing")
		requireCode(test, err, metadata.ErrNotFound)

		requireCode(test, tx.SetAttribute("/missing", metadata.Attribute{Name: "k"}), metadata.ErrNotFound)
		requireCode(test, tx.AddAttribute("/missing", metadata.Attribute{Name: "k"}), metadata.ErrNotFound)
		requireCode(test, tx.UnsetAttribute("/missing", "k"), metadata.ErrNotFound)
		return nil
	})
	require.NoError(test, err)
}

// TestAttributes_OnDataObject verifies attributes cannot be attached to a data object.
func (suite *StoreTestSuite) TestAttributes_OnDataObject(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()
	MustMkdir(test, store, "/zone")
	MustPut(test, store, "/zone/file", 1)

	err := store.Update(ctx, func(tx metadata.Transaction) error {
		return tx.SetAttribute("/zone/file", metadata.Attribute{Name: "k", Value: "v"})
	})
	requireCode(test, err, metadata.ErrNotDirectory)
}

// TestCollectionsWithAttribute verifies the reverse lookup by attribute name.
func (suite *StoreTestSuite) TestCollectionsWithAttribute(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()
	MustMkdir(test, store, "/zone/b")
	MustMkdir(test, store, "/zone/a")

	err := store.Update(ctx, func(tx metadata.Transaction) error {
		if err := tx.SetAttribute("/zone/b", metadata.Attribute{Name: "mark", Value: "1"}); err != nil {
			return err
		}
		if err := tx.SetAttribute("/zone/a", metadata.Attribute{Name: "mark", Value: "1"}); err != nil {
			return err
		}
		return tx.SetAttribute("/zone", metadata.Attribute{Name: "other", Value: "1"})
	})
	require.NoError(test, err)

	err = store.View(ctx, func(tx metadata.Transaction) error {
		paths, err := tx.CollectionsWithAttribute("mark")
		require.NoError(test, err)
		assert.Equal(test, []string{"/zone/a", "/zone/b"}, paths)
		return nil
	})
	require.NoError(test, err)
}

// TestAttributes_ReadOnlyView verifies writes are refused inside View.
func (suite *StoreTestSuite) TestAttributes_ReadOnlyView(test *testing.T) {
	store := suite.NewStore(test)
	ctx := context.Background()
	MustMkdir(test, store, "/zone")

	err := store.View(ctx, func(tx metadata.Transaction) error {
		return tx.SetAttribute("/zone", metadata.Attribute{Name: "k", Value: "v"})
	})
	requireCode(test, err, metadata.ErrInvalidArgument)
}
