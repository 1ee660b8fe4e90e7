package config

import (
	"context"
	"testing"

	"github.com/marmos91/dittoquota/pkg/quota"
	"github.com/marmos91/dittoquota/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMetadataStore(t *testing.T) {
	tests := []struct {
		name string
		cfg  MetadataConfig
	}{
		{
			name: "memory",
			cfg:  MetadataConfig{Type: "memory", Memory: map[string]any{"root_owner": "rods"}},
		},
		{
			name: "badger in memory",
			cfg:  MetadataConfig{Type: "badger", Badger: map[string]any{"in_memory": true, "root_owner": "rods", "conflict_retries": "32"}},
		},
		{
			name: "badger on disk",
			cfg:  MetadataConfig{Type: "badger", Badger: map[string]any{"db_path": ""}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.cfg.Badger != nil {
				if _, ok := tt.cfg.Badger["db_path"]; ok {
					tt.cfg.Badger["db_path"] = t.TempDir()
				}
			}

			store, err := CreateMetadataStore(context.Background(), &tt.cfg, nil)
			require.NoError(t, err)
			defer func() { _ = store.Close() }()

			require.NoError(t, store.Healthcheck(context.Background()))

			err = store.View(context.Background(), func(tx metadata.Transaction) error {
				entry, err := tx.Stat(metadata.RootPath)
				require.NoError(t, err)
				assert.True(t, entry.IsCollection())
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestCreateMetadataStore_Errors(t *testing.T) {
	_, err := CreateMetadataStore(context.Background(), &MetadataConfig{Type: "postgres"}, nil)
	assert.ErrorContains(t, err, "unknown metadata store type")

	_, err = CreateMetadataStore(context.Background(), &MetadataConfig{Type: "badger", Badger: map[string]any{}}, nil)
	assert.Error(t, err)

	_, err = CreateMetadataStore(context.Background(), &MetadataConfig{Type: "memory", Memory: map[string]any{"root_owner": []int{1}}}, nil)
	assert.ErrorContains(t, err, "invalid memory config")
}

func TestCreateLedger(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Quotas.Namespace = "irods"
	cfg.Quotas.RecalculateOnStart = true

	ledger, err := CreateLedger(&cfg.Quotas)
	require.NoError(t, err)
	assert.Equal(t, "irods::total_size_in_bytes", ledger.Attributes().TotalSizeInBytes())

	cfg.Quotas.MetadataAttributeNames.TotalSizeInBytes = "a::b"
	_, err = CreateLedger(&cfg.Quotas)
	assert.True(t, quota.IsCode(err, quota.ErrConfigurationMissing), "got %v", err)
}
