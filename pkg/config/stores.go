package config

import (
	"context"
	"fmt"

	"github.com/marmos91/dittoquota/pkg/metrics"
	"github.com/marmos91/dittoquota/pkg/store/metadata"
	"github.com/marmos91/dittoquota/pkg/store/metadata/badger"
	metadatamemory "github.com/marmos91/dittoquota/pkg/store/metadata/memory"
	"github.com/mitchellh/mapstructure"
)

// CreateMetadataStore creates the metadata store selected by cfg.Type.
//
// The type-specific section is decoded into the backend's configuration
// struct with mapstructure.
//
// Supported types:
//   - "memory": Uses pkg/store/metadata/memory (volatile, for tests and demos)
//   - "badger": Uses pkg/store/metadata/badger (persistent)
//
// Parameters:
//   - ctx: Context for initialization operations
//   - cfg: Metadata store configuration
//   - m: Transaction metrics (nil for no-op)
//
// Returns:
//   - metadata.Store: Initialized store
//   - error: Configuration or initialization error
func CreateMetadataStore(ctx context.Context, cfg *MetadataConfig, m metrics.StoreMetrics) (metadata.Store, error) {
	switch cfg.Type {
	case "memory":
		return createMemoryMetadataStore(cfg.Memory, m)
	case "badger":
		return createBadgerMetadataStore(ctx, cfg.Badger, m)
	default:
		return nil, fmt.Errorf("unknown metadata store type: %q", cfg.Type)
	}
}

func createMemoryMetadataStore(options map[string]any, m metrics.StoreMetrics) (metadata.Store, error) {
	var memoryCfg metadatamemory.MemoryMetadataStoreConfig
	if err := mapstructure.Decode(options, &memoryCfg); err != nil {
		return nil, fmt.Errorf("invalid memory config: %w", err)
	}

	store := metadatamemory.NewMemoryMetadataStore(memoryCfg)
	store.SetMetrics(m)
	return store, nil
}

func createBadgerMetadataStore(ctx context.Context, options map[string]any, m metrics.StoreMetrics) (metadata.Store, error) {
	var badgerCfg badger.BadgerMetadataStoreConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &badgerCfg,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid badger config: %w", err)
	}
	if err := decoder.Decode(options); err != nil {
		return nil, fmt.Errorf("invalid badger config: %w", err)
	}

	store, err := badger.NewBadgerMetadataStore(ctx, badgerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	store.SetMetrics(m)
	return store, nil
}
