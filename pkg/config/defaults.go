package config

import (
	"strings"
	"time"

	"github.com/marmos91/dittoquota/pkg/quota"
	"github.com/marmos91/dittoquota/pkg/storage"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", nil) are replaced with defaults
//   - Explicit values are preserved
//   - Store-specific defaults are handled by store implementations
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyMetadataDefaults(&cfg.Metadata)
	applyStorageDefaults(&cfg.Storage)
	applyQuotasDefaults(&cfg.Quotas)
	applyMetricsDefaults(&cfg.Metrics)

	if cfg.Admin.Users == nil {
		cfg.Admin.Users = []string{"rods"}
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyMetadataDefaults sets metadata store defaults.
func applyMetadataDefaults(cfg *MetadataConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}

	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}

	// Applied to every store type so generated config files are complete
	if _, ok := cfg.Memory["root_owner"]; !ok {
		cfg.Memory["root_owner"] = "rods"
	}
	if _, ok := cfg.Badger["db_path"]; !ok {
		cfg.Badger["db_path"] = "/tmp/dittoquota-metadata"
	}
	if _, ok := cfg.Badger["root_owner"]; !ok {
		cfg.Badger["root_owner"] = "rods"
	}
	if _, ok := cfg.Badger["conflict_retries"]; !ok {
		cfg.Badger["conflict_retries"] = 16
	}
}

func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.DefaultResource == "" {
		cfg.DefaultResource = storage.DefaultResource
	}
}

// applyQuotasDefaults fills the ledger attribute mapping. Names left empty
// take the stable key of their role.
func applyQuotasDefaults(cfg *QuotasConfig) {
	if cfg.Namespace == "" {
		cfg.Namespace = quota.DefaultNamespace
	}

	names := &cfg.MetadataAttributeNames
	defaults := quota.DefaultAttributeNames()
	if names.MaximumNumberOfDataObjects == "" {
		names.MaximumNumberOfDataObjects = defaults.MaximumNumberOfDataObjects
	}
	if names.MaximumSizeInBytes == "" {
		names.MaximumSizeInBytes = defaults.MaximumSizeInBytes
	}
	if names.TotalNumberOfDataObjects == "" {
		names.TotalNumberOfDataObjects = defaults.TotalNumberOfDataObjects
	}
	if names.TotalSizeInBytes == "" {
		names.TotalSizeInBytes = defaults.TotalSizeInBytes
	}

	// ReconcileInterval defaults to 0 (disabled)
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Metadata: MetadataConfig{
			Memory: make(map[string]any),
			Badger: make(map[string]any),
		},
		Quotas: QuotasConfig{
			ReconcileInterval: time.Hour,
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
