package config

import (
	"testing"
	"time"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_Metadata(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Metadata.Type != "memory" {
		t.Errorf("Expected default metadata type 'memory', got %q", cfg.Metadata.Type)
	}
	if cfg.Metadata.Badger["db_path"] != "/tmp/dittoquota-metadata" {
		t.Errorf("Expected default badger db_path, got %v", cfg.Metadata.Badger["db_path"])
	}
	if cfg.Metadata.Memory["root_owner"] != "rods" {
		t.Errorf("Expected default root owner 'rods', got %v", cfg.Metadata.Memory["root_owner"])
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{Level: "debug", Format: "json"},
		Server:  ServerConfig{ShutdownTimeout: time.Minute},
		Metadata: MetadataConfig{
			Type:   "badger",
			Badger: map[string]any{"db_path": "/data/catalog"},
		},
		Quotas: QuotasConfig{
			Namespace: "irods",
			MetadataAttributeNames: AttributeNamesConfig{
				TotalNumberOfDataObjects: "objects",
			},
		},
		Admin:   AdminConfig{Users: []string{}},
		Metrics: MetricsConfig{Port: 9999},
	}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected normalized level 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json', got %q", cfg.Logging.Format)
	}
	if cfg.Server.ShutdownTimeout != time.Minute {
		t.Errorf("Expected shutdown timeout 1m, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Metadata.Badger["db_path"] != "/data/catalog" {
		t.Errorf("Expected explicit db_path, got %v", cfg.Metadata.Badger["db_path"])
	}
	if cfg.Quotas.Namespace != "irods" {
		t.Errorf("Expected namespace 'irods', got %q", cfg.Quotas.Namespace)
	}
	if cfg.Quotas.MetadataAttributeNames.TotalNumberOfDataObjects != "objects" {
		t.Errorf("Expected explicit attribute name, got %q", cfg.Quotas.MetadataAttributeNames.TotalNumberOfDataObjects)
	}
	if len(cfg.Admin.Users) != 0 {
		t.Errorf("Expected explicit empty admin list, got %v", cfg.Admin.Users)
	}
	if cfg.Metrics.Port != 9999 {
		t.Errorf("Expected metrics port 9999, got %d", cfg.Metrics.Port)
	}
}

func TestApplyDefaults_Quotas(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	names := cfg.Quotas.MetadataAttributeNames
	expected := map[string]string{
		"maximum_number_of_data_objects": names.MaximumNumberOfDataObjects,
		"maximum_size_in_bytes":          names.MaximumSizeInBytes,
		"total_number_of_data_objects":   names.TotalNumberOfDataObjects,
		"total_size_in_bytes":            names.TotalSizeInBytes,
	}
	for want, got := range expected {
		if got != want {
			t.Errorf("Expected attribute name %q, got %q", want, got)
		}
	}
	if cfg.Quotas.RecalculateOnStart {
		t.Error("Expected recalculate_on_start to default to false")
	}
	if len(cfg.Admin.Users) != 1 || cfg.Admin.Users[0] != "rods" {
		t.Errorf("Expected default admin 'rods', got %v", cfg.Admin.Users)
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Storage.DefaultResource != "demoResc" {
		t.Errorf("Expected default resource 'demoResc', got %q", cfg.Storage.DefaultResource)
	}
	if cfg.Quotas.ReconcileInterval != time.Hour {
		t.Errorf("Expected reconcile interval 1h, got %v", cfg.Quotas.ReconcileInterval)
	}
	if cfg.Metrics.Enabled {
		t.Error("Expected metrics disabled by default")
	}
	if cfg.Metrics.Port != 9090 {
		t.Errorf("Expected default metrics port 9090, got %d", cfg.Metrics.Port)
	}
}
