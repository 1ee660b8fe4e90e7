package config

import (
	"strings"
	"testing"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "INVALID"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("Expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "xml"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for invalid log format")
	}
}

func TestValidate_InvalidMetadataType(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metadata.Type = "postgres"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for unimplemented metadata type")
	}
}

func TestValidate_ZeroShutdownTimeout(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.ShutdownTimeout = 0

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for zero shutdown timeout")
	}
}

func TestValidate_Quotas(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *Config)
		errMsg string
	}{
		{
			name:   "empty namespace",
			mutate: func(cfg *Config) { cfg.Quotas.Namespace = "" },
			errMsg: "Namespace",
		},
		{
			name:   "namespace with separator",
			mutate: func(cfg *Config) { cfg.Quotas.Namespace = "a::b" },
			errMsg: "excludes",
		},
		{
			name:   "empty attribute name",
			mutate: func(cfg *Config) { cfg.Quotas.MetadataAttributeNames.TotalSizeInBytes = "" },
			errMsg: "TotalSizeInBytes",
		},
		{
			name: "duplicate attribute names",
			mutate: func(cfg *Config) {
				cfg.Quotas.MetadataAttributeNames.MaximumSizeInBytes = "same"
				cfg.Quotas.MetadataAttributeNames.MaximumNumberOfDataObjects = "same"
			},
			errMsg: "share the name",
		},
		{
			name:   "negative reconcile interval",
			mutate: func(cfg *Config) { cfg.Quotas.ReconcileInterval = -1 },
			errMsg: "ReconcileInterval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Expected error containing %q, got: %v", tt.errMsg, err)
			}
		})
	}
}

func TestValidate_BadgerRequiresPath(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metadata.Type = "badger"
	cfg.Metadata.Badger = map[string]any{}

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for badger without db_path")
	}

	cfg.Metadata.Badger["in_memory"] = true
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected in-memory badger to pass validation, got: %v", err)
	}
}

func TestValidate_InvalidMetricsPort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metrics.Port = 70000

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for out-of-range metrics port")
	}
}

func TestValidate_EmptyAdminName(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Admin.Users = []string{"rods", ""}

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for empty admin user name")
	}
}
