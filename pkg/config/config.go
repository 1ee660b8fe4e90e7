package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete DittoQuota configuration.
//
// This structure captures all configurable aspects of the engine including:
//   - Logging configuration
//   - Server-wide settings used by the serve command
//   - Metadata store selection and configuration (store-specific)
//   - Quota ledger attribute mapping and recount behaviour
//   - Administrator identities
//   - Metrics exposition
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (DITTOQUOTA_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
//
// Store Configuration Pattern:
// Each store implementation defines its own configuration type. The Config
// struct contains type-specific sections (e.g., metadata.memory,
// metadata.badger) and only the section matching the selected type is used.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server contains server-wide settings
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Metadata specifies the metadata store type and type-specific configuration
	Metadata MetadataConfig `mapstructure:"metadata" yaml:"metadata"`

	// Storage contains settings of the reference storage layer
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`

	// Quotas configures the quota ledger
	Quotas QuotasConfig `mapstructure:"quotas" yaml:"quotas"`

	// Admin lists the administrators
	Admin AdminConfig `mapstructure:"admin" yaml:"admin"`

	// Metrics configures Prometheus metrics exposition
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// ServerConfig contains settings of the long-running serve command.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`
}

// MetadataConfig specifies metadata store configuration.
//
// The Type field determines which store implementation is used.
// Only the corresponding type-specific configuration section is used.
type MetadataConfig struct {
	// Type specifies which metadata store implementation to use
	// Valid values: memory, badger
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory badger"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory" yaml:"memory"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger" yaml:"badger"`
}

// StorageConfig contains settings of the reference storage layer.
type StorageConfig struct {
	// DefaultResource is the storage resource new replicas are placed on
	DefaultResource string `mapstructure:"default_resource" yaml:"default_resource" validate:"required"`
}

// QuotasConfig configures the quota ledger.
type QuotasConfig struct {
	// Namespace prefixes every ledger attribute name
	Namespace string `mapstructure:"namespace" yaml:"namespace" validate:"required,excludes=::"`

	// MetadataAttributeNames maps the four ledger roles to attribute names
	MetadataAttributeNames AttributeNamesConfig `mapstructure:"metadata_attribute_names" yaml:"metadata_attribute_names"`

	// RecalculateOnStart makes start_monitoring_collection recount the
	// collection instead of zeroing its totals
	RecalculateOnStart bool `mapstructure:"recalculate_on_start" yaml:"recalculate_on_start"`

	// ReconcileInterval is how often serve recounts every monitored
	// collection (0 disables periodic reconciliation)
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval" yaml:"reconcile_interval" validate:"gte=0"`

	// ReconcileRecountsPerSecond throttles the recounts of a reconciliation
	// run (0 = unlimited)
	ReconcileRecountsPerSecond float64 `mapstructure:"reconcile_recounts_per_second" yaml:"reconcile_recounts_per_second" validate:"gte=0"`
}

// AttributeNamesConfig holds the attribute names of the ledger roles.
type AttributeNamesConfig struct {
	MaximumNumberOfDataObjects string `mapstructure:"maximum_number_of_data_objects" yaml:"maximum_number_of_data_objects" validate:"required"`
	MaximumSizeInBytes         string `mapstructure:"maximum_size_in_bytes" yaml:"maximum_size_in_bytes" validate:"required"`
	TotalNumberOfDataObjects   string `mapstructure:"total_number_of_data_objects" yaml:"total_number_of_data_objects" validate:"required"`
	TotalSizeInBytes           string `mapstructure:"total_size_in_bytes" yaml:"total_size_in_bytes" validate:"required"`
}

// AdminConfig lists the users treated as administrators.
type AdminConfig struct {
	// Users are the administrator user names
	Users []string `mapstructure:"users" yaml:"users" validate:"dive,required"`
}

// IsAdmin reports whether user is a configured administrator.
func (c AdminConfig) IsAdmin(user string) bool {
	for _, u := range c.Users {
		if u == user {
			return true
		}
	}
	return false
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled turns metrics collection and the HTTP endpoint on
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port of the /metrics endpoint
	Port int `mapstructure:"port" yaml:"port" validate:"omitempty,min=1,max=65535"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (DITTOQUOTA_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// envKeys are bound explicitly so environment overrides work even when the
// key is absent from the config file.
var envKeys = []string{
	"logging.level",
	"logging.format",
	"logging.output",
	"server.shutdown_timeout",
	"metadata.type",
	"storage.default_resource",
	"quotas.namespace",
	"quotas.recalculate_on_start",
	"quotas.reconcile_interval",
	"quotas.reconcile_recounts_per_second",
	"metrics.enabled",
	"metrics.port",
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: DITTOQUOTA_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("DITTOQUOTA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/dittoquota/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittoquota")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "dittoquota")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
