package config

import (
	"github.com/marmos91/dittoquota/pkg/metrics"
	promMetrics "github.com/marmos91/dittoquota/pkg/metrics/prometheus"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics and the
	// health routes (nil if disabled)
	Server *metrics.Server

	// Quota is the collector for policy decisions and totals (never nil)
	Quota metrics.QuotaMetrics

	// Store is the collector for metadata transactions (never nil)
	Store metrics.StoreMetrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed metrics instances for all components
//
// If metrics are disabled:
//   - Returns nil server
//   - Returns no-op metrics implementations (zero overhead)
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{
			Quota: metrics.NewNoopQuotaMetrics(),
			Store: metrics.NewNoopStoreMetrics(),
		}
	}

	metrics.InitRegistry()

	server := metrics.NewServer(metrics.ServerConfig{
		Port:            cfg.Metrics.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	return &MetricsResult{
		Server: server,
		Quota:  promMetrics.NewQuotaMetrics(),
		Store:  promMetrics.NewStoreMetrics(cfg.Metadata.Type),
	}
}
