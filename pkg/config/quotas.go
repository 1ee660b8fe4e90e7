package config

import (
	"fmt"

	"github.com/marmos91/dittoquota/pkg/quota"
)

// CreateAttributes resolves the ledger attribute mapping.
//
// An incomplete or ambiguous mapping fails with quota.ErrConfigurationMissing.
func CreateAttributes(cfg *QuotasConfig) (*quota.Attributes, error) {
	names := cfg.MetadataAttributeNames
	return quota.NewAttributes(cfg.Namespace, quota.AttributeNames{
		MaximumNumberOfDataObjects: names.MaximumNumberOfDataObjects,
		MaximumSizeInBytes:         names.MaximumSizeInBytes,
		TotalNumberOfDataObjects:   names.TotalNumberOfDataObjects,
		TotalSizeInBytes:           names.TotalSizeInBytes,
	})
}

// CreateLedger creates the quota ledger described by cfg.
func CreateLedger(cfg *QuotasConfig) (*quota.Ledger, error) {
	attrs, err := CreateAttributes(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure quota attributes: %w", err)
	}

	ledger := quota.NewLedger(attrs)
	ledger.SetRecalculateOnStart(cfg.RecalculateOnStart)
	return ledger, nil
}
