package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for complex rules
// that cannot be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	names := cfg.Quotas.MetadataAttributeNames
	roles := map[string]string{
		"maximum_number_of_data_objects": names.MaximumNumberOfDataObjects,
		"maximum_size_in_bytes":          names.MaximumSizeInBytes,
		"total_number_of_data_objects":   names.TotalNumberOfDataObjects,
		"total_size_in_bytes":            names.TotalSizeInBytes,
	}

	seen := make(map[string]string, len(roles))
	for role, name := range roles {
		if other, ok := seen[name]; ok {
			return fmt.Errorf("quotas.metadata_attribute_names: %s and %s share the name %q", other, role, name)
		}
		seen[name] = role
	}

	if cfg.Metadata.Type == "badger" {
		inMemory, _ := cfg.Metadata.Badger["in_memory"].(bool)
		path, _ := cfg.Metadata.Badger["db_path"].(string)
		if !inMemory && path == "" {
			return fmt.Errorf("metadata.badger: db_path is required unless in_memory is set")
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
