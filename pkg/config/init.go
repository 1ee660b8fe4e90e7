package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// sectionComments are written above each top-level section of a generated
// configuration file.
var sectionComments = map[string]string{
	"logging":  "Logging configuration\nlevel: DEBUG, INFO, WARN, ERROR - format: text, json - output: stdout, stderr or a file path",
	"server":   "Settings of the long-running serve command",
	"metadata": "Metadata catalog store\ntype: memory (volatile) or badger (persistent); only the matching section is used",
	"storage":  "Reference storage layer\ndefault_resource: resource new replicas are placed on",
	"quotas":   "Quota ledger\nLedger attributes are stored as <namespace>::<name> on monitored collections.\nrecalculate_on_start: recount on start_monitoring_collection instead of zeroing\nreconcile_interval: how often serve recounts monitored collections (0 disables)\nreconcile_recounts_per_second: throttle for those recounts (0 = unlimited)",
	"admin":    "Users allowed to run quota control operations and edit ledger attributes",
	"metrics":  "Prometheus metrics exposed on http://localhost:<port>/metrics",
}

// durationKeys are rendered as Go duration strings rather than nanoseconds.
var durationKeys = map[string]bool{
	"shutdown_timeout":   true,
	"reconcile_interval": true,
}

// InitConfig writes a default configuration file to the default location.
//
// Parameters:
//   - force: Overwrite an existing file
//
// Returns:
//   - string: Path of the written file
//   - error: If the file exists and force is false, or writing fails
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a default configuration file to path, creating
// parent directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to generate config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// generateYAMLWithComments renders cfg as YAML with a header and a comment
// above every top-level section.
func generateYAMLWithComments(cfg *Config) (string, error) {
	var root yaml.Node
	if err := root.Encode(cfg); err != nil {
		return "", err
	}

	formatDurations(&root)

	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i]
		if comment, ok := sectionComments[key.Value]; ok {
			key.HeadComment = comment
		}
	}

	out, err := yaml.Marshal(&root)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("# DittoQuota Configuration File\n")
	b.WriteString("#\n")
	b.WriteString("# Environment variables override these values: DITTOQUOTA_<SECTION>_<KEY>\n")
	b.WriteString("# (e.g. DITTOQUOTA_LOGGING_LEVEL=DEBUG)\n\n")
	b.Write(out)
	return b.String(), nil
}

// formatDurations rewrites the values of durationKeys from nanoseconds to
// duration strings.
func formatDurations(node *yaml.Node) {
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			if durationKeys[key.Value] && value.Kind == yaml.ScalarNode {
				if n, err := strconv.ParseInt(value.Value, 10, 64); err == nil {
					value.Value = time.Duration(n).String()
					value.Tag = "!!str"
				}
			}
		}
	}
	for _, child := range node.Content {
		formatDurations(child)
	}
}
