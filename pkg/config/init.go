package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const configHeader = `# flockctl Configuration File
#
# Values can be overridden with environment variables using the FLOCKCTL_
# prefix, e.g. FLOCKCTL_LOGGING_LEVEL=DEBUG or FLOCKCTL_FILE_PATH=/tmp/x.txt.

`

// sectionComments documents each top-level section of the generated file.
var sectionComments = map[string]string{
	"logging": "Logging configuration\n  level:  DEBUG, INFO, WARN, ERROR\n  format: text, json\n  output: stdout, stderr or a file path",
	"file":    "Target file; created with the given octal permissions when missing",
	"lock":    "Lock acquisition strategy: block, try or poll\nThe poll section is only used when strategy is poll (rate is attempts per second)",
	"hold":    "hold command: text written at offset 0 and how long the exclusive lock is kept",
	"metrics": "Prometheus metrics; a summary is logged on exit when enabled",
}

// InitConfig writes a default configuration file to the default location.
//
// Parameters:
//   - force: Overwrite an existing file
//
// Returns:
//   - string: Path of the written file
//   - error: File exists (without force) or cannot be written
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
			return fmt.Errorf("config file already exists at %s (use -force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// generateYAMLWithComments renders cfg as YAML with a header and a comment
// above every top-level section.
func generateYAMLWithComments(cfg *Config) (string, error) {
	var doc yaml.Node
	if err := doc.Encode(cfg); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}

	// Durations encode as integer nanoseconds; render them the way users write them
	setScalar(&doc, cfg.Hold.Duration.String(), "hold", "duration")

	for i := 0; i+1 < len(doc.Content); i += 2 {
		key := doc.Content[i]
		if comment, ok := sectionComments[key.Value]; ok {
			key.HeadComment = comment
		}
	}

	var buf bytes.Buffer
	buf.WriteString(configHeader)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}

	return strings.TrimRight(buf.String(), "\n") + "\n", nil
}

// setScalar replaces the scalar at the mapping path keys with a string value.
func setScalar(node *yaml.Node, value string, keys ...string) {
	for _, key := range keys {
		if node.Kind != yaml.MappingNode {
			return
		}
		var next *yaml.Node
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == key {
				next = node.Content[i+1]
				break
			}
		}
		if next == nil {
			return
		}
		node = next
	}

	node.Kind = yaml.ScalarNode
	node.Tag = "!!str"
	node.Value = value
}
