package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads and validates configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &ConfigError{
			Message: fmt.Sprintf("Configuration file not found: %s", path),
		}
	}

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{
			Message: fmt.Sprintf("Error reading configuration file: %v", err),
		}
	}

	// Parse YAML
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{
			Message: fmt.Sprintf("Error parsing YAML file: %v", err),
		}
	}

	// Validate version (handle both string and float from YAML)
	version := raw["version"]
	if version != "1.0" && fmt.Sprintf("%v", version) != "1.0" && fmt.Sprintf("%v", version) != "1" {
		return nil, &ConfigError{
			Message: fmt.Sprintf("Invalid version: %v. Expected 1.0", version),
		}
	}
	// Normalize to string
	raw["version"] = "1.0"

	// Convert folders from various formats to list format
	if err := convertFolders(raw); err != nil {
		return nil, err
	}

	// Unmarshal into struct
	var config Config
	// Re-marshal to YAML for proper struct unmarshaling
	yamlData, err := yaml.Marshal(raw)
	if err != nil {
		return nil, &ConfigError{
			Message: fmt.Sprintf("Error converting config data: %v", err),
		}
	}

	if err := yaml.Unmarshal(yamlData, &config); err != nil {
		return nil, &ConfigError{
			Message: fmt.Sprintf("Invalid configuration: %v", err),
		}
	}

	// Validate
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// convertFolders converts the folders entry from various formats to a list of
// path strings. Accepted forms: a single string, a list of strings, or a list
// of {path: ...} maps.
func convertFolders(raw map[string]interface{}) error {
	folders, ok := raw["folders"]
	if !ok || folders == nil {
		raw["folders"] = []string{}
		return nil
	}

	result := []string{}

	switch v := folders.(type) {
	case string:
		result = append(result, v)
	case []interface{}:
		for _, item := range v {
			switch itemVal := item.(type) {
			case string:
				result = append(result, itemVal)
			case map[string]interface{}:
				pathVal, hasPath := itemVal["path"]
				if !hasPath {
					return &ConfigError{
						Message: "Invalid folder entry: map form requires a 'path' key",
					}
				}
				path, ok := pathVal.(string)
				if !ok {
					return &ConfigError{
						Message: "Invalid folder path type: expected string",
					}
				}
				result = append(result, path)
			default:
				return &ConfigError{
					Message: "Invalid folder item type: expected string or map",
				}
			}
		}
	default:
		return &ConfigError{
			Message: "Invalid folders format: expected string or list",
		}
	}

	raw["folders"] = result
	return nil
}
