package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the file at path and parses it, auto-detecting the format
// by extension. Supported extensions: .yaml, .yml, .json
//
// Environment references like ${VAR} and $VAR are expanded before
// parsing, and the result starts from Default so a partial file only
// overrides the fields it names. The parsed configuration is validated.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return Parse(data)
	case ".json":
		return ParseJSON(data)
	default:
		return Config{}, fmt.Errorf("unsupported config file extension: %s", ext)
	}
}

// Parse parses YAML data into a Config, expanding environment
// references and validating the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal([]byte(ExpandEnv(string(data))), &cfg); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseJSON parses JSON data into a Config, expanding environment
// references and validating the result.
func ParseJSON(data []byte) (Config, error) {
	cfg := Default()
	if err := json.Unmarshal([]byte(ExpandEnv(string(data))), &cfg); err != nil {
		return Config{}, fmt.Errorf("parse json: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
