package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Checkpoint backends accepted by Checkpoint.Backend.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMySQL  = "mysql"
	BackendRedis  = "redis"
)

// Config holds engine settings loaded from a YAML or JSON file.
// Fields left out of the file keep the values from Default.
type Config struct {
	// MaxIterations caps how many node executions a single run may
	// perform before it fails. Zero means the engine default.
	MaxIterations int `yaml:"max_iterations" json:"max_iterations"`

	// NodeTimeout bounds each node execution. Zero means no limit.
	NodeTimeout Duration `yaml:"node_timeout" json:"node_timeout"`

	Checkpoint Checkpoint `yaml:"checkpoint" json:"checkpoint"`
	Logging    Logging    `yaml:"logging" json:"logging"`
}

// Checkpoint selects and configures the checkpoint store backend.
// Only the fields relevant to the chosen backend are read.
type Checkpoint struct {
	// Backend names the store implementation: "memory", "file",
	// "sqlite", "mysql" or "redis". Empty means no store configured.
	Backend string `yaml:"backend" json:"backend"`

	// Path is the directory for the file backend or the database file
	// for the sqlite backend.
	Path string `yaml:"path" json:"path"`

	// DSN is the MySQL connection string.
	DSN string `yaml:"dsn" json:"dsn"`

	// Addr, Password and DB configure the Redis connection.
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`

	// Prefix namespaces Redis keys so several deployments can share
	// one server.
	Prefix string `yaml:"prefix" json:"prefix"`
}

// Logging configures the engine logger.
type Logging struct {
	// Level is one of "debug", "info", "warn" or "error".
	Level string `yaml:"level" json:"level"`
}

// Default returns the configuration used when no file is given:
// an in-memory checkpoint store, info-level logging, no node timeout
// and the engine's iteration cap.
func Default() Config {
	return Config{
		MaxIterations: 1000,
		Checkpoint:    Checkpoint{Backend: BackendMemory},
		Logging:       Logging{Level: "info"},
	}
}

// Validate reports the first problem with the configuration:
// a negative limit, an unknown checkpoint backend, a backend missing
// its connection settings, or an unknown logging level.
func (c Config) Validate() error {
	if c.MaxIterations < 0 {
		return fmt.Errorf("max_iterations cannot be negative: %d", c.MaxIterations)
	}
	if c.NodeTimeout < 0 {
		return fmt.Errorf("node_timeout cannot be negative: %s", c.NodeTimeout)
	}
	if err := c.Checkpoint.validate(); err != nil {
		return err
	}
	return c.Logging.validate()
}

func (c Checkpoint) validate() error {
	switch c.Backend {
	case "", BackendMemory:
	case BackendFile, BackendSQLite:
		if c.Path == "" {
			return fmt.Errorf("checkpoint backend %q requires path", c.Backend)
		}
	case BackendMySQL:
		if c.DSN == "" {
			return fmt.Errorf("checkpoint backend %q requires dsn", c.Backend)
		}
	case BackendRedis:
		if c.Addr == "" {
			return fmt.Errorf("checkpoint backend %q requires addr", c.Backend)
		}
	default:
		return fmt.Errorf("unknown checkpoint backend %q", c.Backend)
	}
	if c.DB < 0 {
		return fmt.Errorf("checkpoint db cannot be negative: %d", c.DB)
	}
	return nil
}

func (l Logging) validate() error {
	switch strings.ToLower(l.Level) {
	case "", "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("unknown logging level %q", l.Level)
	}
}

// SlogLevel maps the configured level name to a slog.Level.
// Empty or unknown names map to info.
func (l Logging) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Duration is a time.Duration that unmarshals from the forms config
// files actually use.
//
// Accepts:
//   - string: parsed with time.ParseDuration ("30s", "1h30m")
//   - int, int64: interpreted as seconds
//   - float64: interpreted as seconds
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	return d.set(raw)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return d.set(raw)
}

func (d *Duration) set(raw any) error {
	switch val := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", val, err)
		}
		*d = Duration(parsed)
	case int:
		*d = Duration(time.Duration(val) * time.Second)
	case int64:
		*d = Duration(time.Duration(val) * time.Second)
	case float64:
		*d = Duration(val * float64(time.Second))
	default:
		return fmt.Errorf("invalid duration value %v (%T)", raw, raw)
	}
	return nil
}
