package checkpoint

import (
	"fmt"
	"sort"
	"strings"

	"github.com/randalmurphal/stategraph/pkg/stategraph/config"
	"github.com/randalmurphal/stategraph/pkg/stategraph/registry"
)

// Opener constructs a Store from checkpoint configuration. Custom
// backends receive the full config block; which fields matter is the
// backend's business.
type Opener func(cfg config.Checkpoint) (Store, error)

// backends maps backend names to their constructors. The built-ins
// register at init; hosts add their own through RegisterBackend.
var backends = registry.New[string, Opener]()

func init() {
	RegisterBackend(config.BackendMemory, func(config.Checkpoint) (Store, error) {
		return NewMemoryStore(), nil
	})
	RegisterBackend(config.BackendFile, func(cfg config.Checkpoint) (Store, error) {
		return NewFileStore(cfg.Path)
	})
	RegisterBackend(config.BackendSQLite, func(cfg config.Checkpoint) (Store, error) {
		return NewSQLiteStore(cfg.Path)
	})
	RegisterBackend(config.BackendMySQL, func(cfg config.Checkpoint) (Store, error) {
		return NewMySQLStore(cfg.DSN)
	})
	RegisterBackend(config.BackendRedis, func(cfg config.Checkpoint) (Store, error) {
		var opts []RedisOption
		if cfg.Prefix != "" {
			opts = append(opts, WithRedisPrefix(cfg.Prefix))
		}
		return NewRedisStore(cfg.Addr, cfg.Password, cfg.DB, opts...), nil
	})
}

// RegisterBackend makes a store constructor available to Open under the
// given name. Registering over an existing name replaces it, so a host
// can substitute its own implementation for a built-in backend.
func RegisterBackend(name string, open Opener) {
	if name == "" {
		panic("checkpoint: backend name cannot be empty")
	}
	if open == nil {
		panic("checkpoint: backend opener cannot be nil")
	}
	backends.Register(name, open)
}

// Backends returns the registered backend names, sorted.
func Backends() []string {
	names := backends.Keys()
	sort.Strings(names)
	return names
}

// Open constructs the checkpoint store named by cfg.Backend. Built-in
// backends:
//
//   - "memory": NewMemoryStore, connection fields ignored
//   - "file":   NewFileStore rooted at cfg.Path
//   - "sqlite": NewSQLiteStore on the database file at cfg.Path
//   - "mysql":  NewMySQLStore with cfg.DSN
//   - "redis":  NewRedisStore at cfg.Addr, keys namespaced by cfg.Prefix
//
// The caller owns the returned store and must Close it.
func Open(cfg config.Checkpoint) (Store, error) {
	if cfg.Backend == "" {
		return nil, fmt.Errorf("no checkpoint backend configured")
	}
	open, ok := backends.Get(cfg.Backend)
	if !ok {
		return nil, fmt.Errorf("unknown checkpoint backend %q (registered: %s)",
			cfg.Backend, strings.Join(Backends(), ", "))
	}
	return open(cfg)
}
