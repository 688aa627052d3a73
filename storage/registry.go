package storage

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("storage")

// Backend names understood by NewRegistry.
const (
	BackendLevelDB   = "leveldb"
	BackendPebble    = "pebble"
	BackendMemory    = "memory"
	BackendDatastore = "datastore"
)

// ErrUnknownBackend is returned when a Config names a backend that has not
// been registered.
var ErrUnknownBackend = errors.New("storage: unknown backend")

// Config selects and parameterises a storage engine.
type Config struct {
	Backend   string        `toml:",omitempty"`
	Path      string        `toml:",omitempty"`
	CacheSize int           `toml:",omitempty"`
	Timeout   time.Duration `toml:",omitempty"`
}

// DefaultConfig is an on-disk LevelDB under ./leveldb.
var DefaultConfig = Config{
	Backend: BackendLevelDB,
	Path:    "./leveldb",
}

// Driver opens an engine described by cfg.
type Driver func(cfg Config) (Storage, error)

// Registry maps backend names to drivers. Registries are plain values;
// callers build one and pass it where it is needed.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]Driver
}

// NewRegistry returns a registry holding the built-in backends.
func NewRegistry() *Registry {
	r := &Registry{drivers: make(map[string]Driver)}
	r.drivers[BackendLevelDB] = func(cfg Config) (Storage, error) {
		return NewLevelStorage(cfg.Path)
	}
	r.drivers[BackendPebble] = func(cfg Config) (Storage, error) {
		return NewPebbleStorage(cfg.Path, nil)
	}
	r.drivers[BackendMemory] = func(Config) (Storage, error) {
		return NewMemoryStorage(), nil
	}
	r.drivers[BackendDatastore] = func(cfg Config) (Storage, error) {
		return NewDatastoreStorage(dssync.MutexWrap(datastore.NewMapDatastore()), cfg.Timeout)
	}
	return r
}

// Register adds a driver under name.
func (r *Registry) Register(name string, driver Driver) error {
	if name == "" {
		return errors.New("storage backend must have a name")
	}
	if driver == nil {
		return errors.New("storage backend driver is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.drivers[name]; exists {
		return fmt.Errorf("storage backend %q already registered", name)
	}
	r.drivers[name] = driver
	return nil
}

// Backends lists the registered backend names in sorted order.
func (r *Registry) Backends() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.drivers))
	for name := range r.drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Opener returns an Opener for cfg. The engine is wrapped in a CachedStorage
// when cfg.CacheSize is positive.
func (r *Registry) Opener(cfg Config) (Opener, error) {
	if cfg.Backend == "" {
		cfg.Backend = DefaultConfig.Backend
	}
	if cfg.Path == "" {
		cfg.Path = DefaultConfig.Path
	}
	r.mu.RLock()
	driver, ok := r.drivers[cfg.Backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
	return func() (Storage, error) {
		s, err := driver(cfg)
		if err != nil {
			return nil, err
		}
		log.Debugw("opened storage", "backend", cfg.Backend, "path", cfg.Path)
		if cfg.CacheSize <= 0 {
			return s, nil
		}
		cached, err := NewCachedStorage(s, cfg.CacheSize)
		if err != nil {
			s.Close()
			return nil, err
		}
		return cached, nil
	}, nil
}
