package storage_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orbitdb/go-kvstore/storage"
)

func TestRegistry_Backends(t *testing.T) {
	r := storage.NewRegistry()
	assert.Equal(t, []string{"datastore", "leveldb", "memory", "pebble"}, r.Backends())
}

func TestRegistry_Register(t *testing.T) {
	r := storage.NewRegistry()
	driver := func(storage.Config) (storage.Storage, error) {
		return storage.NewMemoryStorage(), nil
	}

	require.NoError(t, r.Register("custom", driver))
	assert.Error(t, r.Register("custom", driver), "duplicate registration must fail")
	assert.Error(t, r.Register("", driver))
	assert.Error(t, r.Register("nil", nil))

	open, err := r.Opener(storage.Config{Backend: "custom"})
	require.NoError(t, err)
	s, err := open()
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}

func TestRegistry_RegistriesAreIndependent(t *testing.T) {
	a, b := storage.NewRegistry(), storage.NewRegistry()
	require.NoError(t, a.Register("only-a", func(storage.Config) (storage.Storage, error) {
		return storage.NewMemoryStorage(), nil
	}))

	_, err := b.Opener(storage.Config{Backend: "only-a"})
	assert.ErrorIs(t, err, storage.ErrUnknownBackend)
}

func TestRegistry_UnknownBackend(t *testing.T) {
	_, err := storage.NewRegistry().Opener(storage.Config{Backend: "rocksdb"})
	assert.ErrorIs(t, err, storage.ErrUnknownBackend)
}

func TestRegistry_Opener(t *testing.T) {
	tests := []struct {
		name   string
		cfg    storage.Config
		cached bool
	}{
		{name: "leveldb", cfg: storage.Config{Backend: storage.BackendLevelDB}},
		{name: "pebble", cfg: storage.Config{Backend: storage.BackendPebble}},
		{name: "memory", cfg: storage.Config{Backend: storage.BackendMemory}},
		{name: "datastore", cfg: storage.Config{Backend: storage.BackendDatastore}},
		{name: "cached_leveldb", cfg: storage.Config{Backend: storage.BackendLevelDB, CacheSize: 16}, cached: true},
		{name: "default_backend", cfg: storage.Config{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.cfg
			cfg.Path = filepath.Join(t.TempDir(), "db")

			open, err := storage.NewRegistry().Opener(cfg)
			require.NoError(t, err)

			s, err := open()
			require.NoError(t, err)
			defer s.Close()

			_, isCached := s.(*storage.CachedStorage)
			assert.Equal(t, tc.cached, isCached)

			require.NoError(t, s.Put([]byte("k"), []byte("v")))
			value, err := s.Get([]byte("k"))
			require.NoError(t, err)
			assert.Equal(t, []byte("v"), value)
		})
	}
}
