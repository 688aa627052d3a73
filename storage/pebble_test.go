package storage_test

import (
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/require"

	"orbitdb/go-kvstore/storage"
	"orbitdb/go-kvstore/storage/storagetest"
)

func TestPebbleStorage(t *testing.T) {
	storagetest.TestStorageSuite(t, func(t *testing.T) storage.Storage {
		s, err := storage.NewPebbleStorage("", &pebble.Options{FS: vfs.NewMem()})
		require.NoError(t, err)
		return s
	})
}

func TestPebbleStorage_OnDisk(t *testing.T) {
	storagetest.TestStorageSuite(t, func(t *testing.T) storage.Storage {
		s, err := storage.NewPebbleStorage(t.TempDir(), nil)
		require.NoError(t, err)
		return s
	})
}
