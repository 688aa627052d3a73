package storage_test

import (
	"testing"

	"github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orbitdb/go-kvstore/storage"
	"orbitdb/go-kvstore/storage/storagetest"
)

func TestDatastoreStorage(t *testing.T) {
	storagetest.TestStorageSuite(t, func(t *testing.T) storage.Storage {
		s, err := storage.NewDatastoreStorage(sync.MutexWrap(datastore.NewMapDatastore()), storage.DefaultTimeout)
		require.NoError(t, err)
		return s
	})
}

func TestDatastoreStorage_RequiresDatastore(t *testing.T) {
	_, err := storage.NewDatastoreStorage(nil, 0)
	assert.Error(t, err)
}

func TestDatastoreStorage_KeysAreNotCleaned(t *testing.T) {
	s, err := storage.NewDatastoreStorage(sync.MutexWrap(datastore.NewMapDatastore()), 0)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put([]byte("mod:a/../b"), []byte("1")))
	require.NoError(t, s.Put([]byte("mod:b"), []byte("2")))

	value, err := s.Get([]byte("mod:a/../b"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), value)

	it, err := s.Keys([]byte("mod:"), []byte("mod;"))
	require.NoError(t, err)
	defer it.Release()

	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	assert.Equal(t, []string{"mod:a/../b", "mod:b"}, keys)
}
