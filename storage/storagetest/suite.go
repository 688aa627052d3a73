// Package storagetest contains a conformance suite for storage.Storage
// implementations.
package storagetest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orbitdb/go-kvstore/storage"
)

// TestStorageSuite runs the conformance tests against engines built by New.
// Every subtest gets a fresh engine, which the suite closes.
func TestStorageSuite(t *testing.T, New func(t *testing.T) storage.Storage) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Storage)
	}{
		{name: "put_get_delete", fn: testPutGetDelete},
		{name: "delete_missing", fn: testDeleteMissing},
		{name: "overwrite", fn: testOverwrite},
		{name: "ordered_keys", fn: testOrderedKeys},
		{name: "bounded_keys", fn: testBoundedKeys},
		{name: "binary_keys", fn: testBinaryKeys},
		{name: "batch_commit", fn: testBatchCommit},
		{name: "batch_done", fn: testBatchDone},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := New(t)
			defer s.Close() //nolint:errcheck
			tc.fn(t, s)
		})
	}
}

func keys(t *testing.T, s storage.Storage, start, limit []byte) []string {
	t.Helper()
	it, err := s.Keys(start, limit)
	require.NoError(t, err)
	defer it.Release()

	var out []string
	for it.Next() {
		out = append(out, string(it.Key()))
	}
	require.NoError(t, it.Error())
	return out
}

func testPutGetDelete(t *testing.T, s storage.Storage) {
	require.NoError(t, s.Put([]byte("key1"), []byte("value1")))

	value, err := s.Get([]byte("key1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("value1"), value)

	_, err = s.Get([]byte("nonexistent"))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Delete([]byte("key1")))
	_, err = s.Get([]byte("key1"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testDeleteMissing(t *testing.T, s storage.Storage) {
	assert.NoError(t, s.Delete([]byte("missing")))
	assert.NoError(t, s.Delete([]byte("missing")))
}

func testOverwrite(t *testing.T, s storage.Storage) {
	require.NoError(t, s.Put([]byte("k"), []byte("v1")))
	require.NoError(t, s.Put([]byte("k"), []byte("v2")))

	value, err := s.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), value)
}

func testOrderedKeys(t *testing.T, s storage.Storage) {
	for _, k := range []string{"d", "b", "a", "c", "ab"} {
		require.NoError(t, s.Put([]byte(k), []byte("v-"+k)))
	}
	assert.Equal(t, []string{"a", "ab", "b", "c", "d"}, keys(t, s, nil, nil))
}

func testBoundedKeys(t *testing.T, s storage.Storage) {
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, s.Put([]byte(k), []byte("v-"+k)))
	}
	assert.Equal(t, []string{"b", "c", "d"}, keys(t, s, []byte("b"), []byte("e")))
	assert.Equal(t, []string{"c", "d", "e"}, keys(t, s, []byte("c"), nil))
	assert.Empty(t, keys(t, s, []byte("x"), []byte("z")))
}

func testBinaryKeys(t *testing.T, s storage.Storage) {
	for _, k := range []string{"ns:a", "ns:\xfe", "ns:\xff", "ns;"} {
		require.NoError(t, s.Put([]byte(k), []byte("v")))
	}
	assert.Equal(t, []string{"ns:a", "ns:\xfe"}, keys(t, s, []byte("ns:"), []byte("ns:\xff")))
	assert.Equal(t, []string{"ns:a", "ns:\xfe", "ns:\xff"}, keys(t, s, []byte("ns:"), []byte("ns;")))
}

func testBatchCommit(t *testing.T, s storage.Storage) {
	require.NoError(t, s.Put([]byte("key2"), []byte("old")))

	batch := s.NewBatch()
	defer batch.Close() //nolint:errcheck

	require.NoError(t, batch.Put([]byte("key1"), []byte("value1")))
	require.NoError(t, batch.Delete([]byte("key2")))
	require.NoError(t, batch.Put([]byte("key3"), []byte("value3")))

	// Nothing is visible before commit.
	_, err := s.Get([]byte("key1"))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, batch.Commit())

	value, err := s.Get([]byte("key1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("value1"), value)

	_, err = s.Get([]byte("key2"))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.Equal(t, []string{"key1", "key3"}, keys(t, s, nil, nil))
}

func testBatchDone(t *testing.T, s storage.Storage) {
	batch := s.NewBatch()
	require.NoError(t, batch.Put([]byte("key"), []byte("value")))
	require.NoError(t, batch.Commit())

	assert.ErrorIs(t, batch.Put([]byte("key2"), []byte("value2")), storage.ErrBatchDone)
	assert.ErrorIs(t, batch.Delete([]byte("key2")), storage.ErrBatchDone)
	assert.ErrorIs(t, batch.Commit(), storage.ErrBatchDone)

	assert.NoError(t, batch.Close())
	assert.NoError(t, batch.Close())

	closed := s.NewBatch()
	require.NoError(t, closed.Delete([]byte("key")))
	require.NoError(t, closed.Close())
	assert.ErrorIs(t, closed.Commit(), storage.ErrBatchDone)

	_, err := s.Get([]byte("key"))
	assert.NoError(t, err)
}
