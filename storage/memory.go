package storage

import (
	"errors"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/comparer"
	"github.com/syndtr/goleveldb/leveldb/memdb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// MemoryStorage stores data in an ordered in-memory skiplist. Batches and
// scans are atomic with respect to each other.
type MemoryStorage struct {
	db *memdb.DB
	// mu serialises batch replays against point operations so a reader never
	// observes half of a batch.
	mu sync.RWMutex
}

// NewMemoryStorage creates a new instance of MemoryStorage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		db: memdb.New(comparer.DefaultComparer, 0),
	}
}

// Get retrieves data from memory
func (ms *MemoryStorage) Get(key []byte) ([]byte, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	value, err := ms.db.Get(key)
	if errors.Is(err, memdb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return copyBytes(value), nil
}

// Put stores data in memory
func (ms *MemoryStorage) Put(key, value []byte) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.db.Put(key, value)
}

// Delete removes data from memory
func (ms *MemoryStorage) Delete(key []byte) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return memDelete(ms.db, key)
}

// Keys returns the keys in [start, limit) as of the call. The keys are
// copied out under the read lock, so a scan never sees part of a batch.
func (ms *MemoryStorage) Keys(start, limit []byte) (Iterator, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	iter := ms.db.NewIterator(&util.Range{Start: start, Limit: limit})
	defer iter.Release()

	var keys [][]byte
	for iter.Next() {
		keys = append(keys, copyBytes(iter.Key()))
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return &sliceIterator{keys: keys, pos: -1}, nil
}

// NewBatch returns a batch replayed into memory under the write lock.
func (ms *MemoryStorage) NewBatch() Batch {
	return &levelBatch{batch: new(leveldb.Batch), write: func(b *leveldb.Batch) error {
		ms.mu.Lock()
		defer ms.mu.Unlock()
		return b.Replay(memReplay{db: ms.db})
	}}
}

// Close drops everything held in memory.
func (ms *MemoryStorage) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.db.Reset()
	return nil
}

func memDelete(db *memdb.DB, key []byte) error {
	if err := db.Delete(key); err != nil && !errors.Is(err, memdb.ErrNotFound) {
		return err
	}
	return nil
}

type memReplay struct {
	db *memdb.DB
}

func (r memReplay) Put(key, value []byte) { _ = r.db.Put(key, value) }
func (r memReplay) Delete(key []byte)     { _ = memDelete(r.db, key) }
