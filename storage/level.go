package storage

import (
	"errors"
	"sync/atomic"

	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelStorage implements the Storage interface using LevelDB.
type LevelStorage struct {
	db *leveldb.DB
}

// NewLevelStorage opens (or creates) a LevelDB database at path. A corrupted
// database is recovered before giving up.
func NewLevelStorage(path string) (*LevelStorage, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{OpenFilesCacheCapacity: 32})
	if _, corrupted := err.(*lerrors.ErrCorrupted); corrupted {
		log.Warnw("recovering corrupted leveldb", "path", path, "err", err)
		db, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, err
	}
	return &LevelStorage{db: db}, nil
}

// Get retrieves a value by its key from LevelDB.
func (s *LevelStorage) Get(key []byte) ([]byte, error) {
	value, err := s.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

// Put stores a key-value pair in LevelDB.
func (s *LevelStorage) Put(key, value []byte) error {
	return s.db.Put(key, value, nil)
}

// Delete removes a key-value pair from LevelDB.
func (s *LevelStorage) Delete(key []byte) error {
	return s.db.Delete(key, nil)
}

// Keys iterates the keys in [start, limit).
func (s *LevelStorage) Keys(start, limit []byte) (Iterator, error) {
	return &levelIterator{iter: s.db.NewIterator(&util.Range{Start: start, Limit: limit}, nil)}, nil
}

// NewBatch returns a batch written with a single LevelDB write.
func (s *LevelStorage) NewBatch() Batch {
	return &levelBatch{batch: new(leveldb.Batch), write: func(b *leveldb.Batch) error {
		return s.db.Write(b, nil)
	}}
}

// Close closes the LevelDB instance.
func (s *LevelStorage) Close() error {
	return s.db.Close()
}

// levelIterator adapts a goleveldb iterator.
type levelIterator struct {
	iter iterator.Iterator
}

func (it *levelIterator) Next() bool   { return it.iter.Next() }
func (it *levelIterator) Key() []byte  { return copyBytes(it.iter.Key()) }
func (it *levelIterator) Error() error { return it.iter.Error() }

func (it *levelIterator) Release() { it.iter.Release() }

type levelBatch struct {
	batch *leveldb.Batch
	write func(*leveldb.Batch) error
	done  atomic.Bool
}

func (b *levelBatch) Put(key, value []byte) error {
	if b.done.Load() {
		return ErrBatchDone
	}
	b.batch.Put(key, value)
	return nil
}

func (b *levelBatch) Delete(key []byte) error {
	if b.done.Load() {
		return ErrBatchDone
	}
	b.batch.Delete(key)
	return nil
}

func (b *levelBatch) Commit() error {
	if b.done.Load() {
		return ErrBatchDone
	}
	if err := b.write(b.batch); err != nil {
		return err
	}
	b.done.Store(true)
	return nil
}

func (b *levelBatch) Close() error {
	if b.done.CompareAndSwap(false, true) {
		b.batch.Reset()
	}
	return nil
}
