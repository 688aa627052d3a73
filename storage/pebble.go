package storage

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
)

// PebbleStorage implements the Storage interface using Pebble.
type PebbleStorage struct {
	db *pebble.DB
}

// NewPebbleStorage opens a Pebble database at path. A nil opts uses Pebble's
// defaults with a 64MB block cache.
func NewPebbleStorage(path string, opts *pebble.Options) (*PebbleStorage, error) {
	if opts == nil {
		cache := pebble.NewCache(64 * 1024 * 1024)
		defer cache.Unref()
		opts = &pebble.Options{Cache: cache}
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, err
	}
	return &PebbleStorage{db: db}, nil
}

func (p *PebbleStorage) Get(key []byte) ([]byte, error) {
	value, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return copyBytes(value), nil
}

func (p *PebbleStorage) Put(key, value []byte) error {
	return p.db.Set(key, value, pebble.Sync)
}

func (p *PebbleStorage) Delete(key []byte) error {
	return p.db.Delete(key, pebble.Sync)
}

func (p *PebbleStorage) Keys(start, limit []byte) (Iterator, error) {
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: start,
		UpperBound: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	return &pebbleIterator{iter: iter}, nil
}

func (p *PebbleStorage) NewBatch() Batch {
	return &pebbleBatch{batch: p.db.NewBatch()}
}

func (p *PebbleStorage) Close() error {
	return p.db.Close()
}

type pebbleIterator struct {
	iter    *pebble.Iterator
	started bool
	err     error
}

func (it *pebbleIterator) Next() bool {
	// The first call positions the iterator at the lower bound.
	if !it.started {
		it.started = true
		return it.iter.First()
	}
	return it.iter.Next()
}

func (it *pebbleIterator) Key() []byte {
	return copyBytes(it.iter.Key())
}

func (it *pebbleIterator) Error() error {
	if it.err != nil || it.iter == nil {
		return it.err
	}
	return it.iter.Error()
}

func (it *pebbleIterator) Release() {
	if it.iter == nil {
		return
	}
	it.err = it.iter.Close()
	it.iter = nil
}

type pebbleBatch struct {
	batch *pebble.Batch
	done  atomic.Bool
}

func (b *pebbleBatch) Put(key, value []byte) error {
	if b.done.Load() {
		return ErrBatchDone
	}
	return b.batch.Set(key, value, nil)
}

func (b *pebbleBatch) Delete(key []byte) error {
	if b.done.Load() {
		return ErrBatchDone
	}
	return b.batch.Delete(key, nil)
}

func (b *pebbleBatch) Commit() error {
	if b.done.Load() {
		return ErrBatchDone
	}
	if err := b.batch.Commit(pebble.Sync); err != nil {
		return err
	}
	b.done.Store(true)
	return b.batch.Close()
}

func (b *pebbleBatch) Close() error {
	if !b.done.CompareAndSwap(false, true) {
		return nil
	}
	return b.batch.Close()
}
