package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
)

// DefaultTimeout is the timeout for datastore operations
const DefaultTimeout = 30 * time.Second

// DatastoreStorage is a Storage implementation backed by a go-datastore.
//
// Keys are stored as raw datastore keys rooted at "/" so that path cleaning
// never rewrites them. Datastore queries are unordered, so Keys collects and
// sorts the matching keys before returning the iterator.
type DatastoreStorage struct {
	ds      datastore.Batching
	timeout time.Duration
}

// NewDatastoreStorage wraps ds. A non-positive timeout selects DefaultTimeout.
func NewDatastoreStorage(ds datastore.Batching, timeout time.Duration) (*DatastoreStorage, error) {
	if ds == nil {
		return nil, errors.New("datastore is required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &DatastoreStorage{ds: ds, timeout: timeout}, nil
}

func dsKey(key []byte) datastore.Key {
	return datastore.RawKey("/" + string(key))
}

func (s *DatastoreStorage) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// Get retrieves the value stored under key.
func (s *DatastoreStorage) Get(key []byte) ([]byte, error) {
	ctx, cancel := s.context()
	defer cancel()

	value, err := s.ds.Get(ctx, dsKey(key))
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

// Put stores value under key.
func (s *DatastoreStorage) Put(key, value []byte) error {
	ctx, cancel := s.context()
	defer cancel()
	return s.ds.Put(ctx, dsKey(key), value)
}

// Delete removes key.
func (s *DatastoreStorage) Delete(key []byte) error {
	ctx, cancel := s.context()
	defer cancel()

	err := s.ds.Delete(ctx, dsKey(key))
	if errors.Is(err, datastore.ErrNotFound) {
		return nil
	}
	return err
}

// Keys returns the sorted keys in [start, limit).
func (s *DatastoreStorage) Keys(start, limit []byte) (Iterator, error) {
	ctx, cancel := s.context()
	defer cancel()

	results, err := s.ds.Query(ctx, query.Query{KeysOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to query datastore: %w", err)
	}
	defer results.Close()

	var keys [][]byte
	for {
		res, ok := results.NextSync()
		if !ok {
			break
		}
		if res.Error != nil {
			return nil, res.Error
		}
		k := []byte(strings.TrimPrefix(res.Key, "/"))
		if bytes.Compare(k, start) < 0 || (limit != nil && bytes.Compare(k, limit) >= 0) {
			continue
		}
		keys = append(keys, k)
	}
	slices.SortFunc(keys, bytes.Compare)
	return &sliceIterator{keys: keys, pos: -1}, nil
}

// NewBatch returns a datastore batch. Atomicity is whatever the wrapped
// datastore's batch provides.
func (s *DatastoreStorage) NewBatch() Batch {
	return &datastoreBatch{s: s}
}

// Close closes the wrapped datastore.
func (s *DatastoreStorage) Close() error {
	return s.ds.Close()
}

type sliceIterator struct {
	keys [][]byte
	pos  int
}

func (it *sliceIterator) Next() bool {
	if it.pos+1 >= len(it.keys) {
		it.pos = len(it.keys)
		return false
	}
	it.pos++
	return true
}

func (it *sliceIterator) Key() []byte {
	if it.pos < 0 || it.pos >= len(it.keys) {
		return nil
	}
	return copyBytes(it.keys[it.pos])
}

func (it *sliceIterator) Error() error { return nil }
func (it *sliceIterator) Release()     { it.keys = nil }

type datastoreOp struct {
	key    []byte
	value  []byte
	delete bool
}

type datastoreBatch struct {
	s    *DatastoreStorage
	ops  []datastoreOp
	done atomic.Bool
}

func (b *datastoreBatch) Put(key, value []byte) error {
	if b.done.Load() {
		return ErrBatchDone
	}
	b.ops = append(b.ops, datastoreOp{key: copyBytes(key), value: copyBytes(value)})
	return nil
}

func (b *datastoreBatch) Delete(key []byte) error {
	if b.done.Load() {
		return ErrBatchDone
	}
	b.ops = append(b.ops, datastoreOp{key: copyBytes(key), delete: true})
	return nil
}

func (b *datastoreBatch) Commit() error {
	if b.done.Load() {
		return ErrBatchDone
	}
	ctx, cancel := b.s.context()
	defer cancel()

	batch, err := b.s.ds.Batch(ctx)
	if err != nil {
		return fmt.Errorf("failed to create batch: %w", err)
	}
	for _, op := range b.ops {
		if op.delete {
			err = batch.Delete(ctx, dsKey(op.key))
		} else {
			err = batch.Put(ctx, dsKey(op.key), op.value)
		}
		if err != nil {
			return err
		}
	}
	if err := batch.Commit(ctx); err != nil {
		return err
	}
	b.done.Store(true)
	b.ops = nil
	return nil
}

func (b *datastoreBatch) Close() error {
	if b.done.CompareAndSwap(false, true) {
		b.ops = nil
	}
	return nil
}
