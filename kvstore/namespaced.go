package kvstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"orbitdb/go-kvstore/storage"
)

// DefaultName is the reader name used when none is given.
const DefaultName = "ldb"

// Option configures a NamespacedStore.
type Option func(*NamespacedStore)

// WithName sets the name the store reports and logs under.
func WithName(name string) Option {
	return func(s *NamespacedStore) {
		if name != "" {
			s.name = name
		}
	}
}

// WithStrictNamespace makes Open reject namespaces containing Separator.
func WithStrictNamespace() Option {
	return func(s *NamespacedStore) {
		s.strict = true
	}
}

// NamespacedStore is a Store over an ordered storage engine. It starts closed;
// Open acquires an engine handle from the Opener and Close releases it.
//
// Operations hold a read lock on the handle for their whole duration, so
// Close waits for in-flight operations before releasing the engine.
type NamespacedStore struct {
	open   storage.Opener
	name   string
	strict bool

	mu        sync.RWMutex
	db        storage.Storage
	namespace string
}

// New returns a closed store that acquires its engine from open.
func New(open storage.Opener, opts ...Option) *NamespacedStore {
	s := &NamespacedStore{open: open, name: DefaultName}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the store name.
func (s *NamespacedStore) Name() string {
	return s.name
}

// Namespace returns the bound namespace, or "" when the store is closed.
func (s *NamespacedStore) Namespace() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.namespace
}

// IsOpen reports whether the store holds an engine handle.
func (s *NamespacedStore) IsOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db != nil
}

// Open binds namespace and opens the engine. Opening an open store fails with
// ErrAlreadyOpen and leaves it untouched.
func (s *NamespacedStore) Open(ctx context.Context, namespace string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.Contains(namespace, Separator) {
		if s.strict {
			return fmt.Errorf("%w: %q", ErrInvalidNamespace, namespace)
		}
		log.Warnw("namespace contains the key separator; keys may collide with other namespaces",
			"name", s.name, "namespace", namespace)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return ErrAlreadyOpen
	}
	db, err := s.open()
	if err != nil {
		return err
	}
	s.db = db
	s.namespace = namespace
	log.Debugw("opened store", "name", s.name, "namespace", namespace)
	return nil
}

// acquire read-locks the handle. On success the caller must call
// s.mu.RUnlock.
func (s *NamespacedStore) acquire(ctx context.Context) (storage.Storage, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	s.mu.RLock()
	if s.db == nil {
		s.mu.RUnlock()
		return nil, "", ErrNotOpen
	}
	return s.db, s.namespace, nil
}

// Get decodes the value of key into out, which may be nil to only test for
// presence.
func (s *NamespacedStore) Get(ctx context.Context, key string, out any) (bool, error) {
	db, ns, err := s.acquire(ctx)
	if err != nil {
		return false, err
	}
	defer s.mu.RUnlock()

	data, err := db.Get(PhysicalKey(ns, key))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return true, fmt.Errorf("failed to decode value of %q: %w", key, err)
		}
	}
	return true, nil
}

// Set encodes value as JSON and stores it under key.
func (s *NamespacedStore) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value of %q: %w", key, err)
	}

	db, ns, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer s.mu.RUnlock()

	return db.Put(PhysicalKey(ns, key), data)
}

// Delete removes key.
func (s *NamespacedStore) Delete(ctx context.Context, key string) error {
	db, ns, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer s.mu.RUnlock()

	return db.Delete(PhysicalKey(ns, key))
}

// List returns the physical keys under the qualified prefix, namespace
// included. An empty prefix lists the whole namespace.
func (s *NamespacedStore) List(ctx context.Context, prefix string) ([]string, error) {
	db, ns, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer s.mu.RUnlock()

	keys, err := scan(ctx, db, PhysicalKey(ns, prefix))
	if err != nil {
		return nil, err
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return out, nil
}

// ListLogical is List with the namespace qualifier stripped from each key.
func (s *NamespacedStore) ListLogical(ctx context.Context, prefix string) ([]string, error) {
	db, ns, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer s.mu.RUnlock()

	keys, err := scan(ctx, db, PhysicalKey(ns, prefix))
	if err != nil {
		return nil, err
	}
	qualifier := PhysicalKey(ns, "")
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(bytes.TrimPrefix(k, qualifier))
	}
	return out, nil
}

// Clear deletes every key of the namespace in one batch. The batch holds the
// keys seen while listing; a key written concurrently after the listing may
// survive. If the commit fails nothing is removed and the returned error
// matches ErrBatchCommit.
func (s *NamespacedStore) Clear(ctx context.Context) error {
	db, ns, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer s.mu.RUnlock()

	keys, err := scan(ctx, db, PhysicalKey(ns, ""))
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	batch := db.NewBatch()
	defer batch.Close() //nolint:errcheck
	for _, k := range keys {
		if err := batch.Delete(k); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrBatchCommit, err)
	}
	log.Debugw("cleared namespace", "name", s.name, "namespace", ns, "keys", len(keys))
	return nil
}

// Close releases the engine handle. The handle is dropped even when the
// engine reports an error on close.
func (s *NamespacedStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	log.Debugw("closed store", "name", s.name, "namespace", s.namespace)
	s.namespace = ""
	return err
}

// scan collects the keys starting with prefix in ascending order.
func scan(ctx context.Context, db storage.Storage, prefix []byte) ([][]byte, error) {
	start, limit := PrefixRange(prefix)
	it, err := db.Keys(start, limit)
	if err != nil {
		return nil, err
	}
	defer it.Release()

	keys := [][]byte{}
	for it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		keys = append(keys, it.Key())
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return keys, nil
}
