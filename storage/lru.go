package storage

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// CachedStorage keeps recently read values of another Storage in an LRU
// cache. Iteration always goes to the underlying storage.
type CachedStorage struct {
	Storage
	cache *lru.Cache
	// mu is held shared by Get across the backend read and the cache fill,
	// and exclusively by writes across the backend write and the cache
	// update, so a read never caches a value older than a finished write.
	mu sync.RWMutex
}

// NewCachedStorage wraps s with an LRU cache holding up to size values.
func NewCachedStorage(s Storage, size int) (*CachedStorage, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &CachedStorage{Storage: s, cache: cache}, nil
}

// Get serves from the cache, falling back to the underlying storage and
// populating the cache on a hit there.
func (s *CachedStorage) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if value, ok := s.cache.Get(string(key)); ok {
		return copyBytes(value.([]byte)), nil
	}
	value, err := s.Storage.Get(key)
	if err != nil {
		return nil, err
	}
	s.cache.Add(string(key), copyBytes(value))
	return value, nil
}

// Put writes through to the underlying storage.
func (s *CachedStorage) Put(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.Storage.Put(key, value); err != nil {
		s.cache.Remove(string(key))
		return err
	}
	s.cache.Add(string(key), copyBytes(value))
	return nil
}

// Delete removes key from the underlying storage and the cache.
func (s *CachedStorage) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.Storage.Delete(key)
	s.cache.Remove(string(key))
	return err
}

// NewBatch returns a batch that invalidates every touched key on commit.
func (s *CachedStorage) NewBatch() Batch {
	return &cachedBatch{Batch: s.Storage.NewBatch(), s: s}
}

// Close purges the cache and closes the underlying storage.
func (s *CachedStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Purge()
	return s.Storage.Close()
}

type cachedBatch struct {
	Batch
	s    *CachedStorage
	keys []string
}

func (b *cachedBatch) Put(key, value []byte) error {
	if err := b.Batch.Put(key, value); err != nil {
		return err
	}
	b.keys = append(b.keys, string(key))
	return nil
}

func (b *cachedBatch) Delete(key []byte) error {
	if err := b.Batch.Delete(key); err != nil {
		return err
	}
	b.keys = append(b.keys, string(key))
	return nil
}

func (b *cachedBatch) Commit() error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	err := b.Batch.Commit()
	// Touched keys are dropped whether or not the commit succeeds.
	for _, k := range b.keys {
		b.s.cache.Remove(k)
	}
	b.keys = nil
	return err
}
