package storage

//go:generate mockgen -source=storage.go -destination=mocks/mock_storage.go -package=mocks

import "errors"

var (
	// ErrNotFound is returned by Get when the key does not exist.
	ErrNotFound = errors.New("storage: key not found")

	// ErrBatchDone is returned when a batch is used after Commit or Close.
	ErrBatchDone = errors.New("storage: batch already committed or closed")
)

// Storage is an ordered key-value engine. Keys are compared byte-wise.
type Storage interface {
	// Get retrieves a value by its key. Returns ErrNotFound if the key does not exist.
	Get(key []byte) ([]byte, error)

	// Put stores a key-value pair, overwriting any existing value.
	Put(key, value []byte) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(key []byte) error

	// Keys returns an iterator over the keys in [start, limit) in ascending order.
	// A nil limit means no upper bound.
	Keys(start, limit []byte) (Iterator, error)

	// NewBatch returns an empty batch of writes committed atomically.
	NewBatch() Batch

	// Close closes the storage and releases resources.
	Close() error
}

// Iterator walks keys in ascending order. It must be released after use.
type Iterator interface {
	Next() bool
	// Key returns a copy of the current key.
	Key() []byte
	Error() error
	Release()
}

// Batch collects writes that are applied all-or-nothing on Commit.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Commit() error
	Close() error
}

// Opener acquires a fresh engine handle.
type Opener func() (Storage, error)

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

// Shared returns an Opener handing out s itself. Closing a handed-out Storage
// is a no-op; the owner of s closes it.
func Shared(s Storage) Opener {
	return func() (Storage, error) {
		return sharedStorage{s}, nil
	}
}

type sharedStorage struct {
	Storage
}

func (sharedStorage) Close() error { return nil }
