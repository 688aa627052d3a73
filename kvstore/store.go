// Package kvstore shares one ordered key-value engine between several
// logical consumers.
//
// Each consumer opens a NamespacedStore with its own namespace. Logical keys
// are qualified as "namespace:key" before they reach the engine, so
// consumers on distinct namespaces never see each other's keys. List returns
// the qualified (physical) keys; Get, Set and Delete take logical keys.
//
//	open, _ := storage.NewRegistry().Opener(storage.Config{Backend: storage.BackendLevelDB, Path: "./leveldb"})
//	s := kvstore.New(open)
//	if err := s.Open(ctx, "modA"); err != nil {
//		return err
//	}
//	defer s.Close()
//
//	_ = s.Set(ctx, "a.txt", map[string]int{"n": 1})
//	keys, _ := s.List(ctx, "") // ["modA:a.txt"]
//
// Namespaces may contain the separator, but then "a:b"+"c" and "a"+"b:c"
// name the same physical key. WithStrictNamespace rejects such namespaces.
package kvstore

import (
	"context"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("kvstore")

// Store is the capability set shared by all key-value stores. Values are
// encoded as JSON.
type Store interface {
	// Open binds the namespace and acquires the underlying engine.
	Open(ctx context.Context, namespace string) error

	// Get decodes the value stored under key into out. found is false, with
	// a nil error, when the key does not exist.
	Get(ctx context.Context, key string, out any) (found bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value any) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns, in ascending byte order, the physical keys starting with
	// the qualified prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Clear removes every key of the namespace in a single atomic batch.
	Clear(ctx context.Context) error

	// Close releases the engine. Closing a closed store is a no-op.
	Close() error
}

var _ Store = (*NamespacedStore)(nil)
