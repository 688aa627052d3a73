package kvstore

import "errors"

var (
	// ErrNotOpen is returned by operations on a store that has not been
	// opened or has been closed.
	ErrNotOpen = errors.New("kvstore: store is not open")

	// ErrAlreadyOpen is returned by Open on a store that is already open.
	ErrAlreadyOpen = errors.New("kvstore: store is already open")

	// ErrBatchCommit wraps the engine error of a failed Clear batch. No key
	// of the batch was removed.
	ErrBatchCommit = errors.New("kvstore: batch commit failed")

	// ErrInvalidNamespace is returned by Open in strict mode when the
	// namespace contains the key separator.
	ErrInvalidNamespace = errors.New("kvstore: namespace contains separator")
)
