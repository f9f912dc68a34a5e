package storage

import (
	"context"
)

// Initer is optionally implemented by T to initialize zero-value fields
// (e.g., nil maps) after deserialization or when the backing store is empty.
type Initer interface {
	Init()
}

// Store provides locked read/modify/write access to a data store.
// T is the top-level structure managed by the store.
type Store[T any] interface {
	// View loads the data under the read lock and passes it to fn.
	// If *T implements Initer, Init() is called before fn.
	// The lock is held for the duration of fn.
	View(ctx context.Context, fn func(*T) error) error
	// Update performs a read-modify-write under the write lock.
	// If fn returns nil the data is persisted.
	Update(ctx context.Context, fn func(*T) error) error

	// Read deserializes the data and passes it to fn without acquiring the
	// lock. The caller must already hold it, e.g. inside a repository
	// operation whose "start" stage took the write lock.
	Read(fn func(*T) error) error
	// Write deserializes the data, passes it to fn, and atomically persists
	// the result if fn returns nil. Does not acquire the lock; same caller
	// contract as Read.
	Write(fn func(*T) error) error
}
