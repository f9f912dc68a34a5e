package json

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/projecteru2/parcel/lock"
	"github.com/projecteru2/parcel/storage"
	"github.com/projecteru2/parcel/utils"
)

// Store provides lock-protected read/modify/write access to a JSON file.
// T is the top-level structure stored in the file (must have exported fields
// with json tags). If *T implements storage.Initer, Init() is called
// automatically after loading.
type Store[T any] struct {
	lk       lock.RWLocker
	filePath string
}

// compile-time interface check.
var _ storage.Store[struct{}] = (*Store[struct{}])(nil)

// New creates a Store on the given lock and data file path. The lock is
// shared with whoever else guards the file, typically the owning
// repository's lock, so repository operations can use Read/Write inside an
// already-locked stage.
func New[T any](lk lock.RWLocker, filePath string) *Store[T] {
	return &Store[T]{lk: lk, filePath: filePath}
}

// View loads the JSON file under the read lock and passes the deserialized
// data to fn. If the file does not exist, fn receives a zero-value T.
func (s *Store[T]) View(ctx context.Context, fn func(*T) error) error {
	return lock.WithRead(ctx, s.lk, func() error {
		return s.Read(fn)
	})
}

// Update performs a read-modify-write on the JSON file under the write lock.
// If fn returns nil the data is atomically written back.
func (s *Store[T]) Update(ctx context.Context, fn func(*T) error) error {
	return lock.WithWrite(ctx, s.lk, func() error {
		return s.Write(fn)
	})
}

// Read deserializes without locking; the caller must hold the lock.
func (s *Store[T]) Read(fn func(*T) error) error {
	data, err := s.load()
	if err != nil {
		return err
	}
	return fn(data)
}

// Write deserializes, applies fn, and atomically persists without locking;
// the caller must hold the write lock.
func (s *Store[T]) Write(fn func(*T) error) error {
	data, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(data); err != nil {
		return err
	}
	return utils.AtomicWriteJSON(s.filePath, data)
}

func (s *Store[T]) load() (*T, error) {
	var data T
	raw, err := os.ReadFile(s.filePath) //nolint:gosec // internal metadata
	if err != nil {
		if os.IsNotExist(err) {
			initData(&data)
			return &data, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.filePath, err)
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.filePath, err)
	}
	initData(&data)
	return &data, nil
}

func initData[T any](data *T) {
	if initer, ok := any(data).(storage.Initer); ok {
		initer.Init()
	}
}
