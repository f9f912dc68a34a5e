package flock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/projecteru2/parcel/lock"
)

const retryDelay = 100 * time.Millisecond

// compile-time interface checks.
var (
	_ lock.RWLocker  = (*Lock)(nil)
	_ lock.TryLocker = (*Lock)(nil)
)

// Lock provides read/write mutual exclusion combining:
//   - In-process write exclusion via a size-1 buffered channel. A goroutine
//     acquires the write token by sending to wch; it releases by receiving
//     from wch. Using a channel (rather than sync.Mutex) enables
//     context-aware blocking without any syscall.
//   - Cross-process exclusion via flock(2). Every acquisition opens a fresh
//     fd, so concurrent callers on the same Lock instance properly block
//     each other; readers take the shared flock, writers the exclusive one.
//
// Readers are refcounted: the first reader acquires the shared flock, the
// last one releases it.
type Lock struct {
	path string
	wch  chan struct{}
	// wfl is the active exclusive flock fd, non-nil while write-held.
	wfl *flock.Flock

	mu      sync.Mutex
	readers int
	// rfl is the active shared flock fd, non-nil while any reader holds.
	rfl *flock.Flock
}

// New creates a Lock for the given path.
func New(path string) *Lock {
	return &Lock{path: path, wch: make(chan struct{}, 1)}
}

// AcquireWrite acquires the exclusive lock, blocking until available or ctx
// is cancelled.
func (l *Lock) AcquireWrite(ctx context.Context) error {
	select {
	case l.wch <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("acquire write lock %s: %w", l.path, ctx.Err())
	}
	ok, err := l.commitWrite(func(fl *flock.Flock) (bool, error) {
		return fl.TryLockContext(ctx, retryDelay)
	})
	if err != nil {
		return fmt.Errorf("acquire flock %s: %w", l.path, err)
	}
	if !ok {
		return fmt.Errorf("acquire flock %s: %w", l.path, ctx.Err())
	}
	return nil
}

// TryAcquireWrite attempts a non-blocking exclusive acquisition.
// Returns (false, nil) if the lock is currently held by another caller.
func (l *Lock) TryAcquireWrite(_ context.Context) (bool, error) {
	select {
	case l.wch <- struct{}{}:
	default:
		return false, nil
	}
	return l.commitWrite(func(fl *flock.Flock) (bool, error) {
		return fl.TryLock()
	})
}

// ReleaseWrite releases the exclusive lock.
func (l *Lock) ReleaseWrite(_ context.Context) error {
	var err error
	if l.wfl != nil {
		err = l.wfl.Unlock()
		l.wfl = nil
	}
	select {
	case <-l.wch:
	default:
	}
	if err != nil {
		return fmt.Errorf("release flock %s: %w", l.path, err)
	}
	return nil
}

// AcquireRead acquires the shared lock. Multiple readers on the same Lock
// share a single flock fd.
func (l *Lock) AcquireRead(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.readers > 0 {
		l.readers++
		return nil
	}
	fl := flock.New(l.path)
	ok, err := fl.TryRLockContext(ctx, retryDelay)
	if err != nil {
		return fmt.Errorf("acquire shared flock %s: %w", l.path, err)
	}
	if !ok {
		return fmt.Errorf("acquire shared flock %s: %w", l.path, ctx.Err())
	}
	l.rfl = fl
	l.readers = 1
	return nil
}

// ReleaseRead releases one shared hold; the flock fd is dropped when the
// last reader leaves.
func (l *Lock) ReleaseRead(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.readers == 0 {
		return fmt.Errorf("release shared flock %s: not held", l.path)
	}
	l.readers--
	if l.readers > 0 {
		return nil
	}
	err := l.rfl.Unlock()
	l.rfl = nil
	if err != nil {
		return fmt.Errorf("release shared flock %s: %w", l.path, err)
	}
	return nil
}

// commitWrite opens a fresh flock fd, runs acquire, and either stores the fd
// (on success) or releases the channel token (on failure) so ReleaseWrite is
// always called in a balanced pair with AcquireWrite/TryAcquireWrite.
func (l *Lock) commitWrite(acquire func(*flock.Flock) (bool, error)) (bool, error) {
	fl := flock.New(l.path)
	locked, err := acquire(fl)
	if err != nil {
		<-l.wch
		return false, err
	}
	if !locked {
		<-l.wch
		return false, nil
	}
	l.wfl = fl
	return true, nil
}
