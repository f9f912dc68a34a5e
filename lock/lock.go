package lock

import "context"

// RWLocker serializes repository writers against readers, with context
// support. Write acquisition is not re-entrant and carries no timeout beyond
// what ctx provides; callers must pair every acquire with a release on all
// exit paths.
type RWLocker interface {
	AcquireWrite(ctx context.Context) error
	ReleaseWrite(ctx context.Context) error
	AcquireRead(ctx context.Context) error
	ReleaseRead(ctx context.Context) error
}

// TryLocker is optionally implemented by locks that support non-blocking
// write acquisition. GC uses it to skip busy resources.
type TryLocker interface {
	// TryAcquireWrite returns (false, nil) when the lock is currently held.
	TryAcquireWrite(ctx context.Context) (bool, error)
}

// Fake is a no-op RWLocker. It stands in when a repository exposes no lock,
// so mutation operations can run the same stage graph unconditionally.
type Fake struct{}

func (Fake) AcquireWrite(context.Context) error { return nil }

func (Fake) ReleaseWrite(context.Context) error { return nil }

func (Fake) AcquireRead(context.Context) error { return nil }

func (Fake) ReleaseRead(context.Context) error { return nil }

func (Fake) TryAcquireWrite(context.Context) (bool, error) { return true, nil }

// WithWrite runs fn while holding the write lock.
func WithWrite(ctx context.Context, l RWLocker, fn func() error) error {
	if err := l.AcquireWrite(ctx); err != nil {
		return err
	}
	defer l.ReleaseWrite(ctx) //nolint:errcheck
	return fn()
}

// WithRead runs fn while holding the read lock.
func WithRead(ctx context.Context, l RWLocker, fn func() error) error {
	if err := l.AcquireRead(ctx); err != nil {
		return err
	}
	defer l.ReleaseRead(ctx) //nolint:errcheck
	return fn()
}
