package flock

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLock(t *testing.T) *Lock {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "lock"))
}

func TestWriteAcquireRelease(t *testing.T) {
	lk := newTestLock(t)
	ctx := context.Background()

	require.NoError(t, lk.AcquireWrite(ctx))
	require.NoError(t, lk.ReleaseWrite(ctx))

	// Released lock is reacquirable.
	require.NoError(t, lk.AcquireWrite(ctx))
	require.NoError(t, lk.ReleaseWrite(ctx))
}

func TestTryAcquireWriteWhileHeld(t *testing.T) {
	lk := newTestLock(t)
	ctx := context.Background()

	require.NoError(t, lk.AcquireWrite(ctx))

	ok, err := lk.TryAcquireWrite(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, lk.ReleaseWrite(ctx))

	ok, err = lk.TryAcquireWrite(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, lk.ReleaseWrite(ctx))
}

func TestAcquireWriteHonorsContext(t *testing.T) {
	lk := newTestLock(t)
	ctx := context.Background()

	require.NoError(t, lk.AcquireWrite(ctx))

	cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := lk.AcquireWrite(cctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, lk.ReleaseWrite(ctx))
}

func TestReadersAreShared(t *testing.T) {
	lk := newTestLock(t)
	ctx := context.Background()

	require.NoError(t, lk.AcquireRead(ctx))
	// Nested read acquisition on the same lock must not block.
	require.NoError(t, lk.AcquireRead(ctx))
	require.NoError(t, lk.ReleaseRead(ctx))
	require.NoError(t, lk.ReleaseRead(ctx))

	// All readers gone: the write lock is available again.
	require.NoError(t, lk.AcquireWrite(ctx))
	require.NoError(t, lk.ReleaseWrite(ctx))
}

func TestReleaseReadNotHeld(t *testing.T) {
	lk := newTestLock(t)
	err := lk.ReleaseRead(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not held")
}

func TestWriteBlocksUntilReleased(t *testing.T) {
	lk := newTestLock(t)
	ctx := context.Background()

	require.NoError(t, lk.AcquireWrite(ctx))

	acquired := make(chan error, 1)
	go func() {
		acquired <- lk.AcquireWrite(ctx)
	}()

	select {
	case err := <-acquired:
		t.Fatalf("second writer acquired while lock held: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, lk.ReleaseWrite(ctx))
	select {
	case err := <-acquired:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("second writer never acquired after release")
	}
	require.NoError(t, lk.ReleaseWrite(ctx))
}
