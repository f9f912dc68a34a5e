package fetch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projecteru2/parcel/types"
)

func TestChainFirstNonEmptyWins(t *testing.T) {
	var calls []string
	skip := Func(func(_ context.Context, f types.Fetchable) (string, error) {
		calls = append(calls, "skip")
		return "", nil
	})
	hit := Func(func(_ context.Context, f types.Fetchable) (string, error) {
		calls = append(calls, "hit")
		return "/distfiles/" + f.Filename, nil
	})
	never := Func(func(context.Context, types.Fetchable) (string, error) {
		calls = append(calls, "never")
		return "/nope", nil
	})

	path, err := Chain{skip, hit, never}.Fetch(context.Background(), types.Fetchable{Filename: "a.tar.gz"})
	require.NoError(t, err)
	assert.Equal(t, "/distfiles/a.tar.gz", path)
	assert.Equal(t, []string{"skip", "hit"}, calls)
}

func TestChainErrorAborts(t *testing.T) {
	boom := errors.New("boom")
	bad := Func(func(context.Context, types.Fetchable) (string, error) { return "", boom })
	after := Func(func(context.Context, types.Fetchable) (string, error) {
		t.Fatal("fetcher after error should not run")
		return "", nil
	})

	path, err := Chain{bad, after}.Fetch(context.Background(), types.Fetchable{})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, path)
}

func TestChainAllEmpty(t *testing.T) {
	skip := Func(func(context.Context, types.Fetchable) (string, error) { return "", nil })
	path, err := Chain{skip, skip}.Fetch(context.Background(), types.Fetchable{})
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestRecordFilenames(t *testing.T) {
	r := Record{
		"/d/a.tar.gz": {Filename: "a.tar.gz", URI: "https://x/a.tar.gz"},
		"/d/b.tar.gz": {Filename: "b.tar.gz", URI: "https://x/b.tar.gz"},
	}
	got := r.Filenames()
	assert.Len(t, got, 2)
	assert.Contains(t, got, "a.tar.gz")
	assert.Contains(t, got, "b.tar.gz")
}
