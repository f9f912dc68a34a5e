package fetch

import (
	"context"

	"github.com/projecteru2/parcel/types"
)

// Fetcher obtains the local file a fetchable describes.
//
// It returns the path of the obtained file. An empty path with a nil error
// means the fetchable could not be obtained without that being abnormal
// (unsupported URI scheme, upstream said no); the fetch stage turns that
// into a clean boolean failure. A non-nil error is abnormal and propagates.
type Fetcher interface {
	Fetch(ctx context.Context, f types.Fetchable) (string, error)
}

// Func adapts a plain function to the Fetcher interface.
type Func func(ctx context.Context, f types.Fetchable) (string, error)

func (fn Func) Fetch(ctx context.Context, f types.Fetchable) (string, error) {
	return fn(ctx, f)
}

// Chain tries each fetcher in order and returns the first non-empty path.
// An error from any fetcher aborts the chain.
type Chain []Fetcher

func (c Chain) Fetch(ctx context.Context, f types.Fetchable) (string, error) {
	for _, fetcher := range c {
		path, err := fetcher.Fetch(ctx, f)
		if err != nil {
			return "", err
		}
		if path != "" {
			return path, nil
		}
	}
	return "", nil
}

// Record maps obtained local paths to the fetchables they satisfy. It is
// accumulated per operation instance so a fetchable whose target filename
// was already obtained is not fetched again.
type Record map[string]types.Fetchable

// Filenames returns the set of filenames already represented in the record.
func (r Record) Filenames() map[string]struct{} {
	got := make(map[string]struct{}, len(r))
	for _, f := range r {
		got[f.Filename] = struct{}{}
	}
	return got
}
