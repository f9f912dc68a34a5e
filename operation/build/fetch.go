package build

import (
	"context"

	"github.com/projecteru2/core/log"

	"github.com/projecteru2/parcel/fetch"
	"github.com/projecteru2/parcel/types"
)

// fetchStage runs the shared fetch logic of build and fetch-only operations:
// for every fetchable not yet represented in the record by filename, invoke
// the fetcher; record successes under the obtained path. A fetchable that
// cannot be obtained fails the stage, via the backend's no-fetch hook first
// when it declares no URI, since fetching a file without one can never work.
func fetchStage(
	ctx context.Context,
	fetcher fetch.Fetcher,
	fetchables []types.Fetchable,
	record fetch.Record,
	noFetch func(ctx context.Context, f types.Fetchable) error,
) (bool, error) {
	logger := log.WithFunc("build.fetch")

	// Packages occasionally list one file under several URIs; collapse by
	// filename so each target is fetched once per instance.
	got := record.Filenames()
	for _, f := range fetchables {
		if _, ok := got[f.Filename]; ok {
			continue
		}
		path, err := fetcher.Fetch(ctx, f)
		if err != nil {
			return false, err
		}
		if path == "" {
			if f.URI != "" {
				logger.Warnf(ctx, "failed fetching %s from %s", f.Filename, f.URI)
				return false, nil
			}
			if err := noFetch(ctx, f); err != nil {
				return false, err
			}
			return false, nil
		}
		record[path] = f
		got[f.Filename] = struct{}{}
	}
	return true, nil
}
