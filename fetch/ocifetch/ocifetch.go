package ocifetch

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/projecteru2/core/log"
	"golang.org/x/sync/errgroup"

	"github.com/projecteru2/parcel/config"
	"github.com/projecteru2/parcel/fetch"
	"github.com/projecteru2/parcel/types"
	"github.com/projecteru2/parcel/utils"
)

// Scheme marks a fetchable URI as an OCI artifact reference,
// e.g. oci://registry.example.com/dist/foo:1.2.3.
const Scheme = "oci://"

var _ fetch.Fetcher = (*Fetcher)(nil)

// Fetcher obtains distfiles published as OCI artifacts. Artifact layers are
// chunks of the distfile in manifest order; they are downloaded concurrently
// with bounded parallelism and concatenated into the final file, which is
// then placed atomically in the distfiles directory.
type Fetcher struct {
	conf *config.Config
}

// New creates an OCI artifact fetcher.
func New(conf *config.Config) *Fetcher {
	return &Fetcher{conf: conf}
}

// Fetch obtains the file f describes. Returns ("", nil) when f's URI is not
// an oci:// reference.
func (o *Fetcher) Fetch(ctx context.Context, f types.Fetchable) (string, error) {
	if !strings.HasPrefix(f.URI, Scheme) {
		return "", nil
	}
	logger := log.WithFunc("ocifetch.Fetch")

	dest := o.conf.DistfilePath(f.Filename)
	if utils.ValidFile(dest) {
		logger.Infof(ctx, "distfile %s already present, skipping", f.Filename)
		return dest, nil
	}

	ref, err := name.ParseReference(strings.TrimPrefix(f.URI, Scheme))
	if err != nil {
		return "", fmt.Errorf("invalid artifact reference %q: %w", f.URI, err)
	}

	img, err := remote.Image(ref,
		remote.WithAuthFromKeychain(authn.DefaultKeychain),
		remote.WithContext(ctx),
	)
	if err != nil {
		return "", fmt.Errorf("fetch artifact %s: %w", ref, err)
	}
	layers, err := img.Layers()
	if err != nil {
		return "", fmt.Errorf("get layers: %w", err)
	}
	if len(layers) == 0 {
		return "", fmt.Errorf("artifact %s has no layers", ref)
	}

	logger.Infof(ctx, "fetching %s (%d chunks)", ref, len(layers))

	// Download chunks concurrently to per-chunk temp files.
	parts := make([]string, len(layers))
	g, gctx := errgroup.WithContext(ctx)
	limit := o.conf.PoolSize
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	g.SetLimit(limit)
	for i, layer := range layers {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			rc, err := layer.Uncompressed()
			if err != nil {
				return fmt.Errorf("open chunk %d: %w", i, err)
			}
			defer rc.Close() //nolint:errcheck

			tmp, err := os.CreateTemp(o.conf.TempDir(), fmt.Sprintf("chunk-%d-*", i))
			if err != nil {
				return fmt.Errorf("create chunk temp: %w", err)
			}
			parts[i] = tmp.Name()
			defer tmp.Close() //nolint:errcheck

			if _, err := io.Copy(tmp, rc); err != nil {
				return fmt.Errorf("download chunk %d: %w", i, err)
			}
			return tmp.Sync()
		})
	}
	defer func() {
		for _, p := range parts {
			if p != "" {
				os.Remove(p) //nolint:errcheck,gosec
			}
		}
	}()
	if err := g.Wait(); err != nil {
		return "", fmt.Errorf("download %s: %w", ref, err)
	}

	if err := o.assemble(parts, dest); err != nil {
		return "", err
	}

	logger.Infof(ctx, "fetched %s -> %s", ref, f.Filename)
	return dest, nil
}

// assemble concatenates the chunk files in order and atomically places the
// result at dest.
func (o *Fetcher) assemble(parts []string, dest string) error {
	out, err := os.CreateTemp(o.conf.TempDir(), "assemble-*")
	if err != nil {
		return fmt.Errorf("create assembly temp: %w", err)
	}
	outPath := out.Name()
	defer os.Remove(outPath) //nolint:errcheck
	defer out.Close()        //nolint:errcheck

	for i, p := range parts {
		in, err := os.Open(p) //nolint:gosec // temp file created above
		if err != nil {
			return fmt.Errorf("open chunk %d: %w", i, err)
		}
		_, err = io.Copy(out, in)
		in.Close() //nolint:errcheck,gosec
		if err != nil {
			return fmt.Errorf("assemble chunk %d: %w", i, err)
		}
	}
	if err := out.Sync(); err != nil {
		return fmt.Errorf("sync assembly: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close assembly: %w", err)
	}
	if err := os.Rename(outPath, dest); err != nil {
		return fmt.Errorf("place distfile: %w", err)
	}
	return utils.SyncParentDir(o.conf.DistfilesDir())
}
