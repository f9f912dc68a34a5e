package httpfetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/projecteru2/core/log"

	"github.com/projecteru2/parcel/config"
	"github.com/projecteru2/parcel/fetch"
	"github.com/projecteru2/parcel/types"
	"github.com/projecteru2/parcel/utils"
)

var _ fetch.Fetcher = (*Fetcher)(nil)

// Fetcher downloads distfiles over HTTP(S) into the configured distfiles
// directory. Downloads land in a temp file first and are atomically renamed
// into place, so a crashed fetch never leaves a half-written distfile
// visible.
type Fetcher struct {
	conf   *config.Config
	client *http.Client
}

// New creates an HTTP fetcher.
func New(conf *config.Config) *Fetcher {
	return &Fetcher{conf: conf, client: http.DefaultClient}
}

// Fetch obtains the file f describes. Returns ("", nil) when f has no
// HTTP(S) URI; another fetcher, or nobody, may handle it. A distfile
// already present and valid is reused without touching the network.
func (h *Fetcher) Fetch(ctx context.Context, f types.Fetchable) (string, error) {
	if !strings.HasPrefix(f.URI, "http://") && !strings.HasPrefix(f.URI, "https://") {
		return "", nil
	}
	logger := log.WithFunc("httpfetch.Fetch")

	dest := h.conf.DistfilePath(f.Filename)
	if utils.ValidFile(dest) {
		logger.Infof(ctx, "distfile %s already present, skipping", f.Filename)
		return dest, nil
	}

	ctx, cancel := context.WithTimeout(ctx, h.conf.FetchTimeout())
	defer cancel()

	digestHex, tmpPath, err := h.download(ctx, f.URI)
	if err != nil {
		return "", err
	}
	defer os.Remove(tmpPath) //nolint:errcheck

	if err := os.Rename(tmpPath, dest); err != nil {
		return "", fmt.Errorf("place distfile %s: %w", f.Filename, err)
	}
	if err := utils.SyncParentDir(h.conf.DistfilesDir()); err != nil {
		return "", fmt.Errorf("sync distfiles dir: %w", err)
	}

	logger.Infof(ctx, "fetched %s -> sha256:%s", f.URI, digestHex)
	return dest, nil
}

// download streams the URI into a temp file, hashing as it goes.
// The caller owns the returned temp path.
func (h *Fetcher) download(ctx context.Context, uri string) (digestHex, tmpPath string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return "", "", fmt.Errorf("build request %s: %w", uri, err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetch %s: %w", uri, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("fetch %s: unexpected status %s", uri, resp.Status)
	}

	tmp, err := os.CreateTemp(h.conf.TempDir(), "fetch-*")
	if err != nil {
		return "", "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath = tmp.Name()
	defer func() {
		tmp.Close() //nolint:errcheck,gosec
		if err != nil {
			os.Remove(tmpPath) //nolint:errcheck,gosec
		}
	}()

	hasher := sha256.New()
	limited := io.LimitReader(resp.Body, h.conf.MaxFetchBytes+1)
	n, err := io.Copy(io.MultiWriter(tmp, hasher), limited)
	if err != nil {
		return "", "", fmt.Errorf("download %s: %w", uri, err)
	}
	if n > h.conf.MaxFetchBytes {
		return "", "", fmt.Errorf("download %s: exceeds size cap %d bytes", uri, h.conf.MaxFetchBytes)
	}
	if err = tmp.Sync(); err != nil {
		return "", "", fmt.Errorf("sync temp file: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), tmpPath, nil
}
