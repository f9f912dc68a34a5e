package httpfetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projecteru2/parcel/config"
	"github.com/projecteru2/parcel/types"
)

func newTestConf(t *testing.T) *config.Config {
	t.Helper()
	conf := config.DefaultConfig()
	conf.RootDir = t.TempDir()
	require.NoError(t, conf.EnsureDirs())
	return conf
}

func TestFetchDownloads(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		_, _ = w.Write([]byte("tarball bytes"))
	}))
	defer srv.Close()

	conf := newTestConf(t)
	f := New(conf)

	path, err := f.Fetch(context.Background(), types.Fetchable{
		Filename: "foo-1.0.tar.gz",
		URI:      srv.URL + "/foo-1.0.tar.gz",
	})
	require.NoError(t, err)
	assert.Equal(t, conf.DistfilePath("foo-1.0.tar.gz"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "tarball bytes", string(data))
	assert.Equal(t, 1, hits)

	// A present, valid distfile is reused without touching the network.
	path2, err := f.Fetch(context.Background(), types.Fetchable{
		Filename: "foo-1.0.tar.gz",
		URI:      srv.URL + "/foo-1.0.tar.gz",
	})
	require.NoError(t, err)
	assert.Equal(t, path, path2)
	assert.Equal(t, 1, hits)
}

func TestFetchSkipsNonHTTP(t *testing.T) {
	f := New(newTestConf(t))

	for _, uri := range []string{"", "oci://registry/foo:1.0", "ftp://mirror/foo.tar.gz"} {
		path, err := f.Fetch(context.Background(), types.Fetchable{Filename: "foo", URI: uri})
		require.NoError(t, err)
		assert.Empty(t, path)
	}
}

func TestFetchUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	conf := newTestConf(t)
	f := New(conf)

	_, err := f.Fetch(context.Background(), types.Fetchable{
		Filename: "gone.tar.gz",
		URI:      srv.URL + "/gone.tar.gz",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status")
	assert.NoFileExists(t, conf.DistfilePath("gone.tar.gz"))
}

func TestFetchSizeCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(make([]byte, 1024))
	}))
	defer srv.Close()

	conf := newTestConf(t)
	conf.MaxFetchBytes = 512
	f := New(conf)

	_, err := f.Fetch(context.Background(), types.Fetchable{
		Filename: "big.bin",
		URI:      srv.URL + "/big.bin",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "size cap")
	assert.NoFileExists(t, conf.DistfilePath("big.bin"))
}
