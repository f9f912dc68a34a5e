package core

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	units "github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/projecteru2/parcel/config"
	"github.com/projecteru2/parcel/fetch"
	"github.com/projecteru2/parcel/fetch/httpfetch"
	"github.com/projecteru2/parcel/fetch/ocifetch"
	"github.com/projecteru2/parcel/format"
	"github.com/projecteru2/parcel/observer"
	"github.com/projecteru2/parcel/repository/jsonrepo"
	"github.com/projecteru2/parcel/types"
)

// BaseHandler provides shared config access for all command handlers.
type BaseHandler struct {
	ConfProvider func() *config.Config
}

// Init returns the command context and validated config in one call.
func (h BaseHandler) Init(cmd *cobra.Command) (context.Context, *config.Config, error) {
	conf, err := h.Conf()
	if err != nil {
		return nil, nil, err
	}
	return CommandContext(cmd), conf, nil
}

// Conf validates and returns the config. All handlers call this first.
func (h BaseHandler) Conf() (*config.Config, error) {
	if h.ConfProvider == nil {
		return nil, fmt.Errorf("config provider is nil")
	}
	conf := h.ConfProvider()
	if conf == nil {
		return nil, fmt.Errorf("config not initialized")
	}
	return conf, nil
}

// CommandContext returns command context, falling back to Background.
func CommandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}

// InitRepo opens the installed-package repository under the configured root.
func InitRepo(conf *config.Config, opts ...jsonrepo.Option) (*jsonrepo.Repo, error) {
	if err := conf.EnsureDirs(); err != nil {
		return nil, err
	}
	r, err := jsonrepo.New(conf.DBDir(), opts...)
	if err != nil {
		return nil, fmt.Errorf("init repository: %w", err)
	}
	return r, nil
}

// NewFetcher builds the distfile fetcher chain: OCI references first,
// HTTP(S) URLs after.
func NewFetcher(conf *config.Config) fetch.Fetcher {
	return fetch.Chain{ocifetch.New(conf), httpfetch.New(conf)}
}

// NewObserver returns an observer printing phase and repository activity to
// stdout.
func NewObserver() *observer.Repo {
	return observer.NewRepo(format.New(os.Stdout))
}

// ParseAtom splits "name-version" at the first dash followed by a digit.
// Without one the whole argument is the name.
func ParseAtom(arg string) *types.Atom {
	for i := 1; i < len(arg)-1; i++ {
		if arg[i] == '-' && arg[i+1] >= '0' && arg[i+1] <= '9' {
			return &types.Atom{Name: arg[:i], Version: arg[i+1:]}
		}
	}
	return &types.Atom{Name: arg}
}

// ParseFetchable derives a Fetchable from a URI: the filename is the last
// path segment with any query stripped.
func ParseFetchable(uri string) types.Fetchable {
	name := uri
	if i := strings.IndexByte(name, '?'); i >= 0 {
		name = name[:i]
	}
	name = path.Base(strings.TrimPrefix(name, ocifetch.Scheme))
	return types.Fetchable{Filename: name, URI: uri}
}

func FormatSize(bytes int64) string {
	return units.HumanSize(float64(bytes))
}
