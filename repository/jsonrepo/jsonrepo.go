package jsonrepo

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/projecteru2/core/log"

	"github.com/projecteru2/parcel/lock"
	"github.com/projecteru2/parcel/lock/flock"
	"github.com/projecteru2/parcel/observer"
	"github.com/projecteru2/parcel/operation/build"
	"github.com/projecteru2/parcel/operation/repo"
	storejson "github.com/projecteru2/parcel/storage/json"
	"github.com/projecteru2/parcel/types"
	"github.com/projecteru2/parcel/utils"
)

const (
	lockFile  = "lock"
	indexFile = "index.json"
)

// Entry records one installed package in the index.
type Entry struct {
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Contents    []string  `json:"contents,omitempty"`
	InstalledAt time.Time `json:"installed_at"`
}

// index is the top-level structure of the JSON store.
type index struct {
	Packages map[string]*Entry `json:"packages"`
}

func (i *index) Init() {
	if i.Packages == nil {
		i.Packages = make(map[string]*Entry)
	}
}

// compile-time interface check.
var _ repo.Repository = (*Repo)(nil)

// Repo is an installed-package repository backed by a flock-protected JSON
// index. Mutations go through the repository operations in operation/repo,
// which take the write lock in their "start" stage; the data stages then use
// the store's unlocked Read/Write.
type Repo struct {
	dir    string
	lk     *flock.Lock
	store  *storejson.Store[index]
	frozen bool
	syncer repo.Syncer
}

// Option configures a Repo.
type Option func(*Repo)

// WithFrozen marks the repository frozen: mutating commands drop out of its
// registry's supported set.
func WithFrozen() Option {
	return func(r *Repo) { r.frozen = true }
}

// WithSyncer attaches a syncer, enabling the sync command.
func WithSyncer(s repo.Syncer) Option {
	return func(r *Repo) { r.syncer = s }
}

// New opens (creating if needed) the repository at dir.
func New(dir string, opts ...Option) (*Repo, error) {
	if err := utils.EnsureDirs(dir); err != nil {
		return nil, fmt.Errorf("ensure repo dir: %w", err)
	}
	lk := flock.New(filepath.Join(dir, lockFile))
	r := &Repo{
		dir:   dir,
		lk:    lk,
		store: storejson.New[index](lk, filepath.Join(dir, indexFile)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Repo) Lock() lock.RWLocker { return r.lk }

func (r *Repo) Frozen() bool { return r.frozen }

func (r *Repo) Syncer() repo.Syncer { return r.syncer }

// NotifyAddPackage is invoked by install operations after their data is
// finalized, with the finalize-substituted package.
func (r *Repo) NotifyAddPackage(ctx context.Context, pkg types.Package) error {
	log.WithFunc("jsonrepo.NotifyAddPackage").Infof(ctx, "added %s to %s", pkg, r.dir)
	return nil
}

// NotifyRemovePackage is invoked by uninstall operations once their data
// stage removed the package.
func (r *Repo) NotifyRemovePackage(ctx context.Context, pkg types.Package) error {
	log.WithFunc("jsonrepo.NotifyRemovePackage").Infof(ctx, "removed %s from %s", pkg, r.dir)
	return nil
}

// Packages lists the installed entries sorted by name.
func (r *Repo) Packages(ctx context.Context) ([]*Entry, error) {
	var entries []*Entry
	err := r.store.View(ctx, func(idx *index) error {
		for _, e := range idx.Packages {
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Entry returns the installed entry for name, or false.
func (r *Repo) Entry(ctx context.Context, name string) (*Entry, bool, error) {
	var (
		entry *Entry
		ok    bool
	)
	err := r.store.View(ctx, func(idx *index) error {
		entry, ok = idx.Packages[name]
		return nil
	})
	return entry, ok, err
}

// Operations returns the frozen command registry for this repository.
func (r *Repo) Operations(opts ...repo.Option) *repo.Registry {
	return repo.NewRegistry(r, repo.Ops{
		Install: func(ctx context.Context, pkg types.Package, obs observer.Observer) (bool, error) {
			op, err := repo.NewInstall(r, pkg, &installBackend{repo: r, pkg: pkg, obs: obs}, obs)
			if err != nil {
				return false, err
			}
			return op.Run(ctx, "finish")
		},
		Uninstall: func(ctx context.Context, pkg types.Package, obs observer.Observer) (bool, error) {
			op, err := repo.NewUninstall(r, pkg, &uninstallBackend{repo: r, pkg: pkg, obs: obs}, obs)
			if err != nil {
				return false, err
			}
			return op.Run(ctx, "finish")
		},
		Replace: func(ctx context.Context, oldPkg, newPkg types.Package, obs observer.Observer) (bool, error) {
			op, err := repo.NewReplace(r, oldPkg, newPkg, &replaceBackend{
				installBackend:   installBackend{repo: r, pkg: newPkg, obs: obs},
				uninstallBackend: uninstallBackend{repo: r, pkg: oldPkg, obs: obs},
			}, obs)
			if err != nil {
				return false, err
			}
			return op.Run(ctx, "finish")
		},
		Configure: func(ctx context.Context, pkg types.Package, obs observer.Observer) (bool, error) {
			op, err := build.NewMaintenance(pkg, build.NopBackend{}, obs)
			if err != nil {
				return false, err
			}
			return op.Run(ctx, "config")
		},
	}, opts...)
}
