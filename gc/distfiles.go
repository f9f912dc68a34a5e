package gc

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/projecteru2/parcel/config"
	"github.com/projecteru2/parcel/lock"
	"github.com/projecteru2/parcel/utils"
)

// Module names for the distfile cache cycle.
const (
	ModuleIndex     = "index"
	ModuleDistfiles = "distfiles"
	ModuleTemp      = "temp"
)

// ReferenceFunc returns the set of distfile names still referenced by
// installed packages. Called while the repository read lock is held.
type ReferenceFunc func(ctx context.Context) (map[string]struct{}, error)

// NewDistfiles builds an Orchestrator that removes unreferenced files from
// the distfile cache and stale leftovers from the temp directory.
//
// Distfiles younger than utils.StaleTempAge are never candidates: a file that
// was just fetched may belong to a build that has not yet reached the index.
func NewDistfiles(conf *config.Config, repoLock lock.RWLocker, referenced ReferenceFunc) *Orchestrator {
	o := New(distfilesResolver)
	o.Register(Module{
		Name:      ModuleIndex,
		Locker:    repoLock,
		ReadState: func(ctx context.Context) (Snapshot, error) { return referenced(ctx) },
	})
	o.Register(Module{
		Name:   ModuleDistfiles,
		Locker: lock.Fake{},
		ReadState: func(context.Context) (Snapshot, error) {
			return scanOlder(conf.DistfilesDir(), utils.StaleTempAge)
		},
		Collect: func(ctx context.Context, names []string) error {
			return removeNamed(ctx, conf.DistfilesDir(), names)
		},
	})
	o.Register(Module{
		Name:   ModuleTemp,
		Locker: lock.Fake{},
		ReadState: func(context.Context) (Snapshot, error) {
			return scanOlder(conf.TempDir(), utils.StaleTempAge)
		},
		Collect: func(ctx context.Context, names []string) error {
			return removeNamed(ctx, conf.TempDir(), names)
		},
	})
	return o
}

// distfilesResolver keeps every distfile named in the index snapshot and
// deletes everything else. Stale temp files are always deleted.
func distfilesResolver(snapshots map[string]Snapshot) map[string][]string {
	refs, ok := snapshots[ModuleIndex].(map[string]struct{})
	if !ok {
		// Without the index there is no reference set; deleting anything
		// from the cache would be guesswork. Temp leftovers are still safe.
		refs = nil
	}

	targets := make(map[string][]string)
	if ok {
		if onDisk, found := snapshots[ModuleDistfiles].([]string); found {
			if names := utils.FilterUnreferenced(onDisk, refs); len(names) > 0 {
				targets[ModuleDistfiles] = names
			}
		}
	}
	if stale, found := snapshots[ModuleTemp].([]string); found && len(stale) > 0 {
		targets[ModuleTemp] = stale
	}
	return targets
}

// scanOlder returns the name of every regular file in dir whose modification
// time is older than age.
func scanOlder(dir string, age time.Duration) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	cutoff := time.Now().Add(-age)
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func removeNamed(ctx context.Context, dir string, names []string) error {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	errs := utils.RemoveMatching(ctx, dir, func(e os.DirEntry) bool {
		_, ok := set[e.Name()]
		return ok
	})
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// References derives the distfile reference set from installed package
// labels: a distfile is kept while any installed "name-version" prefixes it.
func References(labels []string, dir string) map[string]struct{} {
	refs := make(map[string]struct{})
	for _, f := range utils.ScanFiles(dir) {
		for _, label := range labels {
			if strings.HasPrefix(f, label) {
				refs[f] = struct{}{}
				break
			}
		}
	}
	return refs
}
