package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/projecteru2/core/log"

	"github.com/projecteru2/parcel/lock"
	"github.com/projecteru2/parcel/observer"
	"github.com/projecteru2/parcel/stage"
	"github.com/projecteru2/parcel/types"
)

// Repository is the capability a mutation operation drives. Its internals
// (storage format, caches) are the backend's business; the operations here
// only lock it and notify it.
type Repository interface {
	// Lock returns the repository's lock, or nil when it has none; a no-op
	// fake is substituted so the stage graphs run unchanged.
	Lock() lock.RWLocker
	// Frozen repositories refuse mutating commands.
	Frozen() bool
	NotifyAddPackage(ctx context.Context, pkg types.Package) error
	NotifyRemovePackage(ctx context.Context, pkg types.Package) error
	// Syncer returns the repository's syncer, or nil when none is configured.
	Syncer() Syncer
}

// Syncer refreshes a repository from its upstream.
type Syncer interface {
	Sync(ctx context.Context) (bool, error)
	// Disabled syncers drop the sync command from the supported set.
	Disabled() bool
}

// ErrNotImplemented signals a data stage the backend failed to provide.
// It is a programming error in the backend, never an expected runtime
// failure: it propagates out of Run and must not be converted into a
// boolean stage failure.
var ErrNotImplemented = errors.New("data stage not implemented")

// InstallBackend supplies the data stages of a repository install.
// Embed Unimplemented to make the missing-override contract explicit while
// building a backend incrementally.
type InstallBackend interface {
	AddData(ctx context.Context) (bool, error)
	// FinalizeData may substitute a mutated package carrying the contents
	// that actually landed; a nil package keeps the original. The
	// substituted package is what the repository add notification receives.
	FinalizeData(ctx context.Context) (types.Package, bool, error)
}

// UninstallBackend supplies the data stages of a repository uninstall.
type UninstallBackend interface {
	RemoveData(ctx context.Context) (bool, error)
	FinalizeData(ctx context.Context) (types.Package, bool, error)
}

// ReplaceBackend supplies the data stages of a repository replace.
type ReplaceBackend interface {
	AddData(ctx context.Context) (bool, error)
	RemoveData(ctx context.Context) (bool, error)
	FinalizeData(ctx context.Context) (types.Package, bool, error)
}

// Unimplemented returns ErrNotImplemented from every data stage.
type Unimplemented struct{}

func (Unimplemented) AddData(context.Context) (bool, error) {
	return false, fmt.Errorf("add_data: %w", ErrNotImplemented)
}

func (Unimplemented) RemoveData(context.Context) (bool, error) {
	return false, fmt.Errorf("remove_data: %w", ErrNotImplemented)
}

func (Unimplemented) FinalizeData(context.Context) (types.Package, bool, error) {
	return nil, false, fmt.Errorf("finalize_data: %w", ErrNotImplemented)
}

// Stage graphs of the repository mutation operations. The write lock is
// acquired in "start" and released in "finish"; replace notifies the removal
// before the shared finalize step and the addition only after it.
var (
	installGraph = stage.Graph{
		"add_data":         {stage.Start},
		"finalize_data":    {"add_data"},
		"_notify_repo_add": {"finalize_data"},
		"finish":           {"_notify_repo_add"},
	}

	uninstallGraph = stage.Graph{
		"remove_data":         {stage.Start},
		"finalize_data":       {"remove_data"},
		"_notify_repo_remove": {"finalize_data"},
		"finish":              {"_notify_repo_remove"},
	}

	replaceGraph = stage.Graph{
		"add_data":            {stage.Start},
		"remove_data":         {stage.Start},
		"_notify_repo_remove": {"remove_data"},
		"finalize_data":       {"add_data", "_notify_repo_remove"},
		"_notify_repo_add":    {"finalize_data"},
		"finish":              {"_notify_repo_add"},
	}
)

// base carries what every repository mutation operation shares: the target
// repository, its write lock (or a fake), and the underway flag.
type base struct {
	id       string
	repo     Repository
	lk       lock.RWLocker
	runner   *stage.Runner
	underway bool
}

func (b *base) init(repo Repository, graph stage.Graph, stages map[string]stage.Func, obs observer.Observer) error {
	b.id = uuid.NewString()
	b.repo = repo
	b.lk = repo.Lock()
	if b.lk == nil {
		b.lk = lock.Fake{}
	}
	var so stage.Observer
	if obs != nil {
		so = obs
	}
	runner, err := stage.NewRunner(graph, stages, so)
	if err != nil {
		return err
	}
	b.runner = runner
	return nil
}

// start flags the operation underway and takes the repository write lock.
func (b *base) start(ctx context.Context) (bool, error) {
	b.underway = true
	if err := b.lk.AcquireWrite(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// finish releases the write lock and clears the underway flag.
func (b *base) finish(ctx context.Context) (bool, error) {
	if err := b.lk.ReleaseWrite(ctx); err != nil {
		return false, err
	}
	b.underway = false
	return true, nil
}

// run executes the named stage, guaranteeing the write lock is released on
// every failing exit: a false result or an error after "start" completed
// releases the lock before returning.
func (b *base) run(ctx context.Context, name string) (ok bool, err error) {
	defer func() {
		if (err != nil || !ok) && b.underway {
			if rerr := b.lk.ReleaseWrite(ctx); rerr != nil {
				log.WithFunc("repo.run").Warnf(ctx, "op %s: release write lock: %v", b.id, rerr)
			}
			b.underway = false
		}
	}()
	return b.runner.Run(ctx, name)
}

// Underway reports whether the operation holds the repository write lock.
func (b *base) Underway() bool { return b.underway }

// Completed reports whether the named stage already ran successfully.
func (b *base) Completed(name string) bool { return b.runner.Completed(name) }

// Install adds a package to a repository:
// start -> add_data -> finalize_data -> _notify_repo_add -> finish.
type Install struct {
	base
	backend InstallBackend
	newPkg  types.Package
}

// NewInstall creates a repository install operation for pkg. obs may be nil.
func NewInstall(repository Repository, pkg types.Package, backend InstallBackend, obs observer.Observer) (*Install, error) {
	op := &Install{backend: backend, newPkg: pkg}
	stages := map[string]stage.Func{
		stage.Start:        op.start,
		"add_data":         op.backend.AddData,
		"finalize_data":    op.finalizeData,
		"_notify_repo_add": op.notifyAdd,
		"finish":           op.finish,
	}
	if err := op.init(repository, installGraph, stages, obs); err != nil {
		return nil, err
	}
	return op, nil
}

// Run executes the named stage, typically "finish".
func (op *Install) Run(ctx context.Context, name string) (bool, error) {
	return op.run(ctx, name)
}

// Pkg returns the package as the repository saw it: finalize-substituted
// when the backend mutated it.
func (op *Install) Pkg() types.Package { return op.newPkg }

func (op *Install) finalizeData(ctx context.Context) (bool, error) {
	pkg, ok, err := op.backend.FinalizeData(ctx)
	if pkg != nil {
		op.newPkg = pkg
	}
	return ok, err
}

func (op *Install) notifyAdd(ctx context.Context) (bool, error) {
	if err := op.repo.NotifyAddPackage(ctx, op.newPkg); err != nil {
		return false, err
	}
	return true, nil
}

// Uninstall removes a package from a repository:
// start -> remove_data -> finalize_data -> _notify_repo_remove -> finish.
type Uninstall struct {
	base
	backend UninstallBackend
	oldPkg  types.Package
}

// NewUninstall creates a repository uninstall operation for pkg. obs may be
// nil.
func NewUninstall(repository Repository, pkg types.Package, backend UninstallBackend, obs observer.Observer) (*Uninstall, error) {
	op := &Uninstall{backend: backend, oldPkg: pkg}
	stages := map[string]stage.Func{
		stage.Start:           op.start,
		"remove_data":         op.backend.RemoveData,
		"finalize_data":       op.finalizeData,
		"_notify_repo_remove": op.notifyRemove,
		"finish":              op.finish,
	}
	if err := op.init(repository, uninstallGraph, stages, obs); err != nil {
		return nil, err
	}
	return op, nil
}

// Run executes the named stage, typically "finish".
func (op *Uninstall) Run(ctx context.Context, name string) (bool, error) {
	return op.run(ctx, name)
}

// Pkg returns the package being removed.
func (op *Uninstall) Pkg() types.Package { return op.oldPkg }

func (op *Uninstall) finalizeData(ctx context.Context) (bool, error) {
	_, ok, err := op.backend.FinalizeData(ctx)
	return ok, err
}

func (op *Uninstall) notifyRemove(ctx context.Context) (bool, error) {
	if err := op.repo.NotifyRemovePackage(ctx, op.oldPkg); err != nil {
		return false, err
	}
	return true, nil
}

// Replace swaps oldPkg for newPkg in one locked operation. Removal is
// notified before the shared finalize step; addition only after it.
type Replace struct {
	base
	backend ReplaceBackend
	oldPkg  types.Package
	newPkg  types.Package
}

// NewReplace creates a repository replace operation. obs may be nil.
func NewReplace(repository Repository, oldPkg, newPkg types.Package, backend ReplaceBackend, obs observer.Observer) (*Replace, error) {
	op := &Replace{backend: backend, oldPkg: oldPkg, newPkg: newPkg}
	stages := map[string]stage.Func{
		stage.Start:           op.start,
		"add_data":            op.backend.AddData,
		"remove_data":         op.backend.RemoveData,
		"_notify_repo_remove": op.notifyRemove,
		"finalize_data":       op.finalizeData,
		"_notify_repo_add":    op.notifyAdd,
		"finish":              op.finish,
	}
	if err := op.init(repository, replaceGraph, stages, obs); err != nil {
		return nil, err
	}
	return op, nil
}

// Run executes the named stage, typically "finish".
func (op *Replace) Run(ctx context.Context, name string) (bool, error) {
	return op.run(ctx, name)
}

// Pkg returns the replacement package as the repository saw it.
func (op *Replace) Pkg() types.Package { return op.newPkg }

func (op *Replace) finalizeData(ctx context.Context) (bool, error) {
	pkg, ok, err := op.backend.FinalizeData(ctx)
	if pkg != nil {
		op.newPkg = pkg
	}
	return ok, err
}

func (op *Replace) notifyAdd(ctx context.Context) (bool, error) {
	if err := op.repo.NotifyAddPackage(ctx, op.newPkg); err != nil {
		return false, err
	}
	return true, nil
}

func (op *Replace) notifyRemove(ctx context.Context) (bool, error) {
	if err := op.repo.NotifyRemovePackage(ctx, op.oldPkg); err != nil {
		return false, err
	}
	return true, nil
}
