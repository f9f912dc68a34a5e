package build

import (
	"context"

	"github.com/google/uuid"
	"github.com/projecteru2/core/log"

	"github.com/projecteru2/parcel/fetch"
	"github.com/projecteru2/parcel/observer"
	"github.com/projecteru2/parcel/stage"
	"github.com/projecteru2/parcel/types"
)

// Stage graphs of the build-side operations. Edges read "key depends on
// values", prerequisites in declared order.
var (
	buildGraph = stage.Graph{
		"setup":     {stage.Start},
		"unpack":    {"fetch", "setup"},
		"prepare":   {"unpack"},
		"configure": {"prepare"},
		"compile":   {"configure"},
		"test":      {"compile"},
		"install":   {"test"},
		"finalize":  {"install"},
	}

	mergeGraph = stage.Graph{
		"preinst":  {stage.Start},
		"postinst": {"preinst"},
		"finalize": {"postinst"},
	}

	unmergeGraph = stage.Graph{
		"prerm":    {stage.Start},
		"postrm":   {"prerm"},
		"finalize": {"postrm"},
	}

	replaceGraph = stage.Graph{
		"preinst":  {stage.Start},
		"prerm":    {"preinst"},
		"postrm":   {"prerm"},
		"postinst": {"postrm"},
		"finalize": {"postinst"},
	}

	fetchGraph = stage.Graph{
		"finalize": {"fetch"},
	}
)

// base carries the pieces every build-side operation shares.
type base struct {
	id     string
	runner *stage.Runner
	obs    observer.Observer
}

func (b *base) init(graph stage.Graph, stages map[string]stage.Func, obs observer.Observer) error {
	b.id = uuid.NewString()
	b.obs = obs
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

// Run executes the named stage and its undone prerequisites.
func (b *base) Run(ctx context.Context, name string) (bool, error) {
	log.WithFunc("build.Run").Debugf(ctx, "op %s: running stage %q", b.id, name)
	return b.runner.Run(ctx, name)
}

// Completed reports whether the named stage already ran successfully.
func (b *base) Completed(name string) bool { return b.runner.Completed(name) }

func noop(context.Context) (bool, error) { return true, nil }

// Build runs the source build pipeline for one package:
// fetch/setup -> unpack -> prepare -> configure -> compile -> test ->
// install -> finalize. Construct one instance per build; instances are not
// reusable and not safe for concurrent use.
type Build struct {
	base
	domain  types.Domain
	pkg     types.Package
	backend Backend
	fetcher fetch.Fetcher
	record  fetch.Record
	final   types.Package
}

// NewBuild creates a build operation bound to pkg. obs may be nil.
func NewBuild(domain types.Domain, pkg types.Package, backend Backend, fetcher fetch.Fetcher, obs observer.Observer) (*Build, error) {
	b := &Build{
		domain:  domain,
		pkg:     pkg,
		backend: backend,
		fetcher: fetcher,
		record:  make(fetch.Record),
	}
	stages := map[string]stage.Func{
		stage.Start: noop,
		"setup":     b.backend.Setup,
		"fetch":     b.fetch,
		"unpack":    b.backend.Unpack,
		"prepare":   b.backend.Prepare,
		"configure": b.backend.Configure,
		"compile":   b.backend.Compile,
		"test":      b.backend.Test,
		"install":   b.backend.Install,
		"finalize":  b.finalize,
		"cleanup":   b.backend.Cleanup,
	}
	if err := b.init(buildGraph, stages, obs); err != nil {
		return nil, err
	}
	return b, nil
}

// Domain returns the opaque build-environment context.
func (b *Build) Domain() types.Domain { return b.domain }

// Pkg returns the package this operation produced: the backend-derived one
// after finalize completed, the original otherwise.
func (b *Build) Pkg() types.Package {
	if b.final != nil {
		return b.final
	}
	return b.pkg
}

// Record returns the fetch record accumulated so far, keyed by local path.
func (b *Build) Record() fetch.Record { return b.record }

func (b *Build) fetch(ctx context.Context) (bool, error) {
	return fetchStage(ctx, b.fetcher, b.pkg.Fetchables(), b.record, b.backend.NoFetch)
}

func (b *Build) finalize(ctx context.Context) (bool, error) {
	pkg, ok, err := b.backend.Finalize(ctx)
	if pkg != nil {
		b.final = pkg
	}
	return ok, err
}

// Merge runs the install pipeline: preinst -> postinst -> finalize.
type Merge struct {
	base
	domain  types.Domain
	newPkg  types.Package
	backend MergeBackend
	final   types.Package
}

// NewMerge creates an install operation for newPkg. obs may be nil.
func NewMerge(domain types.Domain, newPkg types.Package, backend MergeBackend, obs observer.Observer) (*Merge, error) {
	m := &Merge{domain: domain, newPkg: newPkg, backend: backend}
	stages := map[string]stage.Func{
		stage.Start: noop,
		"preinst":   m.backend.Preinst,
		"postinst":  m.backend.Postinst,
		"finalize":  m.finalize,
		"cleanup":   m.backend.Cleanup,
	}
	if err := m.init(mergeGraph, stages, obs); err != nil {
		return nil, err
	}
	return m, nil
}

// Pkg returns the installed package, finalize-derived when the backend
// substituted one.
func (m *Merge) Pkg() types.Package {
	if m.final != nil {
		return m.final
	}
	return m.newPkg
}

func (m *Merge) finalize(ctx context.Context) (bool, error) {
	pkg, ok, err := m.backend.Finalize(ctx)
	if pkg != nil {
		m.final = pkg
	}
	return ok, err
}

// Unmerge runs the uninstall pipeline: prerm -> postrm -> finalize.
type Unmerge struct {
	base
	domain  types.Domain
	oldPkg  types.Package
	backend UnmergeBackend
}

// NewUnmerge creates an uninstall operation for oldPkg. obs may be nil.
func NewUnmerge(domain types.Domain, oldPkg types.Package, backend UnmergeBackend, obs observer.Observer) (*Unmerge, error) {
	u := &Unmerge{domain: domain, oldPkg: oldPkg, backend: backend}
	stages := map[string]stage.Func{
		stage.Start: noop,
		"prerm":     u.backend.Prerm,
		"postrm":    u.backend.Postrm,
		"finalize":  u.finalize,
		"cleanup":   u.backend.Cleanup,
	}
	if err := u.init(unmergeGraph, stages, obs); err != nil {
		return nil, err
	}
	return u, nil
}

// Pkg returns the package being removed.
func (u *Unmerge) Pkg() types.Package { return u.oldPkg }

func (u *Unmerge) finalize(ctx context.Context) (bool, error) {
	_, ok, err := u.backend.Finalize(ctx)
	return ok, err
}

// Replace composes uninstall of oldPkg with install of newPkg into one
// pipeline: preinst -> prerm -> postrm -> postinst -> finalize.
type Replace struct {
	base
	domain  types.Domain
	oldPkg  types.Package
	newPkg  types.Package
	backend ReplaceBackend
	final   types.Package
}

// NewReplace creates a replace operation swapping oldPkg for newPkg.
// obs may be nil.
func NewReplace(domain types.Domain, oldPkg, newPkg types.Package, backend ReplaceBackend, obs observer.Observer) (*Replace, error) {
	r := &Replace{domain: domain, oldPkg: oldPkg, newPkg: newPkg, backend: backend}
	stages := map[string]stage.Func{
		stage.Start: noop,
		"preinst":   r.backend.Preinst,
		"prerm":     r.backend.Prerm,
		"postrm":    r.backend.Postrm,
		"postinst":  r.backend.Postinst,
		"finalize":  r.finalize,
		"cleanup":   r.backend.Cleanup,
	}
	if err := r.init(replaceGraph, stages, obs); err != nil {
		return nil, err
	}
	return r, nil
}

// Pkg returns the replacement package, finalize-derived when substituted.
func (r *Replace) Pkg() types.Package {
	if r.final != nil {
		return r.final
	}
	return r.newPkg
}

func (r *Replace) finalize(ctx context.Context) (bool, error) {
	pkg, ok, err := r.backend.Finalize(ctx)
	if pkg != nil {
		r.final = pkg
	}
	return ok, err
}

// FetchOnly obtains a package's distfiles without building anything.
type FetchOnly struct {
	base
	pkg     types.Package
	fetcher fetch.Fetcher
	record  fetch.Record
	noFetch func(ctx context.Context, f types.Fetchable) error
}

// NewFetchOnly creates a fetch-only operation for pkg. noFetch may be nil,
// in which case unobtainable URI-less fetchables fail silently. obs may be
// nil.
func NewFetchOnly(pkg types.Package, fetcher fetch.Fetcher, noFetch func(ctx context.Context, f types.Fetchable) error, obs observer.Observer) (*FetchOnly, error) {
	f := &FetchOnly{pkg: pkg, fetcher: fetcher, record: make(fetch.Record), noFetch: noFetch}
	if f.noFetch == nil {
		f.noFetch = func(context.Context, types.Fetchable) error { return nil }
	}
	stages := map[string]stage.Func{
		"fetch":    f.fetch,
		"finalize": noop,
		"cleanup":  noop,
	}
	if err := f.init(fetchGraph, stages, obs); err != nil {
		return nil, err
	}
	return f, nil
}

// Pkg returns the package whose files were fetched.
func (f *FetchOnly) Pkg() types.Package { return f.pkg }

// Record returns the fetch record accumulated so far, keyed by local path.
func (f *FetchOnly) Record() fetch.Record { return f.record }

func (f *FetchOnly) fetch(ctx context.Context) (bool, error) {
	return fetchStage(ctx, f.fetcher, f.pkg.Fetchables(), f.record, f.noFetch)
}

// Empty is the build operation for packages that need no build work; every
// stage succeeds immediately and finalize yields the input package.
type Empty struct {
	base
	pkg types.Package
}

// NewEmpty creates an empty build operation for pkg. obs may be nil.
func NewEmpty(pkg types.Package, obs observer.Observer) (*Empty, error) {
	e := &Empty{pkg: pkg}
	stages := map[string]stage.Func{
		stage.Start: noop,
		"finalize":  noop,
		"cleanup":   noop,
	}
	if err := e.init(stage.Graph{}, stages, obs); err != nil {
		return nil, err
	}
	return e, nil
}

// Pkg returns the package unchanged.
func (e *Empty) Pkg() types.Package { return e.pkg }

// Maintenance runs post-install configuration of an already-installed
// package; its single stage is "config".
type Maintenance struct {
	base
	pkg     types.Package
	backend MaintenanceBackend
}

// NewMaintenance creates a configure operation for pkg. obs may be nil.
func NewMaintenance(pkg types.Package, backend MaintenanceBackend, obs observer.Observer) (*Maintenance, error) {
	m := &Maintenance{pkg: pkg, backend: backend}
	stages := map[string]stage.Func{
		"config": m.backend.Config,
	}
	if err := m.init(stage.Graph{}, stages, obs); err != nil {
		return nil, err
	}
	return m, nil
}

// Pkg returns the package being configured.
func (m *Maintenance) Pkg() types.Package { return m.pkg }
