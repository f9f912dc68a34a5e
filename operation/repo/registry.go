package repo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/projecteru2/core/log"

	"github.com/projecteru2/parcel/format"
	"github.com/projecteru2/parcel/observer"
	"github.com/projecteru2/parcel/types"
)

// ErrUnsupported reports a command the repository does not expose, either
// structurally or because a support predicate disabled it.
var ErrUnsupported = errors.New("command not supported by repository")

// Command names published by a Registry.
const (
	CmdInstall   = "install"
	CmdUninstall = "uninstall"
	CmdReplace   = "replace"
	CmdConfigure = "configure"
	CmdSync      = "sync"
)

// Ops supplies the concrete command implementations for a repository. A nil
// field means the command is not structurally defined for that repository
// and never appears, even raw. Sync is defaulted to driving the
// repository's syncer when left nil.
type Ops struct {
	Install   func(ctx context.Context, pkg types.Package, obs observer.Observer) (bool, error)
	Uninstall func(ctx context.Context, pkg types.Package, obs observer.Observer) (bool, error)
	Replace   func(ctx context.Context, oldPkg, newPkg types.Package, obs observer.Observer) (bool, error)
	Configure func(ctx context.Context, pkg types.Package, obs observer.Observer) (bool, error)
	Sync      func(ctx context.Context, obs observer.Observer) (bool, error)
}

// Option configures a Registry.
type Option func(*Registry)

// WithEnable force-enables commands regardless of their support predicate.
func WithEnable(names ...string) Option {
	return func(r *Registry) {
		for _, n := range names {
			r.enableOverrides[n] = struct{}{}
		}
	}
}

// WithDisable force-disables commands.
func WithDisable(names ...string) Option {
	return func(r *Registry) {
		for _, n := range names {
			r.disableOverrides[n] = struct{}{}
		}
	}
}

// WithDefaultObserver sets the factory for the observer supplied to commands
// invoked with a nil observer. The default writes repository progress lines
// to stdout.
func WithDefaultObserver(fn func() observer.Observer) Option {
	return func(r *Registry) {
		r.defaultObs = sync.OnceValue(fn)
	}
}

// Registry publishes the commands a repository instance supports. The
// enabled set is frozen at construction: every structurally defined command
// is kept unless its support predicate fails, then the explicit
// enable/disable overrides are applied, enables first.
type Registry struct {
	repo Repository
	ops  Ops

	enableOverrides  map[string]struct{}
	disableOverrides map[string]struct{}
	enabled          map[string]struct{}
	defaultObs       func() observer.Observer
}

// NewRegistry builds the frozen command table for repository.
func NewRegistry(repository Repository, ops Ops, opts ...Option) *Registry {
	r := &Registry{
		repo:             repository,
		ops:              ops,
		enableOverrides:  make(map[string]struct{}),
		disableOverrides: make(map[string]struct{}),
		// Lazily built so that merely constructing a registry never touches
		// the terminal.
		defaultObs: sync.OnceValue(func() observer.Observer {
			return observer.NewRepo(format.New(os.Stdout))
		}),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.enabled = make(map[string]struct{})
	for _, name := range r.rawCommands() {
		if pred, ok := r.supportPredicates()[name]; ok && !pred() {
			continue
		}
		r.enabled[name] = struct{}{}
	}
	for name := range r.enableOverrides {
		r.enabled[name] = struct{}{}
	}
	for name := range r.disableOverrides {
		delete(r.enabled, name)
	}
	return r
}

// NewRegistryProxy builds a registry that forwards every command to the
// wrapped repository's registry, while evaluating support predicates and
// overrides against the wrapping repository itself. Views and filters over
// a raw repository use this to publish the raw repository's commands under
// their own frozen/syncer state.
func NewRegistryProxy(repository Repository, target *Registry, opts ...Option) *Registry {
	return NewRegistry(repository, target.ops, opts...)
}

// rawCommands returns the structurally defined command names, sorted.
func (r *Registry) rawCommands() []string {
	var names []string
	if r.ops.Install != nil {
		names = append(names, CmdInstall)
	}
	if r.ops.Uninstall != nil {
		names = append(names, CmdUninstall)
	}
	if r.ops.Replace != nil {
		names = append(names, CmdReplace)
	}
	if r.ops.Configure != nil {
		names = append(names, CmdConfigure)
	}
	if r.ops.Sync != nil || r.repo.Syncer() != nil {
		names = append(names, CmdSync)
	}
	sort.Strings(names)
	return names
}

// supportPredicates maps command names to their enablement checks.
func (r *Registry) supportPredicates() map[string]func() bool {
	notFrozen := func() bool {
		if r.repo.Frozen() {
			log.WithFunc("repo.Registry").Debugf(context.Background(), "disabling mutating command: repository is frozen")
			return false
		}
		return true
	}
	return map[string]func() bool{
		CmdInstall:   notFrozen,
		CmdUninstall: notFrozen,
		CmdReplace:   notFrozen,
		CmdSync: func() bool {
			s := r.repo.Syncer()
			return s != nil && !s.Disabled()
		},
	}
}

// Supported returns the enabled command names, sorted.
func (r *Registry) Supported() []string {
	names := make([]string, 0, len(r.enabled))
	for name := range r.enabled {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Supports reports whether the named command is enabled.
func (r *Registry) Supports(name string) bool {
	_, ok := r.enabled[name]
	return ok
}

// RawCommands returns every structurally defined command regardless of
// support filtering, sorted.
func (r *Registry) RawCommands() []string { return r.rawCommands() }

// SupportsRaw reports whether the named command is structurally defined,
// ignoring support filtering.
func (r *Registry) SupportsRaw(name string) bool {
	for _, n := range r.rawCommands() {
		if n == name {
			return true
		}
	}
	return false
}

// observerOrDefault substitutes the lazily-built default observer for nil.
func (r *Registry) observerOrDefault(obs observer.Observer) observer.Observer {
	if obs == nil {
		return r.defaultObs()
	}
	return obs
}

func (r *Registry) check(name string) error {
	if !r.Supports(name) {
		return fmt.Errorf("%s: %w", name, ErrUnsupported)
	}
	return nil
}

// Install runs the repository's install command. A nil observer gets the
// registry's default one.
func (r *Registry) Install(ctx context.Context, pkg types.Package, obs observer.Observer) (bool, error) {
	if err := r.check(CmdInstall); err != nil {
		return false, err
	}
	return r.ops.Install(ctx, pkg, r.observerOrDefault(obs))
}

// Uninstall runs the repository's uninstall command.
func (r *Registry) Uninstall(ctx context.Context, pkg types.Package, obs observer.Observer) (bool, error) {
	if err := r.check(CmdUninstall); err != nil {
		return false, err
	}
	return r.ops.Uninstall(ctx, pkg, r.observerOrDefault(obs))
}

// Replace runs the repository's replace command.
func (r *Registry) Replace(ctx context.Context, oldPkg, newPkg types.Package, obs observer.Observer) (bool, error) {
	if err := r.check(CmdReplace); err != nil {
		return false, err
	}
	return r.ops.Replace(ctx, oldPkg, newPkg, r.observerOrDefault(obs))
}

// Configure runs the repository's configure command.
func (r *Registry) Configure(ctx context.Context, pkg types.Package, obs observer.Observer) (bool, error) {
	if err := r.check(CmdConfigure); err != nil {
		return false, err
	}
	return r.ops.Configure(ctx, pkg, r.observerOrDefault(obs))
}

// Sync refreshes the repository from its upstream via its syncer, or via
// the Ops override when one is supplied.
func (r *Registry) Sync(ctx context.Context, obs observer.Observer) (bool, error) {
	if err := r.check(CmdSync); err != nil {
		return false, err
	}
	if r.ops.Sync != nil {
		return r.ops.Sync(ctx, r.observerOrDefault(obs))
	}
	s := r.repo.Syncer()
	if s == nil {
		return false, fmt.Errorf("%s: %w", CmdSync, ErrUnsupported)
	}
	return s.Sync(ctx)
}
