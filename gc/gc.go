package gc

import (
	"context"
	"fmt"
	"strings"

	"github.com/projecteru2/core/log"

	"github.com/projecteru2/parcel/lock"
)

// Snapshot is the opaque state read from a module while its lock is held.
// Each module's ReadState returns its own concrete type; Resolver sees them
// as any.
type Snapshot = any

// Module describes a resource pool that participates in garbage collection.
type Module struct {
	Name string

	// Locker coordinates GC with active operations on the same resource.
	// Snapshots are taken under the read lock; collection under the write
	// lock, non-blocking when the lock also implements lock.TryLocker.
	Locker lock.RWLocker

	// ReadState reads the module's current state.
	// Called while the read lock is held and must not re-acquire it.
	ReadState func(ctx context.Context) (Snapshot, error)

	// Collect removes the named resources.
	// Called while the write lock is held and must not re-acquire it.
	Collect func(ctx context.Context, names []string) error
}

// Resolver analyses snapshots from all successfully-read modules and returns
// the resource names to delete per module.
// key = Module.Name, value = names to pass to that module's Collect.
type Resolver func(snapshots map[string]Snapshot) map[string][]string

// Orchestrator runs GC across all registered modules.
type Orchestrator struct {
	modules  []Module
	resolver Resolver
}

// New creates an Orchestrator with the given cross-module Resolver.
func New(resolver Resolver) *Orchestrator {
	return &Orchestrator{resolver: resolver}
}

// Register adds a module to the GC cycle.
func (o *Orchestrator) Register(m Module) {
	o.modules = append(o.modules, m)
}

// Run executes one GC cycle:
//
//  1. For each module: read lock → ReadState → unlock (skip on error).
//  2. Resolver analyses all collected snapshots and returns deletion targets.
//  3. For each module with targets: try write lock → Collect → unlock
//     (skip if busy).
//
// Collection re-acquires the lock rather than holding it from step 1 to keep
// contention with live operations minimal. The window is safe because GC only
// deletes unreferenced resources, and a resource that becomes referenced
// between snapshot and collect belongs to an operation that holds the write
// lock, which makes the try-acquire fail and defers the module to the next
// run.
func (o *Orchestrator) Run(ctx context.Context) error {
	logger := log.WithFunc("gc.Run")
	snapshots := make(map[string]Snapshot, len(o.modules))

	// Phase 1: read each module's state under its read lock.
	for _, m := range o.modules {
		var snap Snapshot
		err := lock.WithRead(ctx, m.Locker, func() (err error) {
			snap, err = m.ReadState(ctx)
			return err
		})
		if err != nil {
			logger.Warnf(ctx, "skip %s: snapshot: %v", m.Name, err)
			continue
		}
		snapshots[m.Name] = snap
	}

	// Phase 2: cross-module analysis, no locks held.
	targets := o.resolver(snapshots)
	if len(targets) == 0 {
		return nil
	}

	// Phase 3: collect under the write lock, skipping busy modules.
	var errs []string
	for _, m := range o.modules {
		names := targets[m.Name]
		if len(names) == 0 {
			continue
		}
		ok, err := tryWrite(ctx, m.Locker)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", m.Name, err))
			continue
		}
		if !ok {
			logger.Warnf(ctx, "skip %s: busy, will retry next run", m.Name)
			continue
		}
		collectErr := m.Collect(ctx, names)
		m.Locker.ReleaseWrite(ctx) //nolint:errcheck
		if collectErr != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", m.Name, collectErr))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("gc errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// tryWrite acquires the write lock without blocking when the lock supports
// it, and falls back to a blocking acquire otherwise.
func tryWrite(ctx context.Context, l lock.RWLocker) (bool, error) {
	if tl, ok := l.(lock.TryLocker); ok {
		return tl.TryAcquireWrite(ctx)
	}
	if err := l.AcquireWrite(ctx); err != nil {
		return false, err
	}
	return true, nil
}
