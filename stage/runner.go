package stage

import (
	"context"
	"fmt"
)

// Func is one stage body. The boolean is the expected-failure channel: false
// means "this step failed cleanly" and halts the remaining chain without
// being an error. A non-nil error is reserved for abnormal conditions and
// propagates out of Run.
type Func func(ctx context.Context) (bool, error)

// Observer is notified around every stage invocation. PhaseEnd always fires
// exactly once per PhaseStart, with the stage's boolean result, or false when
// the stage returned an error or panicked.
type Observer interface {
	PhaseStart(phase string)
	PhaseEnd(phase string, status bool)
}

// Runner executes the stages of one operation instance in dependency order.
//
// Each stage runs at most once per Runner; the completed set survives the
// run for inspection but is never persisted across instances. Re-requesting
// a stage that already completed is a no-op returning the prior result
// (completed stages are by construction successful ones). Callers that need
// re-execution must build a fresh operation instance.
//
// A Runner is not safe for concurrent use.
type Runner struct {
	graph  Graph
	stages map[string]Func
	obs    Observer // nil disables all notification overhead
	done   map[string]bool
}

// NewRunner builds a Runner for the given graph and stage table, validating
// that every stage the graph references is implemented and that the graph is
// acyclic. obs may be nil.
func NewRunner(graph Graph, stages map[string]Func, obs Observer) (*Runner, error) {
	if err := graph.validate(func(name string) bool {
		_, ok := stages[name]
		return ok
	}); err != nil {
		return nil, err
	}
	return &Runner{
		graph:  graph,
		stages: stages,
		obs:    obs,
		done:   make(map[string]bool, len(stages)),
	}, nil
}

// Run executes the named stage after running every undone ancestor in the
// declared prerequisite order. It returns false as soon as any stage in the
// chain returns false; nothing declared after the failing stage executes.
// Errors propagate immediately, after the observer's PhaseEnd fired for the
// failing stage.
func (r *Runner) Run(ctx context.Context, name string) (bool, error) {
	if _, ok := r.stages[name]; !ok {
		return false, &ConfigError{fmt.Sprintf("unknown stage %q", name)}
	}
	return r.resolve(ctx, name)
}

// Completed reports whether the named stage has run successfully on this
// instance. Partial completion is preserved on failure for inspection.
func (r *Runner) Completed(name string) bool { return r.done[name] }

func (r *Runner) resolve(ctx context.Context, name string) (bool, error) {
	if r.done[name] {
		return true, nil
	}
	for _, dep := range r.graph[name] {
		if r.done[dep] {
			continue
		}
		ok, err := r.resolve(ctx, dep)
		if err != nil || !ok {
			return false, err
		}
	}
	return r.invoke(ctx, name)
}

// invoke runs a single stage body, bracketed by observer notifications when
// an observer is attached. PhaseEnd fires in a deferred block so it is
// guaranteed even when the stage panics; the panic then continues unwinding.
func (r *Runner) invoke(ctx context.Context, name string) (ok bool, err error) {
	fn := r.stages[name]
	if r.obs == nil {
		ok, err = fn(ctx)
	} else {
		r.obs.PhaseStart(name)
		func() {
			defer func() { r.obs.PhaseEnd(name, ok && err == nil) }()
			ok, err = fn(ctx)
		}()
	}
	if err != nil {
		return false, err
	}
	if ok {
		r.done[name] = true
	}
	return ok, nil
}
