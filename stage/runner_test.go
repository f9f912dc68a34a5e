package stage

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordObs struct {
	events []string
}

func (o *recordObs) PhaseStart(phase string) {
	o.events = append(o.events, "start:"+phase)
}

func (o *recordObs) PhaseEnd(phase string, status bool) {
	o.events = append(o.events, fmt.Sprintf("end:%s:%v", phase, status))
}

func mark(order *[]string, name string) Func {
	return func(context.Context) (bool, error) {
		*order = append(*order, name)
		return true, nil
	}
}

func TestRunnerChainOrder(t *testing.T) {
	graph := Graph{
		"a": {Start},
		"b": {"a"},
		"c": {"b"},
	}
	var order []string
	stages := map[string]Func{
		Start: mark(&order, Start),
		"a":   mark(&order, "a"),
		"b":   mark(&order, "b"),
		"c":   mark(&order, "c"),
	}
	r, err := NewRunner(graph, stages, nil)
	require.NoError(t, err)

	ok, err := r.Run(context.Background(), "c")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{Start, "a", "b", "c"}, order)
	assert.True(t, r.Completed("b"))
}

func TestRunnerPrereqsDeclaredOrder(t *testing.T) {
	graph := Graph{
		"left":  {Start},
		"right": {Start},
		"join":  {"left", "right"},
	}
	var order []string
	stages := map[string]Func{
		Start:   mark(&order, Start),
		"left":  mark(&order, "left"),
		"right": mark(&order, "right"),
		"join":  mark(&order, "join"),
	}
	r, err := NewRunner(graph, stages, nil)
	require.NoError(t, err)

	ok, err := r.Run(context.Background(), "join")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{Start, "left", "right", "join"}, order)
}

func TestRunnerStagesRunOnce(t *testing.T) {
	graph := Graph{
		"a": {Start},
		"b": {"a"},
		"c": {"b"},
	}
	var order []string
	stages := map[string]Func{
		Start: mark(&order, Start),
		"a":   mark(&order, "a"),
		"b":   mark(&order, "b"),
		"c":   mark(&order, "c"),
	}
	r, err := NewRunner(graph, stages, nil)
	require.NoError(t, err)

	ok, err := r.Run(context.Background(), "b")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = r.Run(context.Background(), "c")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{Start, "a", "b", "c"}, order)

	// A completed stage is a no-op returning its prior success.
	ok, err = r.Run(context.Background(), "c")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{Start, "a", "b", "c"}, order)
}

func TestRunnerFalseShortCircuits(t *testing.T) {
	graph := Graph{
		"a":   {Start},
		"bad": {"a"},
		"c":   {"bad"},
	}
	var order []string
	stages := map[string]Func{
		Start: mark(&order, Start),
		"a":   mark(&order, "a"),
		"bad": func(context.Context) (bool, error) {
			order = append(order, "bad")
			return false, nil
		},
		"c": mark(&order, "c"),
	}
	obs := &recordObs{}
	r, err := NewRunner(graph, stages, obs)
	require.NoError(t, err)

	ok, err := r.Run(context.Background(), "c")
	require.NoError(t, err)
	require.False(t, ok)
	assert.Equal(t, []string{Start, "a", "bad"}, order)

	// Partial completion survives for inspection; the failed stage does not.
	assert.True(t, r.Completed("a"))
	assert.False(t, r.Completed("bad"))
	assert.False(t, r.Completed("c"))
	assert.Contains(t, obs.events, "end:bad:false")
}

func TestRunnerErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	graph := Graph{
		"a": {Start},
		"b": {"a"},
	}
	stages := map[string]Func{
		Start: func(context.Context) (bool, error) { return true, nil },
		"a":   func(context.Context) (bool, error) { return false, boom },
		"b":   func(context.Context) (bool, error) { return true, nil },
	}
	obs := &recordObs{}
	r, err := NewRunner(graph, stages, obs)
	require.NoError(t, err)

	ok, err := r.Run(context.Background(), "b")
	require.ErrorIs(t, err, boom)
	require.False(t, ok)
	assert.Equal(t, []string{"start:start", "end:start:true", "start:a", "end:a:false"}, obs.events)
}

func TestRunnerPhaseEndFiresOnPanic(t *testing.T) {
	graph := Graph{"a": {Start}}
	stages := map[string]Func{
		Start: func(context.Context) (bool, error) { return true, nil },
		"a":   func(context.Context) (bool, error) { panic("kaboom") },
	}
	obs := &recordObs{}
	r, err := NewRunner(graph, stages, obs)
	require.NoError(t, err)

	require.PanicsWithValue(t, "kaboom", func() {
		_, _ = r.Run(context.Background(), "a")
	})
	assert.Equal(t, "end:a:false", obs.events[len(obs.events)-1])
}

func TestRunnerUnknownStage(t *testing.T) {
	r, err := NewRunner(Graph{}, map[string]Func{Start: func(context.Context) (bool, error) { return true, nil }}, nil)
	require.NoError(t, err)

	_, err = r.Run(context.Background(), "nope")
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
}

func TestNewRunnerValidation(t *testing.T) {
	ok := func(context.Context) (bool, error) { return true, nil }

	tests := []struct {
		name   string
		graph  Graph
		stages map[string]Func
	}{
		{
			name:   "key not implemented",
			graph:  Graph{"ghost": {Start}},
			stages: map[string]Func{Start: ok},
		},
		{
			name:   "dep not implemented",
			graph:  Graph{"a": {"ghost"}},
			stages: map[string]Func{"a": ok},
		},
		{
			name:   "cycle",
			graph:  Graph{"a": {"b"}, "b": {"a"}},
			stages: map[string]Func{"a": ok, "b": ok},
		},
		{
			name:   "self cycle",
			graph:  Graph{"a": {"a"}},
			stages: map[string]Func{"a": ok},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRunner(tt.graph, tt.stages, nil)
			var cerr *ConfigError
			require.ErrorAs(t, err, &cerr)
		})
	}
}

func TestRunnerExtraStagesOutsideGraph(t *testing.T) {
	// Stages absent from the graph are runnable with no prerequisites;
	// build operations use this for explicit cleanup.
	var order []string
	stages := map[string]Func{
		Start:     mark(&order, Start),
		"a":       mark(&order, "a"),
		"cleanup": mark(&order, "cleanup"),
	}
	r, err := NewRunner(Graph{"a": {Start}}, stages, nil)
	require.NoError(t, err)

	ok, err := r.Run(context.Background(), "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotContains(t, order, "cleanup")

	ok, err = r.Run(context.Background(), "cleanup")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{Start, "a", "cleanup"}, order)
}
