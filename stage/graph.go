package stage

import "fmt"

// Start is the implicit root stage every operation graph hangs off.
// It has no prerequisites and usually defaults to a no-op success.
const Start = "start"

// Graph maps a stage name to its prerequisite stages. Prerequisites run in
// declared left-to-right order. A Graph is declared once per operation type
// and never mutated afterwards.
type Graph map[string][]string

// validate checks that every key and every prerequisite resolves through
// have, and that the graph is acyclic. Violations are configuration errors
// in the operation definition, not runtime stage failures.
func (g Graph) validate(have func(string) bool) error {
	for name, deps := range g {
		if !have(name) {
			return &ConfigError{fmt.Sprintf("stage %q declared in graph but not implemented", name)}
		}
		for _, dep := range deps {
			if !have(dep) {
				return &ConfigError{fmt.Sprintf("stage %q depends on %q which is not implemented", name, dep)}
			}
		}
	}
	return g.checkAcyclic()
}

// checkAcyclic runs a three-color depth-first search over the graph.
func (g Graph) checkAcyclic() error {
	const (
		white = iota // unvisited
		grey         // on the current path
		black        // fully explored
	)
	color := make(map[string]int, len(g))

	var visit func(name string) error
	visit = func(name string) error {
		switch color[name] {
		case grey:
			return &ConfigError{fmt.Sprintf("stage graph cycle through %q", name)}
		case black:
			return nil
		}
		color[name] = grey
		for _, dep := range g[name] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[name] = black
		return nil
	}

	for name := range g {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}
