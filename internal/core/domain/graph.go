package domain

import (
	"iter"
	"slices"

	"go.trai.ch/zerr"
)

// Graph is the concrete dependency DAG of an environment, keyed by content
// hash. It provides a dependency-first traversal order for install and
// verifies closure completeness: every dependency hash reachable from a
// node must itself be a node.
type Graph struct {
	specs      map[string]*Spec
	order      []string
	dependents map[string][]string
}

// NewGraph builds a graph from a closure map. It returns
// ErrMissingDependency if any referenced dependency hash is absent and
// ErrCycleDetected if the hashes do not form a DAG.
func NewGraph(specsByHash map[string]*Spec) (*Graph, error) {
	g := &Graph{
		specs:      specsByHash,
		dependents: make(map[string][]string),
	}
	if err := g.sort(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Graph) sort() error {
	g.order = make([]string, 0, len(g.specs))
	visited := make(map[string]int) // 0: unvisited, 1: visiting, 2: visited

	var visit func(h string) error
	visit = func(h string) error {
		visited[h] = 1

		spec, exists := g.specs[h]
		if !exists {
			return zerr.With(zerr.Wrap(ErrMissingDependency, "dependency hash not in closure"), "hash", h)
		}

		for _, dep := range spec.DependencyHashes {
			g.dependents[dep] = append(g.dependents[dep], h)
			switch visited[dep] {
			case 1:
				return zerr.With(zerr.Wrap(ErrCycleDetected, "dependency cycle"), "hash", dep)
			case 0:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		visited[h] = 2
		g.order = append(g.order, h)
		return nil
	}

	// Sorted key iteration keeps the execution order deterministic across
	// runs, not just topologically valid.
	for _, h := range slices.Sorted(hashKeys(g.specs)) {
		if visited[h] == 0 {
			if err := visit(h); err != nil {
				return err
			}
		}
	}
	return nil
}

func hashKeys(m map[string]*Spec) iter.Seq[string] {
	return func(yield func(string) bool) {
		for h := range m {
			if !yield(h) {
				return
			}
		}
	}
}

// Walk yields specs in dependency-first order.
func (g *Graph) Walk() iter.Seq2[string, *Spec] {
	return func(yield func(string, *Spec) bool) {
		for _, h := range g.order {
			if !yield(h, g.specs[h]) {
				return
			}
		}
	}
}

// Dependents returns the hashes that directly depend on the given hash.
func (g *Graph) Dependents(hash string) []string {
	return g.dependents[hash]
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	return len(g.specs)
}
