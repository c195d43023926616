package graph

import (
	"strings"

	"github.com/compresr/composer/internal/resource"
)

// CircularDependencyError carries the cycle path, joined " -> ".
type CircularDependencyError struct {
	Cycle []string
}

func (e *CircularDependencyError) Error() string {
	return "circular dependency: " + strings.Join(e.Cycle, " -> ")
}

type color int

const (
	unseen color = iota
	onStack
	done
)

// DetectCycles runs a 3-colour DFS over g, grounded on
// original_source/graph/cycles.rs::detect_cycles. Self-edges count as
// cycles (a node listed as its own dependency).
func DetectCycles(g *Graph) error {
	colors := make(map[resource.Hash]color, len(g.Nodes))
	for h := range g.Nodes {
		colors[h] = unseen
	}

	var path []resource.Hash
	var visit func(h resource.Hash) error
	visit = func(h resource.Hash) error {
		colors[h] = onStack
		path = append(path, h)

		node := g.Nodes[h]
		if node != nil {
			for _, dep := range node.Dependencies {
				switch colors[dep] {
				case onStack:
					return cycleError(g, path, dep)
				case unseen:
					if err := visit(dep); err != nil {
						return err
					}
				}
			}
		}

		path = path[:len(path)-1]
		colors[h] = done
		return nil
	}

	for h := range g.Nodes {
		if colors[h] == unseen {
			if err := visit(h); err != nil {
				return err
			}
		}
	}
	return nil
}

func cycleError(g *Graph, path []resource.Hash, backTo resource.Hash) error {
	startIdx := 0
	for i, h := range path {
		if h == backTo {
			startIdx = i
			break
		}
	}
	cyclePath := append([]resource.Hash{}, path[startIdx:]...)
	cyclePath = append(cyclePath, backTo)

	labels := make([]string, len(cyclePath))
	for i, h := range cyclePath {
		if node, ok := g.Nodes[h]; ok {
			labels[i] = node.Resource.CanonicalString()
		} else {
			labels[i] = h.String()
		}
	}
	return &CircularDependencyError{Cycle: labels}
}
