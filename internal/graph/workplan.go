package graph

import (
	"fmt"

	"github.com/compresr/composer/internal/resource"
)

// ErrCircularDependency is returned defensively if Kahn's algorithm
// terminates with residual unresolved nodes — meaning §4.6's cycle
// detector should have already caught this. It always runs first; this is
// a belt-and-braces invariant, not a primary detection path.
var ErrCircularDependency = fmt.Errorf("circular dependency detected during scheduling")

// GenerateWorkPlan layers an acyclic Graph via Kahn's algorithm, grounded
// on original_source/graph/workplan.rs::generate_workplan. That reference
// computes in-degree as "number of dependents" (so a freshly-dequeued
// root-first order) and reverses at the end to get leaves first; here
// in-degree is instead tracked as "number of unresolved dependencies",
// which already peels leaves first with no reversal needed — the two are
// equivalent views of the same algorithm, chosen here because it lets the
// Go implementation avoid a redundant reverse pass.
func GenerateWorkPlan(g *Graph) (*WorkPlan, error) {
	remaining := make(map[resource.Hash]int, len(g.Nodes))
	dependents := make(map[resource.Hash][]resource.Hash)
	for h := range g.Nodes {
		remaining[h] = 0
	}
	for e := range g.Edges {
		remaining[e.From]++
		dependents[e.To] = append(dependents[e.To], e.From)
	}

	var queue []resource.Hash
	for h, n := range remaining {
		if n == 0 {
			queue = append(queue, h)
		}
	}

	var layers []WorkLayer
	processed := 0
	for len(queue) > 0 {
		layer := queue
		queue = nil
		layers = append(layers, WorkLayer{Resources: layer, Parallelizable: true})
		processed += len(layer)

		for _, h := range layer {
			for _, d := range dependents[h] {
				remaining[d]--
				if remaining[d] == 0 {
					queue = append(queue, d)
				}
			}
		}
	}

	if processed != len(g.Nodes) {
		return nil, ErrCircularDependency
	}
	return &WorkPlan{Layers: layers}, nil
}
