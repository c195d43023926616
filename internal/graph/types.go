// Package graph is the Graph Builder (C5), Cycle Detector (C6), and
// Work-Plan Scheduler (C7): it turns a root resource into a
// content-addressed DAG, checks it for cycles, and layers it for
// parallel execution.
package graph

import (
	"github.com/compresr/composer/internal/resource"
)

// GraphNode holds one resource's content hash and the resource-hashes of
// its direct dependencies.
type GraphNode struct {
	Resource     resource.Resource
	ContentHash  resource.Hash
	Dependencies []resource.Hash
}

// Edge is a directed dependency edge from one resource hash to another.
type Edge struct {
	From resource.Hash
	To   resource.Hash
}

// Graph is the dependency DAG produced by Build.
type Graph struct {
	Nodes map[resource.Hash]*GraphNode
	Edges map[Edge]bool
	Root  resource.Resource
}

func newGraph(root resource.Resource) *Graph {
	return &Graph{
		Nodes: make(map[resource.Hash]*GraphNode),
		Edges: make(map[Edge]bool),
		Root:  root,
	}
}

// WorkLayer is a set of resource hashes that share no transitive
// dependency and may run in parallel.
type WorkLayer struct {
	Resources      []resource.Hash
	Parallelizable bool
}

// WorkPlan is an ordered sequence of WorkLayers; for every edge u->v, v
// appears in a strictly earlier layer than u (leaves first).
type WorkPlan struct {
	Layers []WorkLayer
}
