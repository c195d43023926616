package graph

import (
	"context"
	"fmt"

	"github.com/compresr/composer/internal/parse"
	"github.com/compresr/composer/internal/resource"
)

// ByteLoader is the subset of loader.Loader the graph builder needs,
// expressed as a capability interface so tests can supply a fake.
type ByteLoader interface {
	LoadBytes(ctx context.Context, r resource.Resource) ([]byte, string, error)
}

// ParseFunc parses loaded bytes into a Document; normally parse.Parse.
type ParseFunc func(r resource.Resource, source string) (*parse.Document, error)

// Builder visits a root resource and recursively resolves its
// dependencies into a content-addressed DAG, grounded on
// original_source/graph/builder.rs::build_graph/visit_resource.
type Builder struct {
	Loader ByteLoader
	Parse  ParseFunc
}

// NewBuilder wires a Builder to the given loader and parse function.
func NewBuilder(l ByteLoader, p ParseFunc) *Builder {
	return &Builder{Loader: l, Parse: p}
}

// Build recursively visits root, memoizing already-visited nodes by
// resource hash so shared dependencies (e.g. scenario S2's diamond) are
// parsed exactly once.
func (b *Builder) Build(ctx context.Context, root resource.Resource) (*Graph, error) {
	g := newGraph(root)
	visited := make(map[resource.Hash]bool)
	if err := b.visit(ctx, g, root, visited); err != nil {
		return nil, err
	}
	return g, nil
}

func (b *Builder) visit(ctx context.Context, g *Graph, r resource.Resource, visited map[resource.Hash]bool) error {
	h := resource.ResourceHash(r)
	if visited[h] {
		return nil
	}
	visited[h] = true

	bytes, _, err := b.Loader.LoadBytes(ctx, r)
	if err != nil {
		switch r.Requirement {
		case resource.Required:
			return fmt.Errorf("required resource %s: %w", r.CanonicalString(), err)
		default:
			// Optional and Default both drop the dependency on load
			// failure (Default additionally logs, a caller-side concern
			// per spec.md §4.1 — the core itself never logs). Leaving it
			// out of g.Nodes means the caller's edge-add check below
			// naturally skips it.
			return nil
		}
	}

	doc, err := b.Parse(r, string(bytes))
	if err != nil {
		return err
	}

	contentHash := resource.ContentHash(bytes)
	node := &GraphNode{Resource: r, ContentHash: contentHash}
	// Registered before the dependencies are visited, so an edge back to a
	// node still in progress (a cycle or a self-edge) is kept for
	// DetectCycles to report.
	g.Nodes[h] = node

	for _, dep := range doc.Dependencies {
		depHash := resource.ResourceHash(dep)
		if err := b.visit(ctx, g, dep, visited); err != nil {
			return err
		}
		if _, ok := g.Nodes[depHash]; ok {
			node.Dependencies = append(node.Dependencies, depHash)
			g.Edges[Edge{From: h, To: depHash}] = true
		}
	}

	return nil
}
