package graph_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compresr/composer/internal/graph"
	"github.com/compresr/composer/internal/parse"
	"github.com/compresr/composer/internal/resource"
)

// fakeLoader serves fixed bodies keyed by path, for deterministic graph
// tests without touching the filesystem.
type fakeLoader struct {
	bodies map[string]string
}

func (f *fakeLoader) LoadBytes(_ context.Context, r resource.Resource) ([]byte, string, error) {
	b, ok := f.bodies[r.CanonicalString()]
	if !ok {
		return nil, "", fmt.Errorf("no fixture for %s", r.CanonicalString())
	}
	return []byte(b), r.CanonicalString(), nil
}

func buildFrom(t *testing.T, bodies map[string]string, rootPath string) *graph.Graph {
	t.Helper()
	b := graph.NewBuilder(&fakeLoader{bodies: bodies}, parse.Parse)
	g, err := b.Build(context.Background(), resource.Local(rootPath))
	require.NoError(t, err)
	return g
}

// =============================================================================
// S1 Linear chain
// =============================================================================

func TestS1LinearChain(t *testing.T) {
	bodies := map[string]string{
		"./root.md": "::file ./dep1.md\n",
		"./dep1.md": "::file ./dep2.md\n",
		"./dep2.md": "Leaf",
	}
	g := buildFrom(t, bodies, "./root.md")
	assert.Len(t, g.Nodes, 3)
	assert.Len(t, g.Edges, 2)

	require.NoError(t, graph.DetectCycles(g))
	plan, err := graph.GenerateWorkPlan(g)
	require.NoError(t, err)
	require.Len(t, plan.Layers, 3)
	for _, l := range plan.Layers {
		assert.Len(t, l.Resources, 1)
	}

	rootHash := resource.ResourceHash(resource.Local("./root.md"))
	dep1Hash := resource.ResourceHash(resource.Local("./dep1.md"))
	dep2Hash := resource.ResourceHash(resource.Local("./dep2.md"))
	assert.Equal(t, dep2Hash, plan.Layers[0].Resources[0])
	assert.Equal(t, dep1Hash, plan.Layers[1].Resources[0])
	assert.Equal(t, rootHash, plan.Layers[2].Resources[0])
}

// =============================================================================
// S2 Diamond
// =============================================================================

func TestS2Diamond(t *testing.T) {
	bodies := map[string]string{
		"./root.md":   "::file ./a.md\n::file ./b.md\n",
		"./a.md":      "::file ./shared.md\n",
		"./b.md":      "::file ./shared.md\n",
		"./shared.md": "Shared",
	}
	g := buildFrom(t, bodies, "./root.md")
	assert.Len(t, g.Nodes, 4)
	assert.Len(t, g.Edges, 4)

	plan, err := graph.GenerateWorkPlan(g)
	require.NoError(t, err)
	require.Len(t, plan.Layers, 3)
	assert.Len(t, plan.Layers[0].Resources, 1) // {shared}
	assert.Len(t, plan.Layers[1].Resources, 2) // {a,b}
	assert.Len(t, plan.Layers[2].Resources, 1) // {root}
}

// =============================================================================
// S3 Cycle
// =============================================================================

func TestS3Cycle(t *testing.T) {
	bodies := map[string]string{
		"./a.md": "::file ./b.md\n",
		"./b.md": "::file ./a.md\n",
	}
	g := buildFrom(t, bodies, "./a.md")

	err := graph.DetectCycles(g)
	require.Error(t, err)
	var cycleErr *graph.CircularDependencyError
	require.ErrorAs(t, err, &cycleErr)
	assert.Contains(t, cycleErr.Error(), "a.md")
	assert.Contains(t, cycleErr.Error(), "b.md")
}

// =============================================================================
// P4: cycle completeness (self-edge)
// =============================================================================

func TestP4SelfEdgeIsCycle(t *testing.T) {
	bodies := map[string]string{
		"./a.md": "::file ./a.md\n",
	}
	g := buildFrom(t, bodies, "./a.md")
	err := graph.DetectCycles(g)
	require.Error(t, err)
}

func TestP4AcyclicGraphNeverFlagged(t *testing.T) {
	bodies := map[string]string{
		"./root.md": "::file ./dep.md\n",
		"./dep.md":  "Leaf",
	}
	g := buildFrom(t, bodies, "./root.md")
	assert.NoError(t, graph.DetectCycles(g))
}

// =============================================================================
// P2: topological correctness
// =============================================================================

func TestP2TopologicalCorrectness(t *testing.T) {
	bodies := map[string]string{
		"./root.md":   "::file ./a.md\n::file ./b.md\n",
		"./a.md":      "::file ./shared.md\n",
		"./b.md":      "::file ./shared.md\n",
		"./shared.md": "Shared",
	}
	g := buildFrom(t, bodies, "./root.md")
	plan, err := graph.GenerateWorkPlan(g)
	require.NoError(t, err)

	layerIndex := map[resource.Hash]int{}
	for i, l := range plan.Layers {
		for _, h := range l.Resources {
			layerIndex[h] = i
		}
	}
	for e := range g.Edges {
		assert.Less(t, layerIndex[e.To], layerIndex[e.From], "dependency must be in a strictly earlier layer")
	}
}

// =============================================================================
// Shared dependency parsed once (dedup)
// =============================================================================

func TestSharedDependencyNodeIsSingleInstance(t *testing.T) {
	bodies := map[string]string{
		"./root.md":   "::file ./a.md\n::file ./b.md\n",
		"./a.md":      "::file ./shared.md\n",
		"./b.md":      "::file ./shared.md\n",
		"./shared.md": "Shared",
	}
	g := buildFrom(t, bodies, "./root.md")
	sharedHash := resource.ResourceHash(resource.Local("./shared.md"))
	_, ok := g.Nodes[sharedHash]
	assert.True(t, ok)
	assert.Len(t, g.Nodes, 4) // not 5 — shared counted once
}
