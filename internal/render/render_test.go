package render_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compresr/composer/internal/graph"
	"github.com/compresr/composer/internal/parse"
	"github.com/compresr/composer/internal/render"
	"github.com/compresr/composer/internal/resource"
)

// =============================================================================
// Interpolation: missing-key passthrough, value formatting, replace order
// =============================================================================

func TestInterpolateSubstitutesKnownVariable(t *testing.T) {
	out := render.Interpolate("Hello {{name}}!", map[string]any{"name": "World"})
	assert.Equal(t, "Hello World!", out)
}

func TestInterpolateLeavesMissingKeyLiteral(t *testing.T) {
	out := render.Interpolate("Hello {{unknown}}!", map[string]any{})
	assert.Equal(t, "Hello {{unknown}}!", out)
}

func TestInterpolateFormatsComplexValueAsJSON(t *testing.T) {
	out := render.Interpolate("{{obj}}", map[string]any{"obj": map[string]any{"a": 1}})
	assert.Equal(t, `{"a":1}`, out)
}

func TestInterpolateFormatsNullAsEmpty(t *testing.T) {
	out := render.Interpolate("x{{n}}y", map[string]any{"n": nil})
	assert.Equal(t, "xy", out)
}

func TestApplyReplacementsSubstitutesEveryKey(t *testing.T) {
	out := render.ApplyReplacements("foo bar baz", map[string]string{"foo": "1", "baz": "3"})
	assert.Equal(t, "1 bar 3", out)
}

func TestApplyReplacementsNoopOnEmptyMap(t *testing.T) {
	out := render.ApplyReplacements("unchanged", nil)
	assert.Equal(t, "unchanged", out)
}

// =============================================================================
// Line-range law (P7)
// =============================================================================

func end(n int) *int { return &n }

func TestLineRangeSelectsInclusiveSpan(t *testing.T) {
	loader := &fakeLoader{bodies: map[string]string{"./f.md": "L1\nL2\nL3\nL4\n"}}
	text, err := orchestratorResolveFileHelper(t, loader, "./f.md", &parse.LineRange{Start: 2, End: end(3)})
	require.NoError(t, err)
	assert.Equal(t, "L2\nL3", text)
}

func TestLineRangeNilSelectsWholeFile(t *testing.T) {
	loader := &fakeLoader{bodies: map[string]string{"./f.md": "L1\nL2\n"}}
	text, err := orchestratorResolveFileHelper(t, loader, "./f.md", nil)
	require.NoError(t, err)
	assert.Equal(t, "L1\nL2\n", text)
}

func TestLineRangeStartPastEOFErrors(t *testing.T) {
	loader := &fakeLoader{bodies: map[string]string{"./f.md": "L1\n"}}
	_, err := orchestratorResolveFileHelper(t, loader, "./f.md", &parse.LineRange{Start: 50})
	require.Error(t, err)
	var rangeErr *render.InvalidLineRangeError
	require.ErrorAs(t, err, &rangeErr)
}

func TestLineRangeEndPastEOFErrors(t *testing.T) {
	loader := &fakeLoader{bodies: map[string]string{"./f.md": "L1\nL2\nL3\n"}}
	_, err := orchestratorResolveFileHelper(t, loader, "./f.md", &parse.LineRange{Start: 1, End: end(5)})
	require.Error(t, err)
	var rangeErr *render.InvalidLineRangeError
	require.ErrorAs(t, err, &rangeErr)
}

func TestLineRangeIgnoresTrailingNewlineWhenCountingLines(t *testing.T) {
	// "L1\nL2\nL3\n" has 3 real lines, not 4 — a range ending at 4 must
	// error rather than being silently accepted as if a trailing blank
	// line existed.
	loader := &fakeLoader{bodies: map[string]string{"./f.md": "L1\nL2\nL3\n"}}
	_, err := orchestratorResolveFileHelper(t, loader, "./f.md", &parse.LineRange{Start: 1, End: end(4)})
	require.Error(t, err)
	var rangeErr *render.InvalidLineRangeError
	require.ErrorAs(t, err, &rangeErr)
}

// =============================================================================
// Orchestrator end to end
// =============================================================================

type fakeLoader struct{ bodies map[string]string }

func (f *fakeLoader) LoadBytes(_ context.Context, r resource.Resource) ([]byte, string, error) {
	return []byte(f.bodies[r.CanonicalString()]), r.CanonicalString(), nil
}

type fakeResolver struct{}

func (fakeResolver) Summarize(_ context.Context, content string, _ string) (string, error) {
	return "summary:" + content, nil
}
func (fakeResolver) Consolidate(_ context.Context, contents []string, _ string) (string, error) {
	return "consolidated", nil
}
func (fakeResolver) Topic(_ context.Context, topic string, contents []string, review bool, _ string) (string, error) {
	return "topic:" + topic, nil
}

func orchestratorResolveFileHelper(t *testing.T, loader render.BodyLoader, path string, rng *parse.LineRange) (string, error) {
	t.Helper()
	g := &graph.Graph{Nodes: map[resource.Hash]*graph.GraphNode{}, Edges: map[graph.Edge]bool{}}
	rootRes := resource.Local("./root.md")
	rootHash := resource.ResourceHash(rootRes)
	g.Nodes[rootHash] = &graph.GraphNode{Resource: rootRes}

	loaderWithRange := &rangedLoader{inner: loader, path: path, rng: rng}
	o := &render.Orchestrator{Loader: loaderWithRange, Parse: parse.Parse, Resolver: fakeResolver{}}
	results, err := o.Execute(context.Background(), g, &graph.WorkPlan{Layers: []graph.WorkLayer{{Resources: []resource.Hash{rootHash}}}}, parse.Frontmatter{})
	if err != nil {
		return "", err
	}
	rd := results[rootHash]
	if len(rd.Nodes) == 0 {
		return "", nil
	}
	md, ok := rd.Nodes[0].(render.ResolvedMarkdown)
	if !ok {
		return "", nil
	}
	return md.Raw, nil
}

// rangedLoader wraps fakeLoader so root.md's body encodes a ::file
// directive whose range matches rng, letting the line-range tests reuse
// the orchestrator's real resolution path.
type rangedLoader struct {
	inner render.BodyLoader
	path  string
	rng   *parse.LineRange
}

func (r *rangedLoader) LoadBytes(ctx context.Context, res resource.Resource) ([]byte, string, error) {
	if res.CanonicalString() == "./root.md" {
		directive := "::file " + r.path
		if r.rng != nil {
			if r.rng.End != nil {
				directive += fmtRange(r.rng.Start, *r.rng.End)
			} else {
				directive += fmtRangeOpen(r.rng.Start)
			}
		}
		return []byte(directive + "\n"), "./root.md", nil
	}
	return r.inner.LoadBytes(ctx, res)
}

func fmtRange(start, endLine int) string {
	return " " + itoa(start) + "-" + itoa(endLine)
}
func fmtRangeOpen(start int) string { return " " + itoa(start) + "-" }
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func TestOrchestratorResolvesSummarizeNode(t *testing.T) {
	loader := &fakeLoader{bodies: map[string]string{
		"./root.md": "::summarize ./src.md\n",
		"./src.md":  "content",
	}}
	g := &graph.Graph{Nodes: map[resource.Hash]*graph.GraphNode{}, Edges: map[graph.Edge]bool{}}
	rootRes := resource.Local("./root.md")
	rootHash := resource.ResourceHash(rootRes)
	g.Nodes[rootHash] = &graph.GraphNode{Resource: rootRes}

	o := &render.Orchestrator{Loader: loader, Parse: parse.Parse, Resolver: fakeResolver{}}
	results, err := o.Execute(context.Background(), g, &graph.WorkPlan{Layers: []graph.WorkLayer{{Resources: []resource.Hash{rootHash}}}}, parse.Frontmatter{})
	require.NoError(t, err)
	rd := results[rootHash]
	require.Len(t, rd.Nodes, 1)
	md, ok := rd.Nodes[0].(render.ResolvedMarkdown)
	require.True(t, ok)
	assert.Equal(t, "summary:content", md.Raw)
}

type fakeAudioResolver struct {
	gotName *string
}

func (f *fakeAudioResolver) ResolveAudio(_ context.Context, r resource.Resource, name *string) (string, error) {
	f.gotName = name
	return `<div class="audio-player"><source src="` + r.CanonicalString() + `"></div>`, nil
}

func TestOrchestratorDelegatesAudioNodeToAdapterAsResolvedText(t *testing.T) {
	loader := &fakeLoader{bodies: map[string]string{
		`./root.md`: `::audio ./ep1.mp3 "Episode One"` + "\n",
	}}
	g := &graph.Graph{Nodes: map[resource.Hash]*graph.GraphNode{}, Edges: map[graph.Edge]bool{}}
	rootRes := resource.Local("./root.md")
	rootHash := resource.ResourceHash(rootRes)
	g.Nodes[rootHash] = &graph.GraphNode{Resource: rootRes}

	audio := &fakeAudioResolver{}
	o := &render.Orchestrator{Loader: loader, Parse: parse.Parse, Resolver: fakeResolver{}, Audio: audio}
	results, err := o.Execute(context.Background(), g, &graph.WorkPlan{Layers: []graph.WorkLayer{{Resources: []resource.Hash{rootHash}}}}, parse.Frontmatter{})
	require.NoError(t, err)
	rd := results[rootHash]
	require.Len(t, rd.Nodes, 1)
	text, ok := rd.Nodes[0].(render.ResolvedText)
	require.True(t, ok)
	assert.Contains(t, text.Raw, "audio-player")
	assert.Contains(t, text.Raw, "./ep1.mp3")
	require.NotNil(t, audio.gotName)
	assert.Equal(t, "Episode One", *audio.gotName)
}

func TestOrchestratorAudioNodeFailsLoudlyWithoutAdapter(t *testing.T) {
	loader := &fakeLoader{bodies: map[string]string{
		"./root.md": "::audio ./ep1.mp3\n",
	}}
	g := &graph.Graph{Nodes: map[resource.Hash]*graph.GraphNode{}, Edges: map[graph.Edge]bool{}}
	rootRes := resource.Local("./root.md")
	rootHash := resource.ResourceHash(rootRes)
	g.Nodes[rootHash] = &graph.GraphNode{Resource: rootRes}

	o := &render.Orchestrator{Loader: loader, Parse: parse.Parse, Resolver: fakeResolver{}}
	_, err := o.Execute(context.Background(), g, &graph.WorkPlan{Layers: []graph.WorkLayer{{Resources: []resource.Hash{rootHash}}}}, parse.Frontmatter{})
	require.Error(t, err)
}

func TestOrchestratorMergesFrontmatterBaseThenDoc(t *testing.T) {
	loader := &fakeLoader{bodies: map[string]string{
		"./root.md": "---\nsummarize_model: doc-model\n---\nbody\n",
	}}
	g := &graph.Graph{Nodes: map[resource.Hash]*graph.GraphNode{}, Edges: map[graph.Edge]bool{}}
	rootRes := resource.Local("./root.md")
	rootHash := resource.ResourceHash(rootRes)
	g.Nodes[rootHash] = &graph.GraphNode{Resource: rootRes}

	o := &render.Orchestrator{Loader: loader, Parse: parse.Parse, Resolver: fakeResolver{}}
	base := parse.Frontmatter{SummarizeModel: "base-model"}
	results, err := o.Execute(context.Background(), g, &graph.WorkPlan{Layers: []graph.WorkLayer{{Resources: []resource.Hash{rootHash}}}}, base)
	require.NoError(t, err)
	assert.Equal(t, "doc-model", results[rootHash].Frontmatter.SummarizeModel)
}
