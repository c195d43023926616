package parse_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compresr/composer/internal/parse"
	"github.com/compresr/composer/internal/resource"
)

// =============================================================================
// Stage A: frontmatter extraction edge cases
// =============================================================================

func TestExtractFrontmatterNoDelimiter(t *testing.T) {
	fm, body, err := parse.ExtractFrontmatter("just a body\nwith lines")
	require.NoError(t, err)
	assert.Equal(t, "just a body\nwith lines", body)
	assert.Empty(t, fm.Custom)
}

func TestExtractFrontmatterEmpty(t *testing.T) {
	fm, body, err := parse.ExtractFrontmatter("---\n---\nbody text")
	require.NoError(t, err)
	assert.Equal(t, "body text", body)
	assert.Empty(t, fm.Custom)
}

func TestExtractFrontmatterClosingAtEOF(t *testing.T) {
	fm, body, err := parse.ExtractFrontmatter("---\nname: Alice\n---")
	require.NoError(t, err)
	assert.Equal(t, "", body)
	assert.Equal(t, "Alice", fm.Custom["name"])
}

func TestExtractFrontmatterReservedKeys(t *testing.T) {
	src := "---\nlist_expansion: expanded\nreplace:\n  Hello: Hi\nsummarize_model: gpt-4\n---\nbody"
	fm, body, err := parse.ExtractFrontmatter(src)
	require.NoError(t, err)
	assert.Equal(t, "body", body)
	assert.Equal(t, parse.ListExpanded, fm.ListExpansion)
	assert.Equal(t, "Hi", fm.Replace["Hello"])
	assert.Equal(t, "gpt-4", fm.SummarizeModel)
}

// =============================================================================
// Merge rule
// =============================================================================

func TestMergeBWins(t *testing.T) {
	a := parse.Frontmatter{SummarizeModel: "a-model", Custom: map[string]any{"x": 1, "y": 2}}
	b := parse.Frontmatter{SummarizeModel: "b-model", Custom: map[string]any{"y": 3}}
	merged := parse.Merge(a, b)
	assert.Equal(t, "b-model", merged.SummarizeModel)
	assert.Equal(t, 1, merged.Custom["x"])
	assert.Equal(t, 3, merged.Custom["y"])
}

func TestMergeKeepsAWhenBAbsent(t *testing.T) {
	a := parse.Frontmatter{SummarizeModel: "a-model"}
	b := parse.Frontmatter{}
	merged := parse.Merge(a, b)
	assert.Equal(t, "a-model", merged.SummarizeModel)
}

// =============================================================================
// Directive grammars
// =============================================================================

func TestParseFileDirective(t *testing.T) {
	n, err := parse.ParseDirective("::file ./dep.md", 1)
	require.NoError(t, err)
	f, ok := n.(parse.FileNode)
	require.True(t, ok)
	assert.Nil(t, f.Range)
}

func TestParseFileDirectiveWithRange(t *testing.T) {
	n, err := parse.ParseDirective("::file ./dep.md 3-5", 1)
	require.NoError(t, err)
	f := n.(parse.FileNode)
	require.NotNil(t, f.Range)
	assert.Equal(t, 3, f.Range.Start)
	require.NotNil(t, f.Range.End)
	assert.Equal(t, 5, *f.Range.End)
}

func TestParseTopicDirectiveWithReview(t *testing.T) {
	n, err := parse.ParseDirective(`::topic "testing" ./a.md ./b.md --review`, 1)
	require.NoError(t, err)
	topic := n.(parse.TopicNode)
	assert.Equal(t, "testing", topic.Topic)
	assert.Len(t, topic.Resources, 2)
	assert.True(t, topic.Review)
}

func TestParseTableDirectiveExternal(t *testing.T) {
	n, err := parse.ParseDirective("::table ./data.csv --with-heading-row", 1)
	require.NoError(t, err)
	tbl := n.(parse.TableNode)
	assert.True(t, tbl.HasHeading)
	_, ok := tbl.Source.(parse.ExternalTableSource)
	assert.True(t, ok)
}

func TestParseChartDirective(t *testing.T) {
	n, err := parse.ParseDirective("::bar-chart ./data.csv", 1)
	require.NoError(t, err)
	chart := n.(parse.ChartNode)
	assert.Equal(t, parse.BarChart, chart.Kind)
}

func TestParseBlockMarkersReturnNil(t *testing.T) {
	for _, line := range []string{"::summary", "::details", "::break", "::columns"} {
		n, err := parse.ParseDirective(line, 1)
		require.NoError(t, err)
		assert.Nil(t, n)
	}
}

func TestResourceSuffixGrammar(t *testing.T) {
	req, err := parse.ParseResource("./a.md!")
	require.NoError(t, err)
	assert.Equal(t, resource.Required, req.Requirement)

	opt, err := parse.ParseResource("./a.md?")
	require.NoError(t, err)
	assert.Equal(t, resource.Optional, opt.Requirement)

	def, err := parse.ParseResource("./a.md")
	require.NoError(t, err)
	assert.Equal(t, resource.Default, def.Requirement)
}

// =============================================================================
// YouTube ID extraction
// =============================================================================

func TestYouTubeDirectiveDirectID(t *testing.T) {
	n, err := parse.ParseDirective("::youtube dQw4w9WgXcQ", 1)
	require.NoError(t, err)
	yt := n.(parse.YouTubeNode)
	assert.Equal(t, "dQw4w9WgXcQ", yt.VideoID)
}

func TestYouTubeDirectiveFromWatchURL(t *testing.T) {
	n, err := parse.ParseDirective("::youtube https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=10", 1)
	require.NoError(t, err)
	yt := n.(parse.YouTubeNode)
	assert.Equal(t, "dQw4w9WgXcQ", yt.VideoID)
}

func TestYouTubeDirectiveFromShortURL(t *testing.T) {
	n, err := parse.ParseDirective("::youtube https://youtu.be/dQw4w9WgXcQ", 1)
	require.NoError(t, err)
	yt := n.(parse.YouTubeNode)
	assert.Equal(t, "dQw4w9WgXcQ", yt.VideoID)
}

func TestYouTubeWidthPercentOutOfRangeErrors(t *testing.T) {
	_, err := parse.ParseDirective("::youtube dQw4w9WgXcQ 150%", 1)
	assert.Error(t, err)
}

// =============================================================================
// P6: interpolation idempotence (split only, actual substitution is render's job)
// =============================================================================

func TestProcessInlineSyntaxSplitsInterpolation(t *testing.T) {
	nodes := parse.ProcessInlineSyntax("Hello {{name}}, welcome!")
	require.Len(t, nodes, 3)
	_, ok := nodes[0].(parse.TextNode)
	assert.True(t, ok)
	_, ok = nodes[1].(parse.InterpolationNode)
	assert.True(t, ok)
	_, ok = nodes[2].(parse.TextNode)
	assert.True(t, ok)
}

func TestProcessInlineSyntaxPlainText(t *testing.T) {
	nodes := parse.ProcessInlineSyntax("just plain text")
	require.Len(t, nodes, 1)
	text := nodes[0].(parse.TextNode)
	assert.Equal(t, "just plain text", text.Text)
}

// =============================================================================
// Dependency collection + full parse
// =============================================================================

func TestParseCollectsDependencies(t *testing.T) {
	src := "---\n---\n::file ./dep1.md\n\nSome text\n::summarize ./dep2.md\n"
	doc, err := parse.Parse(resource.Local("./root.md"), src)
	require.NoError(t, err)
	require.Len(t, doc.Dependencies, 2)
	assert.Equal(t, "./dep1.md", doc.Dependencies[0].CanonicalString())
	assert.Equal(t, "./dep2.md", doc.Dependencies[1].CanonicalString())
}

func TestParseBodyFlushesMarkdownAroundDirectives(t *testing.T) {
	src := "Leading text\n::file ./dep.md\nTrailing text"
	doc, err := parse.Parse(resource.Local("./root.md"), src)
	require.NoError(t, err)
	require.Len(t, doc.Nodes, 3)
	md1, ok := doc.Nodes[0].(parse.MarkdownNode)
	require.True(t, ok)
	assert.Equal(t, "Leading text", md1.Raw)
	_, ok = doc.Nodes[1].(parse.FileNode)
	assert.True(t, ok)
	md2 := doc.Nodes[2].(parse.MarkdownNode)
	assert.Equal(t, "Trailing text", md2.Raw)
}
