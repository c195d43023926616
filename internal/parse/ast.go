// Package parse is the Parser (C4): frontmatter extraction plus the
// Markdown+DSL AST and its directive grammars.
package parse

import "github.com/compresr/composer/internal/resource"

// Node is the closed set of DSL AST node variants. Go has no sum types;
// a sealed interface with an unexported marker method is the idiomatic
// substitute, mirroring the resource.Source pattern.
type Node interface {
	isNode()
}

// LineRange is a 1-indexed, inclusive line selection. End == nil means
// "from Start to end of file".
type LineRange struct {
	Start int
	End   *int
}

// FileNode transcludes another resource, optionally sliced by LineRange.
type FileNode struct {
	Resource resource.Resource
	Range    *LineRange
}

func (FileNode) isNode() {}

// SummarizeNode delegates a resource's content to the AI adapter's
// summarize operation.
type SummarizeNode struct{ Resource resource.Resource }

func (SummarizeNode) isNode() {}

// ConsolidateNode merges several resources via the AI adapter's
// consolidate operation.
type ConsolidateNode struct{ Resources []resource.Resource }

func (ConsolidateNode) isNode() {}

// TopicNode extracts a labeled topic from several resources, optionally
// requesting a review pass.
type TopicNode struct {
	Topic     string
	Resources []resource.Resource
	Review    bool
}

func (TopicNode) isNode() {}

// TableSource is Inline(rows) or External(resource); a sealed interface.
type TableSource interface{ isTableSource() }

// InlineTableSource holds literal row data collected from the source text.
type InlineTableSource struct{ Rows [][]string }

func (InlineTableSource) isTableSource() {}

// ExternalTableSource points at a CSV resource to be loaded at render time.
type ExternalTableSource struct{ Resource resource.Resource }

func (ExternalTableSource) isTableSource() {}

// TableNode is a data table, inline or loaded from a CSV resource.
type TableNode struct {
	Source     TableSource
	HasHeading bool
}

func (TableNode) isNode() {}

// ChartKind enumerates the five supported chart shapes.
type ChartKind int

const (
	BarChart ChartKind = iota
	LineChart
	PieChart
	AreaChart
	BubbleChart
)

// ChartData is Inline(rows) or External(resource), reusing TableSource's
// shape since chart data is tabular like table data.
type ChartData = TableSource

// ChartNode is one of the five chart directive kinds.
type ChartNode struct {
	Kind ChartKind
	Data ChartData
}

func (ChartNode) isNode() {}

// PopoverNode is a trigger node plus a sequence of content nodes, revealed
// on hover/click client-side. Per spec.md's Open Questions, its block
// grammar is treated as an opaque builder over already-parsed nodes.
type PopoverNode struct {
	Trigger Node
	Content []Node
}

func (PopoverNode) isNode() {}

// ColumnsNode lays out Columns as a CSS grid, one inner slice of nodes per
// column, keyed by an optional breakpoint->column-count map.
type ColumnsNode struct {
	Breakpoints map[string]int
	Columns     [][]Node
}

func (ColumnsNode) isNode() {}

// DisclosureNode is a native <details>/<summary> pair.
type DisclosureNode struct {
	Summary []Node
	Detail  []Node
}

func (DisclosureNode) isNode() {}

// AudioNode embeds an audio resource with an optional display name
// override.
type AudioNode struct {
	Resource resource.Resource
	Name     *string
}

func (AudioNode) isNode() {}

// YouTubeNode embeds a YouTube video by its 11-character ID with an
// optional width spec (e.g. "640px", "50%", "30.5rem").
type YouTubeNode struct {
	VideoID string
	Width   string
}

func (YouTubeNode) isNode() {}

// TextNode is a literal text run produced by inline splitting.
type TextNode struct{ Text string }

func (TextNode) isNode() {}

// InterpolationNode is a {{identifier}} placeholder.
type InterpolationNode struct{ Variable string }

func (InterpolationNode) isNode() {}

// MarkdownNode is an accumulated run of ordinary Markdown/GFM source text,
// delegated to the Markdown engine at HTML-Composer time.
type MarkdownNode struct{ Raw string }

func (MarkdownNode) isNode() {}
