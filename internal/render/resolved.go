package render

import (
	"github.com/compresr/composer/internal/parse"
	"github.com/compresr/composer/internal/resource"
)

// ResolvedNode is the closed set of render-time node variants handed to
// the HTML Composer: every dynamic reference (File/Summarize/Consolidate/
// Topic/external Table/external Chart) has been resolved to literal
// content, and every {{var}}/replace substitution has already run.
type ResolvedNode interface{ isResolvedNode() }

// ResolvedMarkdown is literal Markdown/GFM source, post-interpolation.
type ResolvedMarkdown struct{ Raw string }

func (ResolvedMarkdown) isResolvedNode() {}

// ResolvedTable carries row data (inline or loaded from CSV) plus the
// heading-row flag.
type ResolvedTable struct {
	Rows       [][]string
	HasHeading bool
}

func (ResolvedTable) isResolvedNode() {}

// ResolvedChart carries row data for one of the five chart kinds.
type ResolvedChart struct {
	Kind parse.ChartKind
	Rows [][]string
}

func (ResolvedChart) isResolvedNode() {}

// ResolvedText is literal, already-final HTML (spec.md's DSL `Text(str)`
// variant, distinct from `Markdown(raw-string)`): written verbatim by the
// HTML Composer with no goldmark conversion and no further escaping. An
// Audio node resolves to one of these once the audio adapter has built its
// `audio-player` markup (spec.md §4.8: "resulting HTML is a Text node").
type ResolvedText struct{ Raw string }

func (ResolvedText) isResolvedNode() {}

// ResolvedYouTube is unchanged from the parsed YouTubeNode — nothing to
// resolve beyond what the parser already validated.
type ResolvedYouTube struct {
	VideoID string
	Width   string
}

func (ResolvedYouTube) isResolvedNode() {}

// ResolvedColumns lays out resolved children per column.
type ResolvedColumns struct {
	Breakpoints map[string]int
	Columns     [][]ResolvedNode
}

func (ResolvedColumns) isResolvedNode() {}

// ResolvedPopover is a resolved trigger plus resolved content children.
type ResolvedPopover struct {
	Trigger ResolvedNode
	Content []ResolvedNode
}

func (ResolvedPopover) isResolvedNode() {}

// ResolvedDisclosure is a resolved <summary>/<details> pair.
type ResolvedDisclosure struct {
	Summary []ResolvedNode
	Detail  []ResolvedNode
}

func (ResolvedDisclosure) isResolvedNode() {}

// RenderedDocument is one resource's fully-resolved, interpolated node
// sequence, ready for the HTML Composer.
type RenderedDocument struct {
	Resource     resource.Resource
	Frontmatter  parse.Frontmatter
	Nodes        []ResolvedNode
	ContentHash  resource.Hash
}
