// Package html is the HTML Composer (C10): it stringifies a render.
// RenderedDocument's resolved node tree into self-contained UTF-8 HTML,
// grounded on original_source/render/*.rs's per-kind emit functions and
// spec.md's structural-convention table.
package html

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/compresr/composer/internal/render"
)

// ErrUnresolvedNode is a defensive sentinel: render.ResolvedNode is a
// closed, compiler-checked set, so this only fires if a future variant is
// added to that set without a matching case here.
var ErrUnresolvedNode = fmt.Errorf("html: unresolved node kind")

// ImageResolverFunc resolves a Markdown image reference's `src` into a
// complete `<picture>` element (spec.md §6: "Image" → `<picture>`, one
// `<source>` per format, `<img>` fallback with width/height and
// `loading="lazy"`), backed by the cache-aware image adapter. Returns
// ok=false to leave goldmark's own `<img>` tag in place (resolver unset, or
// resolution failed and the reference is best-effort).
type ImageResolverFunc func(src string) (pictureHTML string, ok bool)

// imgTagPattern matches the `<img src="...">` tags goldmark's own HTML
// renderer emits for standard `![alt](src)` Markdown syntax, so ImageResolver
// can be applied as a post-processing pass over already-escaped output
// instead of reimplementing goldmark's AST-renderer registration.
var imgTagPattern = regexp.MustCompile(`<img src="([^"]*)"[^>]*/?>`)

var markdownEngine = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Composer stringifies RenderedDocuments. The seen-kinds set is scoped per
// Compose call so each kind's shared CSS/JS (YouTube, Popover) emits only once per
// document, per spec.md §6.
type Composer struct {
	ImageResolver ImageResolverFunc
}

// resolveImages replaces each `<img>` tag goldmark emitted with the
// ImageResolver's `<picture>` markup, when one is configured and resolution
// succeeds for that src.
func (c *Composer) resolveImages(htmlStr string) string {
	if c.ImageResolver == nil {
		return htmlStr
	}
	return imgTagPattern.ReplaceAllStringFunc(htmlStr, func(tag string) string {
		m := imgTagPattern.FindStringSubmatch(tag)
		if m == nil {
			return tag
		}
		picture, ok := c.ImageResolver(m[1])
		if !ok {
			return tag
		}
		return picture
	})
}

// Compose renders doc's node sequence to a single HTML string.
func (c *Composer) Compose(doc *render.RenderedDocument) (string, error) {
	seen := map[string]bool{}
	var buf strings.Builder
	for _, n := range doc.Nodes {
		s, err := c.renderNode(n, seen)
		if err != nil {
			return "", err
		}
		buf.WriteString(s)
		buf.WriteString("\n")
	}
	return buf.String(), nil
}

func (c *Composer) renderNode(n render.ResolvedNode, seen map[string]bool) (string, error) {
	switch v := n.(type) {
	case render.ResolvedMarkdown:
		var buf bytes.Buffer
		if err := markdownEngine.Convert([]byte(v.Raw), &buf); err != nil {
			return "", fmt.Errorf("html: rendering markdown: %w", err)
		}
		return c.resolveImages(buf.String()), nil

	case render.ResolvedTable:
		return renderTable(v), nil

	case render.ResolvedChart:
		return renderChart(v), nil

	case render.ResolvedText:
		return v.Raw, nil

	case render.ResolvedYouTube:
		out := renderYouTube(v, !seen["youtube"])
		seen["youtube"] = true
		return out, nil

	case render.ResolvedColumns:
		return c.renderColumns(v, seen)

	case render.ResolvedPopover:
		out, err := c.renderPopover(v, seen)
		seen["popover"] = true
		return out, err

	case render.ResolvedDisclosure:
		return c.renderDisclosure(v, seen)

	default:
		return "", ErrUnresolvedNode
	}
}

func esc(s string) string { return htmltemplate.HTMLEscapeString(s) }

func renderTable(t render.ResolvedTable) string {
	var buf strings.Builder
	buf.WriteString(`<table class="composition-table">`)
	for i, row := range t.Rows {
		tag := "td"
		if i == 0 && t.HasHeading {
			tag = "th"
		}
		buf.WriteString("<tr>")
		for _, cell := range row {
			fmt.Fprintf(&buf, "<%s>%s</%s>", tag, esc(cell), tag)
		}
		buf.WriteString("</tr>")
	}
	buf.WriteString(`</table>`)
	return buf.String()
}

func renderChart(c render.ResolvedChart) string {
	kindClass := map[int]string{0: "bar", 1: "line", 2: "pie", 3: "area", 4: "bubble"}[int(c.Kind)]
	var buf strings.Builder
	fmt.Fprintf(&buf, `<div class="composition-chart composition-chart-%s" data-rows="%d">`, kindClass, len(c.Rows))
	buf.WriteString(renderTable(render.ResolvedTable{Rows: c.Rows, HasHeading: true}))
	buf.WriteString(`</div>`)
	return buf.String()
}

func renderYouTube(y render.ResolvedYouTube, emitShared bool) string {
	var buf strings.Builder
	if emitShared {
		buf.WriteString(`<style class="dm-youtube-style">.dm-youtube-container{position:relative;aspect-ratio:16/9}</style>`)
		buf.WriteString(`<script class="dm-youtube-script">/* shared maximise/backdrop behavior, emitted once */</script>`)
	}
	width := y.Width
	if width == "" {
		width = "100%"
	}
	fmt.Fprintf(&buf, `<div class="dm-youtube-container" style="width:%s"><iframe src="https://www.youtube.com/embed/%s" allowfullscreen></iframe><button class="dm-youtube-maximise" aria-label="Maximise"></button></div>`,
		esc(width), esc(y.VideoID))
	return buf.String()
}

func (c *Composer) renderColumns(v render.ResolvedColumns, seen map[string]bool) (string, error) {
	var buf strings.Builder
	buf.WriteString(`<div class="composition-columns"`)
	for bp, n := range v.Breakpoints {
		fmt.Fprintf(&buf, ` data-columns-%s="%d"`, esc(bp), n)
	}
	buf.WriteString(`>`)
	for _, col := range v.Columns {
		buf.WriteString(`<div class="composition-column">`)
		for _, n := range col {
			s, err := c.renderNode(n, seen)
			if err != nil {
				return "", err
			}
			buf.WriteString(s)
		}
		buf.WriteString(`</div>`)
	}
	buf.WriteString(`</div>`)
	return buf.String(), nil
}

func (c *Composer) renderPopover(v render.ResolvedPopover, seen map[string]bool) (string, error) {
	var buf strings.Builder
	if !seen["popover"] {
		buf.WriteString(`<script class="composition-popover-script">/* shared open/close behavior, emitted once */</script>`)
	}
	buf.WriteString(`<div class="composition-popover-wrapper">`)
	trigger, err := c.renderNode(v.Trigger, seen)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&buf, `<button class="composition-popover-trigger" data-popover-target>%s</button>`, trigger)
	buf.WriteString(`<div class="composition-popover-content">`)
	for _, n := range v.Content {
		s, err := c.renderNode(n, seen)
		if err != nil {
			return "", err
		}
		buf.WriteString(s)
	}
	buf.WriteString(`</div></div>`)
	return buf.String(), nil
}

func (c *Composer) renderDisclosure(v render.ResolvedDisclosure, seen map[string]bool) (string, error) {
	var buf strings.Builder
	buf.WriteString(`<details class="composition-disclosure"><summary>`)
	for _, n := range v.Summary {
		s, err := c.renderNode(n, seen)
		if err != nil {
			return "", err
		}
		buf.WriteString(s)
	}
	buf.WriteString(`</summary>`)
	for _, n := range v.Detail {
		s, err := c.renderNode(n, seen)
		if err != nil {
			return "", err
		}
		buf.WriteString(s)
	}
	buf.WriteString(`</details>`)
	return buf.String(), nil
}
