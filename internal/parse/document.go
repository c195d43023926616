package parse

import (
	"strings"
	"time"

	"github.com/compresr/composer/internal/resource"
)

// Document is a parsed source file: its originating resource, its own
// frontmatter, node sequence, the list of resources it depends on, and
// when it was parsed.
type Document struct {
	Resource     resource.Resource
	Frontmatter  Frontmatter
	Nodes        []Node
	Dependencies []resource.Resource
	ParsedAt     time.Time
}

// Parse runs both parser stages over raw source text and collects the
// dependency list.
func Parse(r resource.Resource, source string) (*Document, error) {
	fm, body, err := ExtractFrontmatter(source)
	if err != nil {
		return nil, err
	}

	nodes, err := parseBody(body)
	if err != nil {
		return nil, err
	}

	return &Document{
		Resource:     r,
		Frontmatter:  fm,
		Nodes:        nodes,
		Dependencies: collectDependencies(nodes),
		ParsedAt:     time.Now(),
	}, nil
}

// parseBody implements Stage B: line-by-line directive scanning with
// Markdown-node accumulation, flushed on every directive line and at EOF.
func parseBody(body string) ([]Node, error) {
	var nodes []Node
	var acc strings.Builder

	flush := func() {
		if acc.Len() > 0 {
			nodes = append(nodes, splitMarkdownInline(acc.String())...)
			acc.Reset()
		}
	}

	lines := strings.Split(body, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "::") {
			node, err := ParseDirective(line, i+1)
			if err != nil {
				return nil, err
			}
			if node != nil {
				flush()
				nodes = append(nodes, node)
				continue
			}
			// nil, nil: a block marker, dropped; still flush so the
			// accumulator doesn't straddle it.
			flush()
			continue
		}
		if acc.Len() > 0 {
			acc.WriteByte('\n')
		}
		acc.WriteString(line)
	}
	flush()

	return nodes, nil
}

// splitMarkdownInline wraps a run of plain body text as a MarkdownNode,
// except where {{var}} interpolation markers split it into Text/
// Interpolation/Text runs (parser only recognises {{var}} inline; all
// other inline constructs stay inside the Markdown node for the render-time
// Markdown engine).
func splitMarkdownInline(raw string) []Node {
	if !interpolationRe.MatchString(raw) {
		return []Node{MarkdownNode{Raw: raw}}
	}
	return ProcessInlineSyntax(raw)
}

// collectDependencies walks the AST and returns every resource referenced
// by File, Summarize, Consolidate, Topic, external Table, external chart,
// and recursively inside Popover, Columns, Disclosure.
func collectDependencies(nodes []Node) []resource.Resource {
	var deps []resource.Resource
	var walk func(Node)
	walk = func(n Node) {
		switch v := n.(type) {
		case FileNode:
			deps = append(deps, v.Resource)
		case SummarizeNode:
			deps = append(deps, v.Resource)
		case ConsolidateNode:
			deps = append(deps, v.Resources...)
		case TopicNode:
			deps = append(deps, v.Resources...)
		case TableNode:
			if ext, ok := v.Source.(ExternalTableSource); ok {
				deps = append(deps, ext.Resource)
			}
		case ChartNode:
			if ext, ok := v.Data.(ExternalTableSource); ok {
				deps = append(deps, ext.Resource)
			}
		case PopoverNode:
			walk(v.Trigger)
			for _, c := range v.Content {
				walk(c)
			}
		case ColumnsNode:
			for _, col := range v.Columns {
				for _, c := range col {
					walk(c)
				}
			}
		case DisclosureNode:
			for _, c := range v.Summary {
				walk(c)
			}
			for _, c := range v.Detail {
				walk(c)
			}
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return deps
}
