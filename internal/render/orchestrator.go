package render

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/compresr/composer/internal/graph"
	"github.com/compresr/composer/internal/parse"
	"github.com/compresr/composer/internal/resource"
)

// Orchestrator is the Render Orchestrator (C8): it walks a WorkPlan
// layer by layer, rendering every resource in a layer concurrently and
// aborting the remaining layers on the first error, grounded on
// internal/preemptive/worker.go's goroutine-pool-plus-channel idiom,
// generalized to errgroup.Group per layer to match
// original_source/render/orchestrator.rs::execute_workplan's
// tokio::spawn + join_all + first-error-wins shape.
type Orchestrator struct {
	Loader   BodyLoader
	Parse    func(r resource.Resource, source string) (*parse.Document, error)
	Resolver TextResolver
	Audio    AudioResolver
}

// Execute renders every node in g reachable from plan, merging
// baseFrontmatter (e.g. CLI/config overrides) under each document's own
// frontmatter. Returns one RenderedDocument per graph node, keyed by
// resource hash.
func (o *Orchestrator) Execute(ctx context.Context, g *graph.Graph, plan *graph.WorkPlan, baseFrontmatter parse.Frontmatter) (map[resource.Hash]*RenderedDocument, error) {
	results := make(map[resource.Hash]*RenderedDocument, len(g.Nodes))
	var mu sync.Mutex

	for _, layer := range plan.Layers {
		eg, egCtx := errgroup.WithContext(ctx)
		for _, h := range layer.Resources {
			h := h
			node := g.Nodes[h]
			if node == nil {
				continue
			}
			eg.Go(func() error {
				rd, err := o.renderOne(egCtx, node, baseFrontmatter)
				if err != nil {
					return err
				}
				mu.Lock()
				results[h] = rd
				mu.Unlock()
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			// First error in a layer aborts further layers; partial results
			// from this layer's other goroutines are discarded.
			return nil, err
		}
	}
	return results, nil
}

func (o *Orchestrator) renderOne(ctx context.Context, node *graph.GraphNode, baseFrontmatter parse.Frontmatter) (*RenderedDocument, error) {
	bytes, _, err := o.Loader.LoadBytes(ctx, node.Resource)
	if err != nil {
		return nil, &TransclusionFailedError{Path: node.Resource.CanonicalString(), Err: err}
	}
	doc, err := o.Parse(node.Resource, string(bytes))
	if err != nil {
		return nil, err
	}

	fm := parse.Merge(baseFrontmatter, doc.Frontmatter)
	vars := fm.Custom

	resolved := make([]ResolvedNode, 0, len(doc.Nodes))
	for _, n := range doc.Nodes {
		rn, err := o.resolveNode(ctx, n, fm, vars)
		if err != nil {
			return nil, err
		}
		if rn != nil {
			resolved = append(resolved, rn)
		}
	}

	return &RenderedDocument{
		Resource:    node.Resource,
		Frontmatter: fm,
		Nodes:       resolved,
		ContentHash: node.ContentHash,
	}, nil
}

func (o *Orchestrator) resolveNode(ctx context.Context, n parse.Node, fm parse.Frontmatter, vars map[string]any) (ResolvedNode, error) {
	switch v := n.(type) {
	case parse.MarkdownNode:
		return ResolvedMarkdown{Raw: interpolateAndReplace(v.Raw, fm, vars)}, nil
	case parse.TextNode:
		return ResolvedMarkdown{Raw: interpolateAndReplace(v.Text, fm, vars)}, nil
	case parse.InterpolationNode:
		val, ok := vars[v.Variable]
		if !ok {
			return ResolvedMarkdown{Raw: "{{" + v.Variable + "}}"}, nil
		}
		return ResolvedMarkdown{Raw: formatValue(val)}, nil

	case parse.FileNode:
		text, err := resolveFile(ctx, o.Loader, v.Resource, v.Range)
		if err != nil {
			// Only a load failure (TransclusionFailedError) is forgiving for
			// Default/Optional resources; a malformed line range is always a
			// hard error regardless of requirement level.
			var transclusionErr *TransclusionFailedError
			if errors.As(err, &transclusionErr) && v.Resource.Requirement != resource.Required {
				return nil, nil
			}
			return nil, err
		}
		return ResolvedMarkdown{Raw: interpolateAndReplace(text, fm, vars)}, nil

	case parse.SummarizeNode:
		text, err := resolveFile(ctx, o.Loader, v.Resource, nil)
		if err != nil {
			return nil, err
		}
		summary, err := o.Resolver.Summarize(ctx, text, fm.SummarizeModel)
		if err != nil {
			return nil, &TransclusionFailedError{Path: v.Resource.CanonicalString(), Err: err}
		}
		return ResolvedMarkdown{Raw: summary}, nil

	case parse.ConsolidateNode:
		contents, err := loadAll(ctx, o.Loader, v.Resources)
		if err != nil {
			return nil, err
		}
		out, err := o.Resolver.Consolidate(ctx, contents, fm.ConsolidateModel)
		if err != nil {
			return nil, &TransclusionFailedError{Err: err}
		}
		return ResolvedMarkdown{Raw: out}, nil

	case parse.TopicNode:
		contents, err := loadAll(ctx, o.Loader, v.Resources)
		if err != nil {
			return nil, err
		}
		out, err := o.Resolver.Topic(ctx, v.Topic, contents, v.Review, fm.SummarizeModel)
		if err != nil {
			return nil, &TransclusionFailedError{Err: err}
		}
		return ResolvedMarkdown{Raw: out}, nil

	case parse.TableNode:
		rows, err := resolveTableSource(ctx, o.Loader, v.Source)
		if err != nil {
			return nil, err
		}
		return ResolvedTable{Rows: rows, HasHeading: v.HasHeading}, nil

	case parse.ChartNode:
		rows, err := resolveTableSource(ctx, o.Loader, v.Data)
		if err != nil {
			return nil, err
		}
		return ResolvedChart{Kind: v.Kind, Rows: rows}, nil

	case parse.AudioNode:
		if o.Audio == nil {
			return nil, &TransclusionFailedError{Path: v.Resource.CanonicalString(), Err: errors.New("no audio adapter configured")}
		}
		html, err := o.Audio.ResolveAudio(ctx, v.Resource, v.Name)
		if err != nil {
			if v.Resource.Requirement != resource.Required {
				return nil, nil
			}
			return nil, &TransclusionFailedError{Path: v.Resource.CanonicalString(), Err: err}
		}
		return ResolvedText{Raw: html}, nil

	case parse.YouTubeNode:
		return ResolvedYouTube{VideoID: v.VideoID, Width: v.Width}, nil

	case parse.ColumnsNode:
		cols := make([][]ResolvedNode, len(v.Columns))
		for i, col := range v.Columns {
			rc, err := o.resolveChildren(ctx, col, fm, vars)
			if err != nil {
				return nil, err
			}
			cols[i] = rc
		}
		return ResolvedColumns{Breakpoints: v.Breakpoints, Columns: cols}, nil

	case parse.PopoverNode:
		trigger, err := o.resolveNode(ctx, v.Trigger, fm, vars)
		if err != nil {
			return nil, err
		}
		content, err := o.resolveChildren(ctx, v.Content, fm, vars)
		if err != nil {
			return nil, err
		}
		return ResolvedPopover{Trigger: trigger, Content: content}, nil

	case parse.DisclosureNode:
		summary, err := o.resolveChildren(ctx, v.Summary, fm, vars)
		if err != nil {
			return nil, err
		}
		detail, err := o.resolveChildren(ctx, v.Detail, fm, vars)
		if err != nil {
			return nil, err
		}
		return ResolvedDisclosure{Summary: summary, Detail: detail}, nil

	default:
		return nil, nil
	}
}

func (o *Orchestrator) resolveChildren(ctx context.Context, nodes []parse.Node, fm parse.Frontmatter, vars map[string]any) ([]ResolvedNode, error) {
	out := make([]ResolvedNode, 0, len(nodes))
	for _, n := range nodes {
		rn, err := o.resolveNode(ctx, n, fm, vars)
		if err != nil {
			return nil, err
		}
		if rn != nil {
			out = append(out, rn)
		}
	}
	return out, nil
}

func interpolateAndReplace(text string, fm parse.Frontmatter, vars map[string]any) string {
	return ApplyReplacements(Interpolate(text, vars), fm.Replace)
}

func loadAll(ctx context.Context, loader BodyLoader, rs []resource.Resource) ([]string, error) {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		text, err := resolveFile(ctx, loader, r, nil)
		if err != nil {
			if r.Requirement == resource.Required {
				return nil, err
			}
			continue
		}
		out = append(out, text)
	}
	return out, nil
}
