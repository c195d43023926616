package render

import (
	"context"
	"encoding/csv"
	"strings"

	"github.com/compresr/composer/internal/parse"
	"github.com/compresr/composer/internal/resource"
)

// TextResolver is the AI-adapter capability the orchestrator needs to
// resolve Summarize/Consolidate/Topic nodes. Implemented by
// internal/adapters.CachedResolver; kept as a narrow interface here so
// render never imports adapters.
type TextResolver interface {
	Summarize(ctx context.Context, content string, model string) (string, error)
	Consolidate(ctx context.Context, contents []string, model string) (string, error)
	Topic(ctx context.Context, topic string, contents []string, review bool, model string) (string, error)
}

// BodyLoader is the loader capability the orchestrator needs to fetch a
// resource's raw bytes (local file or remote URL) for transclusion.
type BodyLoader interface {
	LoadBytes(ctx context.Context, r resource.Resource) ([]byte, string, error)
}

// AudioResolver is the cache-aware audio-adapter capability the
// orchestrator delegates Audio nodes to (spec.md §4.8: "delegate to audio
// adapter (§4.9); resulting HTML is a Text node"). Implemented by
// internal/adapters.CachedAudio; kept as a narrow interface here for the
// same import-cycle reason as TextResolver.
type AudioResolver interface {
	ResolveAudio(ctx context.Context, r resource.Resource, name *string) (string, error)
}

// sliceLines implements spec.md's line-range law (P7): a File node's
// optional LineRange selects a 1-indexed inclusive span of the transcluded
// content; Start beyond EOF or End < Start is an InvalidLineRangeError.
func sliceLines(path, content string, rng *parse.LineRange) (string, error) {
	if rng == nil {
		return content, nil
	}
	lines := strings.Split(content, "\n")
	// strings.Split on "\n" yields a phantom trailing empty element for any
	// content ending in "\n"; Rust's .lines() does not count it, so drop it
	// to match the line count the range is defined against.
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	start := rng.Start
	end := len(lines)
	if rng.End != nil {
		end = *rng.End
	}
	if start < 1 || start > len(lines) {
		return "", &InvalidLineRangeError{Path: path, Start: start, End: end}
	}
	if end < start {
		return "", &InvalidLineRangeError{Path: path, Start: start, End: end}
	}
	if end > len(lines) {
		return "", &InvalidLineRangeError{Path: path, Start: start, End: end}
	}
	return strings.Join(lines[start-1:end], "\n"), nil
}

// resolveFile loads and (optionally) line-slices a File node's resource.
// The text is returned as loaded: it is not parsed, directives inside it
// are not resolved, and relative paths inside it are not rebased onto the
// transcluded file's directory.
func resolveFile(ctx context.Context, loader BodyLoader, r resource.Resource, rng *parse.LineRange) (string, error) {
	b, _, err := loader.LoadBytes(ctx, r)
	if err != nil {
		return "", &TransclusionFailedError{Path: r.CanonicalString(), Err: err}
	}
	sliced, err := sliceLines(r.CanonicalString(), string(b), rng)
	if err != nil {
		return "", err
	}
	return sliced, nil
}

// loadCSVTable loads an external CSV resource into row data. No third-party
// CSV library appears anywhere in the example pack for anything beyond
// what encoding/csv already does (quote-aware RFC 4180 reading), so this
// stays on the standard library — recorded in SPEC_FULL.md.
func loadCSVTable(ctx context.Context, loader BodyLoader, r resource.Resource) ([][]string, error) {
	b, _, err := loader.LoadBytes(ctx, r)
	if err != nil {
		return nil, &TransclusionFailedError{Path: r.CanonicalString(), Err: err}
	}
	rows, err := csv.NewReader(strings.NewReader(string(b))).ReadAll()
	if err != nil {
		return nil, &TransclusionFailedError{Path: r.CanonicalString(), Err: err}
	}
	return rows, nil
}

// resolveTableSource normalizes a TableSource (inline or external) to row
// data.
func resolveTableSource(ctx context.Context, loader BodyLoader, src parse.TableSource) ([][]string, error) {
	switch s := src.(type) {
	case parse.InlineTableSource:
		return s.Rows, nil
	case parse.ExternalTableSource:
		return loadCSVTable(ctx, loader, s.Resource)
	default:
		return nil, nil
	}
}
