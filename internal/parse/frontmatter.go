package parse

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// InvalidFrontmatterError is returned when the frontmatter slab fails to
// parse as YAML.
type InvalidFrontmatterError struct{ Err error }

func (e *InvalidFrontmatterError) Error() string { return fmt.Sprintf("invalid frontmatter: %v", e.Err) }
func (e *InvalidFrontmatterError) Unwrap() error  { return e.Err }

// ListExpansion controls how dependency lists render.
type ListExpansion string

const (
	ListExpanded  ListExpansion = "expanded"
	ListCollapsed ListExpansion = "collapsed"
	ListNone      ListExpansion = "none"
)

// Frontmatter is a mapping of string keys to JSON-typed values, plus the
// fixed set of recognised options from spec.md §3.
type Frontmatter struct {
	ListExpansion     ListExpansion
	Replace           map[string]string
	SummarizeModel    string
	ConsolidateModel  string
	Breakpoints       map[string]int
	Custom            map[string]any
}

// reservedKeys names the struct fields above that are recognised options
// rather than custom keys.
var reservedKeys = map[string]bool{
	"list_expansion":    true,
	"replace":           true,
	"summarize_model":   true,
	"consolidate_model": true,
	"breakpoints":       true,
}

// ExtractFrontmatter implements Stage A: if the source begins with
// "---\n", find the next "\n---\n" (or "\n---" at EOF); the enclosed slab
// is parsed as YAML. Absence of the opening delimiter yields an empty
// frontmatter and the original input as body. "---\n---\n" (empty
// frontmatter) is valid.
func ExtractFrontmatter(source string) (Frontmatter, string, error) {
	const openDelim = "---\n"
	if !strings.HasPrefix(source, openDelim) {
		return Frontmatter{}, source, nil
	}

	rest := source[len(openDelim):]

	closeIdx := strings.Index(rest, "\n---\n")
	var slab, body string
	if strings.HasPrefix(rest, "---\n") {
		// "---\n---\n": the closing delimiter directly follows the opening one.
		slab = ""
		body = rest[len("---\n"):]
	} else if closeIdx >= 0 {
		slab = rest[:closeIdx]
		body = rest[closeIdx+len("\n---\n"):]
	} else if strings.HasSuffix(rest, "\n---") {
		slab = rest[:len(rest)-len("\n---")]
		body = ""
	} else if rest == "---" {
		slab = ""
		body = ""
	} else {
		// no closing delimiter at all: treat the whole thing as body with
		// no frontmatter, matching the "absence of delimiter" rule applied
		// defensively to a malformed-but-started block.
		return Frontmatter{}, source, nil
	}

	fm, err := parseYAML(slab)
	if err != nil {
		return Frontmatter{}, "", &InvalidFrontmatterError{Err: err}
	}
	return fm, body, nil
}

func parseYAML(slab string) (Frontmatter, error) {
	fm := Frontmatter{
		Replace:     map[string]string{},
		Breakpoints: map[string]int{},
		Custom:      map[string]any{},
	}
	if strings.TrimSpace(slab) == "" {
		return fm, nil
	}

	var raw map[string]any
	if err := yaml.Unmarshal([]byte(slab), &raw); err != nil {
		return Frontmatter{}, err
	}

	for k, v := range raw {
		switch k {
		case "list_expansion":
			if s, ok := v.(string); ok {
				fm.ListExpansion = ListExpansion(s)
			}
		case "replace":
			if m, ok := v.(map[string]any); ok {
				for rk, rv := range m {
					fm.Replace[rk] = fmt.Sprintf("%v", rv)
				}
			}
		case "summarize_model":
			fm.SummarizeModel = fmt.Sprintf("%v", v)
		case "consolidate_model":
			fm.ConsolidateModel = fmt.Sprintf("%v", v)
		case "breakpoints":
			if m, ok := v.(map[string]any); ok {
				for bk, bv := range m {
					if n, ok := toInt(bv); ok {
						fm.Breakpoints[bk] = n
					}
				}
			}
		default:
			fm.Custom[k] = yamlToJSONValue(v)
		}
	}
	return fm, nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// yamlToJSONValue normalizes yaml.v3's decoded map[string]any keys
// (map[any]any can appear for nested maps) into JSON-friendly
// map[string]any, grounded on original_source/parse/frontmatter.rs's
// yaml_to_json conversion.
func yamlToJSONValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			out[k] = yamlToJSONValue(vv)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			out[fmt.Sprintf("%v", k)] = yamlToJSONValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, vv := range val {
			out[i] = yamlToJSONValue(vv)
		}
		return out
	default:
		return val
	}
}

// Merge implements the documented merge rule: b wins on every named
// reserved option present in b; custom keys union with b winning on
// conflict.
func Merge(a, b Frontmatter) Frontmatter {
	out := Frontmatter{
		ListExpansion:    a.ListExpansion,
		SummarizeModel:   a.SummarizeModel,
		ConsolidateModel: a.ConsolidateModel,
		Replace:          map[string]string{},
		Breakpoints:      map[string]int{},
		Custom:           map[string]any{},
	}
	for k, v := range a.Replace {
		out.Replace[k] = v
	}
	for k, v := range a.Breakpoints {
		out.Breakpoints[k] = v
	}
	for k, v := range a.Custom {
		out.Custom[k] = v
	}

	if b.ListExpansion != "" {
		out.ListExpansion = b.ListExpansion
	}
	if b.SummarizeModel != "" {
		out.SummarizeModel = b.SummarizeModel
	}
	if b.ConsolidateModel != "" {
		out.ConsolidateModel = b.ConsolidateModel
	}
	// replace/breakpoints are named options: b's whole map wins when
	// present, it does not merge key-by-key with a's (unlike Custom, which
	// explicitly unions).
	if len(b.Replace) > 0 {
		out.Replace = map[string]string{}
		for k, v := range b.Replace {
			out.Replace[k] = v
		}
	}
	if len(b.Breakpoints) > 0 {
		out.Breakpoints = map[string]int{}
		for k, v := range b.Breakpoints {
			out.Breakpoints[k] = v
		}
	}
	for k, v := range b.Custom {
		out.Custom[k] = v
	}
	return out
}
