package render

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// Interpolate substitutes every {{var}} placeholder found in text with its
// value from vars, formatted per formatValue. A placeholder whose key is
// absent from vars is left as literal text (missing-key passthrough), per
// spec.md's interpolation rule — it is not an error.
func Interpolate(text string, vars map[string]any) string {
	return placeholderRe.ReplaceAllStringFunc(text, func(m string) string {
		key := placeholderRe.FindStringSubmatch(m)[1]
		v, ok := vars[key]
		if !ok {
			return m
		}
		return formatValue(v)
	})
}

// formatValue renders a frontmatter custom-key value as interpolated text:
// strings/numbers/bools print literally, null prints empty, and maps/slices
// fall back to compact JSON, grounded on
// original_source/render/interpolation.rs::process_interpolation's
// value-formatting switch.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// ApplyReplacements runs every frontmatter `replace` substitution over
// text. Go maps carry no declaration order, so replacements apply in
// sorted-key order for determinism — a deliberate simplification from the
// Rust reference's declaration-order guarantee, recorded in DESIGN.md.
func ApplyReplacements(text string, replace map[string]string) string {
	if len(replace) == 0 {
		return text
	}
	keys := make([]string, 0, len(replace))
	for k := range replace {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := text
	for _, k := range keys {
		out = strings.ReplaceAll(out, k, replace[k])
	}
	return out
}
