package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/compresr/composer/internal/resource"
)

// InvalidDirectiveError is returned when a directive line matches no known
// grammar or fails to parse its arguments.
type InvalidDirectiveError struct {
	Line      int
	Directive string
}

func (e *InvalidDirectiveError) Error() string {
	return fmt.Sprintf("invalid directive at line %d: %q", e.Line, e.Directive)
}

// Compiled once at package init, mirroring the teacher's habit of
// package-level helpers and the Rust source's LazyLock<Regex>, grounded on
// original_source/parse/darkmatter.rs.
var (
	fileDirective      = regexp.MustCompile(`^::file\s+(.+?)(?:\s+(\d+)-(\d+)?)?$`)
	summarizeDirective = regexp.MustCompile(`^::summarize\s+(.+)$`)
	consolidateDirective = regexp.MustCompile(`^::consolidate\s+(.+)$`)
	topicDirective     = regexp.MustCompile(`^::topic\s+"([^"]+)"\s+(.+?)(?:\s+--review)?$`)
	tableDirective     = regexp.MustCompile(`^::table(?:\s+(\S+))?(?:\s+--with-heading-row)?$`)
	chartDirective     = regexp.MustCompile(`^::(bar-chart|line-chart|pie-chart|area-chart|bubble-chart)\s+(.+)$`)
	columnsDirective   = regexp.MustCompile(`^::columns(?:\s+(.+))?$`)
	audioDirective     = regexp.MustCompile(`^::audio\s+(\S+)(?:\s+"([^"]+)")?$`)
	youtubeDirective   = regexp.MustCompile(`^::youtube\s+(\S+)(?:\s+(\S+))?$`)
	interpolationRe    = regexp.MustCompile(`\{\{(\w+)\}\}`)

	chartKindByName = map[string]ChartKind{
		"bar-chart":    BarChart,
		"line-chart":   LineChart,
		"pie-chart":    PieChart,
		"area-chart":   AreaChart,
		"bubble-chart": BubbleChart,
	}
)

// ParseDirective parses a single trimmed DSL directive line. It returns
// (nil, nil) for block-marker lines (::summary, ::details, ::break, and
// ::columns with or without a spec). Stage B drops these markers; no
// Columns, Popover or Disclosure node is built from them.
func ParseDirective(line string, lineNum int) (Node, error) {
	trimmed := strings.TrimSpace(line)

	if m := fileDirective.FindStringSubmatch(trimmed); m != nil {
		r, err := ParseResource(m[1])
		if err != nil {
			return nil, &InvalidDirectiveError{Line: lineNum, Directive: line}
		}
		var rng *LineRange
		if m[2] != "" {
			start, err := strconv.Atoi(m[2])
			if err != nil {
				return nil, &InvalidDirectiveError{Line: lineNum, Directive: line}
			}
			var end *int
			if m[3] != "" {
				e, err := strconv.Atoi(m[3])
				if err != nil {
					return nil, &InvalidDirectiveError{Line: lineNum, Directive: line}
				}
				end = &e
			}
			rng = &LineRange{Start: start, End: end}
		}
		return FileNode{Resource: r, Range: rng}, nil
	}

	if m := summarizeDirective.FindStringSubmatch(trimmed); m != nil {
		r, err := ParseResource(m[1])
		if err != nil {
			return nil, &InvalidDirectiveError{Line: lineNum, Directive: line}
		}
		return SummarizeNode{Resource: r}, nil
	}

	if m := consolidateDirective.FindStringSubmatch(trimmed); m != nil {
		rs, err := ParseResources(m[1])
		if err != nil {
			return nil, &InvalidDirectiveError{Line: lineNum, Directive: line}
		}
		return ConsolidateNode{Resources: rs}, nil
	}

	if m := topicDirective.FindStringSubmatch(trimmed); m != nil {
		rs, err := ParseResources(m[2])
		if err != nil {
			return nil, &InvalidDirectiveError{Line: lineNum, Directive: line}
		}
		return TopicNode{Topic: m[1], Resources: rs, Review: strings.Contains(trimmed, "--review")}, nil
	}

	if m := tableDirective.FindStringSubmatch(trimmed); m != nil {
		hasHeading := strings.Contains(trimmed, "--with-heading-row")
		var src TableSource
		if m[1] != "" {
			r, err := ParseResource(m[1])
			if err != nil {
				return nil, &InvalidDirectiveError{Line: lineNum, Directive: line}
			}
			src = ExternalTableSource{Resource: r}
		} else {
			src = InlineTableSource{}
		}
		return TableNode{Source: src, HasHeading: hasHeading}, nil
	}

	if m := chartDirective.FindStringSubmatch(trimmed); m != nil {
		r, err := ParseResource(m[2])
		if err != nil {
			return nil, &InvalidDirectiveError{Line: lineNum, Directive: line}
		}
		kind, ok := chartKindByName[m[1]]
		if !ok {
			return nil, &InvalidDirectiveError{Line: lineNum, Directive: line}
		}
		return ChartNode{Kind: kind, Data: ExternalTableSource{Resource: r}}, nil
	}

	if trimmed == "::summary" || trimmed == "::details" || trimmed == "::break" {
		return nil, nil
	}
	if columnsDirective.MatchString(trimmed) {
		return nil, nil
	}

	if m := audioDirective.FindStringSubmatch(trimmed); m != nil {
		r, err := ParseResource(m[1])
		if err != nil {
			return nil, &InvalidDirectiveError{Line: lineNum, Directive: line}
		}
		var name *string
		if m[2] != "" {
			name = &m[2]
		}
		return AudioNode{Resource: r, Name: name}, nil
	}

	if m := youtubeDirective.FindStringSubmatch(trimmed); m != nil {
		id, err := extractYouTubeID(m[1])
		if err != nil {
			return nil, &InvalidDirectiveError{Line: lineNum, Directive: line}
		}
		width := m[2]
		if width != "" {
			if err := validateWidthSpec(width); err != nil {
				return nil, &InvalidDirectiveError{Line: lineNum, Directive: line}
			}
		}
		return YouTubeNode{VideoID: id, Width: width}, nil
	}

	if strings.HasPrefix(trimmed, "::") {
		return nil, &InvalidDirectiveError{Line: lineNum, Directive: line}
	}

	return nil, nil
}

var widthSpec = regexp.MustCompile(`^(\d+)px$|^(\d+(?:\.\d+)?)rem$|^(\d{1,3})%$`)

func validateWidthSpec(w string) error {
	m := widthSpec.FindStringSubmatch(w)
	if m == nil {
		return fmt.Errorf("invalid width spec %q", w)
	}
	if m[3] != "" {
		pct, _ := strconv.Atoi(m[3])
		if pct < 0 || pct > 100 {
			return fmt.Errorf("percentage out of range: %q", w)
		}
	}
	return nil
}

var (
	youtubeIDRe  = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	youtubeURLRe = regexp.MustCompile(`(?:youtube\.com/(?:watch\?v=|embed/|v/)|youtu\.be/)([A-Za-z0-9_-]{11})`)
)

// extractYouTubeID accepts an 11-char ID directly or extracts it from the
// common YouTube URL forms (watch?v=, youtu.be/, /embed/, /v/), with or
// without extra query parameters.
func extractYouTubeID(arg string) (string, error) {
	if youtubeIDRe.MatchString(arg) {
		return arg, nil
	}
	if m := youtubeURLRe.FindStringSubmatch(arg); m != nil {
		return m[1], nil
	}
	return "", fmt.Errorf("could not extract youtube id from %q", arg)
}

// ProcessInlineSyntax splits text on {{identifier}} interpolation markers,
// grounded on darkmatter.rs::process_inline_syntax. Popover markdown-link
// syntax ([trigger](popover:content)) is not handled here, and Stage B does
// not build popover nodes either.
func ProcessInlineSyntax(text string) []Node {
	var nodes []Node
	pos := 0
	for _, loc := range interpolationRe.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[0], loc[1]
		varStart, varEnd := loc[2], loc[3]
		if start > pos {
			nodes = append(nodes, TextNode{Text: text[pos:start]})
		}
		nodes = append(nodes, InterpolationNode{Variable: text[varStart:varEnd]})
		pos = end
	}
	if pos < len(text) {
		nodes = append(nodes, TextNode{Text: text[pos:]})
	}
	if len(nodes) == 0 {
		nodes = append(nodes, TextNode{Text: text})
	}
	return nodes
}
