package html_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compresr/composer/internal/html"
	"github.com/compresr/composer/internal/render"
)

func TestComposeRendersMarkdownAsHTML(t *testing.T) {
	c := &html.Composer{}
	doc := &render.RenderedDocument{
		Nodes: []render.ResolvedNode{render.ResolvedMarkdown{Raw: "# Title\n\nBody **text**."}},
	}
	out, err := c.Compose(doc)
	require.NoError(t, err)
	assert.Contains(t, out, "<h1>")
	assert.Contains(t, out, "<strong>text</strong>")
}

func TestComposeEscapesUserContentInTableCells(t *testing.T) {
	c := &html.Composer{}
	doc := &render.RenderedDocument{
		Nodes: []render.ResolvedNode{render.ResolvedTable{
			Rows:       [][]string{{"<script>alert(1)</script>"}},
			HasHeading: false,
		}},
	}
	out, err := c.Compose(doc)
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>alert(1)</script>")
	assert.Contains(t, out, "&lt;script&gt;")
}

func TestComposeTableUsesThForHeadingRow(t *testing.T) {
	c := &html.Composer{}
	doc := &render.RenderedDocument{
		Nodes: []render.ResolvedNode{render.ResolvedTable{
			Rows:       [][]string{{"Name"}, {"Alice"}},
			HasHeading: true,
		}},
	}
	out, err := c.Compose(doc)
	require.NoError(t, err)
	assert.Contains(t, out, "<th>Name</th>")
	assert.Contains(t, out, "<td>Alice</td>")
}

func TestComposeYouTubeEmitsSharedAssetsOnce(t *testing.T) {
	c := &html.Composer{}
	doc := &render.RenderedDocument{
		Nodes: []render.ResolvedNode{
			render.ResolvedYouTube{VideoID: "dQw4w9WgXcQ"},
			render.ResolvedYouTube{VideoID: "abc12345678"},
		},
	}
	out, err := c.Compose(doc)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "dm-youtube-script"))
	assert.Equal(t, 2, strings.Count(out, "class=\"dm-youtube-container\""))
}

func TestComposeTextNodeWritesRawHTMLVerbatim(t *testing.T) {
	c := &html.Composer{}
	doc := &render.RenderedDocument{
		Nodes: []render.ResolvedNode{render.ResolvedText{
			Raw: `<div class="audio-player"><audio controls preload="metadata"><source src="./ep1.mp3"></audio><span class="audio-player-name">Episode One</span><span class="audio-player-duration">3:45</span></div>`,
		}},
	}
	out, err := c.Compose(doc)
	require.NoError(t, err)
	assert.Contains(t, out, "Episode One")
	assert.Contains(t, out, "3:45")
	assert.Contains(t, out, "audio-player")
}

func TestComposeMarkdownImageUsesResolverPictureHTML(t *testing.T) {
	c := &html.Composer{
		ImageResolver: func(src string) (string, bool) {
			assert.Equal(t, "./photo.jpg", src)
			return `<picture><img src="data:image/jpeg;base64,AA==" width="10" height="10" loading="lazy" decoding="async"></picture>`, true
		},
	}
	doc := &render.RenderedDocument{
		Nodes: []render.ResolvedNode{render.ResolvedMarkdown{Raw: "![a photo](./photo.jpg)"}},
	}
	out, err := c.Compose(doc)
	require.NoError(t, err)
	assert.Contains(t, out, "<picture>")
	assert.NotContains(t, out, `src="./photo.jpg"`)
}

func TestComposeMarkdownImageFallsBackWithoutResolver(t *testing.T) {
	c := &html.Composer{}
	doc := &render.RenderedDocument{
		Nodes: []render.ResolvedNode{render.ResolvedMarkdown{Raw: "![a photo](./photo.jpg)"}},
	}
	out, err := c.Compose(doc)
	require.NoError(t, err)
	assert.Contains(t, out, `<img src="./photo.jpg"`)
}

func TestComposeDisclosureUsesNativeDetailsTag(t *testing.T) {
	c := &html.Composer{}
	doc := &render.RenderedDocument{
		Nodes: []render.ResolvedNode{render.ResolvedDisclosure{
			Summary: []render.ResolvedNode{render.ResolvedMarkdown{Raw: "More"}},
			Detail:  []render.ResolvedNode{render.ResolvedMarkdown{Raw: "Hidden content"}},
		}},
	}
	out, err := c.Compose(doc)
	require.NoError(t, err)
	assert.Contains(t, out, "<details")
	assert.Contains(t, out, "<summary>")
	assert.Contains(t, out, "Hidden content")
}

func TestComposeColumnsAppliesBreakpointData(t *testing.T) {
	c := &html.Composer{}
	doc := &render.RenderedDocument{
		Nodes: []render.ResolvedNode{render.ResolvedColumns{
			Breakpoints: map[string]int{"md": 2},
			Columns: [][]render.ResolvedNode{
				{render.ResolvedMarkdown{Raw: "A"}},
				{render.ResolvedMarkdown{Raw: "B"}},
			},
		}},
	}
	out, err := c.Compose(doc)
	require.NoError(t, err)
	assert.Contains(t, out, `data-columns-md="2"`)
	assert.Equal(t, 2, strings.Count(out, "composition-column\""))
}
