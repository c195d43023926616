package adapters

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/compresr/composer/internal/resource"
	"github.com/compresr/composer/internal/store"
)

// CachedImage fronts an ImageProcessor with the image_cache lookup-by-
// (resource_hash,content_hash) -> compute-on-miss -> upsert contract spec.md
// §4.9 requires, and builds the `<picture>` markup spec.md §6's structural
// table calls for ("Image" -> `<picture>`, one `<source>` per format,
// `<img>` fallback with width/height, `loading="lazy"` default).
type CachedImage struct {
	Processor ImageProcessor
	Loader    bodyLoader
	Store     store.Store
}

// ResolveSrc loads the image referenced by src (a Markdown image
// destination, local path or remote URL), resolves it through the cache,
// and returns its `<picture>` HTML. ok is false when src can't be turned
// into a loadable resource or the load/process step fails, so the composer
// falls back to goldmark's own `<img>` tag rather than losing the image.
func (c *CachedImage) ResolveSrc(src string) (string, bool) {
	var r resource.Resource
	if resource.IsValidURL(src) {
		r = resource.Remote(src)
	} else {
		r = resource.Local(src)
	}

	ctx := context.Background()
	html, err := c.resolve(ctx, r)
	if err != nil {
		log.Warn().Err(err).Str("src", src).Msg("resolving image")
		return "", false
	}
	return html, true
}

func (c *CachedImage) resolve(ctx context.Context, r resource.Resource) (string, error) {
	body, _, err := c.Loader.LoadBytes(ctx, r)
	if err != nil {
		return "", fmt.Errorf("adapters: loading image resource: %w", err)
	}
	resourceHash := resource.ResourceHash(r).String()
	contentHash := resource.ContentHash(body).String()

	result, err := c.resultFromCacheOrCompute(ctx, r, resourceHash, contentHash, body)
	if err != nil {
		return "", err
	}
	return renderPictureHTML(r.CanonicalString(), result), nil
}

func (c *CachedImage) resultFromCacheOrCompute(ctx context.Context, r resource.Resource, resourceHash, contentHash string, body []byte) (*ImageResult, error) {
	if c.Store != nil {
		entry, err := c.Store.GetImage(ctx, resourceHash)
		if err != nil {
			return nil, err
		}
		if entry != nil && entry.ContentHash == contentHash {
			var variants []ImageVariant
			if err := json.Unmarshal(entry.Variants, &variants); err != nil {
				return nil, fmt.Errorf("adapters: decoding cached image variants: %w", err)
			}
			return &ImageResult{
				Width:           entry.Width,
				Height:          entry.Height,
				HasTransparency: entry.HasTransparency,
				Variants:        variants,
			}, nil
		}
	}

	result, err := c.Processor.Process(ctx, contentHash, body)
	if err != nil {
		return nil, fmt.Errorf("adapters: processing image: %w", err)
	}

	if c.Store != nil {
		encoded, err := json.Marshal(result.Variants)
		if err != nil {
			return nil, fmt.Errorf("adapters: encoding image variants: %w", err)
		}
		sourceType, source := "local", r.CanonicalString()
		if !r.IsLocal() {
			sourceType = "remote"
		}
		if err := c.Store.UpsertImage(ctx, store.ImageEntry{
			ResourceHash:    resourceHash,
			ContentHash:     contentHash,
			CreatedAt:       time.Now(),
			SourceType:      sourceType,
			Source:          source,
			HasTransparency: result.HasTransparency,
			Width:           result.Width,
			Height:          result.Height,
			Variants:        encoded,
		}); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// renderPictureHTML builds spec.md §6's `<picture>` structural convention:
// one `<source>` per encoded variant format, falling back to an `<img>`
// carrying the source's natural width/height and lazy loading.
func renderPictureHTML(src string, r *ImageResult) string {
	var sb strings.Builder
	sb.WriteString(`<picture>`)
	byFormat := map[string][]ImageVariant{}
	var fallback ImageVariant
	for _, v := range r.Variants {
		byFormat[v.Format] = append(byFormat[v.Format], v)
		if fallback.Data == nil || v.Format == "jpeg" || v.Format == "png" {
			fallback = v
		}
	}
	for _, format := range []string{"avif", "webp"} {
		vs := byFormat[format]
		if len(vs) == 0 {
			continue
		}
		var srcset strings.Builder
		for i, v := range vs {
			if i > 0 {
				srcset.WriteString(", ")
			}
			fmt.Fprintf(&srcset, "%s %dw", imageDataURI(format, v.Data), v.Width)
		}
		fmt.Fprintf(&sb, `<source type="image/%s" srcset="%s">`, format, htmltemplate.HTMLEscapeString(srcset.String()))
	}
	fallbackSrc := src
	if fallback.Data != nil {
		fallbackSrc = imageDataURI(fallback.Format, fallback.Data)
	}
	fmt.Fprintf(&sb,
		`<img src="%s" width="%d" height="%d" loading="lazy" decoding="async">`,
		htmltemplate.HTMLEscapeString(fallbackSrc), r.Width, r.Height,
	)
	sb.WriteString(`</picture>`)
	return sb.String()
}

// imageDataURI inlines an encoded variant as a data: URI so the composed
// HTML stays self-contained, matching this package's other emit functions.
func imageDataURI(format string, data []byte) string {
	return fmt.Sprintf("data:image/%s;base64,%s", format, base64.StdEncoding.EncodeToString(data))
}
