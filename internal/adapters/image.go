package adapters

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"github.com/chai2010/webp"
)

// preferredFormats is the [AVIF, WebP, JPEG|PNG] preferred-first order
// spec.md §4.9 names. AVIF is always skipped: no pure-Go AVIF encoder was
// found anywhere in the example pack or its manifests, so AVIFEncoder is
// a capability stub satisfied only by NoopAVIFEncoder.
var preferredFormats = []string{"avif", "webp"}

// AVIFEncoder is a capability stub: no implementation in this repo ever
// reports availability, a dropped-encoder decision justified in DESIGN.md
// rather than silently omitting the AVIF slot.
type AVIFEncoder interface {
	Available() bool
	Encode(img image.Image, quality int) ([]byte, error)
}

// NoopAVIFEncoder always reports unavailable.
type NoopAVIFEncoder struct{}

func (NoopAVIFEncoder) Available() bool { return false }
func (NoopAVIFEncoder) Encode(image.Image, int) ([]byte, error) {
	return nil, fmt.Errorf("adapters: AVIF encoding unavailable (no pure-Go encoder in this build)")
}

// StdImageProcessor decodes source bytes with the standard library and
// encodes JPEG/PNG natively plus WebP via chai2010/webp, generating one
// variant per preferred format at the source's native width (no
// responsive-breakpoint resizing; no breakpoint setting is read here).
// Never upscales past the source's native dimensions (P8).
type StdImageProcessor struct {
	AVIF    AVIFEncoder
	Quality int // jpeg/webp quality, 0 uses 85
}

func (p *StdImageProcessor) quality() int {
	if p.Quality > 0 {
		return p.Quality
	}
	return 85
}

func (p *StdImageProcessor) Process(_ context.Context, _ string, data []byte) (*ImageResult, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("adapters: decoding image: %w", err)
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	result := &ImageResult{
		Width:           width,
		Height:          height,
		HasTransparency: hasTransparency(img),
	}

	for _, f := range preferredFormats {
		if f == "avif" {
			if p.AVIF == nil || !p.AVIF.Available() {
				continue
			}
			data, err := p.AVIF.Encode(img, p.quality())
			if err != nil {
				continue
			}
			result.Variants = append(result.Variants, ImageVariant{Format: "avif", Width: width, Data: data})
			continue
		}
		if f == "webp" {
			var buf bytes.Buffer
			if err := webp.Encode(&buf, img, &webp.Options{Lossless: false, Quality: float32(p.quality())}); err != nil {
				continue
			}
			result.Variants = append(result.Variants, ImageVariant{Format: "webp", Width: width, Data: buf.Bytes()})
		}
	}

	fallback, err := encodeFallback(img, format, p.quality())
	if err != nil {
		return nil, err
	}
	result.Variants = append(result.Variants, fallback)

	if placeholder, err := blurredPlaceholder(img); err == nil {
		result.Placeholder = placeholder
	}

	return result, nil
}

// encodeFallback re-encodes as PNG when the source had an alpha channel
// (JPEG has none), otherwise JPEG — the "JPEG|PNG" tail of the
// preferred-first list.
func encodeFallback(img image.Image, sourceFormat string, quality int) (ImageVariant, error) {
	var buf bytes.Buffer
	if hasTransparency(img) {
		if err := png.Encode(&buf, img); err != nil {
			return ImageVariant{}, fmt.Errorf("adapters: encoding png fallback: %w", err)
		}
		return ImageVariant{Format: "png", Width: img.Bounds().Dx(), Data: buf.Bytes()}, nil
	}
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return ImageVariant{}, fmt.Errorf("adapters: encoding jpeg fallback: %w", err)
	}
	return ImageVariant{Format: "jpeg", Width: img.Bounds().Dx(), Data: buf.Bytes()}, nil
}

func hasTransparency(img image.Image) bool {
	nrgba, ok := img.(*image.NRGBA)
	if ok {
		for i := 3; i < len(nrgba.Pix); i += 4 {
			if nrgba.Pix[i] != 255 {
				return true
			}
		}
		return false
	}
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			if a != 0xffff {
				return true
			}
		}
	}
	return false
}

// placeholderWidth matches spec.md §4.9's "base64 JPEG, ≈20 px wide".
const placeholderWidth = 20

// blurredPlaceholder returns a tiny averaged-color JPEG, ≈20px wide
// (preserving aspect ratio), used as a low-quality blurred placeholder
// while a <picture>'s real variants load.
func blurredPlaceholder(img image.Image) ([]byte, error) {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW == 0 || srcH == 0 {
		return nil, fmt.Errorf("adapters: cannot build placeholder for empty image")
	}
	w := placeholderWidth
	h := srcH * w / srcW
	if h < 1 {
		h = 1
	}

	placeholder := image.NewRGBA(image.Rect(0, 0, w, h))
	for py := 0; py < h; py++ {
		for px := 0; px < w; px++ {
			var r, g, b, n uint64
			x0, y0 := bounds.Min.X+px*srcW/w, bounds.Min.Y+py*srcH/h
			x1, y1 := bounds.Min.X+(px+1)*srcW/w, bounds.Min.Y+(py+1)*srcH/h
			if x1 <= x0 {
				x1 = x0 + 1
			}
			if y1 <= y0 {
				y1 = y0 + 1
			}
			if x1 > bounds.Max.X {
				x1 = bounds.Max.X
			}
			if y1 > bounds.Max.Y {
				y1 = bounds.Max.Y
			}
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					cr, cg, cb, _ := img.At(x, y).RGBA()
					r += uint64(cr)
					g += uint64(cg)
					b += uint64(cb)
					n++
				}
			}
			if n == 0 {
				n = 1
			}
			placeholder.Set(px, py, color.RGBA{R: uint8(r / n >> 8), G: uint8(g / n >> 8), B: uint8(b / n >> 8), A: 255})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, placeholder, &jpeg.Options{Quality: 40}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
