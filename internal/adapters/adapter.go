// Package adapters is the External-Kind Adapters (C9): image, audio, and
// AI capability implementations, each fronted by the cache-aware contract
// lookup-by-(resource_hash,content_hash) -> compute-on-miss -> upsert.
package adapters

import "context"

// AI is the capability the render orchestrator consumes for Summarize/
// Consolidate/Topic node resolution, generalized from the teacher's
// gateway-proxy chat-completion surface down to the two primitives the
// core actually needs.
type AI interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ImageProcessor turns source image bytes into the rendered <picture>
// variant set.
type ImageProcessor interface {
	Process(ctx context.Context, sourceHash string, data []byte) (*ImageResult, error)
}

// AudioProcessor extracts playback metadata from source audio bytes.
type AudioProcessor interface {
	Process(ctx context.Context, data []byte, filename string) (*AudioResult, error)
}

// ImageResult is the outcome of one image-adapter compute.
type ImageResult struct {
	Width           int
	Height          int
	HasTransparency bool
	Variants        []ImageVariant
	Placeholder     []byte // tiny averaged-color JPEG shown while variants load
}

// ImageVariant is one encoded rendition (a format/width pair) of a
// processed image.
type ImageVariant struct {
	Format string // "avif", "webp", "jpeg", "png"
	Width  int
	Data   []byte
}

// AudioResult is the outcome of one audio-adapter compute.
type AudioResult struct {
	Format     string
	Duration   float64
	Bitrate    int
	SampleRate int
	Channels   int
}
