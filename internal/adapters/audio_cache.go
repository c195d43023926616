package adapters

import (
	"context"
	"fmt"
	htmltemplate "html/template"
	"time"

	"github.com/compresr/composer/internal/resource"
	"github.com/compresr/composer/internal/store"
)

// bodyLoader is the loader capability CachedAudio needs, duck-typed against
// internal/loader.Loader without importing it.
type bodyLoader interface {
	LoadBytes(ctx context.Context, r resource.Resource) ([]byte, string, error)
}

// CachedAudio fronts an AudioProcessor with the audio_cache lookup-by-
// (resource_hash,content_hash) -> compute-on-miss -> upsert contract
// spec.md §4.9 requires, and builds the audio-player HTML spec.md §4.8
// calls a Text node result ("delegate to audio adapter; resulting HTML is
// a Text node"). Implements render.AudioResolver structurally.
type CachedAudio struct {
	Processor AudioProcessor
	Loader    bodyLoader
	Store     store.Store
}

// ResolveAudio loads r's bytes, resolves playback metadata through the
// cache (recomputing only on a miss or a content-hash mismatch), and
// returns the final `audio-player` HTML snippet.
func (c *CachedAudio) ResolveAudio(ctx context.Context, r resource.Resource, name *string) (string, error) {
	body, _, err := c.Loader.LoadBytes(ctx, r)
	if err != nil {
		return "", fmt.Errorf("adapters: loading audio resource: %w", err)
	}
	resourceHash := resource.ResourceHash(r).String()
	contentHash := resource.ContentHash(body).String()

	result, err := c.resultFromCacheOrCompute(ctx, r, resourceHash, contentHash, body)
	if err != nil {
		return "", err
	}

	displayName := r.CanonicalString()
	if name != nil {
		displayName = *name
	}
	return renderAudioPlayerHTML(r.CanonicalString(), displayName, result.Duration), nil
}

func (c *CachedAudio) resultFromCacheOrCompute(ctx context.Context, r resource.Resource, resourceHash, contentHash string, body []byte) (*AudioResult, error) {
	if c.Store != nil {
		entry, err := c.Store.GetAudio(ctx, resourceHash)
		if err != nil {
			return nil, err
		}
		if entry != nil && entry.ContentHash == contentHash {
			return &AudioResult{
				Format:     entry.Format,
				Duration:   entry.Duration,
				Bitrate:    entry.Bitrate,
				SampleRate: entry.SampleRate,
				Channels:   entry.Channels,
			}, nil
		}
	}

	result, err := c.Processor.Process(ctx, body, r.CanonicalString())
	if err != nil {
		return nil, fmt.Errorf("adapters: processing audio: %w", err)
	}

	if c.Store != nil {
		sourceType, source := "local", r.CanonicalString()
		if !r.IsLocal() {
			sourceType = "remote"
		}
		if err := c.Store.UpsertAudio(ctx, store.AudioEntry{
			ResourceHash: resourceHash,
			ContentHash:  contentHash,
			CreatedAt:    time.Now(),
			SourceType:   sourceType,
			Source:       source,
			Format:       result.Format,
			Duration:     result.Duration,
			Bitrate:      result.Bitrate,
			SampleRate:   result.SampleRate,
			Channels:     result.Channels,
		}); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// renderAudioPlayerHTML builds spec.md §6's Audio player structural
// convention: an `audio-player` wrapper around `<audio controls
// preload="metadata">` with a `<source>` and an `mm:ss` duration label.
func renderAudioPlayerHTML(src, displayName string, durationSeconds float64) string {
	esc := htmltemplate.HTMLEscapeString
	label := formatMMSS(durationSeconds)
	return fmt.Sprintf(
		`<div class="audio-player"><audio controls preload="metadata"><source src="%s"></audio><span class="audio-player-name">%s</span><span class="audio-player-duration">%s</span></div>`,
		esc(src), esc(displayName), esc(label),
	)
}

func formatMMSS(seconds float64) string {
	total := int(seconds + 0.5)
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
