// Package store is the content-addressed Cache Store (C2): persistent
// key/value storage over named tables with relations, expiry, and
// cascading invalidation.
//
// DESIGN: the teacher's store.Store interface (MemoryStore with dual TTL)
// is generalized here from an in-process map to a modernc.org/sqlite-backed
// implementation, because the spec requires cross-build persistence and
// a real cascading delete over depends_on edges that a map cannot give
// durably. UpsertX compiles to INSERT ... ON CONFLICT DO UPDATE — a genuine
// replace-by-unique-key, unlike the Rust reference this was distilled from
// which only issues plain inserts.
package store

import (
	"context"
	"fmt"
	"time"
)

// CacheError wraps any storage I/O failure. The core never swallows these;
// they abort the current pipeline step.
type CacheError struct {
	Op  string
	Err error
}

func (e *CacheError) Error() string { return fmt.Sprintf("cache: %s: %v", e.Op, e.Err) }
func (e *CacheError) Unwrap() error { return e.Err }

// DocumentEntry is one row of the document table.
type DocumentEntry struct {
	ResourceHash  string
	ContentHash   string
	FilePath      string
	URL           string
	Body          []byte // cached body, enables local re-hash without a refetch
	LastValidated time.Time
}

// DependencyEdge is one row of the depends_on table.
type DependencyEdge struct {
	From          string
	To            string
	ReferenceType string
	Required      bool
}

// ImageEntry is one row of the image_cache table.
type ImageEntry struct {
	ResourceHash     string
	ContentHash      string
	CreatedAt        time.Time
	ExpiresAt        *time.Time
	SourceType       string
	Source           string
	HasTransparency  bool
	Width            int
	Height           int
	Variants         []byte // composer-owned encoding of generated <picture> variants
}

// AudioEntry is one row of the audio_cache table.
type AudioEntry struct {
	ResourceHash string
	ContentHash  string
	CreatedAt    time.Time
	SourceType   string
	Source       string
	Format       string
	Duration     float64
	Bitrate      int
	SampleRate   int
	Channels     int
	DisplayName  string
}

// LLMEntry is one row of the llm_cache table.
type LLMEntry struct {
	Operation   string
	InputHash   string
	Model       string
	Response    string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	TokensUsed  *int
}

// EmbeddingEntry is one row of the embedding table.
type EmbeddingEntry struct {
	ResourceHash string
	ContentHash  string
	Model        string
	Dimensions   int
	Vector       []float32
}

// Store is the Cache Store contract shared by every component that needs
// persistent, content-addressed lookups.
type Store interface {
	GetDocument(ctx context.Context, resourceHash string) (*DocumentEntry, error)
	UpsertDocument(ctx context.Context, e DocumentEntry, deps []DependencyEdge) error

	GetImage(ctx context.Context, resourceHash string) (*ImageEntry, error)
	UpsertImage(ctx context.Context, e ImageEntry) error
	InvalidateImage(ctx context.Context, resourceHash string) error

	GetAudio(ctx context.Context, resourceHash string) (*AudioEntry, error)
	UpsertAudio(ctx context.Context, e AudioEntry) error

	// GetLLM returns nil, nil when the entry is absent OR expired — an
	// expired entry is semantically not present (spec invariant: llm_cache
	// never returns a stale response).
	GetLLM(ctx context.Context, operation, inputHash, model string) (*LLMEntry, error)
	UpsertLLM(ctx context.Context, e LLMEntry) error
	CleanExpiredLLM(ctx context.Context) (int, error)

	GetEmbedding(ctx context.Context, resourceHash string) (*EmbeddingEntry, error)
	UpsertEmbedding(ctx context.Context, e EmbeddingEntry) error

	// InvalidateDocumentCascade deletes resourceHash and every document
	// transitively reachable via its outgoing depends_on edges, atomically.
	// Returns the hashes actually removed.
	InvalidateDocumentCascade(ctx context.Context, resourceHash string) ([]string, error)

	Close() error
}
