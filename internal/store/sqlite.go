package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the persistent Store implementation backed by
// modernc.org/sqlite, the teacher's pure-Go (no cgo) sqlite driver.
// SQLite is single-writer; writeMu serialises write transactions so
// concurrent upserts resolve to "last writer wins" without corrupting
// rows, matching the concurrency contract in §5.
type SQLiteStore struct {
	db      *sql.DB
	writeMu sync.Mutex
}

// Open creates (if absent) and opens the sqlite database at path, applying
// the schema idempotently.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &CacheError{Op: "open", Err: err}
	}
	db.SetMaxOpenConns(1) // sqlite: single writer, avoid SQLITE_BUSY churn
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, &CacheError{Op: "apply-schema", Err: err}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

// =============================================================================
// document
// =============================================================================

func (s *SQLiteStore) GetDocument(ctx context.Context, resourceHash string) (*DocumentEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT resource_hash, content_hash, file_path, url, body, last_validated FROM document WHERE resource_hash = ?`, resourceHash)
	var e DocumentEntry
	var filePath, url sql.NullString
	var body []byte
	var lastValidated int64
	if err := row.Scan(&e.ResourceHash, &e.ContentHash, &filePath, &url, &body, &lastValidated); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, &CacheError{Op: "get-document", Err: err}
	}
	e.FilePath = filePath.String
	e.URL = url.String
	e.Body = body
	e.LastValidated = time.Unix(lastValidated, 0)
	return &e, nil
}

func (s *SQLiteStore) UpsertDocument(ctx context.Context, e DocumentEntry, deps []DependencyEdge) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &CacheError{Op: "upsert-document-begin", Err: err}
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO document (resource_hash, content_hash, file_path, url, body, last_validated)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(resource_hash) DO UPDATE SET
			content_hash = excluded.content_hash,
			file_path = excluded.file_path,
			url = excluded.url,
			body = excluded.body,
			last_validated = excluded.last_validated`,
		e.ResourceHash, e.ContentHash, e.FilePath, e.URL, e.Body, unixOrZero(e.LastValidated))
	if err != nil {
		return &CacheError{Op: "upsert-document", Err: err}
	}

	for _, d := range deps {
		required := 0
		if d.Required {
			required = 1
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO depends_on (from_hash, to_hash, reference_type, required)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(from_hash, to_hash) DO UPDATE SET
				reference_type = excluded.reference_type,
				required = excluded.required`,
			d.From, d.To, d.ReferenceType, required); err != nil {
			return &CacheError{Op: "upsert-depends-on", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &CacheError{Op: "upsert-document-commit", Err: err}
	}
	return nil
}

// InvalidateDocumentCascade deletes resourceHash and everything it
// transitively depends on, inside one transaction — resolving the spec's
// Open Question in favour of an atomic cascade (the Rust reference this
// was distilled from deletes one row at a time, non-atomically).
func (s *SQLiteStore) InvalidateDocumentCascade(ctx context.Context, resourceHash string) ([]string, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &CacheError{Op: "cascade-begin", Err: err}
	}
	defer tx.Rollback()

	toVisit := []string{resourceHash}
	seen := map[string]bool{}
	var removed []string

	for len(toVisit) > 0 {
		h := toVisit[0]
		toVisit = toVisit[1:]
		if seen[h] {
			continue
		}
		seen[h] = true

		rows, err := tx.QueryContext(ctx, `SELECT to_hash FROM depends_on WHERE from_hash = ?`, h)
		if err != nil {
			return nil, &CacheError{Op: "cascade-query", Err: err}
		}
		var children []string
		for rows.Next() {
			var to string
			if err := rows.Scan(&to); err != nil {
				rows.Close()
				return nil, &CacheError{Op: "cascade-scan", Err: err}
			}
			children = append(children, to)
		}
		rows.Close()
		toVisit = append(toVisit, children...)
	}

	for h := range seen {
		if _, err := tx.ExecContext(ctx, `DELETE FROM document WHERE resource_hash = ?`, h); err != nil {
			return nil, &CacheError{Op: "cascade-delete", Err: err}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM depends_on WHERE from_hash = ? OR to_hash = ?`, h, h); err != nil {
			return nil, &CacheError{Op: "cascade-delete-edges", Err: err}
		}
		removed = append(removed, h)
	}

	if err := tx.Commit(); err != nil {
		return nil, &CacheError{Op: "cascade-commit", Err: err}
	}
	return removed, nil
}

// =============================================================================
// image_cache
// =============================================================================

func (s *SQLiteStore) GetImage(ctx context.Context, resourceHash string) (*ImageEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT resource_hash, content_hash, created_at, expires_at, source_type, source, has_transparency, width, height, variants FROM image_cache WHERE resource_hash = ?`, resourceHash)
	var e ImageEntry
	var createdAt int64
	var expiresAt sql.NullInt64
	var hasTransparency int
	if err := row.Scan(&e.ResourceHash, &e.ContentHash, &createdAt, &expiresAt, &e.SourceType, &e.Source, &hasTransparency, &e.Width, &e.Height, &e.Variants); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, &CacheError{Op: "get-image", Err: err}
	}
	e.CreatedAt = time.Unix(createdAt, 0)
	e.HasTransparency = hasTransparency != 0
	if expiresAt.Valid {
		t := time.Unix(expiresAt.Int64, 0)
		e.ExpiresAt = &t
	}
	return &e, nil
}

func (s *SQLiteStore) UpsertImage(ctx context.Context, e ImageEntry) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var expiresAt any
	if e.ExpiresAt != nil {
		expiresAt = e.ExpiresAt.Unix()
	}
	hasTransparency := 0
	if e.HasTransparency {
		hasTransparency = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO image_cache (resource_hash, content_hash, created_at, expires_at, source_type, source, has_transparency, width, height, variants)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(resource_hash) DO UPDATE SET
			content_hash = excluded.content_hash,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at,
			source_type = excluded.source_type,
			source = excluded.source,
			has_transparency = excluded.has_transparency,
			width = excluded.width,
			height = excluded.height,
			variants = excluded.variants`,
		e.ResourceHash, e.ContentHash, unixOrZero(e.CreatedAt), expiresAt, e.SourceType, e.Source, hasTransparency, e.Width, e.Height, e.Variants)
	if err != nil {
		return &CacheError{Op: "upsert-image", Err: err}
	}
	return nil
}

func (s *SQLiteStore) InvalidateImage(ctx context.Context, resourceHash string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM image_cache WHERE resource_hash = ?`, resourceHash); err != nil {
		return &CacheError{Op: "invalidate-image", Err: err}
	}
	return nil
}

// =============================================================================
// audio_cache
// =============================================================================

func (s *SQLiteStore) GetAudio(ctx context.Context, resourceHash string) (*AudioEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT resource_hash, content_hash, created_at, source_type, source, format, duration, bitrate, sample_rate, channels, display_name FROM audio_cache WHERE resource_hash = ?`, resourceHash)
	var e AudioEntry
	var createdAt int64
	var displayName sql.NullString
	if err := row.Scan(&e.ResourceHash, &e.ContentHash, &createdAt, &e.SourceType, &e.Source, &e.Format, &e.Duration, &e.Bitrate, &e.SampleRate, &e.Channels, &displayName); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, &CacheError{Op: "get-audio", Err: err}
	}
	e.CreatedAt = time.Unix(createdAt, 0)
	e.DisplayName = displayName.String
	return &e, nil
}

func (s *SQLiteStore) UpsertAudio(ctx context.Context, e AudioEntry) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audio_cache (resource_hash, content_hash, created_at, source_type, source, format, duration, bitrate, sample_rate, channels, display_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(resource_hash) DO UPDATE SET
			content_hash = excluded.content_hash,
			created_at = excluded.created_at,
			source_type = excluded.source_type,
			source = excluded.source,
			format = excluded.format,
			duration = excluded.duration,
			bitrate = excluded.bitrate,
			sample_rate = excluded.sample_rate,
			channels = excluded.channels,
			display_name = excluded.display_name`,
		e.ResourceHash, e.ContentHash, unixOrZero(e.CreatedAt), e.SourceType, e.Source, e.Format, e.Duration, e.Bitrate, e.SampleRate, e.Channels, e.DisplayName)
	if err != nil {
		return &CacheError{Op: "upsert-audio", Err: err}
	}
	return nil
}

// =============================================================================
// llm_cache
// =============================================================================

func (s *SQLiteStore) GetLLM(ctx context.Context, operation, inputHash, model string) (*LLMEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT operation, input_hash, model, response, created_at, expires_at, tokens_used
		FROM llm_cache
		WHERE operation = ? AND input_hash = ? AND model = ? AND expires_at > ?`,
		operation, inputHash, model, time.Now().Unix())
	var e LLMEntry
	var createdAt, expiresAt int64
	var tokensUsed sql.NullInt64
	if err := row.Scan(&e.Operation, &e.InputHash, &e.Model, &e.Response, &createdAt, &expiresAt, &tokensUsed); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // absent or expired: both read as "not present"
		}
		return nil, &CacheError{Op: "get-llm", Err: err}
	}
	e.CreatedAt = time.Unix(createdAt, 0)
	e.ExpiresAt = time.Unix(expiresAt, 0)
	if tokensUsed.Valid {
		n := int(tokensUsed.Int64)
		e.TokensUsed = &n
	}
	return &e, nil
}

func (s *SQLiteStore) UpsertLLM(ctx context.Context, e LLMEntry) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	var tokensUsed any
	if e.TokensUsed != nil {
		tokensUsed = *e.TokensUsed
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO llm_cache (operation, input_hash, model, response, created_at, expires_at, tokens_used)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(operation, input_hash, model) DO UPDATE SET
			response = excluded.response,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at,
			tokens_used = excluded.tokens_used`,
		e.Operation, e.InputHash, e.Model, e.Response, unixOrZero(e.CreatedAt), unixOrZero(e.ExpiresAt), tokensUsed)
	if err != nil {
		return &CacheError{Op: "upsert-llm", Err: err}
	}
	return nil
}

func (s *SQLiteStore) CleanExpiredLLM(ctx context.Context) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	res, err := s.db.ExecContext(ctx, `DELETE FROM llm_cache WHERE expires_at <= ?`, time.Now().Unix())
	if err != nil {
		return 0, &CacheError{Op: "clean-expired-llm", Err: err}
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// =============================================================================
// embedding
// =============================================================================

func packVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func unpackVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

func (s *SQLiteStore) GetEmbedding(ctx context.Context, resourceHash string) (*EmbeddingEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT resource_hash, content_hash, model, dimensions, vector FROM embedding WHERE resource_hash = ?`, resourceHash)
	var e EmbeddingEntry
	var vec []byte
	if err := row.Scan(&e.ResourceHash, &e.ContentHash, &e.Model, &e.Dimensions, &vec); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, &CacheError{Op: "get-embedding", Err: err}
	}
	e.Vector = unpackVector(vec)
	if len(e.Vector) != e.Dimensions {
		return nil, &CacheError{Op: "get-embedding", Err: fmt.Errorf("stored vector has %d floats, expected %d", len(e.Vector), e.Dimensions)}
	}
	return &e, nil
}

func (s *SQLiteStore) UpsertEmbedding(ctx context.Context, e EmbeddingEntry) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO embedding (resource_hash, content_hash, model, dimensions, vector)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(resource_hash) DO UPDATE SET
			content_hash = excluded.content_hash,
			model = excluded.model,
			dimensions = excluded.dimensions,
			vector = excluded.vector`,
		e.ResourceHash, e.ContentHash, e.Model, e.Dimensions, packVector(e.Vector))
	if err != nil {
		return &CacheError{Op: "upsert-embedding", Err: err}
	}
	return nil
}

var _ Store = (*SQLiteStore)(nil)
