package store

// schemaSQL mirrors the six logical cache tables described in §3 of the
// specification: document, depends_on, image_cache, audio_cache,
// llm_cache, embedding. Indexes follow the SurrealDB schema this was
// distilled from (original_source/lib/src/cache/schema.rs), translated to
// real SQL DDL for modernc.org/sqlite. Applied idempotently on open.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS document (
	resource_hash   TEXT PRIMARY KEY,
	content_hash    TEXT NOT NULL,
	file_path       TEXT,
	url             TEXT,
	body            BLOB,
	last_validated  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS depends_on (
	from_hash     TEXT NOT NULL,
	to_hash       TEXT NOT NULL,
	reference_type TEXT NOT NULL,
	required      INTEGER NOT NULL,
	PRIMARY KEY (from_hash, to_hash)
);
CREATE INDEX IF NOT EXISTS idx_depends_on_from ON depends_on(from_hash);
CREATE INDEX IF NOT EXISTS idx_depends_on_to ON depends_on(to_hash);

CREATE TABLE IF NOT EXISTS image_cache (
	resource_hash     TEXT PRIMARY KEY,
	content_hash      TEXT NOT NULL,
	created_at        INTEGER NOT NULL,
	expires_at        INTEGER,
	source_type       TEXT NOT NULL,
	source            TEXT NOT NULL,
	has_transparency  INTEGER NOT NULL,
	width             INTEGER NOT NULL,
	height            INTEGER NOT NULL,
	variants          BLOB
);

CREATE TABLE IF NOT EXISTS audio_cache (
	resource_hash TEXT PRIMARY KEY,
	content_hash  TEXT NOT NULL,
	created_at    INTEGER NOT NULL,
	source_type   TEXT NOT NULL,
	source        TEXT NOT NULL,
	format        TEXT NOT NULL,
	duration      REAL NOT NULL,
	bitrate       INTEGER NOT NULL,
	sample_rate   INTEGER NOT NULL,
	channels      INTEGER NOT NULL,
	display_name  TEXT
);

CREATE TABLE IF NOT EXISTS llm_cache (
	operation    TEXT NOT NULL,
	input_hash   TEXT NOT NULL,
	model        TEXT NOT NULL,
	response     TEXT NOT NULL,
	created_at   INTEGER NOT NULL,
	expires_at   INTEGER NOT NULL,
	tokens_used  INTEGER,
	PRIMARY KEY (operation, input_hash, model)
);
CREATE INDEX IF NOT EXISTS idx_llm_lookup ON llm_cache(operation, input_hash, model);

CREATE TABLE IF NOT EXISTS embedding (
	resource_hash TEXT PRIMARY KEY,
	content_hash  TEXT NOT NULL,
	model         TEXT NOT NULL,
	dimensions    INTEGER NOT NULL,
	vector        BLOB NOT NULL
);
`
