// ABOUTME: SQLite schema for a movie vector collection
// ABOUTME: One row per embedding entry plus a key/value table for collection metadata
package sqlite

// SchemaVersion is stored in PRAGMA user_version
const SchemaVersion = 1

// Schema creates the collection tables. Missing metadata uses the same
// sentinels as the records: -1 for year and '' for rating.
const Schema = `
CREATE TABLE IF NOT EXISTS movies (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL DEFAULT '',
	content_type TEXT NOT NULL DEFAULT '',
	release_year INTEGER NOT NULL DEFAULT -1,
	rating       TEXT NOT NULL DEFAULT '',
	document     TEXT NOT NULL,
	content_hash TEXT NOT NULL DEFAULT '',
	vector       BLOB NOT NULL,
	updated_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_movies_year ON movies(release_year);
CREATE INDEX IF NOT EXISTS idx_movies_rating ON movies(rating);
CREATE INDEX IF NOT EXISTS idx_movies_type ON movies(content_type);

CREATE TABLE IF NOT EXISTS collection_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`
