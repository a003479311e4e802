package store

// Schema v1 - Initial database schema
const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Known audio files. Losers of a duplicate resolution keep their row with
-- duplicate=1 so their fingerprint remains matchable history.
CREATE TABLE IF NOT EXISTS tracks (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  path TEXT UNIQUE NOT NULL,
  fingerprint TEXT NOT NULL DEFAULT '',
  quality_score INTEGER NOT NULL DEFAULT 0,
  format TEXT,
  bitrate INTEGER,
  sample_rate INTEGER,
  bit_depth INTEGER,
  size_bytes INTEGER,
  mtime_unix INTEGER,
  duration_sec INTEGER,
  duplicate INTEGER NOT NULL DEFAULT 0,
  first_seen_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  last_update_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_tracks_duplicate ON tracks(duplicate);

-- Fixed-length fingerprint prefix blocks, the coarse candidate index.
-- Fully regenerated whenever a track's fingerprint is (re)written.
CREATE TABLE IF NOT EXISTS fingerprint_blocks (
  block TEXT NOT NULL,
  track_id INTEGER NOT NULL REFERENCES tracks(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_blocks_block ON fingerprint_blocks(block);
CREATE INDEX IF NOT EXISTS idx_blocks_track ON fingerprint_blocks(track_id);

-- Releases and the track<->release join. The same song may legitimately
-- exist once per album while still being deduplicated within an album.
CREATE TABLE IF NOT EXISTS albums (
  release_id TEXT PRIMARY KEY,
  artist TEXT,
  title TEXT
);

CREATE TABLE IF NOT EXISTS track_albums (
  track_id INTEGER NOT NULL REFERENCES tracks(id) ON DELETE CASCADE,
  release_id TEXT NOT NULL REFERENCES albums(release_id) ON DELETE CASCADE,
  PRIMARY KEY (track_id, release_id)
);

CREATE INDEX IF NOT EXISTS idx_track_albums_release ON track_albums(release_id);
`
