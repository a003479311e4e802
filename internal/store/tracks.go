package store

import (
	"database/sql"
	"fmt"
)

const trackColumns = `
	id, path, fingerprint, quality_score,
	COALESCE(format, ''), COALESCE(bitrate, 0), COALESCE(sample_rate, 0),
	COALESCE(bit_depth, 0), COALESCE(size_bytes, 0), COALESCE(mtime_unix, 0),
	COALESCE(duration_sec, 0), duplicate, first_seen_at, last_update_at`

func scanTrack(row interface{ Scan(...any) error }) (*Track, error) {
	t := &Track{}
	err := row.Scan(
		&t.ID, &t.Path, &t.Fingerprint, &t.QualityScore,
		&t.Format, &t.Bitrate, &t.SampleRate,
		&t.BitDepth, &t.SizeBytes, &t.MtimeUnix,
		&t.DurationSec, &t.Duplicate, &t.FirstSeenAt, &t.LastUpdate,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetTrackByPath retrieves a track by its path, or nil if unknown
func (s *Store) GetTrackByPath(path string) (*Track, error) {
	t, err := scanTrack(s.db.QueryRow(
		"SELECT"+trackColumns+" FROM tracks WHERE path = ?", path))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get track: %w", err)
	}
	return t, nil
}

// GetTrackByID retrieves a track by its ID, or nil if unknown
func (s *Store) GetTrackByID(id int64) (*Track, error) {
	t, err := scanTrack(s.db.QueryRow(
		"SELECT"+trackColumns+" FROM tracks WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get track: %w", err)
	}
	return t, nil
}

// GetAllTracks retrieves all tracks ordered by ID
func (s *Store) GetAllTracks() ([]*Track, error) {
	rows, err := s.db.Query("SELECT" + trackColumns + " FROM tracks ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// CountTracks returns (unique, duplicate) track counts and total sizes in bytes
func (s *Store) CountTracks() (uniqueCount, dupCount int, uniqueBytes, dupBytes int64, err error) {
	err = s.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(size_bytes), 0)
		FROM tracks WHERE duplicate = 0
	`).Scan(&uniqueCount, &uniqueBytes)
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("failed to count unique tracks: %w", err)
	}

	err = s.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(size_bytes), 0)
		FROM tracks WHERE duplicate = 1
	`).Scan(&dupCount, &dupBytes)
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("failed to count duplicate tracks: %w", err)
	}

	return uniqueCount, dupCount, uniqueBytes, dupBytes, nil
}

// UpsertTrack inserts or updates a track by path and fills in its ID
func (tx *Tx) UpsertTrack(t *Track) error {
	_, err := tx.tx.Exec(`
		INSERT INTO tracks (path, fingerprint, quality_score, format, bitrate,
			sample_rate, bit_depth, size_bytes, mtime_unix, duration_sec, duplicate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			quality_score = excluded.quality_score,
			format = excluded.format,
			bitrate = excluded.bitrate,
			sample_rate = excluded.sample_rate,
			bit_depth = excluded.bit_depth,
			size_bytes = excluded.size_bytes,
			mtime_unix = excluded.mtime_unix,
			duration_sec = excluded.duration_sec,
			duplicate = excluded.duplicate,
			last_update_at = CURRENT_TIMESTAMP
	`, t.Path, t.Fingerprint, t.QualityScore, t.Format, t.Bitrate,
		t.SampleRate, t.BitDepth, t.SizeBytes, t.MtimeUnix, t.DurationSec, t.Duplicate)
	if err != nil {
		return fmt.Errorf("failed to upsert track: %w", err)
	}

	err = tx.tx.QueryRow("SELECT id FROM tracks WHERE path = ?", t.Path).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("failed to get track ID: %w", err)
	}
	return nil
}

// MarkDuplicate flags a track as a duplicate and records where its file
// went. The row and its index blocks are retained for match history.
func (tx *Tx) MarkDuplicate(trackID int64, newPath string) error {
	_, err := tx.tx.Exec(`
		UPDATE tracks SET duplicate = 1, path = ?, last_update_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, newPath, trackID)
	if err != nil {
		return fmt.Errorf("failed to mark duplicate: %w", err)
	}
	return nil
}

// ClearDuplicate unmarks a track, used when the operator declares two
// similar records to be distinct songs.
func (tx *Tx) ClearDuplicate(trackID int64) error {
	_, err := tx.tx.Exec(`
		UPDATE tracks SET duplicate = 0, last_update_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, trackID)
	if err != nil {
		return fmt.Errorf("failed to clear duplicate flag: %w", err)
	}
	return nil
}

// DeleteTrack permanently removes a track row. Only the prune command uses
// this; the scan pipeline never hard-deletes.
func (tx *Tx) DeleteTrack(trackID int64) error {
	_, err := tx.tx.Exec("DELETE FROM tracks WHERE id = ?", trackID)
	if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}
	return nil
}
