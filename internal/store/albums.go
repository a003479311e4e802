package store

import (
	"database/sql"
	"fmt"
)

// AlbumIDsForTrack returns the release IDs a track is associated with
func (s *Store) AlbumIDsForTrack(trackID int64) ([]string, error) {
	rows, err := s.db.Query(
		"SELECT release_id FROM track_albums WHERE track_id = ?", trackID)
	if err != nil {
		return nil, fmt.Errorf("failed to query track albums: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan release ID: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetAlbum retrieves an album by release ID, or nil if unknown
func (s *Store) GetAlbum(releaseID string) (*Album, error) {
	a := &Album{}
	err := s.db.QueryRow(`
		SELECT release_id, COALESCE(artist, ''), COALESCE(title, '')
		FROM albums WHERE release_id = ?
	`, releaseID).Scan(&a.ReleaseID, &a.Artist, &a.Title)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get album: %w", err)
	}
	return a, nil
}

// UpsertAlbum inserts or updates an album
func (tx *Tx) UpsertAlbum(a *Album) error {
	_, err := tx.tx.Exec(`
		INSERT INTO albums (release_id, artist, title) VALUES (?, ?, ?)
		ON CONFLICT(release_id) DO UPDATE SET
			artist = excluded.artist,
			title = excluded.title
	`, a.ReleaseID, a.Artist, a.Title)
	if err != nil {
		return fmt.Errorf("failed to upsert album: %w", err)
	}
	return nil
}

// LinkTrackAlbum associates a track with a release
func (tx *Tx) LinkTrackAlbum(trackID int64, releaseID string) error {
	_, err := tx.tx.Exec(`
		INSERT OR IGNORE INTO track_albums (track_id, release_id) VALUES (?, ?)
	`, trackID, releaseID)
	if err != nil {
		return fmt.Errorf("failed to link track to album: %w", err)
	}
	return nil
}
