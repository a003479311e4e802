package store

import (
	"fmt"
	"strings"
)

// KeysForBlocks returns the distinct track IDs owning at least one of the
// given blocks. Order is unspecified; callers rank the results themselves.
func (s *Store) KeysForBlocks(blocks []string) ([]int64, error) {
	if len(blocks) == 0 {
		return []int64{}, nil
	}

	placeholders := strings.Repeat("?,", len(blocks)-1) + "?"
	args := make([]any, len(blocks))
	for i, b := range blocks {
		args[i] = b
	}

	rows, err := s.db.Query(
		"SELECT DISTINCT track_id FROM fingerprint_blocks WHERE block IN ("+placeholders+")",
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query blocks: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan track ID: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// BlocksForKey returns the blocks currently stored for a track
func (s *Store) BlocksForKey(trackID int64) ([]string, error) {
	rows, err := s.db.Query(
		"SELECT block FROM fingerprint_blocks WHERE track_id = ?", trackID)
	if err != nil {
		return nil, fmt.Errorf("failed to query blocks: %w", err)
	}
	defer rows.Close()

	var blocks []string
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, fmt.Errorf("failed to scan block: %w", err)
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

// ReplaceBlocks deletes any blocks owned by the track and inserts the new
// set, so re-fingerprinting never leaves stale index entries.
func (tx *Tx) ReplaceBlocks(trackID int64, blocks []string) error {
	if err := tx.DeleteBlocks(trackID); err != nil {
		return err
	}

	for _, b := range blocks {
		_, err := tx.tx.Exec(
			"INSERT INTO fingerprint_blocks (block, track_id) VALUES (?, ?)",
			b, trackID)
		if err != nil {
			return fmt.Errorf("failed to insert block: %w", err)
		}
	}
	return nil
}

// DeleteBlocks removes all blocks owned by a track
func (tx *Tx) DeleteBlocks(trackID int64) error {
	_, err := tx.tx.Exec(
		"DELETE FROM fingerprint_blocks WHERE track_id = ?", trackID)
	if err != nil {
		return fmt.Errorf("failed to delete blocks: %w", err)
	}
	return nil
}
