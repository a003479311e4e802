// Package match resolves a new fingerprint against the library's history:
// the block index produces a shortlist, the similarity ratio scores it, and
// candidates are ranked with album ownership outranking raw similarity.
package match

import (
	"fmt"
	"sort"

	"github.com/franz/music-dedup/internal/fpindex"
	"github.com/franz/music-dedup/internal/similarity"
)

// Candidate is a historical record that may be the same song as the query
type Candidate struct {
	TrackID     int64
	Path        string
	Fingerprint string
	Similarity  float64
	Quality     int64
	Duplicate   bool
	Owned       bool
	Albums      []string
}

// TrackSource fetches candidate details for a record key. Returning
// (nil, nil) means the key has no backing record; the resolver treats that
// as a cache miss so a corrupted index entry self-heals instead of failing.
type TrackSource interface {
	CandidateTrack(id int64) (*Candidate, error)
}

// Resolver ranks index candidates for a query fingerprint
type Resolver struct {
	Index  fpindex.Index
	Blocks fpindex.BlockQuerier
	Tracks TrackSource
	Floor  float64 // minimum similarity to qualify
}

// Resolve returns candidates at or above the similarity floor, ranked with
// owned candidates first (a candidate is owned when it shares a release with
// ctxAlbums), then by similarity descending. The result is never nil.
func (r *Resolver) Resolve(fingerprint string, ctxAlbums map[string]bool) ([]Candidate, error) {
	result := []Candidate{}
	if fingerprint == "" {
		return result, nil
	}

	keys, err := r.Index.Candidates(r.Blocks, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("failed to shortlist candidates: %w", err)
	}

	for _, key := range keys {
		cand, err := r.Tracks.CandidateTrack(key)
		if err != nil {
			return nil, fmt.Errorf("failed to load candidate %d: %w", key, err)
		}
		if cand == nil || cand.Fingerprint == "" {
			// Index entry without a backing record: treat as a miss
			continue
		}

		cand.Similarity = similarity.Ratio(fingerprint, cand.Fingerprint)
		if cand.Similarity < r.Floor {
			continue
		}

		for _, release := range cand.Albums {
			if ctxAlbums[release] {
				cand.Owned = true
				break
			}
		}

		result = append(result, *cand)
	}

	// Ownership outranks raw similarity; path breaks exact ties so the
	// order is deterministic.
	sort.Slice(result, func(i, j int) bool {
		if result[i].Owned != result[j].Owned {
			return result[i].Owned
		}
		if result[i].Similarity != result[j].Similarity {
			return result[i].Similarity > result[j].Similarity
		}
		return result[i].Path < result[j].Path
	})

	return result, nil
}
