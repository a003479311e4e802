// Package fpindex maintains the blocked fingerprint index used to shortlist
// candidates for fuzzy comparison. The index is a recall-oriented prefilter:
// it returns every record sharing at least one fixed-length fingerprint block
// with the query, and leaves precision to the similarity ratio.
package fpindex

import "fmt"

// Default block parameters. A fingerprint is sliced into fixed-length chunks
// and only the first MaxBlocks chunks are indexed; two encodings of the same
// audio diverge mostly in the tail, so the leading blocks carry the recall.
const (
	DefaultBlockSize = 16
	DefaultMaxBlocks = 16
)

// BlockWriter persists block ownership for a record key
type BlockWriter interface {
	ReplaceBlocks(key int64, blocks []string) error
	DeleteBlocks(key int64) error
}

// BlockQuerier retrieves the distinct keys sharing any of the given blocks
type BlockQuerier interface {
	KeysForBlocks(blocks []string) ([]int64, error)
}

// Index derives blocks from fingerprints and maintains them through a
// BlockWriter/BlockQuerier port, so admissions can ride the same transaction
// as the record they belong to.
type Index struct {
	BlockSize int
	MaxBlocks int
}

// New returns an Index with the given parameters, falling back to defaults
// for non-positive values
func New(blockSize, maxBlocks int) Index {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	if maxBlocks <= 0 {
		maxBlocks = DefaultMaxBlocks
	}
	return Index{BlockSize: blockSize, MaxBlocks: maxBlocks}
}

// Blocks derives the index blocks for a fingerprint. The derivation is
// deterministic: the same fingerprint always yields the same blocks, so
// rebuilt entries can never go stale.
func (ix Index) Blocks(fingerprint string) []string {
	var blocks []string
	for i := 0; i < len(fingerprint) && len(blocks) < ix.MaxBlocks; i += ix.BlockSize {
		end := i + ix.BlockSize
		if end > len(fingerprint) {
			end = len(fingerprint)
		}
		blocks = append(blocks, fingerprint[i:end])
	}
	return blocks
}

// Admit (re)writes the blocks for a record's fingerprint. Any blocks
// previously owned by the key are removed first, so a changed fingerprint
// leaves no stale entries behind.
func (ix Index) Admit(w BlockWriter, key int64, fingerprint string) error {
	blocks := ix.Blocks(fingerprint)
	if len(blocks) == 0 {
		return fmt.Errorf("cannot admit empty fingerprint for key %d", key)
	}
	if err := w.ReplaceBlocks(key, blocks); err != nil {
		return fmt.Errorf("failed to admit key %d: %w", key, err)
	}
	return nil
}

// Candidates returns the distinct record keys sharing at least one block
// with the query fingerprint. False positives are expected and resolved by
// the similarity engine; false negatives are the accepted trade-off of
// indexing only the leading blocks.
func (ix Index) Candidates(q BlockQuerier, fingerprint string) ([]int64, error) {
	blocks := ix.Blocks(fingerprint)
	if len(blocks) == 0 {
		return []int64{}, nil
	}
	keys, err := q.KeysForBlocks(blocks)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	return keys, nil
}

// Evict removes all blocks for a key. Used only when a record is permanently
// purged; duplicate-marked records stay admitted so their fingerprint keeps
// matching future copies.
func (ix Index) Evict(w BlockWriter, key int64) error {
	if err := w.DeleteBlocks(key); err != nil {
		return fmt.Errorf("failed to evict key %d: %w", key, err)
	}
	return nil
}
