package match

import (
	"strings"
	"testing"

	"github.com/franz/music-dedup/internal/fpindex"
)

// fakeTracks is an in-memory TrackSource
type fakeTracks map[int64]*Candidate

func (f fakeTracks) CandidateTrack(id int64) (*Candidate, error) {
	c, ok := f[id]
	if !ok {
		return nil, nil
	}
	// Copy so the resolver's mutations don't leak between calls
	cp := *c
	return &cp, nil
}

func newTestResolver(tracks fakeTracks, floor float64) (*Resolver, *fpindex.MemStore) {
	ms := fpindex.NewMemStore()
	return &Resolver{
		Index:  fpindex.New(4, 16),
		Blocks: ms,
		Tracks: tracks,
		Floor:  floor,
	}, ms
}

func admit(t *testing.T, r *Resolver, ms *fpindex.MemStore, id int64, fp string) {
	t.Helper()
	if err := r.Index.Admit(ms, id, fp); err != nil {
		t.Fatalf("admit failed: %v", err)
	}
}

func TestResolveEmptyNeverNil(t *testing.T) {
	r, _ := newTestResolver(fakeTracks{}, 0.85)

	got, err := r.Resolve("aaaabbbbccccdddd", nil)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got == nil {
		t.Fatal("resolve returned nil, expected empty slice")
	}
	if len(got) != 0 {
		t.Errorf("expected no candidates, got %d", len(got))
	}

	got, err = r.Resolve("", nil)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("empty fingerprint should resolve to empty slice, got %v", got)
	}
}

func TestResolveRanksBySimilarity(t *testing.T) {
	base := strings.Repeat("abcdefgh", 8)
	near := base[:60] + "XXXX"               // high similarity
	far := base[:24] + strings.Repeat("z", 40) // shares leading blocks only

	tracks := fakeTracks{
		1: {TrackID: 1, Path: "/music/near.flac", Fingerprint: near},
		2: {TrackID: 2, Path: "/music/far.mp3", Fingerprint: far},
	}
	r, ms := newTestResolver(tracks, 0.1)
	admit(t, r, ms, 1, near)
	admit(t, r, ms, 2, far)

	got, err := r.Resolve(base, nil)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].TrackID != 1 {
		t.Errorf("expected highest-similarity candidate first, got track %d", got[0].TrackID)
	}
	if got[0].Similarity < got[1].Similarity {
		t.Errorf("candidates not sorted by similarity: %v then %v",
			got[0].Similarity, got[1].Similarity)
	}
}

func TestResolveFloorFiltersNoise(t *testing.T) {
	base := strings.Repeat("abcdefgh", 8)
	noise := base[:8] + strings.Repeat("9", 56) // shares one block, low ratio

	tracks := fakeTracks{
		1: {TrackID: 1, Path: "/music/noise.mp3", Fingerprint: noise},
	}
	r, ms := newTestResolver(tracks, 0.85)
	admit(t, r, ms, 1, noise)

	got, err := r.Resolve(base, nil)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected low-similarity candidate filtered, got %v", got)
	}
}

func TestResolveOwnershipOutranksSimilarity(t *testing.T) {
	base := strings.Repeat("abcdefgh", 8)
	closer := base[:60] + "XXXX"
	owned := base[:56] + "XXXXYYYY"

	tracks := fakeTracks{
		1: {TrackID: 1, Path: "/music/closer.flac", Fingerprint: closer},
		2: {TrackID: 2, Path: "/music/owned.flac", Fingerprint: owned,
			Albums: []string{"rel-123"}},
	}
	r, ms := newTestResolver(tracks, 0.1)
	admit(t, r, ms, 1, closer)
	admit(t, r, ms, 2, owned)

	got, err := r.Resolve(base, map[string]bool{"rel-123": true})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].TrackID != 2 || !got[0].Owned {
		t.Errorf("expected owned candidate ranked first despite lower similarity, got track %d (owned=%v)",
			got[0].TrackID, got[0].Owned)
	}
}

func TestResolveSelfHealsMissingRecord(t *testing.T) {
	base := strings.Repeat("abcdefgh", 8)

	// Block entries point at a record the source no longer has
	r, ms := newTestResolver(fakeTracks{}, 0.1)
	admit(t, r, ms, 99, base)

	got, err := r.Resolve(base, nil)
	if err != nil {
		t.Fatalf("expected corrupted index entry to be skipped, got error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected orphaned entry ignored, got %v", got)
	}
}

func TestResolveGhostMatch(t *testing.T) {
	// A duplicate-marked record must still be discoverable
	base := strings.Repeat("abcdefgh", 8)
	ghost := base[:60] + "XXXX"

	tracks := fakeTracks{
		7: {TrackID: 7, Path: "/dups/ghost.mp3", Fingerprint: ghost, Duplicate: true},
	}
	r, ms := newTestResolver(tracks, 0.5)
	admit(t, r, ms, 7, ghost)

	got, err := r.Resolve(base, nil)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(got) != 1 || got[0].TrackID != 7 {
		t.Fatalf("expected duplicate-marked record as candidate, got %v", got)
	}
	if !got[0].Duplicate {
		t.Error("candidate should carry its duplicate flag")
	}
}
