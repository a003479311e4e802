package scan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/franz/music-dedup/internal/decide"
	"github.com/franz/music-dedup/internal/fpindex"
	"github.com/franz/music-dedup/internal/lookup"
	"github.com/franz/music-dedup/internal/meta"
	"github.com/franz/music-dedup/internal/prompt"
	"github.com/franz/music-dedup/internal/quality"
	"github.com/franz/music-dedup/internal/store"
)

// fakeFingerprinter returns canned fingerprints and counts invocations
type fakeFingerprinter struct {
	calls int
	fps   map[string]string
}

func (f *fakeFingerprinter) Fingerprint(_ context.Context, path string) (int, string, error) {
	f.calls++
	return 120, f.fps[path], nil
}

// statsFor builds a StatsExtractor with fixed audio properties and real
// filesystem size/mtime
func statsFor(format string, bitDepth, sampleRate, bitrate int) StatsExtractor {
	return func(path string) (*meta.TrackStats, error) {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		return &meta.TrackStats{
			Format:     format,
			BitDepth:   bitDepth,
			SampleRate: sampleRate,
			Bitrate:    bitrate,
			SizeBytes:  info.Size(),
			MtimeUnix:  info.ModTime().Unix(),
		}, nil
	}
}

func writeAudioFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("not really audio"), 0o644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	return path
}

type testEnv struct {
	store *store.Store
	fp    *fakeFingerprinter
	ctrl  *Controller
	dir   string
}

func newTestEnv(t *testing.T, prompter decide.Prompter, stats StatsExtractor) *testEnv {
	t.Helper()
	dir := t.TempDir()

	db, err := store.Open(filepath.Join(dir, "tracks.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	fp := &fakeFingerprinter{fps: make(map[string]string)}
	ctrl, err := New(&Config{
		Store:         db,
		Index:         fpindex.New(16, 16),
		Thresholds:    decide.DefaultThresholds(),
		Prompter:      prompter,
		Fingerprinter: fp,
		Stats:         stats,
		DupDir:        filepath.Join(dir, "dups"),
	})
	if err != nil {
		t.Fatalf("failed to create controller: %v", err)
	}

	return &testEnv{store: db, fp: fp, ctrl: ctrl, dir: dir}
}

// seedTrack inserts a known track with an admitted fingerprint
func (e *testEnv) seedTrack(t *testing.T, path, fingerprint string, score int64) int64 {
	t.Helper()
	track := &store.Track{
		Path:         path,
		Fingerprint:  fingerprint,
		QualityScore: score,
		Format:       "flac",
		SizeBytes:    100,
		MtimeUnix:    1,
	}
	err := e.store.Transaction(func(tx *store.Tx) error {
		if err := tx.UpsertTrack(track); err != nil {
			return err
		}
		return e.ctrl.index.Admit(tx, track.ID, fingerprint)
	})
	if err != nil {
		t.Fatalf("failed to seed track: %v", err)
	}
	return track.ID
}

const baseFP = "AQADtEmSJEmSJEmSAQADtEmSJEmSJEmSAQADtEmSJEmSJEmSAQADtEmSJEmSJEmS" +
	"AQADtEmSJEmSJEmSAQADtEmSJEmSJEmSAQADtEmSJEmSJEmSAQADtEmSJEmSJEmS"

// nearFP shares the leading blocks of baseFP but diverges in the tail,
// landing between the ask and auto thresholds
var nearFP = baseFP[:120] + "XXXXXXXX"

func TestUnchangedFileIsNotRefingerprinted(t *testing.T) {
	env := newTestEnv(t, nil, statsFor("flac", 16, 44100, 0))
	path := writeAudioFile(t, env.dir, "song.flac")
	env.fp.fps[path] = baseFP

	result := &Result{}
	if err := env.ctrl.ProcessFile(context.Background(), path, result); err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	if env.fp.calls != 1 || result.Unique != 1 {
		t.Fatalf("first pass: calls=%d unique=%d", env.fp.calls, result.Unique)
	}

	// Second pass over the same unmodified file must skip the fingerprinter
	if err := env.ctrl.ProcessFile(context.Background(), path, result); err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if env.fp.calls != 1 {
		t.Errorf("unchanged file was re-fingerprinted (%d calls)", env.fp.calls)
	}
	if result.Skipped != 1 {
		t.Errorf("expected 1 skip, got %d", result.Skipped)
	}
}

func TestEmptyFileRejected(t *testing.T) {
	env := newTestEnv(t, nil, statsFor("flac", 16, 44100, 0))
	path := filepath.Join(env.dir, "empty.flac")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("failed to write empty file: %v", err)
	}

	result := &Result{}
	if err := env.ctrl.ProcessFile(context.Background(), path, result); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if env.fp.calls != 0 {
		t.Error("empty file should not be fingerprinted")
	}
	if result.Skipped != 1 {
		t.Errorf("expected empty file skipped, got %+v", result)
	}
}

func TestAutoLoseArchivesNewFile(t *testing.T) {
	// Stored lossless track vs identical-fingerprint lossy newcomer
	env := newTestEnv(t, nil, statsFor("mp3", 0, 44100, 320_000))
	keptPath := writeAudioFile(t, env.dir, "kept.flac")
	env.seedTrack(t, keptPath, baseFP, quality.Score("flac", 16, 44100, 0))

	newPath := writeAudioFile(t, env.dir, "incoming.mp3")
	env.fp.fps[newPath] = baseFP

	result := &Result{}
	if err := env.ctrl.ProcessFile(context.Background(), newPath, result); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if result.AutoLoses != 1 {
		t.Fatalf("expected auto-lose, got %+v", result)
	}

	// Newcomer moved to the duplicate directory
	if _, err := os.Stat(newPath); !os.IsNotExist(err) {
		t.Error("losing file should have been moved out of the library")
	}
	archived := filepath.Join(env.dir, "dups", "incoming.mp3")
	if _, err := os.Stat(archived); err != nil {
		t.Errorf("expected archived file at %s: %v", archived, err)
	}

	// Loser keeps a duplicate-flagged row so its fingerprint stays known
	track, err := env.store.GetTrackByPath(archived)
	if err != nil || track == nil {
		t.Fatalf("expected duplicate row for archived file: %v", err)
	}
	if !track.Duplicate {
		t.Error("archived newcomer should be marked duplicate")
	}

	// Kept track unchanged
	kept, err := env.store.GetTrackByPath(keptPath)
	if err != nil || kept == nil || kept.Duplicate {
		t.Errorf("kept track should remain non-duplicate: %+v (%v)", kept, err)
	}
}

func TestAutoWinReplacesStoredTrack(t *testing.T) {
	// Stored lossy track vs identical-fingerprint lossless newcomer
	env := newTestEnv(t, nil, statsFor("flac", 24, 96000, 0))
	oldPath := writeAudioFile(t, env.dir, "old.mp3")
	oldID := env.seedTrack(t, oldPath, baseFP, quality.Score("mp3", 0, 44100, 128_000))

	newPath := writeAudioFile(t, env.dir, "better.flac")
	env.fp.fps[newPath] = baseFP

	result := &Result{}
	if err := env.ctrl.ProcessFile(context.Background(), newPath, result); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if result.AutoWins != 1 {
		t.Fatalf("expected auto-win, got %+v", result)
	}

	// Old file archived, its row marked duplicate with the new location
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Error("replaced file should have been moved out of the library")
	}
	old, err := env.store.GetTrackByID(oldID)
	if err != nil || old == nil {
		t.Fatalf("old row must survive as match history: %v", err)
	}
	if !old.Duplicate {
		t.Error("replaced track should be marked duplicate")
	}
	if old.Path == oldPath {
		t.Error("duplicate row should record the archived location")
	}

	// Winner stored as a regular track
	winner, err := env.store.GetTrackByPath(newPath)
	if err != nil || winner == nil || winner.Duplicate {
		t.Errorf("winner should be a non-duplicate track: %+v (%v)", winner, err)
	}
}

func TestAmbiguousMatchWritesNothing(t *testing.T) {
	// Mid-tier similarity with no prompter leaves the file unresolved
	env := newTestEnv(t, nil, statsFor("flac", 16, 44100, 0))
	keptPath := writeAudioFile(t, env.dir, "kept.flac")
	env.seedTrack(t, keptPath, baseFP, quality.Score("flac", 16, 44100, 0))

	newPath := writeAudioFile(t, env.dir, "maybe.flac")
	env.fp.fps[newPath] = nearFP

	result := &Result{}
	if err := env.ctrl.ProcessFile(context.Background(), newPath, result); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if result.Ambiguous != 1 {
		t.Fatalf("expected ambiguous outcome, got %+v", result)
	}

	// No row, no move: the file is retried on the next run
	track, err := env.store.GetTrackByPath(newPath)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if track != nil {
		t.Error("unresolved file must not be recorded")
	}
	if _, err := os.Stat(newPath); err != nil {
		t.Error("unresolved file must stay in place")
	}
}

func TestDistinctVerdictKeepsBoth(t *testing.T) {
	// Operator declares the mid-tier match a different song
	prompter := prompt.NewScript(&decide.PromptResponse{Choice: decide.ChoiceDistinct})
	env := newTestEnv(t, prompter, statsFor("flac", 16, 44100, 0))

	keptPath := writeAudioFile(t, env.dir, "kept.flac")
	env.seedTrack(t, keptPath, baseFP, quality.Score("flac", 16, 44100, 0))

	newPath := writeAudioFile(t, env.dir, "different.flac")
	env.fp.fps[newPath] = nearFP

	result := &Result{}
	if err := env.ctrl.ProcessFile(context.Background(), newPath, result); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if result.Distinct != 1 {
		t.Fatalf("expected distinct outcome, got %+v", result)
	}

	// Both files stay, both rows non-duplicate
	for _, p := range []string{keptPath, newPath} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("file %s should stay in place: %v", p, err)
		}
		track, err := env.store.GetTrackByPath(p)
		if err != nil || track == nil {
			t.Fatalf("expected row for %s: %v", p, err)
		}
		if track.Duplicate {
			t.Errorf("%s should not be marked duplicate", p)
		}
	}
}

func TestRunWalksOnlyAudioFiles(t *testing.T) {
	env := newTestEnv(t, nil, statsFor("flac", 16, 44100, 0))
	lib := filepath.Join(env.dir, "library")
	if err := os.MkdirAll(lib, 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}

	song := writeAudioFile(t, lib, "song.flac")
	env.fp.fps[song] = baseFP
	if err := os.WriteFile(filepath.Join(lib, "cover.jpg"), []byte("img"), 0o644); err != nil {
		t.Fatalf("failed to write non-audio file: %v", err)
	}

	result, err := env.ctrl.Run(context.Background(), lib)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.FilesSeen != 1 {
		t.Errorf("expected 1 audio file seen, got %d", result.FilesSeen)
	}
	if result.Unique != 1 {
		t.Errorf("expected 1 unique track, got %+v", result)
	}
}

// fakeTagResolver returns the same tags for every fingerprint
type fakeTagResolver struct {
	tags *lookup.Tags
}

func (f *fakeTagResolver) Lookup(_ context.Context, _ string, _ int) (*lookup.Tags, error) {
	return f.tags, nil
}

func TestUniqueWinnerOrganizedUnderArtistAlbum(t *testing.T) {
	env := newTestEnv(t, nil, statsFor("flac", 16, 44100, 0))
	libDir := filepath.Join(env.dir, "library")
	env.ctrl.libraryDir = libDir
	env.ctrl.tags = &fakeTagResolver{tags: &lookup.Tags{
		Artist:    "Some Artist",
		Album:     "Some Album",
		ReleaseID: "rel-1",
	}}

	path := writeAudioFile(t, env.dir, "dropzone.flac")
	env.fp.fps[path] = baseFP

	result := &Result{}
	if err := env.ctrl.ProcessFile(context.Background(), path, result); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if result.Unique != 1 {
		t.Fatalf("expected unique outcome, got %+v", result)
	}

	organized := filepath.Join(libDir, "Some Artist", "Some Album", "dropzone.flac")
	if _, err := os.Stat(organized); err != nil {
		t.Fatalf("expected organized file at %s: %v", organized, err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("original file should have been moved")
	}

	// Row records the organized location and the release link
	track, err := env.store.GetTrackByPath(organized)
	if err != nil || track == nil {
		t.Fatalf("expected row at organized path: %v", err)
	}
	albums, err := env.store.AlbumIDsForTrack(track.ID)
	if err != nil {
		t.Fatalf("album lookup failed: %v", err)
	}
	if len(albums) != 1 || albums[0] != "rel-1" {
		t.Errorf("expected release link [rel-1], got %v", albums)
	}
}

// failingFingerprinter rejects every file
type failingFingerprinter struct{}

func (failingFingerprinter) Fingerprint(_ context.Context, _ string) (int, string, error) {
	return 0, "", fmt.Errorf("decode failed")
}

func TestUnreadableInputIsSkippedNotFatal(t *testing.T) {
	env := newTestEnv(t, nil, statsFor("flac", 16, 44100, 0))
	env.ctrl.fingerprinter = failingFingerprinter{}
	writeAudioFile(t, env.dir, "corrupt.flac")

	result, err := env.ctrl.Run(context.Background(), env.dir)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.Skipped != 1 {
		t.Errorf("expected unfingerprintable file to be skipped, got %+v", result)
	}
	if len(result.Errors) != 0 {
		t.Errorf("skip must not count as an error, got %v", result.Errors)
	}
}

func TestNearFingerprintLandsInAskBand(t *testing.T) {
	// Sanity-check the fixture: nearFP must sit between ask and auto
	lcs := 120.0
	ratio := 2 * lcs / float64(len(baseFP)+len(nearFP))
	th := decide.DefaultThresholds()
	if ratio < th.Ask || ratio >= th.Auto {
		t.Fatalf("fixture ratio %.4f outside (%v, %v)", ratio, th.Ask, th.Auto)
	}
	if !strings.HasPrefix(nearFP, baseFP[:16]) {
		t.Fatal("fixture must share the leading index block")
	}
}
