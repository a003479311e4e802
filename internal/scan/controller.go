// Package scan drives the dedup pipeline: walk the library, fingerprint
// what changed, resolve each file against the known collection, and commit
// the verdict. Files whose size and mtime are unchanged since the last run
// are skipped without touching the audio data.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/franz/music-dedup/internal/decide"
	"github.com/franz/music-dedup/internal/fpindex"
	"github.com/franz/music-dedup/internal/lookup"
	"github.com/franz/music-dedup/internal/match"
	"github.com/franz/music-dedup/internal/meta"
	"github.com/franz/music-dedup/internal/quality"
	"github.com/franz/music-dedup/internal/report"
	"github.com/franz/music-dedup/internal/store"
	"github.com/franz/music-dedup/internal/util"
)

// AudioExtensions are the default supported audio file extensions
var AudioExtensions = []string{
	".mp3",
	".flac",
	".m4a",
	".aac",
	".ogg",
	".opus",
	".wav",
	".aiff",
	".aif",
	".wma",
	".ape",
	".wv",
}

// Fingerprinter computes the acoustic fingerprint for a file
type Fingerprinter interface {
	Fingerprint(ctx context.Context, path string) (durationSec int, fingerprint string, err error)
}

// StatsExtractor gathers audio properties and tags for a file
type StatsExtractor func(path string) (*meta.TrackStats, error)

// TagResolver fetches canonical tags for a fingerprint. Optional; lookups
// are best effort and never fail a scan.
type TagResolver interface {
	Lookup(ctx context.Context, fingerprint string, durationSec int) (*lookup.Tags, error)
}

// Config holds controller configuration
type Config struct {
	Store         *store.Store
	Index         fpindex.Index
	Thresholds    decide.Thresholds
	Prompter      decide.Prompter
	Fingerprinter Fingerprinter
	Stats         StatsExtractor
	Tags          TagResolver

	// DupDir is where losing files are moved; empty leaves files in place
	DupDir string
	// LibraryDir is where winners are filed under Artist/Album once their
	// tags resolve; empty leaves files where they are
	LibraryDir string
	DryRun     bool

	AdditionalExts []string
	Logger         *report.EventLogger
}

// Controller runs the pipeline over a directory tree
type Controller struct {
	store   *store.Store
	index   fpindex.Index
	machine *decide.Machine

	fingerprinter Fingerprinter
	stats         StatsExtractor
	tags          TagResolver

	extensions map[string]bool
	dupDir     string
	libraryDir string
	dryRun     bool
	logger     *report.EventLogger
}

// New creates a scan controller
func New(cfg *Config) (*Controller, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required: %w", util.ErrInvalidConfig)
	}
	if cfg.Fingerprinter == nil {
		return nil, fmt.Errorf("fingerprinter is required: %w", util.ErrInvalidConfig)
	}
	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, err
	}

	extMap := make(map[string]bool)
	for _, ext := range AudioExtensions {
		extMap[strings.ToLower(ext)] = true
	}
	for _, ext := range cfg.AdditionalExts {
		extMap[strings.ToLower(ext)] = true
	}

	stats := cfg.Stats
	if stats == nil {
		stats = meta.ExtractStats
	}

	return &Controller{
		store:         cfg.Store,
		index:         cfg.Index,
		machine:       decide.NewMachine(cfg.Thresholds, cfg.Prompter),
		fingerprinter: cfg.Fingerprinter,
		stats:         stats,
		tags:          cfg.Tags,
		extensions:    extMap,
		dupDir:        cfg.DupDir,
		libraryDir:    cfg.LibraryDir,
		dryRun:        cfg.DryRun,
		logger:        cfg.Logger,
	}, nil
}

// Result represents the outcome counts of one run
type Result struct {
	FilesSeen int
	Skipped   int
	Unique    int
	AutoWins  int
	AutoLoses int
	Distinct  int
	Ambiguous int
	Errors    []error
}

// Run walks the source directory and processes every audio file. Files are
// handled one at a time: verdicts can prompt the operator and the sticky
// album context depends on processing order.
func (c *Controller) Run(ctx context.Context, sourcePath string) (*Result, error) {
	util.InfoLog("Starting scan of: %s", sourcePath)

	paths, err := c.collectAudioFiles(ctx, sourcePath)
	if err != nil {
		return nil, err
	}
	util.InfoLog("Found %d audio files", len(paths))

	result := &Result{Errors: make([]error, 0)}

	var bar *progressbar.ProgressBar
	if util.IsTerminal(os.Stdout.Fd()) && !util.IsQuiet() {
		bar = progressbar.NewOptions(len(paths),
			progressbar.OptionSetDescription("Scanning"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("files"),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}

	for _, path := range paths {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		if err := c.ProcessFile(ctx, path, result); err != nil {
			if errors.Is(err, util.ErrInputSkipped) {
				// Unreadable or unprobeable input is skipped, not fatal
				util.WarnLog("Skipping %s: %v", path, err)
				if c.logger != nil {
					c.logger.LogSkip(path, err.Error())
				}
				result.Skipped++
			} else {
				util.ErrorLog("Failed to process %s: %v", path, err)
				result.Errors = append(result.Errors, fmt.Errorf("%s: %w", path, err))
				if c.logger != nil {
					c.logger.LogError(report.EventScan, path, err)
				}
			}
		}
		result.FilesSeen++
		if bar != nil {
			bar.Add(1)
		}
	}

	if bar != nil {
		bar.Finish()
	}

	util.SuccessLog("Scan complete: %d files (%d skipped, %d unique, %d won, %d lost, %d distinct, %d unresolved, %d errors)",
		result.FilesSeen, result.Skipped, result.Unique, result.AutoWins,
		result.AutoLoses, result.Distinct, result.Ambiguous, len(result.Errors))

	return result, nil
}

// collectAudioFiles walks the tree and returns audio paths in walk order
func (c *Controller) collectAudioFiles(ctx context.Context, sourcePath string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(sourcePath, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			util.WarnLog("Error accessing path %s: %v", path, err)
			return nil // Continue walking
		}
		if d.IsDir() {
			return nil
		}
		if c.isAudioFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk error: %w", err)
	}
	return paths, nil
}

// ProcessFile runs the full pipeline for one file and updates the counters
func (c *Controller) ProcessFile(ctx context.Context, path string, result *Result) error {
	size, mtime, err := util.GetFileMetadata(path)
	if err != nil {
		return err
	}

	if size == 0 {
		util.DebugLog("Skipping empty file: %s", path)
		if c.logger != nil {
			c.logger.LogSkip(path, "empty file")
		}
		result.Skipped++
		return nil
	}

	// Incremental fast path: a known path with unchanged size and mtime is
	// assumed unchanged and never re-fingerprinted
	existing, err := c.store.GetTrackByPath(path)
	if err != nil {
		return err
	}
	if existing != nil && existing.MtimeUnix == mtime && existing.SizeBytes == size {
		util.DebugLog("Unchanged, skipping: %s", path)
		if c.logger != nil {
			c.logger.LogSkip(path, "unchanged")
		}
		result.Skipped++
		return nil
	}

	durationSec, fingerprint, err := c.fingerprinter.Fingerprint(ctx, path)
	if c.logger != nil {
		c.logger.LogFingerprint(path, durationSec, err)
	}
	if err != nil {
		return fmt.Errorf("%w: fingerprint: %v", util.ErrInputSkipped, err)
	}

	stats, err := c.stats(path)
	if err != nil {
		return fmt.Errorf("%w: probe: %v", util.ErrInputSkipped, err)
	}
	score := quality.Score(stats.Format, stats.BitDepth, stats.SampleRate, stats.Bitrate)

	resolver := &match.Resolver{
		Index:  c.index,
		Blocks: c.store,
		Tracks: &trackSource{store: c.store},
		Floor:  c.machine.Thresholds.Ask,
	}
	candidates, err := resolver.Resolve(fingerprint, c.machine.Sticky.Albums())
	if err != nil {
		return err
	}
	// A changed file must not match its own old record
	if existing != nil {
		candidates = withoutTrack(candidates, existing.ID)
	}

	if len(candidates) > 0 && c.logger != nil {
		c.logger.LogMatch(path, candidates[0].Path, candidates[0].Similarity)
	}

	decision, err := c.machine.Decide(ctx, path, stats.Format, score, candidates)
	if err != nil {
		return err
	}

	matchPath := ""
	similarity := 0.0
	if decision.Match != nil {
		matchPath = decision.Match.Path
		similarity = decision.Match.Similarity
	}
	if c.logger != nil {
		c.logger.LogVerdict(path, matchPath, decision.Verdict.String(), similarity, score)
	}

	return c.apply(ctx, path, fingerprint, durationSec, score, stats, decision, result)
}

// apply commits the verdict's effects. Every write for one file rides a
// single transaction, so an interrupted run leaves no half-admitted track.
func (c *Controller) apply(ctx context.Context, path, fingerprint string, durationSec int, score int64, stats *meta.TrackStats, decision *decide.Decision, result *Result) error {
	switch decision.Verdict {
	case decide.AmbiguousPrompt:
		// Unresolved: write nothing, the file is retried next run
		if c.logger != nil {
			c.logger.Log(&report.Event{
				Level:  report.LevelWarning,
				Event:  report.EventPrompt,
				Path:   path,
				Reason: "unresolved",
			})
		}
		result.Ambiguous++
		return nil

	case decide.Unique, decide.DistinctConfirmed:
		tags := c.resolveTags(ctx, fingerprint, durationSec)
		if c.dryRun {
			util.InfoLog("[dry-run] would add: %s", path)
			c.count(decision.Verdict, result)
			return nil
		}
		finalPath, err := c.organize(path, tags)
		if err != nil {
			return err
		}
		err = c.store.Transaction(func(tx *store.Tx) error {
			track := c.newTrack(finalPath, fingerprint, durationSec, score, stats)
			if err := tx.UpsertTrack(track); err != nil {
				return err
			}
			if err := c.index.Admit(tx, track.ID, fingerprint); err != nil {
				return err
			}
			if decision.Verdict == decide.DistinctConfirmed && decision.Match != nil && decision.Match.Duplicate {
				// Operator says different song: the old record is no duplicate
				if err := tx.ClearDuplicate(decision.Match.TrackID); err != nil {
					return err
				}
			}
			return c.linkTags(tx, track.ID, tags)
		})
		if err != nil {
			return fmt.Errorf("%w: %v", util.ErrStoreTransaction, err)
		}
		c.count(decision.Verdict, result)
		c.logCommit(path, decision.Verdict)
		return nil

	case decide.AutoWin:
		tags := c.resolveTags(ctx, fingerprint, durationSec)
		if c.dryRun {
			util.InfoLog("[dry-run] would replace %s with %s", decision.Match.Path, path)
			result.AutoWins++
			return nil
		}

		// The stored file loses; move it aside before touching the database
		// so a failed move never leaves the index pointing at a ghost path
		loserPath := decision.Match.Path
		if !decision.Match.Duplicate {
			archived, err := c.archive(loserPath)
			if err != nil {
				return err
			}
			loserPath = archived
		}

		finalPath, err := c.organize(path, tags)
		if err != nil {
			return err
		}
		err = c.store.Transaction(func(tx *store.Tx) error {
			if !decision.Match.Duplicate {
				if err := tx.MarkDuplicate(decision.Match.TrackID, loserPath); err != nil {
					return err
				}
			}
			track := c.newTrack(finalPath, fingerprint, durationSec, score, stats)
			if err := tx.UpsertTrack(track); err != nil {
				return err
			}
			if err := c.index.Admit(tx, track.ID, fingerprint); err != nil {
				return err
			}
			return c.linkTags(tx, track.ID, tags)
		})
		if err != nil {
			return fmt.Errorf("%w: %v", util.ErrStoreTransaction, err)
		}
		result.AutoWins++
		c.logCommit(path, decision.Verdict)
		return nil

	case decide.AutoLose:
		if c.dryRun {
			util.InfoLog("[dry-run] would archive %s (kept: %s)", path, decision.Match.Path)
			result.AutoLoses++
			return nil
		}

		archived, err := c.archive(path)
		if err != nil {
			return err
		}

		// The loser keeps a row with its fingerprint admitted, so the next
		// copy of this encoding still matches
		err = c.store.Transaction(func(tx *store.Tx) error {
			track := c.newTrack(archived, fingerprint, durationSec, score, stats)
			track.Duplicate = true
			if err := tx.UpsertTrack(track); err != nil {
				return err
			}
			return c.index.Admit(tx, track.ID, fingerprint)
		})
		if err != nil {
			return fmt.Errorf("%w: %v", util.ErrStoreTransaction, err)
		}
		result.AutoLoses++
		c.logCommit(path, decision.Verdict)
		return nil

	default:
		return fmt.Errorf("unhandled verdict %v", decision.Verdict)
	}
}

func (c *Controller) count(v decide.Verdict, result *Result) {
	switch v {
	case decide.Unique:
		result.Unique++
	case decide.DistinctConfirmed:
		result.Distinct++
	}
}

func (c *Controller) logCommit(path string, v decide.Verdict) {
	if c.logger != nil {
		c.logger.LogCommit(path, v.String())
	}
}

func (c *Controller) newTrack(path, fingerprint string, durationSec int, score int64, stats *meta.TrackStats) *store.Track {
	return &store.Track{
		Path:         path,
		Fingerprint:  fingerprint,
		QualityScore: score,
		Format:       stats.Format,
		Bitrate:      stats.Bitrate,
		SampleRate:   stats.SampleRate,
		BitDepth:     stats.BitDepth,
		SizeBytes:    stats.SizeBytes,
		MtimeUnix:    stats.MtimeUnix,
		DurationSec:  durationSec,
	}
}

// resolveTags queries the tag service; failures only cost the tags
func (c *Controller) resolveTags(ctx context.Context, fingerprint string, durationSec int) *lookup.Tags {
	if c.tags == nil {
		return nil
	}
	tags, err := c.tags.Lookup(ctx, fingerprint, durationSec)
	if err != nil {
		util.WarnLog("Tag lookup failed: %v", err)
		return nil
	}
	return tags
}

// linkTags records the release association resolved for a track
func (c *Controller) linkTags(tx *store.Tx, trackID int64, tags *lookup.Tags) error {
	if tags == nil || tags.ReleaseID == "" {
		return nil
	}
	if err := tx.UpsertAlbum(&store.Album{
		ReleaseID: tags.ReleaseID,
		Artist:    tags.Artist,
		Title:     tags.Album,
	}); err != nil {
		return err
	}
	return tx.LinkTrackAlbum(trackID, tags.ReleaseID)
}

// organize files a winner under Artist/Album when its tags resolved. With
// no library directory configured, or without both names, the file stays put.
func (c *Controller) organize(path string, tags *lookup.Tags) (string, error) {
	if c.libraryDir == "" || tags == nil || tags.Artist == "" || tags.Album == "" {
		return path, nil
	}
	destDir := filepath.Join(c.libraryDir, util.SanitizeName(tags.Artist), util.SanitizeName(tags.Album))
	dest := util.SafeDestPath(destDir, filepath.Base(path))
	if dest == path {
		return path, nil
	}
	if err := util.MoveFile(path, dest); err != nil {
		return "", fmt.Errorf("failed to organize %s: %w", path, err)
	}
	util.DebugLog("Organized: %s -> %s", path, dest)
	return dest, nil
}

// archive moves a losing file into the duplicate directory. With no
// duplicate directory configured the file stays where it is.
func (c *Controller) archive(path string) (string, error) {
	if c.dupDir == "" {
		return path, nil
	}
	dest := util.SafeDestPath(c.dupDir, filepath.Base(path))
	if err := util.MoveFile(path, dest); err != nil {
		return "", fmt.Errorf("failed to archive %s: %w", path, err)
	}
	util.DebugLog("Archived duplicate: %s -> %s", path, dest)
	return dest, nil
}

func (c *Controller) isAudioFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return c.extensions[ext]
}

// withoutTrack filters a candidate list by track ID
func withoutTrack(candidates []match.Candidate, id int64) []match.Candidate {
	out := candidates[:0]
	for _, cand := range candidates {
		if cand.TrackID != id {
			out = append(out, cand)
		}
	}
	return out
}

// trackSource adapts the store to the resolver's lookup port
type trackSource struct {
	store *store.Store
}

func (ts *trackSource) CandidateTrack(id int64) (*match.Candidate, error) {
	t, err := ts.store.GetTrackByID(id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, nil
	}
	albums, err := ts.store.AlbumIDsForTrack(id)
	if err != nil {
		return nil, err
	}
	return &match.Candidate{
		TrackID:     t.ID,
		Path:        t.Path,
		Fingerprint: t.Fingerprint,
		Quality:     t.QualityScore,
		Duplicate:   t.Duplicate,
		Albums:      albums,
	}, nil
}
