package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/franz/music-dedup/internal/store"
)

// Summary represents the library state for reporting
type Summary struct {
	GeneratedAt time.Time

	UniqueTracks    int
	DuplicateTracks int
	UniqueBytes     int64
	DuplicateBytes  int64

	// Largest duplicates, for the "what can I reclaim" view
	TopDuplicates []DuplicateInfo

	DatabasePath string
	EventLogPath string
}

// DuplicateInfo describes one duplicate-marked track
type DuplicateInfo struct {
	Path      string
	Format    string
	SizeBytes int64
}

// GenerateSummary builds a summary from the track database
func GenerateSummary(db *store.Store, eventLogPath string) (*Summary, error) {
	summary := &Summary{
		GeneratedAt:  time.Now(),
		EventLogPath: eventLogPath,
	}

	unique, dups, uniqueBytes, dupBytes, err := db.CountTracks()
	if err != nil {
		return nil, fmt.Errorf("failed to gather track counts: %w", err)
	}
	summary.UniqueTracks = unique
	summary.DuplicateTracks = dups
	summary.UniqueBytes = uniqueBytes
	summary.DuplicateBytes = dupBytes

	summary.TopDuplicates, err = gatherTopDuplicates(db, 20)
	if err != nil {
		return nil, err
	}

	return summary, nil
}

// gatherTopDuplicates lists duplicate-marked tracks by size descending
func gatherTopDuplicates(db *store.Store, limit int) ([]DuplicateInfo, error) {
	tracks, err := db.GetAllTracks()
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}

	dups := make([]DuplicateInfo, 0)
	for _, t := range tracks {
		if !t.Duplicate {
			continue
		}
		dups = append(dups, DuplicateInfo{
			Path:      t.Path,
			Format:    t.Format,
			SizeBytes: t.SizeBytes,
		})
	}

	sort.Slice(dups, func(i, j int) bool {
		return dups[i].SizeBytes > dups[j].SizeBytes
	})

	if len(dups) > limit {
		dups = dups[:limit]
	}
	return dups, nil
}

// RenderText renders the summary for the terminal
func (s *Summary) RenderText() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Library summary (%s)\n\n", s.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "  Unique tracks:     %d (%s)\n", s.UniqueTracks, humanize.Bytes(uint64(s.UniqueBytes)))
	fmt.Fprintf(&b, "  Duplicate tracks:  %d (%s)\n", s.DuplicateTracks, humanize.Bytes(uint64(s.DuplicateBytes)))

	if len(s.TopDuplicates) > 0 {
		fmt.Fprintf(&b, "\nLargest duplicates:\n")
		for i, d := range s.TopDuplicates {
			fmt.Fprintf(&b, "  %2d. %-8s %10s  %s\n",
				i+1, d.Format, humanize.Bytes(uint64(d.SizeBytes)), truncatePath(d.Path, 80))
		}
	}

	return b.String()
}

// WriteMarkdown writes the summary as a Markdown report
func (s *Summary) WriteMarkdown(outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var md strings.Builder
	md.WriteString("# Music Dedup - Library Report\n\n")
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", s.GeneratedAt.Format("2006-01-02 15:04:05")))
	if s.DatabasePath != "" {
		md.WriteString(fmt.Sprintf("**Database:** `%s`\n\n", s.DatabasePath))
	}
	if s.EventLogPath != "" {
		md.WriteString(fmt.Sprintf("**Event Log:** `%s`\n\n", s.EventLogPath))
	}
	md.WriteString("---\n\n")

	md.WriteString("## Overview\n\n")
	md.WriteString("| Metric | Value |\n")
	md.WriteString("|--------|-------|\n")
	md.WriteString(fmt.Sprintf("| Unique Tracks | %d |\n", s.UniqueTracks))
	md.WriteString(fmt.Sprintf("| Unique Size | %s |\n", humanize.Bytes(uint64(s.UniqueBytes))))
	md.WriteString(fmt.Sprintf("| Duplicate Tracks | %d |\n", s.DuplicateTracks))
	md.WriteString(fmt.Sprintf("| Reclaimable Size | %s |\n", humanize.Bytes(uint64(s.DuplicateBytes))))
	md.WriteString("\n")

	if len(s.TopDuplicates) > 0 {
		md.WriteString("## Largest Duplicates\n\n")
		md.WriteString("| Size | Format | Path |\n")
		md.WriteString("|------|--------|------|\n")
		for _, d := range s.TopDuplicates {
			md.WriteString(fmt.Sprintf("| %s | %s | `%s` |\n",
				humanize.Bytes(uint64(d.SizeBytes)), d.Format, truncatePath(d.Path, 80)))
		}
		md.WriteString("\n")
	}

	if err := os.WriteFile(outputPath, []byte(md.String()), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// ExportCSV writes the full track table as CSV
func ExportCSV(db *store.Store, outputPath string) error {
	tracks, err := db.GetAllTracks()
	if err != nil {
		return fmt.Errorf("failed to list tracks: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"id", "path", "format", "quality_score", "bitrate", "sample_rate",
		"bit_depth", "size_bytes", "duration_sec", "duplicate",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, t := range tracks {
		record := []string{
			strconv.FormatInt(t.ID, 10),
			t.Path,
			t.Format,
			strconv.FormatInt(t.QualityScore, 10),
			strconv.Itoa(t.Bitrate),
			strconv.Itoa(t.SampleRate),
			strconv.Itoa(t.BitDepth),
			strconv.FormatInt(t.SizeBytes, 10),
			strconv.Itoa(t.DurationSec),
			strconv.FormatBool(t.Duplicate),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write csv record: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

// truncatePath truncates a file path to a maximum length, keeping both ends
func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	start := maxLen/2 - 2
	end := len(path) - (maxLen/2 - 2)
	return path[:start] + "..." + path[end:]
}
