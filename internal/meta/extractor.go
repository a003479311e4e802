// Package meta extracts the audio properties and tags that feed quality
// scoring and operator prompts. Tags come from the tag library, audio
// properties from ffprobe, merged with the tag library winning on tags.
package meta

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"

	"github.com/franz/music-dedup/internal/util"
)

// TrackStats holds everything the scorer and the prompt need to know about
// one audio file
type TrackStats struct {
	Format      string // codec name, e.g. "flac", "mp3"
	Bitrate     int    // bits per second
	SampleRate  int    // Hz
	BitDepth    int    // bits per sample, 0 when the codec has none
	DurationSec int
	Channels    int
	SizeBytes   int64
	MtimeUnix   int64

	Artist string
	Title  string
	Album  string
	Year   int
}

// ExtractStats gathers stats for a single file. The tag library covers tags
// for most formats; ffprobe supplies the audio properties it cannot see.
// Either source alone is enough to return a result.
func ExtractStats(path string) (*TrackStats, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	stats := &TrackStats{
		Format:    normalizeExt(path),
		SizeBytes: info.Size(),
		MtimeUnix: info.ModTime().Unix(),
	}

	tagErr := fillFromTags(stats, path)
	probeErr := fillFromFFprobe(stats, path)
	if tagErr != nil && probeErr != nil {
		return nil, fmt.Errorf("all extraction methods failed: tag: %v, ffprobe: %v", tagErr, probeErr)
	}

	return stats, nil
}

// fillFromTags reads tags with the tag library. It never overwrites audio
// properties, it only knows about tags.
func fillFromTags(stats *TrackStats, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return fmt.Errorf("failed to read tags: %w", err)
	}

	stats.Artist = m.Artist()
	stats.Title = m.Title()
	stats.Album = m.Album()
	stats.Year = m.Year()
	return nil
}

// fillFromFFprobe fills audio properties and any tags still missing
func fillFromFFprobe(stats *TrackStats, path string) error {
	info, err := RunFFprobe(path)
	if err != nil {
		return err
	}

	applyFFprobe(stats, info)
	return nil
}

// applyFFprobe maps parsed ffprobe output onto the stats. Split out so the
// JSON mapping can be tested without the binary.
func applyFFprobe(stats *TrackStats, info *FFprobeInfo) {
	if info.Format != nil {
		if info.Format.Duration != "" {
			var durationSec float64
			fmt.Sscanf(info.Format.Duration, "%f", &durationSec)
			stats.DurationSec = int(durationSec)
		}
		if info.Format.BitRate != "" {
			fmt.Sscanf(info.Format.BitRate, "%d", &stats.Bitrate)
		}

		if tags := info.Format.Tags; tags != nil {
			if stats.Artist == "" {
				stats.Artist = getTag(tags, "artist", "ARTIST")
			}
			if stats.Title == "" {
				stats.Title = getTag(tags, "title", "TITLE")
			}
			if stats.Album == "" {
				stats.Album = getTag(tags, "album", "ALBUM")
			}
		}
	}

	for _, stream := range info.Streams {
		if stream.CodecType != "" && stream.CodecType != "audio" {
			continue
		}
		if stream.CodecName != "" {
			stats.Format = stream.CodecName
		}
		stats.SampleRate = stream.SampleRate
		stats.Channels = stream.Channels
		if stream.BitsPerSample.Value > 0 {
			stats.BitDepth = stream.BitsPerSample.Value
		} else if stream.BitsPerRawSample.Value > 0 {
			stats.BitDepth = stream.BitsPerRawSample.Value
		}
		break
	}
}

// getTag retrieves a tag value from a map, trying multiple keys
func getTag(tags map[string]string, keys ...string) string {
	for _, key := range keys {
		if val, ok := tags[key]; ok && val != "" {
			return val
		}
	}
	return ""
}

// normalizeExt derives a codec hint from the file extension, used when both
// extractors fail to name one
func normalizeExt(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	return strings.TrimPrefix(ext, ".")
}

// DisplayName renders "Artist - Title" for prompts, falling back to the
// base filename when tags are missing
func (s *TrackStats) DisplayName(path string) string {
	if s.Artist != "" && s.Title != "" {
		return s.Artist + " - " + s.Title
	}
	if s.Title != "" {
		return s.Title
	}
	return util.SanitizeName(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
}
