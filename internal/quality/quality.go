// Package quality derives a single comparable integer score from a file's
// technical characteristics. The weights form a strict hierarchy: container
// losslessness dominates, then bit depth, then sample rate, then bitrate as
// the finest tiebreaker. No lossy bitrate can ever outscore a lossless file.
package quality

import "strings"

// Weight constants. Each dimension's maximum contribution stays below the
// next dimension's smallest step, which is what makes the total order hold.
const (
	losslessTier = 2
	lossyTier    = 1

	tierWeight       int64 = 1_000_000_000_000_000 // 10^15
	bitDepthWeight   int64 = 1_000_000_000_000     // 10^12, bit depth <= 64
	sampleRateWeight int64 = 1_000_000             // 10^6, sample rate <= 768k
	bitrateCap       int64 = 999_999               // below one sample-rate step
)

// losslessFormats are the containers/codecs treated as lossless
var losslessFormats = map[string]bool{
	"flac": true,
	"alac": true,
	"wav":  true,
	"aiff": true,
	"aif":  true,
	"ape":  true,
	"wv":   true,
	"tta":  true,
}

// IsLossless reports whether a format string names a lossless container.
// Accepts both bare names ("flac") and extensions (".flac"), case-insensitive.
func IsLossless(format string) bool {
	f := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
	if losslessFormats[f] {
		return true
	}
	return strings.HasPrefix(f, "pcm")
}

// Score computes the quality score for a file. Missing or zero metadata
// contributes 0 for that dimension rather than failing, so every file gets
// a comparable value. Higher is better.
func Score(format string, bitDepth, sampleRate, bitrate int) int64 {
	tier := int64(lossyTier)
	if IsLossless(format) {
		tier = losslessTier
	}

	if bitDepth < 0 {
		bitDepth = 0
	}
	if bitDepth > 64 {
		bitDepth = 64
	}

	if sampleRate < 0 {
		sampleRate = 0
	}
	if sampleRate > 768_000 {
		sampleRate = 768_000
	}

	br := int64(bitrate)
	if br < 0 {
		br = 0
	}
	// Lossless bitrates can exceed the sample-rate step; saturate so the
	// hierarchy is preserved.
	if br > bitrateCap {
		br = bitrateCap
	}

	return tier*tierWeight +
		int64(bitDepth)*bitDepthWeight +
		int64(sampleRate)*sampleRateWeight +
		br
}
