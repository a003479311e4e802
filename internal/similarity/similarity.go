// Package similarity scores how alike two audio fingerprints are.
//
// Perceptually identical audio in different containers or bitrates does not
// produce byte-identical fingerprint strings, so the measure is a longest
// common subsequence ratio rather than exact comparison: it tolerates small
// local shifts (a leading-silence offset) and scattered substitutions.
package similarity

import (
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
)

// Ratio returns a similarity score in [0.0, 1.0] for two fingerprints.
// It is symmetric and pure; identical inputs score exactly 1.0 and an
// empty input scores exactly 0.0.
func Ratio(a, b string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	// 2*LCS / (len(a)+len(b)): the fraction of characters both strings
	// share in order, over their combined length. LCS counts runes, so
	// the denominator must too.
	lcs := edlib.LCS(a, b)
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	return 2.0 * float64(lcs) / float64(total)
}
