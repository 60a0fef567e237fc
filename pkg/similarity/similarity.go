// Package similarity provides a cheap substring-window similarity score for short code fragments.
package similarity

import "strings"

// Similarity returns a score in [0,1] describing how much of the longer input
// reappears verbatim inside the shorter one. The longer string is cut into
// overlapping windows a third of its length; the score is the share of windows
// found in the shorter string. Two empty strings score 1.
func Similarity(a, b string) float64 {
	longer, shorter := []rune(a), []rune(b)
	if len(shorter) > len(longer) {
		longer, shorter = shorter, longer
	}

	if len(longer) == 0 {
		return 1.0
	}

	window := len(longer) / 3
	haystack := string(shorter)
	windows := len(longer) - window + 1

	matches := 0
	for offset := 0; offset+window <= len(longer); offset++ {
		if strings.Contains(haystack, string(longer[offset:offset+window])) {
			matches++
		}
	}

	return float64(matches) / float64(windows)
}
