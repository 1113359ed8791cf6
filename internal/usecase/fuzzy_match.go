package usecase

import "strings"

// Typo tolerance for structured categorical values. Only tokens of at least
// minFuzzyLen characters are compared so short words cannot collide.
const (
	fuzzyThreshold = 1
	minFuzzyLen    = 4
)

// fuzzy resolves a misspelled value such as "samsng" to a canonical entry by
// comparing its tokens against single-word aliases. The closest alias wins;
// ties go to the alias that sorts first.
func (t *scoreTable) fuzzy(value string) (string, bool) {
	best, bestDist := "", fuzzyThreshold+1
	for _, token := range strings.Fields(value) {
		if len(token) < minFuzzyLen || isNumeric(token) {
			continue
		}
		for _, alias := range t.words {
			if !fuzzyTokenMatch(token, alias, fuzzyThreshold) {
				continue
			}
			if d := levenshteinDistance(token, alias); d < bestDist {
				best, bestDist = alias, d
			}
		}
	}
	if best == "" {
		return "", false
	}
	return t.aliases[best], true
}

// isNumeric checks if a string contains only digits
func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

// fuzzyTokenMatch checks if two tokens are within the edit distance threshold
func fuzzyTokenMatch(token1, token2 string, threshold int) bool {
	if token1 == token2 {
		return true
	}
	if len(token1) < minFuzzyLen || len(token2) < minFuzzyLen {
		return false
	}
	lenDiff := len(token1) - len(token2)
	if lenDiff < 0 {
		lenDiff = -lenDiff
	}
	if lenDiff > threshold {
		return false
	}
	return levenshteinDistance(token1, token2) <= threshold
}

// levenshteinDistance calculates the edit distance between two strings
func levenshteinDistance(s1, s2 string) int {
	r1, r2 := []rune(s1), []rune(s2)
	if len(r1) == 0 {
		return len(r2)
	}
	if len(r2) == 0 {
		return len(r1)
	}

	// two rows instead of the full matrix
	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(r2)]
}
