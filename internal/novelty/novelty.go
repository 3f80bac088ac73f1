// Package novelty scores how close a candidate post is to recent ones.
package novelty

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultThreshold is the similarity above which a candidate is a repeat.
const DefaultThreshold = 0.7

// #region tokenize

// tokenize lowercases, folds diacritics, replaces anything outside [a-z0-9]
// with a space and returns the distinct tokens.
func tokenize(text string) map[string]struct{} {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), text)
	if err != nil {
		folded = text
	}
	folded = strings.ToLower(folded)

	cleaned := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return ' '
	}, folded)

	set := make(map[string]struct{})
	for _, tok := range strings.Fields(cleaned) {
		set[tok] = struct{}{}
	}
	return set
}

// #endregion tokenize

// #region similarity

// Similarity is the Jaccard index of the two token sets, 0 when either is empty.
func Similarity(a, b string) float64 {
	ta, tb := tokenize(a), tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

// IsNovel reports whether candidate stays at or below threshold against every
// entry in recent.
func IsNovel(candidate string, recent []string, threshold float64) bool {
	for _, r := range recent {
		if Similarity(candidate, r) > threshold {
			return false
		}
	}
	return true
}

// #endregion similarity
