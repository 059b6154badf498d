package textutil

import (
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Normalize lowercases the text, trims it and collapses inner whitespace to a single space.
func Normalize(text string) string {
	text = strings.ToLower(text)
	text = strings.Trim(text, " \n\t")
	text = whitespaceRegex.ReplaceAllString(text, " ")
	return text
}

// MatchAny reports the first phrase contained in text, both sides are normalized.
func MatchAny(text string, phrases []string) (string, bool) {
	text = Normalize(text)
	for _, p := range phrases {
		normalized := Normalize(p)
		if normalized == "" {
			continue
		}
		if strings.Contains(text, normalized) {
			return p, true
		}
	}
	return "", false
}

// MostSimilar returns the candidate with the highest Jaro-Winkler similarity to text.
func MostSimilar(text string, candidates []string) (string, float64) {
	text = Normalize(text)

	var best string
	var bestScore float64
	for _, c := range candidates {
		score := matchr.JaroWinkler(text, Normalize(c), false)
		if score > bestScore {
			best = c
			bestScore = score
		}
	}
	return best, bestScore
}
