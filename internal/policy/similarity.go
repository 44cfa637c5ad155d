package policy

import (
	"github.com/hbollon/go-edlib"
)

// Similarity returns the normalized Damerau-Levenshtein similarity of a and b
// in [0,1]. An empty operand never resembles anything.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	s, err := edlib.StringsSimilarity(a, b, edlib.DamerauLevenshtein)
	if err != nil {
		return 0
	}
	return float64(s)
}
