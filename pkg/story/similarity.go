package story

import (
	"github.com/pmezard/go-difflib/difflib"
)

// TitleSimilarity returns how alike two headlines are, in [0,1]. Both titles
// are normalized and compared with the Ratcliff/Obershelp matching ratio over
// their runes. The result is symmetric.
func TitleSimilarity(a, b string) float64 {
	return normalizedSimilarity(NormalizeTitle(a), NormalizeTitle(b))
}

// normalizedSimilarity compares two already normalized titles.
func normalizedSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	// The matcher breaks ties between equally long matches by position, so
	// fix the argument order to keep sim(a,b) == sim(b,a).
	if b < a {
		a, b = b, a
	}
	return difflib.NewMatcher(runeStrings(a), runeStrings(b)).Ratio()
}

func runeStrings(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
