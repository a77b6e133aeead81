package story

import (
	"strings"
	"unicode"
)

// stopWords are dropped from titles before comparison.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"but": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "of": true, "with": true, "by": true,
}

// trackingParams are query keys that never identify content.
var trackingParams = map[string]bool{
	"fbclid":  true,
	"gclid":   true,
	"ref":     true,
	"ref_src": true,
	"mc_cid":  true,
	"mc_eid":  true,
	"igshid":  true,
	"msclkid": true,
	"yclid":   true,
}

func isTrackingParam(key string) bool {
	key = strings.ToLower(key)
	return strings.HasPrefix(key, "utm_") || trackingParams[key]
}

// NormalizeURL canonicalizes a URL for identity comparison: tracking
// parameters are dropped, trailing slashes removed from the path and the
// result is lower-cased. Other parameters and a non-empty fragment are kept
// as given. It never fails and is idempotent.
func NormalizeURL(raw string) string {
	s := strings.TrimSpace(raw)

	s, fragment, _ := strings.Cut(s, "#")
	fragment = strings.TrimSpace(fragment)
	base, query, hasQuery := strings.Cut(s, "?")
	base = strings.TrimRightFunc(base, func(r rune) bool {
		return r == '/' || unicode.IsSpace(r)
	})

	var kept []string
	if hasQuery {
		for _, param := range strings.Split(query, "&") {
			param = strings.TrimSpace(param)
			if param == "" {
				continue
			}
			key, _, _ := strings.Cut(param, "=")
			if isTrackingParam(key) {
				continue
			}
			kept = append(kept, param)
		}
	}

	var b strings.Builder
	b.WriteString(base)
	if len(kept) > 0 {
		b.WriteByte('?')
		b.WriteString(strings.Join(kept, "&"))
	}
	if fragment != "" {
		b.WriteByte('#')
		b.WriteString(fragment)
	}

	return strings.ToLower(b.String())
}

// NormalizeTitle reduces a title to lower-case words without punctuation or
// stop words. The result is for comparison only, never for display.
func NormalizeTitle(title string) string {
	lower := strings.ToLower(title)

	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !isWordRune(r)
	})

	kept := words[:0]
	for _, w := range words {
		if !stopWords[w] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_'
}
