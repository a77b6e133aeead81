package source

import "strings"

// Filter drops items that mention excluded topics. When include keywords are
// set, an item must also mention at least one of them.
type Filter struct {
	include []string
	exclude []string
}

// NewFilter creates a filter; keywords are matched case-insensitively.
func NewFilter(includeKeywords, excludeKeywords []string) *Filter {
	return &Filter{
		include: lowerAll(includeKeywords),
		exclude: lowerAll(excludeKeywords),
	}
}

func lowerAll(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// Allows reports whether text passes the filter. A nil filter allows everything.
func (f *Filter) Allows(text string) bool {
	if f == nil {
		return true
	}
	lower := strings.ToLower(text)

	for _, ex := range f.exclude {
		if strings.Contains(lower, ex) {
			return false
		}
	}

	if len(f.include) == 0 {
		return true
	}
	for _, kw := range f.include {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Apply returns the items whose title and summary pass the filter.
func (f *Filter) Apply(items []Item) []Item {
	if f == nil {
		return items
	}
	kept := make([]Item, 0, len(items))
	for _, item := range items {
		if f.Allows(item.Title + " " + item.Summary) {
			kept = append(kept, item)
		}
	}
	return kept
}
