package story

import (
	"github.com/elonfeng/storyrank/pkg/source"
)

// Deduplicator removes exact and near-duplicate items from a batch.
type Deduplicator struct {
	threshold float64
	weigher   Weigher
}

// NewDeduplicator creates a deduplicator using cfg.DuplicateThreshold.
func NewDeduplicator(cfg Config) *Deduplicator {
	return &Deduplicator{
		threshold: cfg.DuplicateThreshold,
		weigher:   NewWeigher(cfg),
	}
}

// Deduplicate runs the URL pass and then the title pass. The returned slice
// is new; its order follows the input except where a heavier source replaced
// an earlier duplicate, in which case the replacement is appended.
func (d *Deduplicator) Deduplicate(items []source.Item) []source.Item {
	if len(items) == 0 {
		return nil
	}
	return d.DedupTitles(DedupURLs(items))
}

// DedupURLs keeps the first item for every normalized URL.
func DedupURLs(items []source.Item) []source.Item {
	seen := make(map[string]bool, len(items))
	unique := make([]source.Item, 0, len(items))

	for _, item := range items {
		key := NormalizeURL(item.URL)
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, item)
	}
	return unique
}

// DedupTitles drops items whose title is at least threshold-similar to an
// already accepted one. When the newcomer's source outweighs every accepted
// item it matches, those items are removed and the newcomer is appended.
// Accepted titles therefore stay pairwise below the threshold.
func (d *Deduplicator) DedupTitles(items []source.Item) []source.Item {
	type accepted struct {
		item  source.Item
		title string
	}
	out := make([]accepted, 0, len(items))

	for _, item := range items {
		title := NormalizeTitle(item.Title)
		weight := d.weigher.SourceWeight(item)

		var matches []int
		outweighsAll := true
		for k, a := range out {
			if normalizedSimilarity(title, a.title) < d.threshold {
				continue
			}
			matches = append(matches, k)
			if weight <= d.weigher.SourceWeight(a.item) {
				outweighsAll = false
			}
		}

		switch {
		case len(matches) == 0:
			out = append(out, accepted{item: item, title: title})
		case outweighsAll:
			out = removeIndices(out, matches)
			out = append(out, accepted{item: item, title: title})
		}
	}

	unique := make([]source.Item, len(out))
	for i, a := range out {
		unique[i] = a.item
	}
	return unique
}

// removeIndices deletes the given ascending indices, keeping relative order.
func removeIndices[T any](s []T, idx []int) []T {
	kept := s[:0]
	next := 0
	for i, v := range s {
		if next < len(idx) && idx[next] == i {
			next++
			continue
		}
		kept = append(kept, v)
	}
	return kept
}
