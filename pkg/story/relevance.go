package story

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/elonfeng/storyrank/pkg/source"
)

// RelevanceScorer assigns each item a heuristic relevance from its source
// weight, keyword hits and length bonuses. Scores are unbounded and only
// meaningful relative to each other.
type RelevanceScorer struct {
	weigher Weigher
	high    []string
	medium  []string
	highHit float64
	medHit  float64
}

// NewRelevanceScorer creates a scorer from cfg's keyword tables.
func NewRelevanceScorer(cfg Config) *RelevanceScorer {
	return &RelevanceScorer{
		weigher: NewWeigher(cfg),
		high:    keywordSet(cfg.HighPriorityKeywords),
		medium:  keywordSet(cfg.MediumPriorityKeywords),
		highHit: cfg.HighKeywordHit,
		medHit:  cfg.MedKeywordHit,
	}
}

// keywordSet lower-cases and de-duplicates keywords, keeping first-seen order.
func keywordSet(keywords []string) []string {
	seen := make(map[string]bool, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}

// ScoreItem computes the relevance of a single item.
func (s *RelevanceScorer) ScoreItem(item source.Item) float64 {
	score := s.weigher.SourceWeight(item)

	content := strings.ToLower(item.Title + " " + item.Summary)
	for _, kw := range s.high {
		if strings.Contains(content, kw) {
			score += s.highHit
		}
	}
	for _, kw := range s.medium {
		if strings.Contains(content, kw) {
			score += s.medHit
		}
	}

	return score + s.weigher.LengthBonus(item)
}

// Score returns a copy of items with Relevance set, sorted by relevance,
// highest first. Equal scores keep their input order.
func (s *RelevanceScorer) Score(items []source.Item) []source.Item {
	scored := make([]source.Item, len(items))
	copy(scored, items)

	for i := range scored {
		scored[i].Relevance = s.ScoreItem(scored[i])
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Relevance > scored[j].Relevance
	})
	return scored
}

func countWords(s string) int {
	return len(strings.Fields(s))
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
