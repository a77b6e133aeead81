package source

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Category classifies the outlet an item came from.
type Category string

const (
	CategoryMainstream Category = "mainstream"
	CategoryAnalysis   Category = "analysis"
	CategoryRegional   Category = "regional"
	CategoryThinkTank  Category = "think_tank"
)

// MaxSummaryLen caps Item.Summary, in runes.
const MaxSummaryLen = 500

// DefaultWeight is used for categories missing from the weight table.
const DefaultWeight = 1.0

// categoryWeights ranks outlets: think tanks outweigh analysis, regional
// and mainstream outlets.
var categoryWeights = map[Category]float64{
	CategoryThinkTank:  1.3,
	CategoryAnalysis:   1.1,
	CategoryRegional:   1.0,
	CategoryMainstream: 0.8,
}

// AllCategories returns all known categories, heaviest first.
func AllCategories() []Category {
	return []Category{
		CategoryThinkTank,
		CategoryAnalysis,
		CategoryRegional,
		CategoryMainstream,
	}
}

// ParseCategory accepts the canonical names plus "think-tank" / "thinktank".
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mainstream":
		return CategoryMainstream, nil
	case "analysis":
		return CategoryAnalysis, nil
	case "regional":
		return CategoryRegional, nil
	case "think_tank", "think-tank", "thinktank":
		return CategoryThinkTank, nil
	}
	return "", fmt.Errorf("unknown source category %q", s)
}

// Weight returns the fixed weight of the category.
func (c Category) Weight() float64 {
	if w, ok := categoryWeights[c]; ok {
		return w
	}
	return DefaultWeight
}

func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Item is a single collected news entry.
type Item struct {
	Source    string    `json:"source"`
	Category  Category  `json:"category"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Summary   string    `json:"summary"`
	Published time.Time `json:"published,omitzero"`
	Author    string    `json:"author,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	Relevance float64   `json:"relevance"`
}

// NewItem builds an Item with its summary capped at MaxSummaryLen.
func NewItem(source string, category Category, title, url, summary string, published time.Time) Item {
	return Item{
		Source:    source,
		Category:  category,
		Title:     title,
		URL:       url,
		Summary:   TruncateSummary(summary),
		Published: published,
	}
}

// TruncateSummary cuts s to MaxSummaryLen runes, ending in "...".
func TruncateSummary(s string) string {
	r := []rune(s)
	if len(r) <= MaxSummaryLen {
		return s
	}
	return string(r[:MaxSummaryLen-3]) + "..."
}

// Source is the interface every collector must implement.
type Source interface {
	Name() string
	Collect(ctx context.Context) ([]Item, error)
}
