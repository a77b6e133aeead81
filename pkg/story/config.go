package story

import (
	"fmt"

	"github.com/elonfeng/storyrank/pkg/source"
)

// ClusterMode selects how the clusterer finds candidate pairs.
type ClusterMode string

const (
	// ModeGreedy compares every pair in score order.
	ModeGreedy ClusterMode = "greedy"
	// ModeBucketed only compares items whose normalized titles share a word.
	ModeBucketed ClusterMode = "bucketed"
)

// DefaultHighPriorityKeywords add 1.0 each to an item's relevance.
var DefaultHighPriorityKeywords = []string{
	"china", "taiwan", "russia", "ukraine", "nato", "sanctions",
	"nuclear", "energy", "cyber", "diplomacy", "military",
	"trade war", "semiconductor", "arctic", "middle east",
}

// DefaultMediumPriorityKeywords add 0.5 each to an item's relevance.
var DefaultMediumPriorityKeywords = []string{
	"election", "democracy", "economy", "climate", "migration",
	"terrorism", "africa", "asia", "europe", "g7", "g20",
}

// Config tunes every stage of the engine.
type Config struct {
	// DuplicateThreshold is the similarity at which two titles are the same story.
	DuplicateThreshold float64
	// ClusterFactor scales DuplicateThreshold down to the clustering bar.
	ClusterFactor float64
	ClusterMode   ClusterMode
	// SingletonMinQuality is the quality a lone item needs to form a cluster.
	SingletonMinQuality float64

	HighPriorityKeywords   []string
	MediumPriorityKeywords []string

	// CategoryWeights overrides the fixed weight of individual categories.
	CategoryWeights map[source.Category]float64

	TitleMinWords  int
	TitleMaxWords  int
	SummaryMinLen  int
	TitleBonus     float64
	SummaryBonus   float64
	HighKeywordHit float64
	MedKeywordHit  float64
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		DuplicateThreshold:     0.8,
		ClusterFactor:          0.7,
		ClusterMode:            ModeGreedy,
		SingletonMinQuality:    1.0,
		HighPriorityKeywords:   DefaultHighPriorityKeywords,
		MediumPriorityKeywords: DefaultMediumPriorityKeywords,
		TitleMinWords:          5,
		TitleMaxWords:          15,
		SummaryMinLen:          100,
		TitleBonus:             0.5,
		SummaryBonus:           0.3,
		HighKeywordHit:         1.0,
		MedKeywordHit:          0.5,
	}
}

// ClusterThreshold is the looser similarity bar for related stories.
func (c Config) ClusterThreshold() float64 {
	return c.DuplicateThreshold * c.ClusterFactor
}

// Validate checks the tunables are usable.
func (c Config) Validate() error {
	if c.DuplicateThreshold <= 0 || c.DuplicateThreshold > 1 {
		return fmt.Errorf("duplicate threshold %.2f out of range (0,1]", c.DuplicateThreshold)
	}
	if c.ClusterFactor <= 0 || c.ClusterFactor > 1 {
		return fmt.Errorf("cluster factor %.2f out of range (0,1]", c.ClusterFactor)
	}
	switch c.ClusterMode {
	case ModeGreedy, ModeBucketed, "":
	default:
		return fmt.Errorf("unknown cluster mode %q", c.ClusterMode)
	}
	if c.TitleMinWords > c.TitleMaxWords {
		return fmt.Errorf("title word band %d..%d is empty", c.TitleMinWords, c.TitleMaxWords)
	}
	for cat, w := range c.CategoryWeights {
		if w < 0 {
			return fmt.Errorf("negative weight %.2f for category %s", w, cat)
		}
	}
	return nil
}

// Weigher derives the keyword-free quality of an item. It is shared by the
// deduplicator, clusterer and ranker.
type Weigher struct {
	overrides     map[source.Category]float64
	titleMinWords int
	titleMaxWords int
	summaryMinLen int
	titleBonus    float64
	summaryBonus  float64
}

// NewWeigher builds a Weigher from cfg.
func NewWeigher(cfg Config) Weigher {
	return Weigher{
		overrides:     cfg.CategoryWeights,
		titleMinWords: cfg.TitleMinWords,
		titleMaxWords: cfg.TitleMaxWords,
		summaryMinLen: cfg.SummaryMinLen,
		titleBonus:    cfg.TitleBonus,
		summaryBonus:  cfg.SummaryBonus,
	}
}

// SourceWeight returns the weight of the item's source category.
func (w Weigher) SourceWeight(item source.Item) float64 {
	if v, ok := w.overrides[item.Category]; ok {
		return v
	}
	return item.Category.Weight()
}

// LengthBonus rewards a meaningful title length and a populated summary.
func (w Weigher) LengthBonus(item source.Item) float64 {
	bonus := 0.0
	if n := countWords(item.Title); n >= w.titleMinWords && n <= w.titleMaxWords {
		bonus += w.titleBonus
	}
	if runeLen(item.Summary) > w.summaryMinLen {
		bonus += w.summaryBonus
	}
	return bonus
}

// Quality is source weight plus length bonuses, without keyword terms.
func (w Weigher) Quality(item source.Item) float64 {
	return w.SourceWeight(item) + w.LengthBonus(item)
}
