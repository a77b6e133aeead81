package story

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/elonfeng/storyrank/pkg/source"
)

// NoMain asks NewCluster to pick the main item itself.
const NoMain = -1

var (
	ErrEmptyCluster   = errors.New("cluster has no items")
	ErrMainOutOfRange = errors.New("main item index out of range")
)

// Cluster groups items that report the same underlying story.
type Cluster struct {
	ID    string
	Items []source.Item
	// Main indexes the representative item within Items.
	Main  int
	Score float64
}

// NewCluster builds a cluster from at least one item. With main == NoMain
// the item with the highest relevance becomes the main one; the first wins
// on ties.
func NewCluster(id string, items []source.Item, main int) (*Cluster, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("new cluster %s: %w", id, ErrEmptyCluster)
	}
	if main == NoMain {
		main = 0
		for i := 1; i < len(items); i++ {
			if items[i].Relevance > items[main].Relevance {
				main = i
			}
		}
	}
	if main < 0 || main >= len(items) {
		return nil, fmt.Errorf("new cluster %s: main %d of %d: %w", id, main, len(items), ErrMainOutOfRange)
	}

	members := make([]source.Item, len(items))
	copy(members, items)
	return &Cluster{ID: id, Items: members, Main: main}, nil
}

// MainItem returns the representative item.
func (c Cluster) MainItem() source.Item {
	return c.Items[c.Main]
}

// Sources returns the distinct source names, in member order.
func (c Cluster) Sources() []string {
	seen := make(map[string]bool, len(c.Items))
	var out []string
	for _, item := range c.Items {
		if seen[item.Source] {
			continue
		}
		seen[item.Source] = true
		out = append(out, item.Source)
	}
	return out
}

func (c Cluster) MarshalJSON() ([]byte, error) {
	if c.Main < 0 || c.Main >= len(c.Items) {
		return nil, fmt.Errorf("marshal cluster %s: %w", c.ID, ErrMainOutOfRange)
	}
	return json.Marshal(struct {
		ID      string        `json:"id"`
		Score   float64       `json:"score"`
		Main    source.Item   `json:"main"`
		Sources []string      `json:"sources"`
		Items   []source.Item `json:"items"`
	}{c.ID, c.Score, c.MainItem(), c.Sources(), c.Items})
}

// Clusterer groups related items with a greedy single pass over the
// relevance-sorted batch.
type Clusterer struct {
	threshold  float64
	minQuality float64
	mode       ClusterMode
	weigher    Weigher
}

// NewClusterer creates a clusterer using cfg.ClusterThreshold.
func NewClusterer(cfg Config) *Clusterer {
	mode := cfg.ClusterMode
	if mode == "" {
		mode = ModeGreedy
	}
	return &Clusterer{
		threshold:  cfg.ClusterThreshold(),
		minQuality: cfg.SingletonMinQuality,
		mode:       mode,
		weigher:    NewWeigher(cfg),
	}
}

// Cluster groups items in order. Each unprocessed item seeds a group and
// absorbs every later unprocessed item similar enough to it. Groups of one
// survive only if the seed reaches the singleton quality bar.
func (c *Clusterer) Cluster(items []source.Item) ([]Cluster, error) {
	n := len(items)
	if n == 0 {
		return nil, nil
	}

	titles := make([]string, n)
	for i, item := range items {
		titles[i] = NormalizeTitle(item.Title)
	}

	var candidates func(i int) []int
	switch c.mode {
	case ModeBucketed:
		candidates = newTokenIndex(titles).later
	default:
		candidates = func(i int) []int {
			later := make([]int, 0, n-i-1)
			for j := i + 1; j < n; j++ {
				later = append(later, j)
			}
			return later
		}
	}

	processed := make([]bool, n)
	var clusters []Cluster

	for i := range items {
		if processed[i] {
			continue
		}
		processed[i] = true
		group := []int{i}

		for _, j := range candidates(i) {
			if processed[j] {
				continue
			}
			if normalizedSimilarity(titles[i], titles[j]) >= c.threshold {
				group = append(group, j)
				processed[j] = true
			}
		}

		if len(group) == 1 && c.weigher.Quality(items[i]) < c.minQuality {
			continue
		}

		members := make([]source.Item, len(group))
		for k, idx := range group {
			members[k] = items[idx]
		}

		cl, err := NewCluster(fmt.Sprintf("cluster_%d", len(clusters)), members, c.bestIndex(members))
		if err != nil {
			return nil, err
		}
		clusters = append(clusters, *cl)
	}

	return clusters, nil
}

// bestIndex picks the highest quality member; the first wins on ties.
func (c *Clusterer) bestIndex(items []source.Item) int {
	best, bestScore := 0, c.weigher.Quality(items[0])
	for i := 1; i < len(items); i++ {
		if s := c.weigher.Quality(items[i]); s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}

// tokenIndex maps each title word to the ascending positions using it.
type tokenIndex struct {
	tokens   [][]string
	postings map[string][]int
}

func newTokenIndex(titles []string) *tokenIndex {
	idx := &tokenIndex{
		tokens:   make([][]string, len(titles)),
		postings: make(map[string][]int),
	}
	for i, t := range titles {
		seen := make(map[string]bool)
		for _, w := range strings.Fields(t) {
			if seen[w] {
				continue
			}
			seen[w] = true
			idx.tokens[i] = append(idx.tokens[i], w)
			idx.postings[w] = append(idx.postings[w], i)
		}
	}
	return idx
}

// later returns positions after i sharing a word with title i, ascending.
func (idx *tokenIndex) later(i int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, w := range idx.tokens[i] {
		for _, j := range idx.postings[w] {
			if j > i && !seen[j] {
				seen[j] = true
				out = append(out, j)
			}
		}
	}
	sort.Ints(out)
	return out
}
