package story

import (
	"sort"
)

// Ranker scores clusters and orders them, highest first.
type Ranker struct {
	weigher Weigher
}

// NewRanker creates a ranker sharing cfg's quality tuning.
func NewRanker(cfg Config) *Ranker {
	return &Ranker{weigher: NewWeigher(cfg)}
}

// ScoreCluster is 0.1 per member, plus every member's quality, plus 0.2 per
// distinct source.
func (r *Ranker) ScoreCluster(c Cluster) float64 {
	score := float64(len(c.Items)) * 0.1
	for _, item := range c.Items {
		score += r.weigher.Quality(item)
	}
	score += float64(len(c.Sources())) * 0.2
	return score
}

// Rank returns a copy of clusters with Score set, sorted by score. Equal
// scores keep their clustering order.
func (r *Ranker) Rank(clusters []Cluster) []Cluster {
	ranked := make([]Cluster, len(clusters))
	copy(ranked, clusters)

	for i := range ranked {
		ranked[i].Score = r.ScoreCluster(ranked[i])
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}
