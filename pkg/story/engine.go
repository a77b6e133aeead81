package story

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/elonfeng/storyrank/pkg/source"
)

// Pipeline stage names, as reported in StageError.
const (
	StageDedup   = "dedup"
	StageScore   = "score"
	StageCluster = "cluster"
	StageRank    = "rank"
)

// DedupStage removes duplicate items.
type DedupStage interface {
	Deduplicate(items []source.Item) []source.Item
}

// ScoreStage annotates relevance and sorts items by it.
type ScoreStage interface {
	Score(items []source.Item) []source.Item
}

// ClusterStage groups scored items into clusters.
type ClusterStage interface {
	Cluster(items []source.Item) ([]Cluster, error)
}

// RankStage scores and orders clusters.
type RankStage interface {
	Rank(clusters []Cluster) []Cluster
}

// StageError reports which stage failed a run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Stats describes a single engine run.
type Stats struct {
	StartedAt  time.Time     `json:"started_at"`
	Input      int           `json:"input"`
	AfterDedup int           `json:"after_dedup"`
	Clusters   int           `json:"clusters"`
	Duration   time.Duration `json:"duration"`
	Errors     []string      `json:"errors,omitempty"`
}

// DedupRate is the share of input items removed as duplicates.
func (s Stats) DedupRate() float64 {
	if s.Input == 0 {
		return 0
	}
	return float64(s.Input-s.AfterDedup) / float64(s.Input)
}

// Summary renders the stats for display.
func (s Stats) Summary() map[string]any {
	errs := s.Errors
	if errs == nil {
		errs = []string{}
	}
	return map[string]any{
		"total_items":        s.Input,
		"items_after_dedup":  s.AfterDedup,
		"clusters_created":   s.Clusters,
		"deduplication_rate": fmt.Sprintf("%.2f%%", s.DedupRate()*100),
		"processing_time":    fmt.Sprintf("%.2fs", s.Duration.Seconds()),
		"errors":             errs,
	}
}

// Result is the outcome of a run: ranked clusters, best first.
type Result struct {
	Clusters []Cluster `json:"clusters"`
	Stats    Stats     `json:"stats"`
}

// Engine runs dedup, relevance scoring, clustering and ranking over a batch.
// It does no I/O and holds no state between runs, but items passed to Run
// must not be shared with a concurrent run.
type Engine struct {
	dedup   DedupStage
	scorer  ScoreStage
	cluster ClusterStage
	ranker  RankStage
	log     zerolog.Logger
	now     func() time.Time
}

// NewEngine wires the default stages from cfg.
func NewEngine(cfg Config, log zerolog.Logger) *Engine {
	return NewEngineWithStages(
		NewDeduplicator(cfg),
		NewRelevanceScorer(cfg),
		NewClusterer(cfg),
		NewRanker(cfg),
		log,
	)
}

// NewEngineWithStages creates an engine from explicit stages.
func NewEngineWithStages(d DedupStage, s ScoreStage, c ClusterStage, r RankStage, log zerolog.Logger) *Engine {
	return &Engine{
		dedup:   d,
		scorer:  s,
		cluster: c,
		ranker:  r,
		log:     log,
		now:     time.Now,
	}
}

// Run processes one batch. A stage failure, including a panic, yields a
// *StageError and a Result with no clusters; the error text is also kept in
// Result.Stats.Errors. A nil error with no clusters means nothing qualified.
func (e *Engine) Run(items []source.Item) (Result, error) {
	start := e.now()
	res := Result{Stats: Stats{StartedAt: start, Input: len(items)}}

	e.log.Info().Int("items", len(items)).Msg("processing batch")

	clusters, err := e.run(items, &res.Stats)
	res.Stats.Duration = e.now().Sub(start)

	if err != nil {
		res.Stats.Errors = append(res.Stats.Errors, err.Error())
		e.log.Error().Err(err).Dur("took", res.Stats.Duration).Msg("processing failed")
		return res, err
	}

	res.Clusters = clusters
	e.log.Info().
		Int("input", res.Stats.Input).
		Int("after_dedup", res.Stats.AfterDedup).
		Int("clusters", res.Stats.Clusters).
		Str("dedup_rate", fmt.Sprintf("%.2f%%", res.Stats.DedupRate()*100)).
		Dur("took", res.Stats.Duration).
		Msg("processing completed")
	return res, nil
}

func (e *Engine) run(items []source.Item, stats *Stats) ([]Cluster, error) {
	var (
		unique   []source.Item
		scored   []source.Item
		clusters []Cluster
		ranked   []Cluster
	)

	err := stage(StageDedup, func() error {
		unique = e.dedup.Deduplicate(items)
		return nil
	})
	if err != nil {
		return nil, err
	}
	stats.AfterDedup = len(unique)
	e.log.Debug().Int("unique", len(unique)).Msg("deduplicated")

	err = stage(StageScore, func() error {
		scored = e.scorer.Score(unique)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = stage(StageCluster, func() error {
		var cerr error
		clusters, cerr = e.cluster.Cluster(scored)
		return cerr
	})
	if err != nil {
		return nil, err
	}
	stats.Clusters = len(clusters)
	e.log.Debug().Int("clusters", len(clusters)).Msg("clustered")

	err = stage(StageRank, func() error {
		ranked = e.ranker.Rank(clusters)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ranked, nil
}

// stage runs fn, converting a returned error or a panic into a StageError.
func stage(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &StageError{Stage: name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if ferr := fn(); ferr != nil {
		return &StageError{Stage: name, Err: ferr}
	}
	return nil
}
