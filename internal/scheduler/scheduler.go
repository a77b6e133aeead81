package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/elonfeng/storyrank/internal/store"
	"github.com/elonfeng/storyrank/pkg/alert"
	"github.com/elonfeng/storyrank/pkg/source"
	"github.com/elonfeng/storyrank/pkg/story"
)

// Engine ranks one collected batch.
type Engine interface {
	Run(items []source.Item) (story.Result, error)
}

// Options tunes the scheduler loop and alerting.
type Options struct {
	Interval time.Duration
	// MinScore is the cluster score an alert requires.
	MinScore float64
	// TopN caps alerts per run, best clusters first. Zero sends none.
	TopN int
}

// Scheduler runs periodic collection, ranking and alerting.
type Scheduler struct {
	store    store.Store
	sources  []source.Source
	engine   Engine
	alertMgr *alert.Manager
	opts     Options
	log      zerolog.Logger
}

// New creates a new scheduler.
func New(
	s store.Store,
	sources []source.Source,
	engine Engine,
	alertMgr *alert.Manager,
	opts Options,
	log zerolog.Logger,
) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = time.Hour
	}
	return &Scheduler{
		store:    s,
		sources:  sources,
		engine:   engine,
		alertMgr: alertMgr,
		opts:     opts,
		log:      log,
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.opts.Interval).Msg("scheduler started")
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
		s.log.Error().Err(err).Msg("run failed")
	}
}

// RunOnce collects from every source, ranks the batch, archives the run and
// alerts on the best clusters. A failed engine run is still archived; its
// error is returned along with the run.
func (s *Scheduler) RunOnce(ctx context.Context) (*store.Run, error) {
	items, err := s.Collect(ctx)
	if err != nil {
		return nil, err
	}

	res, runErr := s.engine.Run(items)
	run := store.NewRun(res, runErr)
	if err := s.store.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("archive run: %w", err)
	}
	s.log.Info().
		Str("run", run.ID).
		Str("status", run.Status).
		Int("clusters", len(res.Clusters)).
		Msg("run archived")

	if runErr != nil {
		return run, runErr
	}

	s.alert(ctx, run.ID, res.Clusters)
	return run, nil
}

// Collect gathers items from all sources. A failing source is logged and
// skipped; only cancellation aborts collection.
func (s *Scheduler) Collect(ctx context.Context) ([]source.Item, error) {
	var all []source.Item
	for _, src := range s.sources {
		items, err := src.Collect(ctx)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			s.log.Warn().Err(err).Str("source", src.Name()).Msg("collect failed")
			continue
		}
		s.log.Info().Str("source", src.Name()).Int("items", len(items)).Msg("collected")
		all = append(all, items...)
	}
	s.log.Info().Int("total", len(all)).Msg("collection finished")
	return all, nil
}

// alert broadcasts the top clusters scoring at least MinScore. Clusters
// arrive ranked, so the first one below the bar ends the loop.
func (s *Scheduler) alert(ctx context.Context, runID string, clusters []story.Cluster) {
	if !s.alertMgr.HasNotifiers() {
		return
	}

	for i, c := range clusters {
		if i >= s.opts.TopN || c.Score < s.opts.MinScore {
			break
		}

		n := alert.NotificationFromCluster(runID, c)
		if err := s.alertMgr.Broadcast(ctx, n); err != nil {
			s.log.Error().Err(err).Str("cluster", c.ID).Msg("alert failed")
			continue
		}

		if err := s.store.MarkAlerted(ctx, runID, c.ID); err != nil {
			s.log.Warn().Err(err).Str("cluster", c.ID).Msg("mark alerted")
		}
		s.log.Info().Str("cluster", c.ID).Float64("score", c.Score).Str("title", n.Title).Msg("alerted")
	}
}
