package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/rs/zerolog"

	"github.com/elonfeng/storyrank/internal/config"
	"github.com/elonfeng/storyrank/internal/logger"
	"github.com/elonfeng/storyrank/internal/scheduler"
	"github.com/elonfeng/storyrank/internal/store"
	"github.com/elonfeng/storyrank/pkg/alert"
	"github.com/elonfeng/storyrank/pkg/server"
	"github.com/elonfeng/storyrank/pkg/source"
	"github.com/elonfeng/storyrank/pkg/story"
)

// titleWidth is the display width of the TITLE column.
const titleWidth = 72

// app bundles what every command needs.
type app struct {
	cfg    *config.Config
	log    zerolog.Logger
	engine *story.Engine
}

func loadApp() (*app, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	engine, err := buildEngine(cfg, log)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: log, engine: engine}, nil
}

func buildEngine(cfg *config.Config, log zerolog.Logger) (*story.Engine, error) {
	sc, err := cfg.EngineConfig()
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	return story.NewEngine(sc, log.With().Str("component", "engine").Logger()), nil
}

func buildSources(cfg *config.Config, log zerolog.Logger, only []string) ([]source.Source, error) {
	filter := source.NewFilter(cfg.Filter.IncludeKeywords, cfg.Filter.ExcludeKeywords)
	var sources []source.Source

	if cfg.Sources.RSS.Enabled {
		var feeds []source.RSSFeed
		for _, f := range cfg.Sources.RSS.EnabledFeeds() {
			cat, err := parseCategory(f.Category)
			if err != nil {
				return nil, fmt.Errorf("feed %s: %w", f.Name, err)
			}
			feeds = append(feeds, source.RSSFeed{Name: f.Name, URL: f.URL, Category: cat})
		}

		rss := source.NewRSS(feeds, filter, log.With().Str("component", "rss").Logger())
		rss.MaxAge = cfg.Sources.RSS.ParseMaxAge()
		if len(only) > 0 {
			rss = rss.Only(only)
		}
		if len(rss.Feeds()) > 0 {
			sources = append(sources, rss)
		}
	}

	if cfg.Sources.Scrape.Enabled {
		var pages []source.ScrapePage
		for _, p := range cfg.Sources.Scrape.EnabledPages() {
			cat, err := parseCategory(p.Category)
			if err != nil {
				return nil, fmt.Errorf("page %s: %w", p.Name, err)
			}
			pages = append(pages, source.ScrapePage{
				Name:      p.Name,
				URL:       p.URL,
				Category:  cat,
				Selectors: source.Selectors(p.Selectors),
			})
		}

		scrape := source.NewScrape(pages, filter, log.With().Str("component", "scrape").Logger())
		if len(only) > 0 {
			scrape = scrape.Only(only)
		}
		if len(scrape.Pages()) > 0 {
			sources = append(sources, scrape)
		}
	}

	if len(only) > 0 && len(sources) == 0 {
		return nil, fmt.Errorf("no configured sources match %v", only)
	}
	return sources, nil
}

// parseCategory defaults an unset category to regional.
func parseCategory(name string) (source.Category, error) {
	if name == "" {
		return source.CategoryRegional, nil
	}
	return source.ParseCategory(name)
}

func buildAlertManager(cfg *config.Config) *alert.Manager {
	var notifiers []alert.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.Alerts.Discord.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}

	return alert.NewManager(notifiers)
}

func buildScheduler(a *app, db store.Store, sources []source.Source, alerts *alert.Manager) *scheduler.Scheduler {
	return scheduler.New(db, sources, a.engine, alerts, scheduler.Options{
		Interval: a.cfg.Schedule.ParseRunInterval(),
		MinScore: a.cfg.Alerts.MinScore,
		TopN:     a.cfg.Alerts.TopN,
	}, a.log.With().Str("component", "scheduler").Logger())
}

func runCollect(ctx context.Context, out io.Writer, feeds []string, withAlerts bool) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	db, err := store.New(a.cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	sources, err := buildSources(a.cfg, a.log, feeds)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return errors.New("no sources enabled")
	}

	var alerts *alert.Manager
	if withAlerts {
		alerts = buildAlertManager(a.cfg)
	}

	run, err := buildScheduler(a, db, sources, alerts).RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("collect: %w", err)
	}

	fmt.Fprintf(out, "run %s: %d items, %d after dedup, %d clusters\n\n",
		run.ID, run.Stats.Input, run.Stats.AfterDedup, len(run.Clusters))
	return printClusters(out, run.Clusters, 10)
}

func runRank(ctx context.Context, out io.Writer, input string, jsonOutput bool, limit int) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	items, err := source.NewFile(input).Collect(ctx)
	if err != nil {
		return err
	}

	res, runErr := a.engine.Run(items)
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]any{
			"clusters": firstClusters(res.Clusters, limit),
			"stats":    res.Stats.Summary(),
		}); err != nil {
			return err
		}
		return runErr
	}
	if runErr != nil {
		return fmt.Errorf("rank %s: %w", input, runErr)
	}

	fmt.Fprintf(out, "%d items, %d after dedup (%.2f%%), %d clusters in %s\n\n",
		res.Stats.Input, res.Stats.AfterDedup, res.Stats.DedupRate()*100,
		res.Stats.Clusters, res.Stats.Duration.Round(time.Millisecond))
	return printClusters(out, store.NewRun(res, nil).Clusters, limit)
}

func firstClusters(clusters []story.Cluster, limit int) []story.Cluster {
	if clusters == nil {
		return []story.Cluster{}
	}
	if limit > 0 && len(clusters) > limit {
		return clusters[:limit]
	}
	return clusters
}

func runRuns(ctx context.Context, out io.Writer, limit int) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	db, err := store.New(a.cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	return printRuns(out, runs)
}

func runClusters(ctx context.Context, out io.Writer, runID string, jsonOutput bool, limit int) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	db, err := store.New(a.cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	var run *store.Run
	if runID != "" {
		run, err = db.GetRun(ctx, runID)
	} else {
		run, err = db.LatestRun(ctx)
	}
	if errors.Is(err, store.ErrNotFound) && runID == "" {
		fmt.Fprintln(out, "no runs yet (try: storyrank collect)")
		return nil
	}
	if err != nil {
		return err
	}

	clusters := run.Clusters
	if limit > 0 && len(clusters) > limit {
		clusters = clusters[:limit]
	}

	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(clusters)
	}

	fmt.Fprintf(out, "run %s (%s, %s)\n\n", run.ID, run.Status, run.StartedAt.Format(time.RFC3339))
	return printClusters(out, clusters, 0)
}

func printClusters(out io.Writer, clusters []store.ClusterRecord, limit int) error {
	if len(clusters) == 0 {
		fmt.Fprintln(out, "no clusters")
		return nil
	}
	if limit > 0 && len(clusters) > limit {
		clusters = clusters[:limit]
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tSCORE\tSIZE\tSOURCES\tTITLE")
	for _, c := range clusters {
		fmt.Fprintf(w, "%d\t%.2f\t%d\t%d\t%s\n",
			c.Position, c.Score, c.Size, len(c.Sources),
			runewidth.Truncate(c.Title, titleWidth, "..."))
	}
	return w.Flush()
}

func printRuns(out io.Writer, runs []store.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs yet (try: storyrank collect)")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tSTATUS\tITEMS\tUNIQUE\tCLUSTERS")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n",
			r.ID, r.StartedAt.Format(time.RFC3339), r.Status,
			r.Stats.Input, r.Stats.AfterDedup, r.Stats.Clusters)
	}
	return w.Flush()
}

func runServe(port int) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	if port == 0 {
		port = a.cfg.Server.Port
	}

	db, err := store.New(a.cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	sources, err := buildSources(a.cfg, a.log, nil)
	if err != nil {
		return err
	}
	runner := buildScheduler(a, db, sources, nil)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := server.New(db, a.engine, runner, port, a.log.With().Str("component", "server").Logger())
	return srv.ListenAndServe(ctx)
}

func runDaemon(port int) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	if port == 0 {
		port = a.cfg.Server.Port
	}

	db, err := store.New(a.cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	sources, err := buildSources(a.cfg, a.log, nil)
	if err != nil {
		return err
	}
	alerts := buildAlertManager(a.cfg)
	if alerts.HasNotifiers() {
		a.log.Info().Strs("notifiers", alerts.Names()).Msg("alerts enabled")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := buildScheduler(a, db, sources, alerts)
	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			a.log.Error().Err(err).Msg("scheduler stopped")
		}
	}()

	srv := server.New(db, a.engine, sched, port, a.log.With().Str("component", "server").Logger())
	err = srv.ListenAndServe(ctx)
	a.log.Info().Msg("shut down")
	return err
}
