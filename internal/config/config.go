package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/elonfeng/storyrank/pkg/source"
	"github.com/elonfeng/storyrank/pkg/story"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Sources  SourcesConfig  `yaml:"sources"`
	Story    StoryConfig    `yaml:"story"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Server   ServerConfig   `yaml:"server"`
	Filter   FilterConfig   `yaml:"filter"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig configures the SQLite run archive.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ScheduleConfig configures the daemon's run interval.
type ScheduleConfig struct {
	RunInterval string `yaml:"run_interval"`
}

// ParseRunInterval returns the run interval as time.Duration.
func (s ScheduleConfig) ParseRunInterval() time.Duration {
	d, err := time.ParseDuration(s.RunInterval)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// SourcesConfig holds configuration for all collectors.
type SourcesConfig struct {
	RSS    RSSConfig    `yaml:"rss"`
	Scrape ScrapeConfig `yaml:"scrape"`
}

// RSSConfig for the RSS feed collector.
type RSSConfig struct {
	Enabled bool       `yaml:"enabled"`
	MaxAge  string     `yaml:"max_age"`
	Feeds   []FeedItem `yaml:"feeds"`
}

// ParseMaxAge returns the entry age cutoff; "0" disables it.
func (r RSSConfig) ParseMaxAge() time.Duration {
	if r.MaxAge == "0" {
		return 0
	}
	d, err := time.ParseDuration(r.MaxAge)
	if err != nil || d < 0 {
		return 24 * time.Hour
	}
	return d
}

// FeedItem is a single RSS feed entry.
type FeedItem struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Category string `yaml:"category"` // mainstream, analysis, regional, think_tank
	Enabled  *bool  `yaml:"enabled"`  // unset means enabled
}

// IsEnabled reports whether the feed should be collected.
func (f FeedItem) IsEnabled() bool { return f.Enabled == nil || *f.Enabled }

// EnabledFeeds returns the feeds not switched off.
func (r RSSConfig) EnabledFeeds() []FeedItem {
	var feeds []FeedItem
	for _, f := range r.Feeds {
		if f.IsEnabled() {
			feeds = append(feeds, f)
		}
	}
	return feeds
}

// ScrapeConfig for outlets without a feed, read with CSS selectors.
type ScrapeConfig struct {
	Enabled bool       `yaml:"enabled"`
	Pages   []PageItem `yaml:"pages"`
}

// PageItem is a single scraped listing page.
type PageItem struct {
	Name      string          `yaml:"name"`
	URL       string          `yaml:"url"`
	Category  string          `yaml:"category"`
	Enabled   *bool           `yaml:"enabled"`
	Selectors SelectorsConfig `yaml:"selectors"`
}

// SelectorsConfig holds CSS selectors; empty ones use the scraper defaults.
type SelectorsConfig struct {
	Item    string `yaml:"item"`
	Title   string `yaml:"title"`
	Link    string `yaml:"link"`
	Summary string `yaml:"summary"`
	Date    string `yaml:"date"`
	Author  string `yaml:"author"`
}

// IsEnabled reports whether the page should be scraped.
func (p PageItem) IsEnabled() bool { return p.Enabled == nil || *p.Enabled }

// EnabledPages returns the pages not switched off.
func (s ScrapeConfig) EnabledPages() []PageItem {
	var pages []PageItem
	for _, p := range s.Pages {
		if p.IsEnabled() {
			pages = append(pages, p)
		}
	}
	return pages
}

// StoryConfig tunes deduplication, scoring and clustering.
type StoryConfig struct {
	DuplicateThreshold  float64            `yaml:"duplicate_threshold"`
	ClusterFactor       float64            `yaml:"cluster_factor"`
	ClusterMode         string             `yaml:"cluster_mode"` // greedy or bucketed
	SingletonMinQuality float64            `yaml:"singleton_min_quality"`
	Keywords            KeywordsConfig     `yaml:"keywords"`
	CategoryWeights     map[string]float64 `yaml:"category_weights"`
}

// KeywordsConfig lists relevance keywords. Empty lists fall back to the
// built-in tables.
type KeywordsConfig struct {
	High   []string `yaml:"high"`
	Medium []string `yaml:"medium"`
}

// AlertsConfig configures alert destinations.
type AlertsConfig struct {
	MinScore float64       `yaml:"min_score"`
	TopN     int           `yaml:"top_n"` // 0 disables alerts
	Slack    SlackConfig   `yaml:"slack"`
	Discord  DiscordConfig `yaml:"discord"`
	Webhook  WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// FilterConfig configures collection-time filtering.
type FilterConfig struct {
	IncludeKeywords []string `yaml:"include_keywords"`
	ExcludeKeywords []string `yaml:"exclude_keywords"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./storyrank.db"},
		Schedule: ScheduleConfig{RunInterval: "1h"},
		Sources: SourcesConfig{
			RSS: RSSConfig{
				Enabled: true,
				MaxAge:  "24h",
				Feeds: []FeedItem{
					{Name: "Reuters World", URL: "https://feeds.reuters.com/Reuters/worldNews", Category: "mainstream"},
					{Name: "BBC World", URL: "https://feeds.bbci.co.uk/news/world/rss.xml", Category: "mainstream"},
					{Name: "Foreign Affairs", URL: "https://www.foreignaffairs.com/rss.xml", Category: "analysis"},
					{Name: "The Diplomat", URL: "https://thediplomat.com/feed/", Category: "regional"},
					{Name: "CSIS", URL: "https://www.csis.org/analysis/feed", Category: "think_tank"},
				},
			},
			Scrape: ScrapeConfig{Enabled: true},
		},
		Story: StoryConfig{
			DuplicateThreshold:  0.8,
			ClusterFactor:       0.7,
			ClusterMode:         "greedy",
			SingletonMinQuality: 1.0,
		},
		Alerts: AlertsConfig{
			MinScore: 3.0,
			TopN:     3,
		},
		Server: ServerConfig{Port: 8080},
		Filter: FilterConfig{
			ExcludeKeywords: []string{"horoscope", "recipe", "celebrity"},
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if t := c.Story.DuplicateThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("story.duplicate_threshold %.2f out of range (0,1]", t)
	}
	if f := c.Story.ClusterFactor; f <= 0 || f > 1 {
		return fmt.Errorf("story.cluster_factor %.2f out of range (0,1]", f)
	}
	switch c.Story.ClusterMode {
	case "", "greedy", "bucketed":
	default:
		return fmt.Errorf("story.cluster_mode %q must be greedy or bucketed", c.Story.ClusterMode)
	}
	for i, f := range c.Sources.RSS.Feeds {
		if f.Name == "" || f.URL == "" {
			return fmt.Errorf("sources.rss.feeds[%d]: name and url are required", i)
		}
		if f.Category != "" {
			if _, err := source.ParseCategory(f.Category); err != nil {
				return fmt.Errorf("sources.rss.feeds[%d]: %w", i, err)
			}
		}
	}
	for i, p := range c.Sources.Scrape.Pages {
		if p.Name == "" || p.URL == "" {
			return fmt.Errorf("sources.scrape.pages[%d]: name and url are required", i)
		}
		if p.Category != "" {
			if _, err := source.ParseCategory(p.Category); err != nil {
				return fmt.Errorf("sources.scrape.pages[%d]: %w", i, err)
			}
		}
	}
	if c.Story.SingletonMinQuality < 0 {
		return fmt.Errorf("story.singleton_min_quality must not be negative")
	}
	if c.Alerts.TopN < 0 {
		return fmt.Errorf("alerts.top_n must not be negative")
	}
	return nil
}

// EngineConfig converts the story section into engine tuning. Empty mode and
// keyword lists keep the engine defaults; singleton_min_quality is taken as
// is, so 0 keeps every singleton.
func (c *Config) EngineConfig() (story.Config, error) {
	sc := story.DefaultConfig()
	if c.Story.DuplicateThreshold > 0 {
		sc.DuplicateThreshold = c.Story.DuplicateThreshold
	}
	if c.Story.ClusterFactor > 0 {
		sc.ClusterFactor = c.Story.ClusterFactor
	}
	if c.Story.ClusterMode != "" {
		sc.ClusterMode = story.ClusterMode(c.Story.ClusterMode)
	}
	sc.SingletonMinQuality = c.Story.SingletonMinQuality
	if len(c.Story.Keywords.High) > 0 {
		sc.HighPriorityKeywords = c.Story.Keywords.High
	}
	if len(c.Story.Keywords.Medium) > 0 {
		sc.MediumPriorityKeywords = c.Story.Keywords.Medium
	}
	if len(c.Story.CategoryWeights) > 0 {
		sc.CategoryWeights = make(map[source.Category]float64, len(c.Story.CategoryWeights))
		for name, w := range c.Story.CategoryWeights {
			cat, err := source.ParseCategory(name)
			if err != nil {
				return story.Config{}, fmt.Errorf("story.category_weights: %w", err)
			}
			sc.CategoryWeights[cat] = w
		}
	}
	if err := sc.Validate(); err != nil {
		return story.Config{}, fmt.Errorf("story config: %w", err)
	}
	return sc, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STORYRANK_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("STORYRANK_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("STORYRANK_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("STORYRANK_DUPLICATE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Story.DuplicateThreshold = f
		}
	}
	if v := os.Getenv("STORYRANK_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
	if v := os.Getenv("STORYRANK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Webhook.URL = v
		cfg.Alerts.Webhook.Enabled = true
	}
	if v := os.Getenv("STORYRANK_WEBHOOK_SECRET"); v != "" {
		cfg.Alerts.Webhook.Secret = v
	}
}
