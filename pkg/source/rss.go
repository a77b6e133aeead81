package source

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
)

// DefaultMaxAge bounds how old a feed entry may be.
const DefaultMaxAge = 24 * time.Hour

// RSSFeed is a named RSS/Atom feed URL with the category of its outlet.
type RSSFeed struct {
	Name     string
	URL      string
	Category Category
}

// RSS collects news items from RSS/Atom feeds.
type RSS struct {
	client *http.Client
	feeds  []RSSFeed
	filter *Filter
	log    zerolog.Logger
	now    func() time.Time

	// MaxAge skips entries published longer ago than this. Zero disables the cutoff.
	MaxAge time.Duration
	// Workers caps concurrent feed fetches.
	Workers int
	// Retry governs re-fetching a feed after a transport error, 429 or 5xx.
	Retry Retry
}

// NewRSS creates a new RSS collector.
func NewRSS(feeds []RSSFeed, filter *Filter, log zerolog.Logger) *RSS {
	return &RSS{
		client:  &http.Client{Timeout: 30 * time.Second},
		feeds:   feeds,
		filter:  filter,
		log:     log,
		now:     time.Now,
		MaxAge:  DefaultMaxAge,
		Workers: DefaultWorkers,
		Retry:   DefaultRetry,
	}
}

func (r *RSS) Name() string { return "rss" }

// Feeds returns the configured feeds.
func (r *RSS) Feeds() []RSSFeed { return r.feeds }

// Only returns a collector restricted to the named feeds.
func (r *RSS) Only(names []string) *RSS {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[strings.ToLower(strings.TrimSpace(n))] = true
	}
	cp := *r
	cp.feeds = nil
	for _, f := range r.feeds {
		if wanted[strings.ToLower(f.Name)] {
			cp.feeds = append(cp.feeds, f)
		}
	}
	return &cp
}

// Collect fetches all feeds concurrently. Items keep feed order. A failing
// feed is logged and skipped; only cancellation returns an error.
func (r *RSS) Collect(ctx context.Context) ([]Item, error) {
	return collectAll(ctx, len(r.feeds), r.Workers,
		func(ctx context.Context, i int) ([]Item, error) {
			return r.collectFeed(ctx, r.feeds[i])
		},
		func(i int, items []Item, err error) {
			if err != nil {
				r.log.Warn().Err(err).Str("feed", r.feeds[i].Name).Msg("rss feed failed")
				return
			}
			r.log.Debug().Str("feed", r.feeds[i].Name).Int("items", len(items)).Msg("rss feed collected")
		})
}

func (r *RSS) collectFeed(ctx context.Context, feed RSSFeed) ([]Item, error) {
	body, err := fetch(ctx, r.client, r.Retry, feed.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch rss %s: %w", feed.Name, err)
	}

	// gofeed.Parser sets its translators lazily, so each feed gets its own.
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse rss %s: %w", feed.Name, err)
	}

	return r.itemsFromFeed(feed, parsed), nil
}

func (r *RSS) itemsFromFeed(feed RSSFeed, parsed *gofeed.Feed) []Item {
	var items []Item
	now := r.now().UTC()

	for _, entry := range parsed.Items {
		var published time.Time
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		} else if entry.UpdatedParsed != nil {
			published = entry.UpdatedParsed.UTC()
		}

		// Entries without a date are kept; freshness is not ours to judge.
		if r.MaxAge > 0 && !published.IsZero() && published.Before(now.Add(-r.MaxAge)) {
			continue
		}

		summary := PlainText(entry.Description)
		if summary == "" {
			summary = PlainText(entry.Content)
		}

		title := strings.TrimSpace(entry.Title)
		if !r.filter.Allows(title + " " + summary) {
			continue
		}

		link := entry.Link
		if link == "" && len(entry.Links) > 0 {
			link = entry.Links[0]
		}

		item := NewItem(feed.Name, feed.Category, title, link, summary, published)
		if entry.Author != nil {
			item.Author = entry.Author.Name
		}
		item.Tags = entry.Categories
		items = append(items, item)
	}

	return items
}

// PlainText strips markup from a feed description and collapses whitespace.
func PlainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
