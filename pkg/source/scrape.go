package source

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

// Selectors locate the parts of each headline on a scraped page. Empty
// fields fall back to DefaultSelectors.
type Selectors struct {
	Item    string
	Title   string
	Link    string
	Summary string
	Date    string
	Author  string
}

// DefaultSelectors match common news listing markup.
var DefaultSelectors = Selectors{
	Item:    "article",
	Title:   "h1, h2, h3, .title, .headline",
	Link:    "a",
	Summary: ".summary, .excerpt, .description, p",
	Date:    "time, .date, .published",
	Author:  `.author, .byline, [rel="author"]`,
}

func (s Selectors) withDefaults() Selectors {
	d := DefaultSelectors
	if s.Item != "" {
		d.Item = s.Item
	}
	if s.Title != "" {
		d.Title = s.Title
	}
	if s.Link != "" {
		d.Link = s.Link
	}
	if s.Summary != "" {
		d.Summary = s.Summary
	}
	if s.Date != "" {
		d.Date = s.Date
	}
	if s.Author != "" {
		d.Author = s.Author
	}
	return d
}

// ScrapePage is an outlet without a feed, read from its listing page.
type ScrapePage struct {
	Name      string
	URL       string
	Category  Category
	Selectors Selectors
}

// Scrape collects news items from HTML listing pages.
type Scrape struct {
	client *http.Client
	pages  []ScrapePage
	filter *Filter
	log    zerolog.Logger

	Workers int
	Retry   Retry
}

// NewScrape creates a new page scraper.
func NewScrape(pages []ScrapePage, filter *Filter, log zerolog.Logger) *Scrape {
	return &Scrape{
		client:  &http.Client{Timeout: 30 * time.Second},
		pages:   pages,
		filter:  filter,
		log:     log,
		Workers: DefaultWorkers,
		Retry:   DefaultRetry,
	}
}

func (s *Scrape) Name() string { return "scrape" }

// Pages returns the configured pages.
func (s *Scrape) Pages() []ScrapePage { return s.pages }

// Only returns a scraper restricted to the named pages.
func (s *Scrape) Only(names []string) *Scrape {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[strings.ToLower(strings.TrimSpace(n))] = true
	}
	cp := *s
	cp.pages = nil
	for _, p := range s.pages {
		if wanted[strings.ToLower(p.Name)] {
			cp.pages = append(cp.pages, p)
		}
	}
	return &cp
}

// Collect scrapes all pages concurrently. Items keep page order.
func (s *Scrape) Collect(ctx context.Context) ([]Item, error) {
	return collectAll(ctx, len(s.pages), s.Workers,
		func(ctx context.Context, i int) ([]Item, error) {
			return s.collectPage(ctx, s.pages[i])
		},
		func(i int, items []Item, err error) {
			if err != nil {
				s.log.Warn().Err(err).Str("page", s.pages[i].Name).Msg("scrape failed")
				return
			}
			if len(items) == 0 {
				s.log.Warn().Str("page", s.pages[i].Name).Msg("scrape matched no items")
				return
			}
			s.log.Debug().Str("page", s.pages[i].Name).Int("items", len(items)).Msg("page scraped")
		})
}

func (s *Scrape) collectPage(ctx context.Context, page ScrapePage) ([]Item, error) {
	base, err := url.Parse(page.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url %s: %w", page.Name, err)
	}

	body, err := fetch(ctx, s.client, s.Retry, page.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch page %s: %w", page.Name, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse page %s: %w", page.Name, err)
	}

	return s.itemsFromDocument(page, base, doc), nil
}

func (s *Scrape) itemsFromDocument(page ScrapePage, base *url.URL, doc *goquery.Document) []Item {
	sel := page.Selectors.withDefaults()
	var items []Item

	doc.Find(sel.Item).Each(func(_ int, node *goquery.Selection) {
		title := cleanText(node.Find(sel.Title).First().Text())
		if title == "" {
			return
		}

		href, ok := node.Find(sel.Link).First().Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		ref, err := base.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}

		summary := cleanText(node.Find(sel.Summary).First().Text())
		if !s.filter.Allows(title + " " + summary) {
			return
		}

		item := NewItem(page.Name, page.Category, title, ref.String(), summary, scrapedDate(node.Find(sel.Date).First()))
		item.Author = cleanText(node.Find(sel.Author).First().Text())
		items = append(items, item)
	})

	return items
}

// dateLayouts are tried in order on a date element's datetime attribute or text.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
}

// scrapedDate returns the zero time when no layout matches.
func scrapedDate(node *goquery.Selection) time.Time {
	raw, ok := node.Attr("datetime")
	if !ok || strings.TrimSpace(raw) == "" {
		raw = node.Text()
	}
	raw = cleanText(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
