package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/rs/zerolog"
)

const testListing = `<html><body>
<div class="river">
  <div class="card">
    <h3 class="headline"> Carnegie  experts assess the Sahel </h3>
    <a class="more" href="/research/sahel">Read</a>
    <p class="dek">Juntas, <b>Wagner</b> and the coup belt.</p>
    <time datetime="2026-10-12T08:30:00Z">Oct 12</time>
    <span class="byline">Jane Doe</span>
  </div>
  <div class="card">
    <h3 class="headline">Horoscope for diplomats</h3>
    <a class="more" href="/fun">Read</a>
  </div>
  <div class="card">
    <h3 class="headline">No link here</h3>
  </div>
  <div class="card">
    <h3 class="headline">Arctic shipping lanes</h3>
    <a class="more" href="https://other.example/arctic">Read</a>
    <span class="date">Oct 11, 2026</span>
  </div>
</div>
</body></html>`

func TestScrapeCollect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "storyrank/1.0", r.Header.Get("User-Agent"))
		w.Write([]byte(testListing))
	}))
	defer srv.Close()

	page := ScrapePage{
		Name:     "Carnegie",
		URL:      srv.URL + "/research/",
		Category: CategoryThinkTank,
		Selectors: Selectors{
			Item:    ".card",
			Title:   ".headline",
			Link:    "a.more",
			Summary: ".dek",
			Date:    "time, .date",
			Author:  ".byline",
		},
	}
	s := NewScrape([]ScrapePage{page}, NewFilter(nil, []string{"horoscope"}), zerolog.Nop())

	items, err := s.Collect(context.Background())
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(items))

	first := items[0]
	assert.Equal(t, "Carnegie", first.Source)
	assert.Equal(t, CategoryThinkTank, first.Category)
	assert.Equal(t, "Carnegie experts assess the Sahel", first.Title)
	assert.Equal(t, srv.URL+"/research/sahel", first.URL)
	assert.Equal(t, "Juntas, Wagner and the coup belt.", first.Summary)
	assert.Equal(t, "Jane Doe", first.Author)
	assert.Equal(t, time.Date(2026, 10, 12, 8, 30, 0, 0, time.UTC), first.Published)

	second := items[1]
	assert.Equal(t, "Arctic shipping lanes", second.Title)
	assert.Equal(t, "https://other.example/arctic", second.URL)
	assert.Equal(t, "", second.Summary)
	assert.Equal(t, time.Date(2026, 10, 11, 0, 0, 0, 0, time.UTC), second.Published)
}

func TestScrapeDefaultSelectors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<article><h2>Ceasefire talks resume</h2><a href="talks">x</a><p>Envoys return.</p><time>someday</time></article>`))
	}))
	defer srv.Close()

	s := NewScrape([]ScrapePage{{Name: "Desk", URL: srv.URL + "/news/", Category: CategoryRegional}}, nil, zerolog.Nop())

	items, err := s.Collect(context.Background())
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(items))
	assert.Equal(t, "Ceasefire talks resume", items[0].Title)
	assert.Equal(t, srv.URL+"/news/talks", items[0].URL)
	assert.Equal(t, "Envoys return.", items[0].Summary)
	assert.Equal(t, true, items[0].Published.IsZero())
}

func TestScrapeSkipsFailingPage(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<article><h2>Budget vote</h2><a href="/vote">x</a></article>`))
	}))
	defer good.Close()

	s := NewScrape([]ScrapePage{
		{Name: "bad", URL: bad.URL},
		{Name: "good", URL: good.URL, Category: CategoryAnalysis},
	}, nil, zerolog.Nop())
	s.Retry = Retry{Attempts: 2, Delay: time.Millisecond}

	items, err := s.Collect(context.Background())
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(items))
	assert.Equal(t, "good", items[0].Source)
	assert.Equal(t, good.URL+"/vote", items[0].URL)
}

func TestScrapeOnly(t *testing.T) {
	s := NewScrape([]ScrapePage{{Name: "Carnegie"}, {Name: "RAND"}}, nil, zerolog.Nop())

	only := s.Only([]string{" rand "})
	assert.Equal(t, 1, len(only.Pages()))
	assert.Equal(t, "RAND", only.Pages()[0].Name)
	assert.Equal(t, 2, len(s.Pages()))
}
