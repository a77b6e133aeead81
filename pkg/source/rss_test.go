package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/rs/zerolog"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>World</title>
  <item>
    <title>NATO ministers meet in Brussels</title>
    <link>https://example.com/nato?utm_source=rss</link>
    <description><![CDATA[<p>Defence ministers <b>gather</b> to discuss spending.</p>]]></description>
    <pubDate>Mon, 12 Oct 2026 09:00:00 GMT</pubDate>
    <category>defence</category>
  </item>
  <item>
    <title>Old story</title>
    <link>https://example.com/old</link>
    <description>Something from last week.</description>
    <pubDate>Mon, 05 Oct 2026 09:00:00 GMT</pubDate>
  </item>
  <item>
    <title>Celebrity gossip roundup</title>
    <link>https://example.com/gossip</link>
    <description>Not news.</description>
    <pubDate>Mon, 12 Oct 2026 08:00:00 GMT</pubDate>
  </item>
  <item>
    <title>Undated analysis of Arctic claims</title>
    <link>https://example.com/arctic</link>
    <description>Long read.</description>
  </item>
</channel>
</rss>`

func TestRSSCollect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "storyrank/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(testFeed))
	}))
	defer srv.Close()

	feeds := []RSSFeed{{Name: "World Desk", URL: srv.URL, Category: CategoryRegional}}
	r := NewRSS(feeds, NewFilter(nil, []string{"celebrity"}), zerolog.Nop())
	r.now = func() time.Time { return time.Date(2026, 10, 12, 12, 0, 0, 0, time.UTC) }

	items, err := r.Collect(context.Background())
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(items))

	first := items[0]
	assert.Equal(t, "World Desk", first.Source)
	assert.Equal(t, CategoryRegional, first.Category)
	assert.Equal(t, "NATO ministers meet in Brussels", first.Title)
	assert.Equal(t, "https://example.com/nato?utm_source=rss", first.URL)
	assert.Equal(t, "Defence ministers gather to discuss spending.", first.Summary)
	assert.Equal(t, []string{"defence"}, first.Tags)
	assert.Equal(t, 12, first.Published.Day())

	assert.Equal(t, "Undated analysis of Arctic claims", items[1].Title)
	assert.Equal(t, true, items[1].Published.IsZero())
}

func TestRSSCollectSkipsFailingFeed(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testFeed))
	}))
	defer good.Close()

	r := NewRSS([]RSSFeed{
		{Name: "bad", URL: bad.URL, Category: CategoryMainstream},
		{Name: "good", URL: good.URL, Category: CategoryAnalysis},
	}, nil, zerolog.Nop())
	r.MaxAge = 0
	r.Retry = Retry{Attempts: 2, Delay: time.Millisecond}

	items, err := r.Collect(context.Background())
	assert.Equal(t, nil, err)
	assert.Equal(t, 4, len(items))
	for _, item := range items {
		assert.Equal(t, "good", item.Source)
	}
}

func TestRSSOnly(t *testing.T) {
	r := NewRSS([]RSSFeed{{Name: "Reuters"}, {Name: "CSIS"}}, nil, zerolog.Nop())

	only := r.Only([]string{"csis"})
	assert.Equal(t, 1, len(only.Feeds()))
	assert.Equal(t, "CSIS", only.Feeds()[0].Name)
	assert.Equal(t, 2, len(r.Feeds()))
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "a b", PlainText("  a \n b "))
	assert.Equal(t, "Tom & Jerry", PlainText("Tom &amp; Jerry"))
	assert.Equal(t, "Hello world", PlainText("<div>Hello <em>world</em></div>"))
}

func TestRSSCollectRetries(t *testing.T) {
	var hits atomic.Int32
	flaky := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(testFeed))
	}))
	defer flaky.Close()

	r := NewRSS([]RSSFeed{{Name: "flaky", URL: flaky.URL}}, nil, zerolog.Nop())
	r.MaxAge = 0
	r.Retry = Retry{Attempts: 3, Delay: time.Millisecond}

	items, err := r.Collect(context.Background())
	assert.Equal(t, nil, err)
	assert.Equal(t, 4, len(items))
	assert.Equal(t, int32(3), hits.Load())
}

func TestRSSCollectGivesUpAfterAttempts(t *testing.T) {
	var down, missing atomic.Int32
	downSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		down.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer downSrv.Close()
	missingSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		missing.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer missingSrv.Close()

	r := NewRSS([]RSSFeed{
		{Name: "down", URL: downSrv.URL},
		{Name: "missing", URL: missingSrv.URL},
	}, nil, zerolog.Nop())
	r.Retry = Retry{Attempts: 3, Delay: time.Millisecond}

	items, err := r.Collect(context.Background())
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, len(items))
	assert.Equal(t, int32(3), down.Load())
	assert.Equal(t, int32(1), missing.Load())
}

func TestRSSCollectConcurrent(t *testing.T) {
	var (
		inFlight, peak atomic.Int32
		once           sync.Once
		ready          = make(chan struct{})
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		if n == 2 {
			once.Do(func() { close(ready) })
		}
		select {
		case <-ready:
		case <-time.After(2 * time.Second):
		}
		fmt.Fprintf(w, `<rss version="2.0"><channel><item><title>%s</title><link>https://example.com%s</link></item></channel></rss>`,
			r.URL.Path, r.URL.Path)
	}))
	defer srv.Close()

	var feeds []RSSFeed
	for _, name := range []string{"a", "b", "c", "d"} {
		feeds = append(feeds, RSSFeed{Name: name, URL: srv.URL + "/" + name})
	}
	r := NewRSS(feeds, nil, zerolog.Nop())
	r.Workers = 2

	items, err := r.Collect(context.Background())
	assert.Equal(t, nil, err)
	assert.Equal(t, int32(2), peak.Load())

	var titles []string
	for _, item := range items {
		titles = append(titles, item.Title)
	}
	assert.Equal(t, []string{"/a", "/b", "/c", "/d"}, titles)
}

func TestRSSCollectCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testFeed))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRSS([]RSSFeed{{Name: "a", URL: srv.URL}}, nil, zerolog.Nop())
	items, err := r.Collect(ctx)
	assert.Equal(t, context.Canceled, err)
	assert.Equal(t, 0, len(items))
}
