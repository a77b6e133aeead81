package story

import (
	"fmt"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/elonfeng/storyrank/pkg/source"
)

const (
	kyivStrike  = "Russia launches new missile strike on Kyiv"
	kyivStrikes = "Russia launches new missile strikes on Kyiv"
	senatePass  = "Senate Passes New Sanctions Bill on Russia"
	senateOK    = "US Senate approves new Russia sanctions bill"
	chinaDrills = "China expands naval drills near Taiwan strait"
)

func TestDedupURLsKeepsFirst(t *testing.T) {
	items := []source.Item{
		item("Reuters", source.CategoryMainstream, "First", "https://example.com/story?utm_source=rss"),
		item("AP", source.CategoryRegional, "Second", "https://EXAMPLE.com/story/"),
		item("FT", source.CategoryAnalysis, "Third", "https://example.com/other"),
	}

	got := DedupURLs(items)
	assert.Equal(t, []string{"First", "Third"}, titles(got))
}

func TestDedupURLsIdempotent(t *testing.T) {
	items := []source.Item{
		item("a", source.CategoryMainstream, "1", "https://x.com/a"),
		item("b", source.CategoryMainstream, "2", "https://x.com/a/?fbclid=9"),
		item("c", source.CategoryMainstream, "3", "https://x.com/b"),
		item("d", source.CategoryMainstream, "4", ""),
		item("e", source.CategoryMainstream, "5", ""),
	}

	once := DedupURLs(items)
	twice := DedupURLs(once)
	assert.Equal(t, titles(once), titles(twice))
	assert.Equal(t, []string{"1", "3", "4"}, titles(once))
}

func TestDedupTitlesHeavierSourceReplaces(t *testing.T) {
	d := NewDeduplicator(DefaultConfig())
	items := []source.Item{
		item("Reuters", source.CategoryMainstream, kyivStrike, "https://reuters.com/kyiv"),
		item("AP", source.CategoryRegional, senatePass, "https://apnews.com/senate"),
		item("FT", source.CategoryAnalysis, kyivStrikes, "https://ft.com/kyiv"),
	}

	got := d.DedupTitles(items)
	// The replacement is appended, not put back in place.
	assert.Equal(t, []string{senatePass, kyivStrikes}, titles(got))
	assert.Equal(t, "FT", got[1].Source)
}

func TestDedupTitlesLighterOrEqualSourceDropped(t *testing.T) {
	d := NewDeduplicator(DefaultConfig())

	lighter := d.DedupTitles([]source.Item{
		item("CSIS", source.CategoryThinkTank, kyivStrike, "https://csis.org/kyiv"),
		item("Reuters", source.CategoryMainstream, kyivStrikes, "https://reuters.com/kyiv"),
	})
	assert.Equal(t, 1, len(lighter))
	assert.Equal(t, "CSIS", lighter[0].Source)

	equal := d.DedupTitles([]source.Item{
		item("AP", source.CategoryRegional, kyivStrike, "https://apnews.com/kyiv"),
		item("Kyiv Post", source.CategoryRegional, kyivStrikes, "https://kyivpost.com/kyiv"),
	})
	assert.Equal(t, 1, len(equal))
	assert.Equal(t, "AP", equal[0].Source)
}

func TestDedupTitlesRelatedStoriesSurvive(t *testing.T) {
	d := NewDeduplicator(DefaultConfig())
	got := d.DedupTitles([]source.Item{
		item("AP", source.CategoryRegional, senatePass, "https://apnews.com/senate"),
		item("CSIS", source.CategoryThinkTank, senateOK, "https://csis.org/senate"),
	})
	// ~0.70 similar: related, not duplicates.
	assert.Equal(t, 2, len(got))
}

func TestDedupTitlesReplacesEveryMatch(t *testing.T) {
	d := NewDeduplicator(DefaultConfig())
	a := item("Reuters", source.CategoryMainstream, "Russia strikes Kyiv power grid", "https://reuters.com/grid")
	b := item("AP", source.CategoryRegional, "Russia strikes Kyiv power grid again overnight", "https://apnews.com/grid")
	x := item("CSIS", source.CategoryThinkTank, "Russia strikes Kyiv power grid again", "https://csis.org/grid")

	got := d.DedupTitles([]source.Item{a, b, x})
	assert.Equal(t, 1, len(got))
	assert.Equal(t, "CSIS", got[0].Source)

	// A newcomer that does not outweigh every match is dropped.
	x.Category = source.CategoryRegional
	got = d.DedupTitles([]source.Item{a, b, x})
	assert.Equal(t, []string{a.Title, b.Title}, titles(got))
}

func TestDedupTitlesThresholdMonotonic(t *testing.T) {
	cfg := DefaultConfig()
	d := NewDeduplicator(cfg)
	heads := []string{
		kyivStrike, kyivStrikes, senatePass, senateOK, chinaDrills,
		"Russia strikes Kyiv power grid", "Russia strikes Kyiv power grid again overnight",
		"Russia strikes Kyiv power grid again", "Russia launches missile strike on Kyiv overnight",
		"Markets", "Markets rally",
	}
	cats := source.AllCategories()

	var items []source.Item
	for i, h := range heads {
		items = append(items, item(fmt.Sprintf("src%d", i), cats[i%len(cats)], h, fmt.Sprintf("https://x.com/%d", i)))
	}

	got := d.DedupTitles(items)
	for i := range got {
		for j := i + 1; j < len(got); j++ {
			if s := TitleSimilarity(got[i].Title, got[j].Title); s >= cfg.DuplicateThreshold {
				t.Errorf("%q and %q both survived with similarity %.3f", got[i].Title, got[j].Title, s)
			}
		}
	}
}

func TestDeduplicateEmptyTitles(t *testing.T) {
	d := NewDeduplicator(DefaultConfig())
	got := d.Deduplicate([]source.Item{
		item("a", source.CategoryMainstream, "", "https://x.com/1"),
		item("b", source.CategoryMainstream, "", "https://x.com/2"),
	})
	assert.Equal(t, 2, len(got))
	assert.Equal(t, 0, len(d.Deduplicate(nil)))
}

func TestDeduplicateDoesNotMutateInput(t *testing.T) {
	d := NewDeduplicator(DefaultConfig())
	items := []source.Item{
		item("Reuters", source.CategoryMainstream, kyivStrike, "https://reuters.com/kyiv"),
		item("AP", source.CategoryRegional, senatePass, "https://apnews.com/senate"),
		item("FT", source.CategoryAnalysis, kyivStrikes, "https://ft.com/kyiv"),
	}
	before := titles(items)

	d.Deduplicate(items)
	assert.Equal(t, before, titles(items))
}

// batchHeadlines are pairwise below the duplicate threshold.
var batchHeadlines = []string{
	"Russia launches missile strike on Kyiv",
	"Senate passes sanctions bill",
	"China expands naval drills near Taiwan",
	"Kenya holds general election",
	"Oil prices climb after OPEC cut",
	"Brazil unveils Amazon protection plan",
	"India tests hypersonic glide vehicle",
	"Iran nuclear talks stall in Vienna",
	"Japan raises defence budget",
	"Arctic shipping lanes open early",
	"Germany debates conscription return",
	"Sudan ceasefire collapses overnight",
	"Philippines protests reef blockade",
	"Mexico nationalises lithium mines",
	"Turkey blocks Nordic accession vote",
	"Pakistan floods displace millions",
	"Chile rewrites constitution draft",
	"Australia signs submarine deal",
	"Ethiopia and Tigray agree truce",
	"Poland buys Korean tanks",
	"Venezuela frees opposition leaders",
	"Saudi Arabia hosts Gaza summit",
	"Nigeria currency hits record low",
	"South Korea elects new president",
	"Canada expels foreign diplomat",
	"Haiti gangs seize capital port",
	"Myanmar junta extends emergency",
	"Argentina dollarization plan advances",
	"Serbia Kosovo border tensions flare",
	"EU approves carbon border tax",
	"Vietnam upgrades ties with Washington",
	"Greece wildfires force evacuations",
	"Niger coup leaders close airspace",
	"Indonesia moves capital to Borneo",
	"Cuba blackout leaves island dark",
	"Egypt secures IMF bailout",
	"Moldova accuses Moscow of plot",
	"Sri Lanka restructures foreign debt",
	"Peru president impeached by congress",
	"Norway halts seabed mining licences",
}

func TestDeduplicateBatch(t *testing.T) {
	// 40 distinct stories, 40 URL duplicates of them and 20 reworded
	// repeats from lighter sources: 100 items in all.
	var items []source.Item
	for i, title := range batchHeadlines {
		items = append(items, item("AP", source.CategoryRegional, title, fmt.Sprintf("https://apnews.com/story/%d", i)))
	}
	for i, title := range batchHeadlines {
		items = append(items, item("Wire", source.CategoryMainstream, title+" (wire)", fmt.Sprintf("https://APnews.com/story/%d/?utm_source=wire", i)))
	}
	for i, title := range batchHeadlines[:20] {
		items = append(items, item("Daily", source.CategoryMainstream, title+" again", fmt.Sprintf("https://daily.example/%d", i)))
	}
	assert.Equal(t, 100, len(items))

	out := NewDeduplicator(DefaultConfig()).Deduplicate(items)
	assert.Equal(t, true, len(out) >= 40 && len(out) <= 60)
	assert.Equal(t, batchHeadlines, titles(out))

	stats := Stats{Input: len(items), AfterDedup: len(out)}
	approx(t, 0.6, stats.DedupRate())
	assert.Equal(t, "60.00%", stats.Summary()["deduplication_rate"])
}
