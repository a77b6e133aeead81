package source

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/go-playground/assert/v2"
)

func TestNewItemCapsSummary(t *testing.T) {
	long := strings.Repeat("é", 600)
	item := NewItem("Reuters", CategoryMainstream, "Title", "https://example.com", long, time.Time{})

	assert.Equal(t, MaxSummaryLen, utf8.RuneCountInString(item.Summary))
	assert.Equal(t, true, strings.HasSuffix(item.Summary, "..."))
	assert.Equal(t, 0.0, item.Relevance)
}

func TestNewItemKeepsShortSummary(t *testing.T) {
	exact := strings.Repeat("a", MaxSummaryLen)
	item := NewItem("Reuters", CategoryMainstream, "Title", "https://example.com", exact, time.Time{})
	assert.Equal(t, exact, item.Summary)
}

func TestParseCategory(t *testing.T) {
	cases := map[string]Category{
		"mainstream": CategoryMainstream,
		"Analysis":   CategoryAnalysis,
		" regional ": CategoryRegional,
		"think_tank": CategoryThinkTank,
		"think-tank": CategoryThinkTank,
	}
	for in, want := range cases {
		got, err := ParseCategory(in)
		assert.Equal(t, nil, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseCategory("tabloid")
	assert.NotEqual(t, nil, err)
}

func TestCategoryWeights(t *testing.T) {
	assert.Equal(t, 1.3, CategoryThinkTank.Weight())
	assert.Equal(t, 1.1, CategoryAnalysis.Weight())
	assert.Equal(t, 1.0, CategoryRegional.Weight())
	assert.Equal(t, 0.8, CategoryMainstream.Weight())
	assert.Equal(t, DefaultWeight, Category("").Weight())

	cats := AllCategories()
	for i := 1; i < len(cats); i++ {
		if cats[i].Weight() >= cats[i-1].Weight() {
			t.Errorf("categories not ordered by weight: %s >= %s", cats[i], cats[i-1])
		}
	}
}

func TestItemJSONCategory(t *testing.T) {
	var item Item
	err := json.Unmarshal([]byte(`{"source":"CSIS","category":"think-tank","title":"t","url":"u"}`), &item)
	assert.Equal(t, nil, err)
	assert.Equal(t, CategoryThinkTank, item.Category)

	err = json.Unmarshal([]byte(`{"category":"blog"}`), &item)
	assert.NotEqual(t, nil, err)
}
