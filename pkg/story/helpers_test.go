package story

import (
	"math"
	"testing"

	"github.com/elonfeng/storyrank/pkg/source"
)

func item(src string, cat source.Category, title, url string) source.Item {
	return source.NewItem(src, cat, title, url, "", testTime)
}

func titles(items []source.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Title
	}
	return out
}

func approx(t *testing.T, want, got float64) {
	t.Helper()
	if math.Abs(want-got) > 1e-9 {
		t.Errorf("expected %.6f, got %.6f", want, got)
	}
}
