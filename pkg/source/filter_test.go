package source

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestFilterExclude(t *testing.T) {
	f := NewFilter(nil, []string{"Horoscope", " "})

	assert.Equal(t, false, f.Allows("Daily horoscope for Tuesday"))
	assert.Equal(t, true, f.Allows("NATO summit opens in Vilnius"))
}

func TestFilterInclude(t *testing.T) {
	f := NewFilter([]string{"sanctions"}, []string{"sports"})

	assert.Equal(t, true, f.Allows("EU weighs new SANCTIONS package"))
	assert.Equal(t, false, f.Allows("Election results in Chile"))
	assert.Equal(t, false, f.Allows("Sanctions hit sports federations"))
}

func TestNilFilterAllows(t *testing.T) {
	var f *Filter
	items := []Item{{Title: "anything"}}

	assert.Equal(t, true, f.Allows("anything"))
	assert.Equal(t, 1, len(f.Apply(items)))
}

func TestFilterApply(t *testing.T) {
	f := NewFilter(nil, []string{"celebrity"})
	items := []Item{
		{Title: "Celebrity wedding"},
		{Title: "Trade talks stall", Summary: "no celebrity involved"},
		{Title: "Arctic shipping lanes open"},
	}

	kept := f.Apply(items)
	assert.Equal(t, 1, len(kept))
	assert.Equal(t, "Arctic shipping lanes open", kept[0].Title)
}
