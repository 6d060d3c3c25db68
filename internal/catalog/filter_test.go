package catalog

import (
	"errors"
	"testing"

	"github.com/desertthunder/binder/internal/models"
	"github.com/desertthunder/binder/internal/shared"
)

func TestFilter(t *testing.T) {
	cards := []models.Card{
		{Number: "1", Name: "Ariel - On Human Legs", Rarity: "Uncommon"},
		{Number: "12", Name: "Mickey Mouse", Rarity: "Legendary"},
		{Number: "105", Name: "Maleficent", Rarity: ""},
	}
	completeCards := map[string]bool{"12": true}
	complete := func(c models.Card) bool { return completeCards[c.Number] }

	numbers := func(cs []models.Card) string {
		out := ""
		for i, c := range cs {
			if i > 0 {
				out += ","
			}
			out += c.Number
		}
		return out
	}

	tc := []struct {
		name   string
		filter Filter
		want   string
	}{
		{name: "zero value matches all", filter: Filter{}, want: "1,12,105"},
		{name: "incomplete", filter: Filter{Completion: CompletionIncomplete}, want: "1,105"},
		{name: "complete", filter: Filter{Completion: CompletionComplete}, want: "12"},
		{name: "rarity case-insensitive", filter: Filter{Rarities: []string{"LEGENDARY"}}, want: "12"},
		{name: "missing rarity is common", filter: Filter{Rarities: []string{"common"}}, want: "105"},
		{name: "search name", filter: Filter{Query: "MICKEY"}, want: "12"},
		{name: "search padded number", filter: Filter{Query: "001"}, want: "1"},
		{name: "search raw number", filter: Filter{Query: "10"}, want: "105"},
		{name: "combined", filter: Filter{Completion: CompletionIncomplete, Rarities: []string{"uncommon", "common"}, Query: "mal"}, want: "105"},
		{name: "no match", filter: Filter{Completion: CompletionComplete, Query: "ariel"}, want: ""},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := numbers(tt.filter.Apply(cards, complete)); got != tt.want {
				t.Errorf("Apply() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseCompletion(t *testing.T) {
	for in, want := range map[string]Completion{
		"":           CompletionAll,
		"all":        CompletionAll,
		"Incomplete": CompletionIncomplete,
		" complete ": CompletionComplete,
	} {
		got, err := ParseCompletion(in)
		if err != nil || got != want {
			t.Errorf("ParseCompletion(%q) = %v, %v", in, got, err)
		}
	}

	if _, err := ParseCompletion("done"); !errors.Is(err, shared.ErrInvalidFlag) {
		t.Errorf("expected ErrInvalidFlag, got %v", err)
	}
}

func TestCompletionNext(t *testing.T) {
	c := CompletionAll
	seq := []Completion{CompletionIncomplete, CompletionComplete, CompletionAll}
	for _, want := range seq {
		c = c.Next()
		if c != want {
			t.Errorf("Next() = %s, want %s", c, want)
		}
	}
}

func TestRarities(t *testing.T) {
	set := &models.Set{Cards: []models.Card{{Rarity: "Rare"}, {Rarity: "common"}, {Rarity: ""}, {Rarity: "RARE"}}}
	got := Rarities(set)
	if len(got) != 2 || got[0] != "common" || got[1] != "rare" {
		t.Errorf("Rarities() = %v", got)
	}
}
