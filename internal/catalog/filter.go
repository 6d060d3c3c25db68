package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/desertthunder/binder/internal/models"
	"github.com/desertthunder/binder/internal/shared"
)

// Completion restricts cards by whether they are complete.
type Completion string

const (
	CompletionAll        Completion = "all"
	CompletionIncomplete Completion = "incomplete"
	CompletionComplete   Completion = "complete"
)

// ParseCompletion accepts "all", "incomplete" or "complete". An empty string means all.
func ParseCompletion(s string) (Completion, error) {
	switch c := Completion(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return CompletionAll, nil
	case CompletionAll, CompletionIncomplete, CompletionComplete:
		return c, nil
	default:
		return "", fmt.Errorf("%w: unknown completion filter %q", shared.ErrInvalidFlag, s)
	}
}

// Next cycles all, incomplete, complete.
func (c Completion) Next() Completion {
	switch c {
	case CompletionAll, "":
		return CompletionIncomplete
	case CompletionIncomplete:
		return CompletionComplete
	default:
		return CompletionAll
	}
}

// Filter combines the completion, rarity and search filters. The zero value matches everything.
type Filter struct {
	Completion Completion
	// Rarities limits results to these rarities, compared case-insensitively. Empty means any.
	Rarities []string
	// Query matches a case-insensitive substring of the card name or number.
	Query string
}

// Match reports whether card passes every part of the filter.
func (f Filter) Match(card models.Card, complete bool) bool {
	switch f.Completion {
	case CompletionIncomplete:
		if complete {
			return false
		}
	case CompletionComplete:
		if !complete {
			return false
		}
	}

	if len(f.Rarities) > 0 {
		rarity := NormalizeRarity(card.Rarity)
		found := false
		for _, r := range f.Rarities {
			if NormalizeRarity(r) == rarity {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(card.Name), q) ||
		strings.Contains(card.Number, q) ||
		strings.Contains(models.PaddedNumber(card.Number), q)
}

// Apply returns the cards that pass the filter, keeping their order.
func (f Filter) Apply(cards []models.Card, complete func(models.Card) bool) []models.Card {
	out := make([]models.Card, 0, len(cards))
	for _, card := range cards {
		if f.Match(card, complete(card)) {
			out = append(out, card)
		}
	}
	return out
}

// Rarities lists the distinct normalised rarities in set, sorted.
func Rarities(set *models.Set) []string {
	seen := map[string]bool{}
	for _, c := range set.Cards {
		seen[NormalizeRarity(c.Rarity)] = true
	}
	out := make([]string, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
