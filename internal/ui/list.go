package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/binder/internal/models"
	"github.com/desertthunder/binder/internal/progress"
)

var (
	_ list.Item = setItem{}
	_ list.Item = cardItem{}
)

// setItem wraps [models.Set] with its progress to implement [list.Item].
type setItem struct {
	set   *models.Set
	stats progress.Stats
}

func (i setItem) FilterValue() string { return i.set.Title() }
func (i setItem) Title() string       { return i.set.Title() }
func (i setItem) Description() string {
	desc := fmt.Sprintf("%s • %s", i.set.Kind, i.stats)
	if i.stats.TotalCards > 0 {
		desc = fmt.Sprintf("%s • %d/%d complete", desc, i.stats.CompleteCards, i.stats.TotalCards)
	}
	return desc
}

type variantState struct {
	name      string
	collected bool
}

// cardItem wraps [models.Card] with its variant flags to implement [list.Item].
type cardItem struct {
	card     models.Card
	variants []variantState
	complete bool
}

func (i cardItem) FilterValue() string { return i.card.Name }
func (i cardItem) Title() string {
	mark := " "
	if i.complete {
		mark = "★"
	}
	return fmt.Sprintf("%s #%s %s", mark, i.card.Number, i.card.Name)
}
func (i cardItem) Description() string {
	parts := make([]string, 0, len(i.variants))
	for n, v := range i.variants {
		box := "[ ]"
		if v.collected {
			box = "[x]"
		}
		parts = append(parts, fmt.Sprintf("%d %s %s", n+1, box, v.name))
	}
	desc := strings.Join(parts, "  ")
	if i.card.Rarity != "" {
		desc = fmt.Sprintf("%s • %s", i.card.Rarity, desc)
	}
	return desc
}
