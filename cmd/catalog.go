package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/binder/internal/catalog"
	"github.com/desertthunder/binder/internal/models"
	"github.com/desertthunder/binder/internal/progress"
	"github.com/desertthunder/binder/internal/shared"
	"github.com/urfave/cli/v3"
)

type setRow struct {
	Scope string         `json:"scope"`
	Name  string         `json:"name"`
	Kind  models.SetKind `json:"kind"`
	Cards int            `json:"cards"`
	Stats progress.Stats `json:"stats"`
}

// CatalogSets lists every loaded set with its progress.
func (r *Runner) CatalogSets(ctx context.Context, cmd *cli.Command) error {
	config, err := r.configure(cmd)
	if err != nil {
		return err
	}
	s, err := r.openSession(ctx, config, false)
	if err != nil {
		return err
	}
	defer s.Close()

	var kinds []models.SetKind
	if k := strings.ToLower(cmd.String("kind")); k != "" {
		switch models.SetKind(k) {
		case models.KindOfficial, models.KindCustom, models.KindLorcana:
			kinds = append(kinds, models.SetKind(k))
		default:
			return fmt.Errorf("%w: unknown set kind %q", shared.ErrInvalidFlag, k)
		}
	}

	sets := s.tracker.Catalog().Sets(kinds...)
	rows := make([]setRow, 0, len(sets))
	for _, set := range sets {
		st, err := s.tracker.Stats(set.Scope())
		if err != nil {
			return err
		}
		rows = append(rows, setRow{Scope: set.Scope(), Name: set.Title(), Kind: set.Kind, Cards: len(set.Cards), Stats: st})
	}

	if cmd.Bool("json") {
		return r.writeJSON(rows, true)
	}

	if len(rows) == 0 {
		r.writePlain("no sets found under %s\n", config.Catalog.DataDir)
		return nil
	}
	for _, row := range rows {
		r.writePlain("%-32s %-8s %-36s %s\n", row.Scope, row.Kind, row.Name, row.Stats)
	}
	return nil
}

type cardRow struct {
	Number   string              `json:"number"`
	Name     string              `json:"name"`
	Rarity   string              `json:"rarity,omitempty"`
	Variants models.VariantFlags `json:"variants"`
	Complete bool                `json:"complete"`
}

// CatalogCards lists a set's cards that pass the completion, rarity and search filters.
func (r *Runner) CatalogCards(ctx context.Context, cmd *cli.Command) error {
	scope := cmd.StringArg("scope")
	if scope == "" {
		return fmt.Errorf("%w: scope is required", shared.ErrMissingArgument)
	}
	completion, err := catalog.ParseCompletion(cmd.String("completion"))
	if err != nil {
		return err
	}

	config, err := r.configure(cmd)
	if err != nil {
		return err
	}
	s, err := r.openSession(ctx, config, false)
	if err != nil {
		return err
	}
	defer s.Close()

	set, ok := s.tracker.Catalog().Lookup(scope)
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrSetNotFound, scope)
	}

	filter := catalog.Filter{
		Completion: completion,
		Rarities:   cmd.StringSlice("rarity"),
		Query:      cmd.String("query"),
	}
	store := s.tracker.Store()
	cards := filter.Apply(set.Cards, func(c models.Card) bool {
		return s.tracker.Complete(scope, c.Number)
	})

	rows := make([]cardRow, 0, len(cards))
	for _, c := range cards {
		flags := models.VariantFlags{}
		for _, v := range catalog.Variants(set, c) {
			flags[v] = store.Get(scope, c.Number, v)
		}
		rows = append(rows, cardRow{
			Number:   c.Number,
			Name:     c.Name,
			Rarity:   c.Rarity,
			Variants: flags,
			Complete: s.tracker.Complete(scope, c.Number),
		})
	}

	if cmd.Bool("json") {
		return r.writeJSON(rows, true)
	}

	r.writePlainHeader(fmt.Sprintf("%s (%d of %d cards)", set.Title(), len(rows), len(set.Cards)))
	for i, row := range rows {
		mark := " "
		if row.Complete {
			mark = "✓"
		}
		var parts []string
		for _, v := range catalog.Variants(set, cards[i]) {
			box := "[ ]"
			if row.Variants[v] {
				box = "[x]"
			}
			parts = append(parts, box+" "+v)
		}
		r.writePlain("%s #%-5s %-28s %-14s %s\n", mark, models.PaddedNumber(row.Number), row.Name, row.Rarity, strings.Join(parts, "  "))
	}
	return nil
}
