package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/desertthunder/binder/internal/catalog"
	"github.com/desertthunder/binder/internal/images"
	"github.com/desertthunder/binder/internal/models"
	"github.com/desertthunder/binder/internal/shared"
	"github.com/urfave/cli/v3"
)

// ImagesResolve prints the ordered image candidates for a card. With --probe only the first candidate that
// loads is printed, falling back to the placeholder.
func (r *Runner) ImagesResolve(ctx context.Context, cmd *cli.Command) error {
	scope, number := cmd.StringArg("scope"), cmd.StringArg("card")
	if scope == "" || number == "" {
		return fmt.Errorf("%w: scope and card are required", shared.ErrMissingArgument)
	}

	config, err := r.configure(cmd)
	if err != nil {
		return err
	}
	cat, err := r.loadCatalog(ctx, config)
	if err != nil {
		return err
	}
	set, card, err := cat.Card(scope, catalog.CardNumber(number))
	if err != nil {
		return err
	}

	candidates := r.newResolver(config).Resolve(ctx, set, card)
	r.logger.Debug("resolved image candidates", "scope", scope, "card", card.Number, "count", len(candidates))

	chosen := ""
	if cmd.Bool("probe") || cmd.Bool("open") {
		chosen = r.newProber(config).First(ctx, candidates)
		if chosen == "" {
			return fmt.Errorf("%w: no image for %s #%s", shared.ErrCardNotFound, scope, card.Number)
		}
	}

	if cmd.Bool("probe") {
		r.writePlain("%s\n", chosen)
	} else {
		for _, c := range candidates {
			r.writePlain("%s\n", c)
		}
	}

	if cmd.Bool("open") {
		if err := shared.OpenBrowser(chosen); err != nil {
			r.logger.Warn("could not open image", "image", chosen, "error", err)
		}
	}
	return nil
}

func isRemoteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// ImagesWarm fetches the card index for the given Lorcana scopes, or every loaded Lorcana set, so later
// lookups are served from cache.
func (r *Runner) ImagesWarm(ctx context.Context, cmd *cli.Command) error {
	config, err := r.configure(cmd)
	if err != nil {
		return err
	}

	scopes := cmd.Args().Slice()
	if len(scopes) == 0 {
		cat, err := r.loadCatalog(ctx, config)
		if err != nil {
			return err
		}
		for _, set := range cat.Sets(models.KindLorcana) {
			scopes = append(scopes, set.Scope())
		}
	}
	if len(scopes) == 0 {
		r.writePlain("no Lorcana sets to warm\n")
		return nil
	}

	resolver := r.newResolver(config)
	prog := make(chan images.WarmUpdate, len(scopes))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for u := range prog {
			r.writePlain("%s\n", u.Message)
		}
	}()

	counts := resolver.Warm(ctx, prog, scopes, cmd.Int("workers"))
	close(prog)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	r.writePlainln("✓ Cached %d images across %d sets", total, len(counts))
	return nil
}
