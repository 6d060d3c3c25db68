package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/desertthunder/binder/internal/catalog"
	"github.com/desertthunder/binder/internal/formatter"
	"github.com/desertthunder/binder/internal/models"
	"github.com/desertthunder/binder/internal/progress"
	"github.com/desertthunder/binder/internal/shared"
	"github.com/desertthunder/binder/internal/tracker"
	"github.com/urfave/cli/v3"
)

// ProgressGet prints the stored flags for a set, or for one card when a card number is given.
func (r *Runner) ProgressGet(ctx context.Context, cmd *cli.Command) error {
	scope := cmd.StringArg("scope")
	if scope == "" {
		return fmt.Errorf("%w: scope is required", shared.ErrMissingArgument)
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

	if card := cmd.StringArg("card"); card != "" {
		flags := s.tracker.Store().Card(scope, catalog.CardNumber(card))
		if flags == nil {
			flags = models.VariantFlags{}
		}
		return r.writeJSON(flags, cmd.Bool("pretty"))
	}

	cards, ok := s.tracker.Store().Snapshot()[scope]
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrSetNotFound, scope)
	}
	return r.writeJSON(cards, cmd.Bool("pretty"))
}

// ProgressToggle flips one variant flag. Unchecking a variant of a complete card asks for confirmation on the
// terminal unless --yes is given. No answer before the timeout keeps the card.
func (r *Runner) ProgressToggle(ctx context.Context, cmd *cli.Command) error {
	scope, card, variant := cmd.StringArg("scope"), cmd.StringArg("card"), cmd.StringArg("variant")
	if scope == "" || card == "" || variant == "" {
		return fmt.Errorf("%w: scope, card and variant are required", shared.ErrMissingArgument)
	}

	config, err := r.configure(cmd)
	if err != nil {
		return err
	}
	s, err := r.openSession(ctx, config, cmd.Bool("sync"))
	if err != nil {
		return err
	}
	defer s.Close()

	if cmd.Bool("sync") {
		if err := r.connect(ctx, config, s, cmd.String("collection")); err != nil {
			return err
		}
	}

	res, err := s.tracker.Toggle(ctx, scope, card, variant)
	if err != nil {
		return err
	}

	number := catalog.CardNumber(card)
	if res.State == progress.PendingConfirmation {
		resolution, err := r.confirm(ctx, res.Confirmation, cmd.Bool("yes"))
		if err != nil {
			return err
		}
		if errors.Is(resolution.Cause, progress.ErrConfirmationTimeout) {
			r.writePlain("no answer, keeping %s\n", variant)
		}
	}

	if cmd.Bool("sync") {
		r.awaitEchoes(ctx, s.tracker, config.Sync.Timeout())
	}

	r.writePlain("%s #%s %s: %s\n", scope, number, variant, checkMark(s.tracker.Store().Get(scope, number, variant)))
	if s.tracker.Complete(scope, number) {
		r.writePlain("card complete\n")
	}
	return nil
}

// confirm answers an uncheck confirmation from the runner's input. It returns once the confirmation has
// resolved and any resulting change is stored.
func (r *Runner) confirm(ctx context.Context, c *progress.Confirmation, yes bool) (progress.Resolution, error) {
	if yes {
		if err := c.Uncheck(); err != nil && !errors.Is(err, progress.ErrConfirmationResolved) {
			return progress.Resolution{}, err
		}
		<-c.Done()
		res, _ := c.Resolution()
		return res, nil
	}

	remaining := time.Until(c.Deadline()).Round(time.Second)
	r.writePlain("%s [y/N] (%s) ", c.Prompt(), remaining)

	// On timeout the reader stays blocked until the next line or process exit. Each command prompts at most once,
	// and the buffered channel lets it finish without a receiver.
	answers := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(r.input).ReadString('\n')
		answers <- strings.ToLower(strings.TrimSpace(line))
	}()

	var err error
	select {
	case answer := <-answers:
		if answer == "y" || answer == "yes" {
			err = c.Uncheck()
		} else {
			err = c.Keep()
		}
	case <-c.Done():
		r.writePlain("\n")
	case <-ctx.Done():
		err = c.Keep()
	}
	if err != nil && !errors.Is(err, progress.ErrConfirmationResolved) {
		return progress.Resolution{}, err
	}

	<-c.Done()
	res, _ := c.Resolution()
	return res, nil
}

func checkMark(v bool) string {
	if v {
		return "collected"
	}
	return "missing"
}

// ProgressStats prints collected variants for one set, or every loaded set.
func (r *Runner) ProgressStats(ctx context.Context, cmd *cli.Command) error {
	config, err := r.configure(cmd)
	if err != nil {
		return err
	}
	s, err := r.openSession(ctx, config, false)
	if err != nil {
		return err
	}
	defer s.Close()

	var stats []progress.Stats
	if scope := cmd.StringArg("scope"); scope != "" {
		st, err := s.tracker.Stats(scope)
		if err != nil {
			return err
		}
		stats = append(stats, st)
	} else {
		stats = s.tracker.AllStats()
	}

	if cmd.Bool("json") {
		return r.writeJSON(stats, cmd.Bool("pretty"))
	}

	total := progress.Stats{PercentDisplay: "0.0"}
	for _, st := range stats {
		r.writePlain("%-32s %5d/%-5d %6s%%  (%d/%d cards complete)\n",
			st.Scope, st.Collected, st.Total, st.PercentDisplay, st.CompleteCards, st.TotalCards)
		total.Collected += st.Collected
		total.Total += st.Total
	}
	if len(stats) > 1 {
		total.PercentDisplay = fmt.Sprintf("%.1f", total.Percent())
		r.writePlainln("Total: %s", total)
	}
	return nil
}

// ProgressExport writes the whole progress document as JSON, or one set as CSV, Markdown or text.
func (r *Runner) ProgressExport(ctx context.Context, cmd *cli.Command) error {
	format := strings.ToLower(cmd.String("format"))
	output := cmd.String("output")

	config, err := r.configure(cmd)
	if err != nil {
		return err
	}
	s, err := r.openSession(ctx, config, false)
	if err != nil {
		return err
	}
	defer s.Close()

	if format == "json" {
		data, err := formatter.ToJSON(s.tracker.Store().Snapshot())
		if err != nil {
			return err
		}
		if output == "" {
			return r.writePlain("%s\n", data)
		}
		if err := os.WriteFile(output, data, 0644); err != nil {
			return fmt.Errorf("failed to write export: %w", err)
		}
		r.logger.Info("progress exported", "path", output)
		return nil
	}

	scope := cmd.String("scope")
	if scope == "" {
		return fmt.Errorf("%w: --scope is required for %s exports", shared.ErrMissingArgument, format)
	}
	set, ok := s.tracker.Catalog().Lookup(scope)
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrSetNotFound, scope)
	}
	export := formatter.BuildSetExport(set, s.tracker.Store())

	switch format {
	case "csv":
		result, err := formatter.WriteCSVExport(export, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Exported %s\n  %s\n  %s\n", set.Title(), result.CardsFile, result.StatsFile)
	case "md", "markdown":
		var imageURL string
		if cmd.Bool("image") && len(set.Cards) > 0 {
			candidates := r.newResolver(config).Resolve(ctx, set, set.Cards[0])
			for _, c := range candidates {
				if isRemoteURL(c) {
					imageURL = c
					break
				}
			}
		}
		result, err := formatter.WriteMarkdownExport(ctx, export, output, imageURL, r.httpClient)
		if err != nil {
			return err
		}
		if result.ImageErr != nil {
			r.logger.Warn("image not included", "error", result.ImageErr)
		}
		r.writePlain("✓ Exported %s to %s\n", set.Title(), result.Directory)
		for _, f := range result.Files {
			r.writePlain("  %s\n", f)
		}
	case "txt", "text":
		path, err := formatter.WriteTextExport(export, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Exported %s to %s\n", set.Title(), path)
	default:
		return fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidFlag, format)
	}
	return nil
}

// ProgressImport replaces stored progress with the contents of a JSON export.
func (r *Runner) ProgressImport(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: path is required", shared.ErrMissingArgument)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	incoming, err := models.ParseProgress(data)
	if err != nil {
		return err
	}

	config, err := r.configure(cmd)
	if err != nil {
		return err
	}
	s, err := r.openSession(ctx, config, cmd.Bool("sync"))
	if err != nil {
		return err
	}
	defer s.Close()

	if cmd.Bool("sync") {
		if err := r.connect(ctx, config, s, cmd.String("collection")); err != nil {
			return err
		}
	}

	changed, err := s.tracker.Import(ctx, incoming)
	if err != nil {
		return err
	}
	if cmd.Bool("sync") {
		r.awaitEchoes(ctx, s.tracker, config.Sync.Timeout())
	}
	if !changed {
		r.writePlain("progress already up to date\n")
		return nil
	}
	r.writePlain("✓ Imported %d collected variants across %d sets\n", progress.Collected(incoming), len(incoming))
	return nil
}

// connect subscribes the session's tracker to a collection and waits for the first snapshot, so later changes
// apply on top of the remote state.
func (r *Runner) connect(ctx context.Context, config *shared.Config, s *session, explicit string) error {
	id, err := r.collectionID(config, s, explicit)
	if err != nil {
		return err
	}
	if err := s.tracker.Connect(ctx, id); err != nil {
		return err
	}
	return waitForSnapshot(ctx, s.tracker, config.Sync.Timeout())
}

func waitForSnapshot(ctx context.Context, t *tracker.Tracker, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case u := <-t.Updates():
			if u.Kind == tracker.SnapshotReceived {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("%w: no snapshot within %s", shared.ErrTimeout, timeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// awaitEchoes waits until the mirror has echoed every push back, so the change is stored remotely before the
// command exits.
func (r *Runner) awaitEchoes(ctx context.Context, t *tracker.Tracker, timeout time.Duration) {
	if t.PendingEchoes() == 0 {
		return
	}

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(timeout)

	for t.PendingEchoes() > 0 {
		select {
		case <-ticker.C:
		case <-deadline:
			r.logger.Warn("mirror did not confirm the change", "pending", t.PendingEchoes())
			return
		case <-ctx.Done():
			return
		}
	}
}
