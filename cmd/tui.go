package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/binder/internal/shared"
	"github.com/desertthunder/binder/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive card browser. Sync is attached when enabled in the config and a collection is
// known; otherwise the browser runs local-only.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	config, err := r.configure(cmd)
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(config.UI.LogFile)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	withSync := config.Sync.Enabled && !cmd.Bool("offline")
	s, err := r.openSession(ctx, config, withSync)
	if err != nil {
		return err
	}
	defer s.Close()

	if withSync {
		if id, err := r.collectionID(config, s, cmd.String("collection")); err != nil {
			r.logger.Warn("sync enabled but no collection selected", "error", err)
		} else if err := s.tracker.Connect(ctx, id); err != nil {
			r.logger.Warn("starting offline", "error", err)
		}
	}

	model := ui.NewModel(ctx, ui.ModelOpts{
		Tracker:  s.tracker,
		Resolver: r.newResolver(config),
		Prober:   r.newProber(config),
	})
	p := tea.NewProgram(model, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
