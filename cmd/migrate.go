package main

import (
	"context"

	"github.com/desertthunder/binder/internal/progress"
	"github.com/desertthunder/binder/internal/tracker"
	"github.com/urfave/cli/v3"
)

// Migrate applies the one-time progress migrations and reports what they did.
//
// Every command that opens progress runs pending migrations first, so this mostly reports state.
func (r *Runner) Migrate(ctx context.Context, cmd *cli.Command) error {
	config, err := r.configure(cmd)
	if err != nil {
		return err
	}
	s, err := r.openSession(ctx, config, false)
	if err != nil {
		return err
	}
	defer s.Close()

	applied := false
drain:
	for {
		select {
		case u := <-s.tracker.Updates():
			if u.Kind == tracker.MigrationApplied {
				applied = true
			}
		default:
			break drain
		}
	}

	marker, err := s.progress.Marker(progress.EditionMigrationKey)
	if err != nil {
		return err
	}

	switch {
	case applied:
		r.writePlain("✓ %s: renamed edition variants\n", progress.EditionMigrationKey)
	case marker != "":
		r.writePlain("%s: already applied\n", progress.EditionMigrationKey)
	default:
		r.writePlain("%s: pending\n", progress.EditionMigrationKey)
	}
	return nil
}
