package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/binder/internal/repositories"
	"github.com/desertthunder/binder/internal/server"
	"github.com/desertthunder/binder/internal/shared"
	"github.com/urfave/cli/v3"
)

// MirrorServe runs the sync mirror on the configured address until interrupted.
func (r *Runner) MirrorServe(ctx context.Context, cmd *cli.Command) error {
	config, err := r.configure(cmd)
	if err != nil {
		return err
	}

	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	addr := cmd.String("addr")
	if addr == "" {
		addr = config.Server.Addr()
	}
	if config.Server.Token == "" {
		r.logger.Warn("server.token is empty, the mirror accepts unauthenticated clients")
	}

	mirror := server.NewMirror(server.MirrorOpts{
		Docs:   repositories.NewDocumentRepository(db),
		Token:  config.Server.Token,
		Logger: shared.WithLogger(r.logger, "component", "mirror"),
	})
	return mirror.Serve(ctx, addr)
}
