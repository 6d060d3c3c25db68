package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/binder/internal/repositories"
	"github.com/desertthunder/binder/internal/shared"
	"github.com/urfave/cli/v3"
)

func (r *Runner) openCollections(cmd *cli.Command) (*repositories.CollectionRepository, func() error, error) {
	config, err := r.configure(cmd)
	if err != nil {
		return nil, nil, err
	}
	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return repositories.NewCollectionRepository(db), db.Close, nil
}

// CollectionNew creates a collection with a fresh ID and makes it active.
//
// Nothing is uploaded. The first subscription to the new collection replaces local progress with an empty store.
func (r *Runner) CollectionNew(ctx context.Context, cmd *cli.Command) error {
	repo, closeDB, err := r.openCollections(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	c, err := repo.Create(cmd.StringArg("name"))
	if err != nil {
		return err
	}
	if err := repo.Activate(c.ID); err != nil {
		return err
	}

	r.logger.Info("collection created", "id", c.ID)
	r.writePlain("✓ Created collection %s\n", c.ID)
	r.writePlain("Share this ID to sync another device: binder collection use %s\n", c.ID)
	return nil
}

// CollectionUse makes a collection active, registering it first when it was created elsewhere.
func (r *Runner) CollectionUse(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: collection id is required", shared.ErrMissingArgument)
	}
	if !shared.IsID(id) {
		r.logger.Warn("collection id is not a UUID, using it as given", "id", id)
	}

	repo, closeDB, err := r.openCollections(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	if err := repo.Add(id, cmd.String("name")); err != nil {
		return err
	}
	if err := repo.Activate(id); err != nil {
		return err
	}
	r.writePlain("✓ Using collection %s\n", id)
	return nil
}

// CollectionList prints every collection known to this machine.
func (r *Runner) CollectionList(ctx context.Context, cmd *cli.Command) error {
	repo, closeDB, err := r.openCollections(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	collections, err := repo.List()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		if collections == nil {
			collections = []repositories.Collection{}
		}
		return r.writeJSON(collections, true)
	}

	if len(collections) == 0 {
		r.writePlain("no collections yet, run 'binder collection new'\n")
		return nil
	}
	for _, c := range collections {
		active := " "
		if c.Active {
			active = "*"
		}
		r.writePlain("%s %s  %-24s %s\n", active, c.ID, c.Name, c.CreatedAt.Format("2006-01-02"))
	}
	return nil
}
