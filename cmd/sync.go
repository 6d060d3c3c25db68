package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/binder/internal/models"
	"github.com/desertthunder/binder/internal/progress"
	"github.com/desertthunder/binder/internal/shared"
	"github.com/desertthunder/binder/internal/tracker"
	"github.com/urfave/cli/v3"
)

// SyncWatch subscribes to a collection and keeps local progress in step with it until interrupted.
func (r *Runner) SyncWatch(ctx context.Context, cmd *cli.Command) error {
	config, err := r.configure(cmd)
	if err != nil {
		return err
	}
	s, err := r.openSession(ctx, config, true)
	if err != nil {
		return err
	}
	defer s.Close()

	id, err := r.collectionID(config, s, cmd.String("collection"))
	if err != nil {
		return err
	}
	if err := s.tracker.Connect(ctx, id); err != nil {
		return err
	}
	r.writePlain("watching collection %s (ctrl+c to stop)\n", id)

	for {
		select {
		case <-ctx.Done():
			return nil
		case u := <-s.tracker.Updates():
			switch u.Kind {
			case tracker.SnapshotReceived:
				snapshot := s.tracker.Store().Snapshot()
				if u.Empty {
					r.writePlain("collection is empty\n")
				} else {
					r.writePlain("snapshot: %d collected variants across %d sets\n", progress.Collected(snapshot), len(snapshot))
				}
			case tracker.StatusChanged:
				r.writePlain("status: %s\n", u.Status)
			}
		}
	}
}

// SyncPush uploads local progress to a collection, replacing what the collection holds.
func (r *Runner) SyncPush(ctx context.Context, cmd *cli.Command) error {
	config, err := r.configure(cmd)
	if err != nil {
		return err
	}
	s, err := r.openSession(ctx, config, true)
	if err != nil {
		return err
	}
	defer s.Close()

	id, err := r.collectionID(config, s, cmd.String("collection"))
	if err != nil {
		return err
	}

	// Subscribe the client directly so the collection's snapshot does not overwrite what is being pushed.
	local := s.tracker.Store().Snapshot()
	stored := make(chan struct{}, 1)
	err = s.client.Subscribe(ctx, id, func(p models.Progress, _ bool) {
		if p.Equal(local) {
			select {
			case stored <- struct{}{}:
			default:
			}
		}
	})
	if err != nil {
		return err
	}
	if err := s.client.Push(ctx, local); err != nil {
		return err
	}

	select {
	case <-stored:
	case <-time.After(config.Sync.Timeout()):
		return fmt.Errorf("%w: mirror did not confirm the push", shared.ErrTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	r.writePlain("✓ Pushed %d collected variants to %s\n", progress.Collected(local), id)
	return nil
}

// SyncPull replaces local progress with a collection's stored snapshot.
func (r *Runner) SyncPull(ctx context.Context, cmd *cli.Command) error {
	config, err := r.configure(cmd)
	if err != nil {
		return err
	}
	s, err := r.openSession(ctx, config, true)
	if err != nil {
		return err
	}
	defer s.Close()

	id, err := r.collectionID(config, s, cmd.String("collection"))
	if err != nil {
		return err
	}

	remote, empty, err := s.client.Fetch(ctx, id)
	if err != nil {
		return err
	}
	if empty {
		r.writePlain("collection %s is empty, nothing to pull\n", id)
		return nil
	}

	if cmd.Bool("dry-run") {
		return r.writeJSON(remote, true)
	}

	// The tracker is not connected, so the import is stored locally and not pushed back.
	changed, err := s.tracker.Import(ctx, remote)
	if err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	if !changed {
		r.writePlain("local progress already matches %s\n", id)
		return nil
	}
	r.writePlain("✓ Pulled %d collected variants from %s\n", progress.Collected(remote), id)
	return nil
}
