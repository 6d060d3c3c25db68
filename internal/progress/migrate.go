package progress

import (
	"context"
	"fmt"

	"github.com/desertthunder/binder/internal/models"
)

// EditionMigrationKey is the marker recording that [EditionMigration] has run.
const EditionMigrationKey = "edition-migration-v1"

// Markers stores one-time markers. Any non-empty value means the marker is set.
type Markers interface {
	Marker(key string) (string, error)
	SetMarker(key, value string) error
}

// Migration is a one-time rewrite of the progress tree guarded by a marker.
type Migration struct {
	Key string
	// Apply rewrites p in place and reports whether anything changed.
	Apply func(p models.Progress) bool
}

// editionCards lists the early-era custom cards whose legacy "single" flag means "unlimited".
var editionCards = map[string][]string{
	"custom-its-pikachu": {"12", "13", "15", "30", "33", "34", "35", "36", "37", "38", "39", "42"},
	"custom-psyduck":     {"2", "3", "4", "5", "6", "7"},
	"custom-togepi":      {"4", "6"},
}

// EditionMigration renames the "single" variant to "unlimited" on cards that gained first-edition tracking.
var EditionMigration = Migration{Key: EditionMigrationKey, Apply: renameEditionVariants}

func renameEditionVariants(p models.Progress) bool {
	changed := false
	for scope, cards := range editionCards {
		scoped, ok := p[scope]
		if !ok {
			continue
		}
		for _, card := range cards {
			flags, ok := scoped[card]
			if !ok {
				continue
			}
			value, ok := flags[models.VariantSingle]
			if !ok {
				continue
			}
			flags[models.VariantUnlimited] = value
			delete(flags, models.VariantSingle)
			changed = true
		}
	}
	return changed
}

// RunMigration applies m at most once per installation.
//
// When the rewrite changes anything the result is persisted and pushed through the toggler. The marker is
// written afterwards whether or not anything changed. It reports whether the rewrite changed the store.
func RunMigration(ctx context.Context, t *Toggler, markers Markers, m Migration) (bool, error) {
	done, err := markers.Marker(m.Key)
	if err != nil {
		return false, fmt.Errorf("failed to read migration marker %s: %w", m.Key, err)
	}
	if done != "" {
		return false, nil
	}

	changed, err := t.Commit(ctx, m.Apply)
	if err != nil {
		return changed, fmt.Errorf("failed to save migrated progress: %w", err)
	}

	if err := markers.SetMarker(m.Key, "done"); err != nil {
		return changed, fmt.Errorf("failed to record migration marker %s: %w", m.Key, err)
	}
	if changed {
		t.logger.Info("migrated progress", "migration", m.Key)
	}
	return changed, nil
}
