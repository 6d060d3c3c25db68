package repositories

import (
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/binder/internal/models"
	"github.com/desertthunder/binder/internal/shared"
)

// ProgressKey is the storage key holding the whole progress document.
const ProgressKey = "pokemonVariantProgress"

// ProgressRepository persists the progress document and one-time migration markers.
type ProgressRepository struct {
	kv     *KVRepository
	logger *log.Logger
}

// NewProgressRepository creates a new [ProgressRepository] backed by kv.
func NewProgressRepository(kv *KVRepository, logger *log.Logger) *ProgressRepository {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &ProgressRepository{kv: kv, logger: logger}
}

// LoadProgress reads the persisted progress.
//
// A missing or malformed document yields an empty [models.Progress]. Only storage failures are returned as errors.
func (r *ProgressRepository) LoadProgress() (models.Progress, error) {
	raw, ok, err := r.kv.Get(ProgressKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return models.Progress{}, nil
	}

	p, err := models.ParseProgress([]byte(raw))
	if err != nil {
		r.logger.Warn("discarding malformed progress", "key", ProgressKey, "error", err)
		return models.Progress{}, nil
	}
	return p, nil
}

// SaveProgress rewrites the whole progress document.
func (r *ProgressRepository) SaveProgress(p models.Progress) error {
	if p == nil {
		p = models.Progress{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("%w: failed to encode progress: %v", shared.ErrStorage, err)
	}
	return r.kv.Put(ProgressKey, string(data))
}

// Marker returns the value stored for a one-time marker, or "" when it was never set.
func (r *ProgressRepository) Marker(key string) (string, error) {
	value, _, err := r.kv.Get(key)
	return value, err
}

// SetMarker records a one-time marker.
func (r *ProgressRepository) SetMarker(key, value string) error {
	return r.kv.Put(key, value)
}
