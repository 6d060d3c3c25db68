package repositories

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/binder/internal/shared"
)

// Collection is a synced collection known to this machine.
type Collection struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// CollectionRepository records which collections have been created or joined locally.
type CollectionRepository struct {
	db *sql.DB
}

// NewCollectionRepository creates a new [CollectionRepository] with the given database connection
func NewCollectionRepository(db *sql.DB) *CollectionRepository {
	return &CollectionRepository{db: db}
}

// Create registers a new collection with a generated ID.
func (r *CollectionRepository) Create(name string) (*Collection, error) {
	c := &Collection{ID: shared.GenerateID(), Name: strings.TrimSpace(name)}
	if err := r.Add(c.ID, c.Name); err != nil {
		return nil, err
	}
	return r.Get(c.ID)
}

// Add registers an existing collection by ID. Adding a known ID updates its name.
func (r *CollectionRepository) Add(id, name string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: collection id is required", shared.ErrMissingArgument)
	}

	query := `
		INSERT INTO collections (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = CASE WHEN excluded.name = '' THEN collections.name ELSE excluded.name END
	`
	if _, err := r.db.Exec(query, id, name); err != nil {
		return fmt.Errorf("%w: failed to insert collection: %v", shared.ErrStorage, err)
	}
	return nil
}

// Get retrieves a collection by ID.
func (r *CollectionRepository) Get(id string) (*Collection, error) {
	query := `SELECT id, name, active, created_at FROM collections WHERE id = ?`

	var c Collection
	err := r.db.QueryRow(query, id).Scan(&c.ID, &c.Name, &c.Active, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: collection %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query collection: %v", shared.ErrStorage, err)
	}
	return &c, nil
}

// Activate marks id as the active collection and clears the flag on every other one.
func (r *CollectionRepository) Activate(id string) error {
	return withTx(r.db, func(tx *sql.Tx) error {
		res, err := tx.Exec("UPDATE collections SET active = 1 WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("%w: failed to activate collection: %v", shared.ErrStorage, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: collection %s", ErrNotFound, id)
		}
		if _, err := tx.Exec("UPDATE collections SET active = 0 WHERE id != ?", id); err != nil {
			return fmt.Errorf("%w: failed to deactivate collections: %v", shared.ErrStorage, err)
		}
		return nil
	})
}

// Active returns the active collection, or nil when none has been activated.
func (r *CollectionRepository) Active() (*Collection, error) {
	query := `SELECT id, name, active, created_at FROM collections WHERE active = 1 LIMIT 1`

	var c Collection
	err := r.db.QueryRow(query).Scan(&c.ID, &c.Name, &c.Active, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query active collection: %v", shared.ErrStorage, err)
	}
	return &c, nil
}

// List returns all known collections, newest first.
func (r *CollectionRepository) List() ([]Collection, error) {
	rows, err := r.db.Query("SELECT id, name, active, created_at FROM collections ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list collections: %v", shared.ErrStorage, err)
	}
	defer rows.Close()

	var out []Collection
	for rows.Next() {
		var c Collection
		if err := rows.Scan(&c.ID, &c.Name, &c.Active, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: failed to scan collection: %v", shared.ErrStorage, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
