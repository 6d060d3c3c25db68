package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/binder/internal/shared"
)

// KVRepository stores string values under fixed keys in the storage table.
type KVRepository struct {
	db *sql.DB
}

// NewKVRepository creates a new [KVRepository] with the given database connection
func NewKVRepository(db *sql.DB) *KVRepository {
	return &KVRepository{db: db}
}

// Get returns the value stored under key. The bool is false when no value exists.
func (r *KVRepository) Get(key string) (string, bool, error) {
	var value string
	err := r.db.QueryRow("SELECT value FROM storage WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: failed to read %s: %v", shared.ErrStorage, key, err)
	}
	return value, true, nil
}

// Put writes value under key, replacing any previous value.
func (r *KVRepository) Put(key, value string) error {
	query := `
		INSERT INTO storage (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`
	if _, err := r.db.Exec(query, key, value); err != nil {
		return fmt.Errorf("%w: failed to write %s: %v", shared.ErrStorage, key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (r *KVRepository) Delete(key string) error {
	if _, err := r.db.Exec("DELETE FROM storage WHERE key = ?", key); err != nil {
		return fmt.Errorf("%w: failed to delete %s: %v", shared.ErrStorage, key, err)
	}
	return nil
}

// Keys lists every stored key in lexical order.
func (r *KVRepository) Keys() ([]string, error) {
	rows, err := r.db.Query("SELECT key FROM storage ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list keys: %v", shared.ErrStorage, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("%w: failed to scan key: %v", shared.ErrStorage, err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
