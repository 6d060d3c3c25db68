// package repositories provides SQLite persistence for progress, sync documents and collections.
package repositories

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/binder/internal/shared"
)

var (
	ErrNotFound = errors.New("record not found")
)

// withTx runs fn inside a transaction, committing when it returns nil.
func withTx(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", shared.ErrStorage, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %v", shared.ErrStorage, err)
	}
	return nil
}
