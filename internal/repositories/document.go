package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/binder/internal/shared"
)

// Document is a JSON value held by the sync mirror at a path.
type Document struct {
	Path      string          `json:"path"`
	Data      json.RawMessage `json:"data"`
	Revision  int             `json:"revision"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// DocumentRepository persists mirror documents.
type DocumentRepository struct {
	db *sql.DB
}

// NewDocumentRepository creates a new [DocumentRepository] with the given database connection
func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Get returns the document at path or [ErrNotFound].
func (r *DocumentRepository) Get(path string) (*Document, error) {
	query := `SELECT path, data, revision, updated_at FROM documents WHERE path = ?`

	var (
		doc  Document
		data string
	)
	err := r.db.QueryRow(query, path).Scan(&doc.Path, &data, &doc.Revision, &doc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query document: %v", shared.ErrStorage, err)
	}
	doc.Data = json.RawMessage(data)
	return &doc, nil
}

// Put replaces the document at path and returns its new revision.
func (r *DocumentRepository) Put(path string, data json.RawMessage) (int, error) {
	if !json.Valid(data) {
		return 0, fmt.Errorf("%w: document at %s is not valid JSON", shared.ErrInvalidInput, path)
	}

	var revision int
	err := withTx(r.db, func(tx *sql.Tx) error {
		query := `
			INSERT INTO documents (path, data) VALUES (?, ?)
			ON CONFLICT(path) DO UPDATE SET
				data = excluded.data,
				revision = documents.revision + 1,
				updated_at = CURRENT_TIMESTAMP
		`
		if _, err := tx.Exec(query, path, string(data)); err != nil {
			return fmt.Errorf("%w: failed to write document: %v", shared.ErrStorage, err)
		}
		if err := tx.QueryRow("SELECT revision FROM documents WHERE path = ?", path).Scan(&revision); err != nil {
			return fmt.Errorf("%w: failed to read revision: %v", shared.ErrStorage, err)
		}
		return nil
	})
	return revision, err
}

// Delete removes the document at path.
func (r *DocumentRepository) Delete(path string) error {
	if _, err := r.db.Exec("DELETE FROM documents WHERE path = ?", path); err != nil {
		return fmt.Errorf("%w: failed to delete document: %v", shared.ErrStorage, err)
	}
	return nil
}

// List returns every stored document ordered by path.
func (r *DocumentRepository) List() ([]Document, error) {
	rows, err := r.db.Query("SELECT path, data, revision, updated_at FROM documents ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list documents: %v", shared.ErrStorage, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			doc  Document
			data string
		)
		if err := rows.Scan(&doc.Path, &data, &doc.Revision, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: failed to scan document: %v", shared.ErrStorage, err)
		}
		doc.Data = json.RawMessage(data)
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
