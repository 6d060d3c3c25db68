package server

import (
	"errors"
	"net/http"

	"github.com/desertthunder/binder/internal/bridge"
	"github.com/desertthunder/binder/internal/repositories"
)

// DocumentHandler serves read-only snapshots of collection documents over plain HTTP.
type DocumentHandler struct {
	docs Documents
}

// NewDocumentHandler creates a DocumentHandler.
func NewDocumentHandler(docs Documents) *DocumentHandler {
	return &DocumentHandler{docs: docs}
}

// ServeHTTP writes the stored JSON for the collection named by the {id} path value.
func (h *DocumentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "collection id is required", http.StatusBadRequest)
		return
	}

	doc, err := h.docs.Get(bridge.DataPath(id))
	if errors.Is(err, repositories.ErrNotFound) {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "failed to read document", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(doc.Data)
}
