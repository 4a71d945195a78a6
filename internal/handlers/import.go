package handlers

import (
	"encoding/json"
	"net/http"

	"paperscan/internal/contextutil"
	"paperscan/internal/service"
)

// ImportHandler handles HTTP requests that feed files into the import
// pipeline. Files must already be on local disk; uploading is not part of
// this surface.
type ImportHandler struct {
	importer *service.Importer
}

// NewImportHandler creates a new ImportHandler.
func NewImportHandler(importer *service.Importer) *ImportHandler {
	return &ImportHandler{importer: importer}
}

// ImportRequest carries the files to import.
type ImportRequest struct {
	// Paths lists image or PDF files on local disk.
	Paths []string `json:"paths"`
	// CropEnabled runs boundary detection and perspective crop per image.
	CropEnabled bool `json:"cropEnabled"`
}

// ImportResponse reports where the imported pages ended up.
type ImportResponse struct {
	DocumentID string `json:"documentId"`
	PageCount  int    `json:"pageCount"`
}

// ServeHTTP handles POST /api/import.
func (h *ImportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Paths) == 0 {
		writeError(w, http.StatusBadRequest, "paths is required")
		return
	}

	doc, err := h.importer.ImportFromFiles(ctx, req.Paths, nil, service.ImportOptions{
		CropEnabled: req.CropEnabled,
	})
	if err != nil {
		logger.ErrorContext(ctx, "import failed", "error", err)
		writeError(w, http.StatusInternalServerError, "import failed")
		return
	}
	if doc == nil {
		writeError(w, http.StatusUnprocessableEntity, "no pages produced")
		return
	}

	writeJSON(w, http.StatusCreated, ImportResponse{DocumentID: doc.ID, PageCount: len(doc.Pages)})
}
