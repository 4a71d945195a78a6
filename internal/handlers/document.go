package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"paperscan/internal/contextutil"
	"paperscan/internal/service"
	"paperscan/internal/storage"
)

// DocumentHandler handles HTTP requests for document operations.
type DocumentHandler struct {
	documents *service.DocumentsService
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(documents *service.DocumentsService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// PageResponse is the wire form of a page.
type PageResponse struct {
	ID           string   `json:"id"`
	CreatedDate  int64    `json:"createdDate"`
	ModifiedDate int64    `json:"modifiedDate"`
	Name         string   `json:"name,omitempty"`
	ImagePath    string   `json:"imagePath"`
	Width        int      `json:"width"`
	Height       int      `json:"height"`
	Rotation     int      `json:"rotation"`
	HasOCR       bool     `json:"hasOcr"`
	QRCodeTexts  []string `json:"qrcodeTexts,omitempty"`
}

// DocumentResponse is the wire form of a document aggregate.
type DocumentResponse struct {
	ID           string         `json:"id"`
	CreatedDate  int64          `json:"createdDate"`
	ModifiedDate int64          `json:"modifiedDate"`
	Name         string         `json:"name,omitempty"`
	Synced       int            `json:"synced"`
	QRCodeOnly   bool           `json:"qrcodeOnly"`
	Tags         []string       `json:"tags,omitempty"`
	Pages        []PageResponse `json:"pages"`
}

func toDocumentResponse(doc *storage.DocumentRecord) DocumentResponse {
	resp := DocumentResponse{
		ID:           doc.ID,
		CreatedDate:  doc.CreatedDate,
		ModifiedDate: doc.ModifiedDate,
		Name:         doc.Name,
		Synced:       doc.Synced,
		QRCodeOnly:   doc.QRCodeOnly,
		Tags:         doc.Tags,
		Pages:        make([]PageResponse, 0, len(doc.Pages)),
	}
	for _, page := range doc.Pages {
		pr := PageResponse{
			ID:           page.ID,
			CreatedDate:  page.CreatedDate,
			ModifiedDate: page.ModifiedDate,
			Name:         page.Name,
			ImagePath:    page.ImagePath,
			Width:        page.Width,
			Height:       page.Height,
			Rotation:     page.Rotation,
			HasOCR:       page.OCRData != nil,
		}
		for _, code := range page.QRCode {
			pr.QRCodeTexts = append(pr.QRCodeTexts, code.Text)
		}
		resp.Pages = append(resp.Pages, pr)
	}
	return resp
}

// List handles GET /api/documents. Supports ?q= for a name filter and
// ?tag= to restrict by tag id.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	docs, err := h.documents.Documents.Search(ctx, storage.SearchCriteria{
		Name:  r.URL.Query().Get("q"),
		TagID: r.URL.Query().Get("tag"),
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to search documents", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to search documents")
		return
	}

	responses := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		if err := h.documents.Documents.LoadTags(ctx, doc); err != nil {
			logger.ErrorContext(ctx, "failed to load tags", "document", doc.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to load tags")
			return
		}
		responses = append(responses, toDocumentResponse(doc))
	}
	writeJSON(w, http.StatusOK, responses)
}

// Get handles GET /api/documents/{id}.
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	id := chi.URLParam(r, "id")

	doc, err := h.documents.Documents.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		logger.ErrorContext(ctx, "failed to get document", "document", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get document")
		return
	}
	if err := h.documents.Documents.LoadTags(ctx, doc); err != nil {
		logger.ErrorContext(ctx, "failed to load tags", "document", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load tags")
		return
	}
	writeJSON(w, http.StatusOK, toDocumentResponse(doc))
}

// DeleteRequest carries the ids for a bulk delete.
type DeleteRequest struct {
	IDs []string `json:"ids"`
}

// Delete handles DELETE /api/documents with a JSON body listing ids.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req DeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids is required")
		return
	}

	docs := make([]*storage.DocumentRecord, 0, len(req.IDs))
	for _, id := range req.IDs {
		doc, err := h.documents.Documents.Get(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found: "+id)
			return
		}
		if err != nil {
			logger.ErrorContext(ctx, "failed to get document", "document", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to get document")
			return
		}
		docs = append(docs, doc)
	}

	if err := h.documents.DeleteDocuments(ctx, docs); err != nil {
		logger.ErrorContext(ctx, "failed to delete documents", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete documents")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddTagRequest carries the tag for an association.
type AddTagRequest struct {
	Tag string `json:"tag"`
}

// AddTag handles POST /api/documents/{id}/tags.
func (h *DocumentHandler) AddTag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	id := chi.URLParam(r, "id")

	var req AddTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Tag == "" {
		writeError(w, http.StatusBadRequest, "tag is required")
		return
	}

	doc, err := h.documents.Documents.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		logger.ErrorContext(ctx, "failed to get document", "document", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get document")
		return
	}

	// Tag association is best-effort; the store logs failures internally.
	h.documents.Documents.AddTag(ctx, doc, req.Tag)
	writeJSON(w, http.StatusOK, toDocumentResponse(doc))
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error payload.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
