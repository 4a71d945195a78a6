package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"

	"paperscan/internal/config"
	"paperscan/internal/service"
)

func startTestService(t *testing.T) *service.DocumentsService {
	t.Helper()
	cfg := &config.Config{
		RootDataFolder:  t.TempDir(),
		ImportBatchSize: 2,
		ImageFormat:     "jpg",
		ImageQuality:    80,
	}
	svc := service.NewDocumentsService(cfg, nil, nil)
	if err := svc.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(svc.Stop)
	return svc
}

func newDocumentRouter(svc *service.DocumentsService) http.Handler {
	h := NewDocumentHandler(svc)
	r := chi.NewRouter()
	r.Get("/api/documents", h.List)
	r.Delete("/api/documents", h.Delete)
	r.Get("/api/documents/{id}", h.Get)
	r.Post("/api/documents/{id}/tags", h.AddTag)
	return r
}

func createTestDocument(t *testing.T, svc *service.DocumentsService, name string) string {
	t.Helper()
	img := filepath.Join(t.TempDir(), "page.jpg")
	if err := os.WriteFile(img, []byte("image"), 0o644); err != nil {
		t.Fatalf("writing test image: %v", err)
	}
	doc, err := svc.CreateDocument(context.Background(), name, false, []service.PageData{
		{ImagePath: img, Width: 10, Height: 20},
	})
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}
	return doc.ID
}

func TestDocumentHandler_Get(t *testing.T) {
	svc := startTestService(t)
	router := newDocumentRouter(svc)
	id := createTestDocument(t, svc, "invoice")

	tests := []struct {
		name       string
		id         string
		wantStatus int
	}{
		{name: "existing document", id: id, wantStatus: http.StatusOK},
		{name: "unknown document", id: "nope", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/documents/"+tt.id, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var resp DocumentResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decoding response: %v", err)
			}
			if resp.ID != id || resp.Name != "invoice" {
				t.Errorf("response = %+v, want id %s name invoice", resp, id)
			}
			if len(resp.Pages) != 1 || resp.Pages[0].Width != 10 {
				t.Errorf("response pages = %+v, want one 10x20 page", resp.Pages)
			}
		})
	}
}

func TestDocumentHandler_List(t *testing.T) {
	svc := startTestService(t)
	router := newDocumentRouter(svc)
	createTestDocument(t, svc, "invoice march")
	createTestDocument(t, svc, "receipt april")

	tests := []struct {
		name      string
		url       string
		wantCount int
	}{
		{name: "all documents", url: "/api/documents", wantCount: 2},
		{name: "name filter", url: "/api/documents?q=invoice", wantCount: 1},
		{name: "no match", url: "/api/documents?q=zzz", wantCount: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			var resp []DocumentResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decoding response: %v", err)
			}
			if len(resp) != tt.wantCount {
				t.Errorf("returned %d documents, want %d", len(resp), tt.wantCount)
			}
		})
	}
}

func TestDocumentHandler_Delete(t *testing.T) {
	svc := startTestService(t)
	router := newDocumentRouter(svc)
	id := createTestDocument(t, svc, "doomed")

	body, _ := json.Marshal(DeleteRequest{IDs: []string{id}})
	req := httptest.NewRequest(http.MethodDelete, "/api/documents", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/documents/"+id, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("document still readable after delete, status = %d", rec.Code)
	}
}

func TestDocumentHandler_DeleteValidation(t *testing.T) {
	svc := startTestService(t)
	router := newDocumentRouter(svc)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "malformed body", body: "{", wantStatus: http.StatusBadRequest},
		{name: "empty ids", body: `{"ids":[]}`, wantStatus: http.StatusBadRequest},
		{name: "unknown id", body: `{"ids":["missing"]}`, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/api/documents", bytes.NewReader([]byte(tt.body)))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestDocumentHandler_AddTag(t *testing.T) {
	svc := startTestService(t)
	router := newDocumentRouter(svc)
	id := createTestDocument(t, svc, "tagged")

	body := []byte(`{"tag":"finance"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/documents/"+id+"/tags", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp DocumentResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Tags) != 1 || resp.Tags[0] != "finance" {
		t.Errorf("tags = %v, want [finance]", resp.Tags)
	}

	// Tagged document now shows up under the tag filter.
	req = httptest.NewRequest(http.MethodGet, "/api/documents?tag=finance", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	var listed []DocumentResponse
	if err := json.NewDecoder(rec.Body).Decode(&listed); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != id {
		t.Errorf("tag filter returned %+v, want the tagged document", listed)
	}
}

func TestDocumentHandler_AddTagValidation(t *testing.T) {
	svc := startTestService(t)
	router := newDocumentRouter(svc)
	id := createTestDocument(t, svc, "doc")

	req := httptest.NewRequest(http.MethodPost, "/api/documents/"+id+"/tags", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for missing tag", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/documents/missing/tags", bytes.NewReader([]byte(`{"tag":"x"}`)))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for unknown document", rec.Code)
	}
}
