package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"paperscan/internal/contextutil"
	"paperscan/internal/service"
)

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	documents *service.DocumentsService
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(documents *service.DocumentsService) *HealthHandler {
	return &HealthHandler{documents: documents}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// ServeHTTP reports whether the documents service is started.
// Returns 200 OK when healthy, 503 Service Unavailable otherwise.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	if h.documents.Started() {
		checks["documents_service"] = "ok"
	} else {
		checks["documents_service"] = "stopped"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.ErrorContext(ctx, "failed to encode health response", "error", err)
	}
}
