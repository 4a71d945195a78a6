package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"paperscan/internal/handlers"
	"paperscan/internal/service"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Documents *service.DocumentsService
	Importer  *service.Importer
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(CORS)
	r.Use(LoggerMiddleware)

	documentHandler := handlers.NewDocumentHandler(deps.Documents)
	importHandler := handlers.NewImportHandler(deps.Importer)
	healthHandler := handlers.NewHealthHandler(deps.Documents)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.ServeHTTP)

		r.Route("/documents", func(r chi.Router) {
			r.Get("/", documentHandler.List)
			r.Delete("/", documentHandler.Delete)
			r.Get("/{id}", documentHandler.Get)
			r.Post("/{id}/tags", documentHandler.AddTag)
		})

		r.Post("/import", importHandler.ServeHTTP)
	})

	return r
}
