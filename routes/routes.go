// Package routes wires the HTTP endpoints onto the chi router.
package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/llm-gateway/handlers"
	"github.com/upb/llm-gateway/middleware"
)

// New builds the router. No timeout middleware wraps the completion routes:
// a relayed request stays open for as long as the backend takes to answer.
func New(h *handlers.Handlers, metricsHandler http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Health.HandleLiveness)
	r.Get("/readyz", h.Health.HandleReadiness)
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.BearerCredential)

		r.Get("/models", h.Chat.HandleListModels)
		r.Post("/chat/completions", h.Chat.HandleChatCompletion)
	})

	if h.KB != nil {
		r.Route("/kb", kbRoutes(h.KB))
	}

	return r
}

func kbRoutes(kb *handlers.KBHandler) func(chi.Router) {
	return func(r chi.Router) {
		r.Post("/", kb.HandleCreateKB)
		r.Get("/", kb.HandleListKB)

		r.Route("/{kbID}", func(r chi.Router) {
			r.Post("/docs", kb.HandleUploadDocument)
			r.Get("/docs", kb.HandleListDocuments)
			r.Get("/docs/{docID}", kb.HandleDownloadDocument)
			r.Post("/docs/{docID}/to_markdown", kb.HandleConvertDocument)

			r.Get("/markdown", kb.HandleListMarkdown)
			r.Get("/markdown/{mdID}", kb.HandleGetMarkdown)
			r.Post("/markdown/{mdID}/summary", kb.HandleSummarizeMarkdown)

			r.Get("/export", kb.HandleExport)
		})
	}
}
