package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/chainbridge-ai/chainbridge/app"
	"github.com/chainbridge-ai/chainbridge/middleware"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestIDHeader)

	// No global timeout: the streaming endpoints hold their connections open
	// and manage their own deadlines through cancellation tokens.

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/healthz", deps.HealthHandler.HandleLiveness)
	r.Get("/readyz", deps.HealthHandler.HandleReadiness)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/chat", func(r chi.Router) {
			// Blocking endpoints get a conventional timeout; the
			// streaming ones are excluded from it above.
			r.With(chimiddleware.Timeout(60 * time.Second)).Post("/", deps.ChatHandler.HandleChat)
			r.Post("/stream", deps.ChatHandler.HandleChatStream)
			r.With(chimiddleware.Timeout(60 * time.Second)).Post("/route", deps.ChatHandler.HandleChatRoute)
			r.Post("/essay", deps.ChatHandler.HandleChatEssay)
			r.With(chimiddleware.Timeout(60 * time.Second)).Post("/parallel", deps.ChatHandler.HandleChatParallel)
		})

		r.Route("/agent", func(r chi.Router) {
			// Tool-calling loops can take several model round trips
			r.Use(chimiddleware.Timeout(120 * time.Second))
			r.Post("/", deps.AgentHandler.HandleRun)
			r.Post("/analyze", deps.AgentHandler.HandleAnalyze)
		})

		r.Route("/documents", func(r chi.Router) {
			r.Use(chimiddleware.Timeout(60 * time.Second))
			r.Post("/", deps.DocumentHandler.HandleIngest)
			r.Post("/query", deps.DocumentHandler.HandleQuery)
			r.Delete("/", deps.DocumentHandler.HandlePurge)
		})
	})

	return r
}
