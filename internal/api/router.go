// Package api assembles the HTTP surface of the chat service.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/agentoven/agentdesk/internal/api/handlers"
	"github.com/agentoven/agentdesk/internal/api/middleware"
	"github.com/agentoven/agentdesk/internal/store"
)

const serviceName = "agentdesk"

// RouterConfig carries what the router needs besides the handlers.
type RouterConfig struct {
	Version        string
	Metrics        http.Handler
	AllowedOrigins []string
}

// NewRouter creates the HTTP router with all API routes.
func NewRouter(h *handlers.Handlers, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recover)
	r.Use(middleware.Identity)
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.UserIDHeader, "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	// Health & info
	r.Get("/health", healthHandler(h.Store))
	r.Get("/version", versionHandler(cfg.Version))
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	// Chat
	r.Post("/chat", h.Chat)
	r.Post("/chat/stream", h.ChatStream)

	// Sessions
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", h.ListSessions)
		r.Route("/{sessionId}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Get("/messages", h.SessionMessages)
		})
	})

	// Agents
	r.Get("/agents", h.ListAgents)

	return r
}

func healthHandler(gw store.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status, code := "healthy", http.StatusOK
		storeStatus := "ok"
		if err := gw.Ping(ctx); err != nil {
			status, code, storeStatus = "degraded", http.StatusServiceUnavailable, err.Error()
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{
			"status":  status,
			"service": serviceName,
			"store":   storeStatus,
		})
	}
}

func versionHandler(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"version": version,
			"service": serviceName,
		})
	}
}
