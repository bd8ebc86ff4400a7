package routes

import (
	"net/http"

	"github.com/carequery/decision-support/internal/api/handlers"
	"github.com/carequery/decision-support/internal/api/middleware"
)

// Router holds all route handlers
type Router struct {
	mux             *http.ServeMux
	decisionHandler *handlers.DecisionHandler
}

// NewRouter creates a new router
func NewRouter(decisionHandler *handlers.DecisionHandler) *Router {
	return &Router{
		mux:             http.NewServeMux(),
		decisionHandler: decisionHandler,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	r.mux.HandleFunc("POST /api/decisions", r.decisionHandler.Decide)

	var handler http.Handler = r.mux
	handler = middleware.ObservabilityMiddleware(handler)
	handler = middleware.LoggingMiddleware(handler)
	return handler
}
