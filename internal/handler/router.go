package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig configures the middleware stack.
type RouterConfig struct {
	CORSOrigins []string

	// Per-IP limit on the API routes. Zero disables limiting.
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// NewRouter builds the chi router. /health and /metrics are exempt from
// rate limiting.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(AccessLog)
	r.Use(Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if cfg.RateLimitRequests > 0 {
			window := cfg.RateLimitWindow
			if window <= 0 {
				window = time.Minute
			}
			r.Use(httprate.Limit(cfg.RateLimitRequests, window, httprate.WithKeyFuncs(httprate.KeyByIP)))
		}

		r.Post("/collection/{username}", h.ImportCollection)
		r.Get("/collection/{username}", h.GetCollection)
		r.Get("/users/{username}/mechanics", h.GetUserMechanics)
		r.Get("/games/{bggId}", h.GetGame)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:     codeNotFound,
			Message:   "route not found",
			RequestID: chimiddleware.GetReqID(r.Context()),
		})
	})

	return r
}
