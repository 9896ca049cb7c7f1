// Package router assembles the HTTP surface of the sales API.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nutonspeed/beauty-precision-platform/internal/bookings"
	httpmiddleware "github.com/nutonspeed/beauty-precision-platform/internal/http/middleware"
	"github.com/nutonspeed/beauty-precision-platform/internal/identity"
	"github.com/nutonspeed/beauty-precision-platform/internal/proposals"
	"github.com/nutonspeed/beauty-precision-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	ProposalsHandler   *proposals.Handler
	BookingsHandler    *bookings.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// AuthJWTSecret enables bearer-token identity; empty trusts the identity
	// headers (local development only).
	AuthJWTSecret string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Authenticated sales endpoints
	r.Group(func(authed chi.Router) {
		authed.Use(identity.Middleware(cfg.AuthJWTSecret, cfg.Logger))
		pr := cfg.ProposalsHandler.Routes()
		if cfg.BookingsHandler != nil {
			pr.Post("/{proposalID}/book", cfg.BookingsHandler.Book)
		}
		authed.Mount("/sales/proposals", pr)
	})

	return r
}
