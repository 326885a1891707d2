package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"arena/internal/store"
)

// RouterConfig contains all dependencies needed to construct the HTTP router.
// This struct is designed for dependency injection and testability.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    Hub:   fakeHub,
//	    Store: memory.New(),
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000, // High limit for tests
//	        Burst:             1000,
//	    },
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Hub is the running arena (required)
	Hub GameHub

	// Store backs accounts, stats and the leaderboard. If nil, those routes
	// are not mounted.
	Store store.Store

	// Sessions signs session cookies. If nil and Store is set, a manager with
	// a random secret is created.
	Sessions *SessionManager

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is optional configuration for the rate limiter.
	// Only used if RateLimiter is nil. If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, only localhost is allowed.
	CORSOrigins []string

	// StaticFilesDir is served at / when set (the game client).
	StaticFilesDir string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the handler functions for the router.
// This is used internally to pass handlers to route setup.
type routerHandlers struct {
	hub      GameHub
	store    store.Store
	sessions *SessionManager
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// It starts no listeners. The only goroutines it may start belong to a rate
// limiter or session manager it had to create itself; pass them in to own
// their lifecycle.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = NewOriginPolicy(nil).CORSOrigins()
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	sessions := cfg.Sessions
	if sessions == nil && cfg.Store != nil {
		sessions = NewSessionManager(nil)
	}

	h := &routerHandlers{
		hub:      cfg.Hub,
		store:    cfg.Store,
		sessions: sessions,
	}

	r.Get("/health", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.handleGetState)

		if cfg.Store == nil {
			return
		}

		r.Get("/leaderboard", h.handleGetLeaderboard)
		r.Get("/stats/{userID}", h.handleGetUserStats)

		r.Post("/register", h.handleRegister)
		r.Post("/login", h.handleLogin)
		r.Post("/logout", sessions.HandleLogout)
		r.Get("/auth/status", sessions.HandleAuthStatus)

		r.Group(func(r chi.Router) {
			r.Use(sessions.RequireSession)
			r.Get("/me/stats", h.handleGetMyStats)
		})
	})

	if cfg.StaticFilesDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(cfg.StaticFilesDir)))
	}

	return r
}
