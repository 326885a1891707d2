package api

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"arena/internal/config"
	"arena/internal/store"
)

// ServerConfig holds the server's collaborators and settings
type ServerConfig struct {
	Hub   GameHub
	Store store.Store // nil: no accounts, stats or leaderboard

	Limits         config.LimitsConfig
	AllowedOrigins []string
	StaticDir      string
	DisableLogging bool
}

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with the WebSocket gateway to the hub.
type Server struct {
	router      *chi.Mux
	gateway     *Gateway
	rateLimiter *IPRateLimiter
	sessions    *SessionManager
	httpServer  *http.Server
}

// NewServer creates the server. ctx bounds hub calls made for WebSocket
// clients; cancel it after the hub has stopped.
//
// No listener is opened until Start is called. For testing HTTP endpoints
// without WebSocket support, use NewRouter() directly.
func NewServer(ctx context.Context, cfg ServerConfig) *Server {
	origins := NewOriginPolicy(cfg.AllowedOrigins)

	s := &Server{
		rateLimiter: NewIPRateLimiter(RateLimitFromLimits(cfg.Limits)),
		httpServer:  &http.Server{ReadHeaderTimeout: 10 * time.Second},
	}
	if cfg.Store != nil {
		s.sessions = NewSessionManager(nil)
	}

	s.router = NewRouter(RouterConfig{
		Hub:            cfg.Hub,
		Store:          cfg.Store,
		Sessions:       s.sessions,
		RateLimiter:    s.rateLimiter,
		CORSOrigins:    origins.CORSOrigins(),
		StaticFilesDir: cfg.StaticDir,
		DisableLogging: cfg.DisableLogging,
	})

	s.gateway = NewGateway(ctx, GatewayConfig{
		Hub:         cfg.Hub,
		Sessions:    s.sessions,
		AuthEnabled: cfg.Store != nil,
		Origins:     origins,
		Limits:      cfg.Limits,
	})

	s.setupWebSocketRoutes()
	s.httpServer.Handler = s.router
	return s
}

// setupWebSocketRoutes adds WebSocket-specific routes to the router.
// These routes need access to the gateway instance, so they can't be
// part of the generic NewRouter factory.
func (s *Server) setupWebSocketRoutes() {
	// WebSocket endpoint (compatible with Socket.IO path)
	s.router.Get("/socket.io/", s.handleSocketIO)
	s.router.Get("/ws", s.gateway.HandleWebSocket)
}

// Start serves HTTP on addr until Shutdown is called. It returns nil after a
// graceful shutdown.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	log.Printf("🌐 API server starting on %s", ln.Addr())
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Router returns the HTTP handler for use with httptest.
// Use this in integration tests instead of calling Start().
func (s *Server) Router() http.Handler {
	return s.router
}

// Gateway returns the WebSocket gateway
func (s *Server) Gateway() *Gateway {
	return s.gateway
}

// Shutdown stops accepting requests and stops background workers. Upgraded
// WebSocket connections are not tracked by net/http; they end when the hub
// stops and closes them.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.rateLimiter.Stop()
	if s.sessions != nil {
		s.sessions.Stop()
	}
	return err
}

func (s *Server) handleSocketIO(w http.ResponseWriter, r *http.Request) {
	// Check if this is a WebSocket upgrade request
	if websocket.IsWebSocketUpgrade(r) {
		s.gateway.HandleWebSocket(w, r)
		return
	}

	// For polling fallback, return 404 (we only support WebSocket)
	writeError(w, "use websocket", http.StatusNotFound)
}
