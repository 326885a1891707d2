package api

import (
	"context"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"arena/internal/config"
	"arena/internal/game"
)

// Metrics with bounded cardinality (no per-player labels to prevent DoS)
var (
	// Arena metrics
	playerCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_players_active",
		Help: "Players currently registered in the arena",
	})

	shotsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_shots_total",
		Help: "Resolved shots by outcome",
	}, []string{"outcome"}) // Bounded: "applied", "killed", "ignored"

	killsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_kills_total",
		Help: "Death transitions",
	})

	autoRespawnsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_auto_respawns_total",
		Help: "Server-initiated respawns",
	})

	joinsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_joins_rejected_total",
		Help: "Joins refused because the arena was full",
	})

	// Stats persistence
	statsWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stats_writes_total",
		Help: "Stats increments by result",
	}, []string{"result"}) // Bounded: "ok", "error", "dropped"

	// Event log metrics
	eventLogTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "event_log_total",
		Help: "Total events logged",
	})

	eventLogDropped = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "event_log_dropped",
		Help: "Events dropped due to rate limiting or buffer full",
	})

	// DoS detection metrics - use ONLY bounded label values
	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter or origin check",
	}, []string{"reason"}) // Bounded: "rate_limit", "origin", "ws_total_limit", "ws_ip_limit"

	// HTTP metrics with bounded labels
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"}) // endpoint is the route pattern, not the full URL

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	// WebSocket metrics
	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesIn = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "websocket_messages_received_total",
		Help: "Inbound WebSocket events",
	}, []string{"event"}) // Bounded: inbound event names plus "invalid", "unknown" and "rate_limited"

	wsMessagesOut = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "websocket_messages_sent_total",
		Help: "Outbound WebSocket events",
	}, []string{"event"})
)

// ObservabilityConfig configures the debug server
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string // MUST be "127.0.0.1:6060" in production
	BasicAuthUser string // Optional basic auth
	BasicAuthPass string
}

// DefaultObservabilityConfig returns safe defaults
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060", // Localhost only - NEVER expose externally
	}
}

// DebugConfigFrom maps app configuration onto the debug server settings.
func DebugConfigFrom(o config.ObservabilityConfig) ObservabilityConfig {
	cfg := DefaultObservabilityConfig()
	cfg.Enabled = o.DebugServerEnabled
	if o.DebugListenAddr != "" {
		cfg.ListenAddr = o.DebugListenAddr
	}
	cfg.BasicAuthUser = os.Getenv("DEBUG_USER")
	cfg.BasicAuthPass = os.Getenv("DEBUG_PASS")
	return cfg
}

// StartDebugServer starts the internal observability server.
// It binds to localhost only unless ALLOW_DEBUG_EXTERNAL=true.
func StartDebugServer(cfg ObservabilityConfig) error {
	if !cfg.Enabled {
		log.Println("📊 Debug server disabled")
		return nil
	}

	if cfg.ListenAddr != "127.0.0.1:6060" && cfg.ListenAddr != "localhost:6060" {
		if os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
			log.Println("⚠️ Debug server forced to localhost for security")
			cfg.ListenAddr = "127.0.0.1:6060"
		}
	}

	var handler http.Handler = debugMux()
	if cfg.BasicAuthUser != "" {
		handler = basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass, handler)
	}

	go func() {
		log.Printf("📊 Debug server starting on %s", cfg.ListenAddr)
		log.Printf("   - pprof:   http://%s/debug/pprof/", cfg.ListenAddr)
		log.Printf("   - metrics: http://%s/metrics", cfg.ListenAddr)

		if err := http.ListenAndServe(cfg.ListenAddr, handler); err != nil {
			log.Printf("⚠️ Debug server error: %v", err)
		}
	}()

	return nil
}

func debugMux() *http.ServeMux {
	mux := http.NewServeMux()

	// pprof endpoints for profiling
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// basicAuthMiddleware adds basic authentication to the handler
func basicAuthMiddleware(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// metricsMiddleware records latency and status per chi route pattern.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				endpoint = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RecordRequest(r.Method, endpoint, status, time.Since(start))
	})
}

// RecordConnectionRejected increments the rejection counter
// reason must be one of: "rate_limit", "origin", "ws_total_limit", "ws_ip_limit"
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
}

// UpdateWSConnections updates WebSocket connection count
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// RecordInbound counts one inbound WebSocket event.
func RecordInbound(event string) {
	wsMessagesIn.WithLabelValues(event).Inc()
}

// RecordStatsWrite counts one StatsWriter result. Wire it to StatsWriter.OnResult.
func RecordStatsWrite(result string) {
	statsWrites.WithLabelValues(result).Inc()
}

// WatchEventLog mirrors the event log counters into gauges until ctx is done.
func WatchEventLog(ctx context.Context, el *game.EventLog, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			eventLogTotal.Set(float64(el.GetTotalCount()))
			eventLogDropped.Set(float64(el.GetDroppedCount()))
		}
	}
}

// GameMetrics feeds Hub events into prometheus.
var GameMetrics game.Metrics = promGameMetrics{}

type promGameMetrics struct{}

func (promGameMetrics) SetPlayers(n int) {
	playerCount.Set(float64(n))
}

func (promGameMetrics) ShotResolved(outcome game.ShotOutcome) {
	shotsTotal.WithLabelValues(outcome.String()).Inc()
	if outcome == game.ShotKilled {
		killsTotal.Inc()
	}
}

func (promGameMetrics) AutoRespawned() {
	autoRespawnsTotal.Inc()
}

func (promGameMetrics) JoinRejected() {
	joinsRejected.Inc()
}

func (promGameMetrics) MessageSent(event string) {
	wsMessagesOut.WithLabelValues(event).Inc()
}
