// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for arena, transport and persistence settings.
//
// Every value has a default here; environment variables override it.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int
	StaticDir      string   // Optional directory served at / (empty = disabled)
	AllowedOrigins []string // CORS + WebSocket origin allow-list (nil = localhost only)
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port: 3000,
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if dir := os.Getenv("STATIC_DIR"); dir != "" {
		cfg.StaticDir = dir
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = splitList(origins)
	}

	return cfg
}

// =============================================================================
// ARENA CONFIGURATION
// =============================================================================

// ArenaConfig holds gameplay settings. Per-hit damage is deliberately absent:
// it is a fixed server constant (game.ShotDamage).
type ArenaConfig struct {
	MaxPlayers   int           // Concurrent players per arena
	RespawnDelay time.Duration // Auto-respawn delay after death
	HalfExtent   float64       // Random spawns land in [-HalfExtent, HalfExtent) on x and z
	SpawnHeight  float64       // Eye height for spawned players (y)
}

// DefaultArena returns the default arena configuration (1v1).
func DefaultArena() ArenaConfig {
	return ArenaConfig{
		MaxPlayers:   2,
		RespawnDelay: 3 * time.Second,
		HalfExtent:   15,
		SpawnHeight:  1.6,
	}
}

// ArenaFromEnv returns arena configuration with environment variable overrides.
func ArenaFromEnv() ArenaConfig {
	cfg := DefaultArena()

	if mp := getEnvInt("MAX_PLAYERS", 0); mp > 0 {
		cfg.MaxPlayers = mp
	}
	if ms := getEnvInt("RESPAWN_DELAY_MS", 0); ms > 0 {
		cfg.RespawnDelay = time.Duration(ms) * time.Millisecond
	}
	if he := getEnvFloat("ARENA_HALF_EXTENT", 0); he > 0 {
		cfg.HalfExtent = he
	}

	return cfg
}

// =============================================================================
// STATS PERSISTENCE CONFIGURATION
// =============================================================================

// Stats backends
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// StatsConfig selects and tunes the long-term stats store.
type StatsConfig struct {
	Backend      string
	SQLitePath   string
	RedisURL     string
	Workers      int           // StatsWriter worker goroutines
	QueueSize    int           // StatsWriter buffered submissions
	WriteTimeout time.Duration // Per-write deadline
}

// DefaultStats returns the default stats configuration.
func DefaultStats() StatsConfig {
	return StatsConfig{
		Backend:      BackendSQLite,
		SQLitePath:   "arena.db",
		RedisURL:     "redis://localhost:6379",
		Workers:      2,
		QueueSize:    128,
		WriteTimeout: 5 * time.Second,
	}
}

// StatsFromEnv returns stats configuration with environment variable overrides.
func StatsFromEnv() StatsConfig {
	cfg := DefaultStats()

	if b := os.Getenv("STATS_BACKEND"); b != "" {
		cfg.Backend = strings.ToLower(b)
	}
	if p := os.Getenv("SQLITE_PATH"); p != "" {
		cfg.SQLitePath = p
	}
	if u := os.Getenv("REDIS_URL"); u != "" {
		cfg.RedisURL = u
	}
	if w := getEnvInt("STATS_WORKERS", 0); w > 0 {
		cfg.Workers = w
	}
	if q := getEnvInt("STATS_QUEUE", 0); q > 0 {
		cfg.QueueSize = q
	}

	return cfg
}

// =============================================================================
// CONNECTION LIMITS
// =============================================================================

// LimitsConfig controls DoS protection on the transport.
type LimitsConfig struct {
	MaxConnections   int     // Total WebSocket connections (players + rejected joiners)
	MaxPerIP         int     // Concurrent WebSocket connections per IP
	MessagesPerSec   float64 // Inbound events per connection per second
	MessageBurst     int     // Inbound burst per connection
	HTTPRequestsPerS float64 // REST requests per IP per second
	HTTPBurst        int
}

// DefaultLimits returns the default connection limits.
// Movement is sent every frame, so the per-connection budget is generous.
func DefaultLimits() LimitsConfig {
	return LimitsConfig{
		MaxConnections:   64,
		MaxPerIP:         8,
		MessagesPerSec:   120,
		MessageBurst:     240,
		HTTPRequestsPerS: 10,
		HTTPBurst:        20,
	}
}

// LimitsFromEnv returns limits with environment variable overrides.
func LimitsFromEnv() LimitsConfig {
	cfg := DefaultLimits()

	if r := getEnvFloat("WS_MSG_RATE", 0); r > 0 {
		cfg.MessagesPerSec = r
	}
	if b := getEnvInt("WS_MSG_BURST", 0); b > 0 {
		cfg.MessageBurst = b
	}
	if n := getEnvInt("WS_MAX_PER_IP", 0); n > 0 {
		cfg.MaxPerIP = n
	}

	return cfg
}

// =============================================================================
// OBSERVABILITY
// =============================================================================

// ObservabilityConfig configures the event log and the debug server.
type ObservabilityConfig struct {
	EventLogPath       string
	DebugServerEnabled bool
	DebugListenAddr    string // MUST stay on localhost
}

// DefaultObservability returns the default observability configuration.
func DefaultObservability() ObservabilityConfig {
	return ObservabilityConfig{
		EventLogPath:       "events.jsonl",
		DebugServerEnabled: true,
		DebugListenAddr:    "127.0.0.1:6060",
	}
}

// ObservabilityFromEnv returns observability settings with environment overrides.
func ObservabilityFromEnv() ObservabilityConfig {
	cfg := DefaultObservability()

	if p, ok := os.LookupEnv("EVENT_LOG_PATH"); ok {
		cfg.EventLogPath = p
	}
	if os.Getenv("DISABLE_DEBUG_SERVER") == "true" {
		cfg.DebugServerEnabled = false
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Server        ServerConfig
	Arena         ArenaConfig
	Stats         StatsConfig
	Limits        LimitsConfig
	Observability ObservabilityConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Server:        ServerFromEnv(),
		Arena:         ArenaFromEnv(),
		Stats:         StatsFromEnv(),
		Limits:        LimitsFromEnv(),
		Observability: ObservabilityFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
