package config

import (
	"testing"
	"time"
)

// TestDefaults verifies the 1v1 arena defaults
func TestDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Server.Port != 3000 {
		t.Errorf("Expected port 3000, got %d", cfg.Server.Port)
	}
	if cfg.Arena.MaxPlayers != 2 {
		t.Errorf("Expected 2 max players, got %d", cfg.Arena.MaxPlayers)
	}
	if cfg.Arena.RespawnDelay != 3*time.Second {
		t.Errorf("Expected 3s respawn delay, got %v", cfg.Arena.RespawnDelay)
	}
	if cfg.Stats.Backend != BackendSQLite {
		t.Errorf("Expected sqlite backend, got %s", cfg.Stats.Backend)
	}
}

// TestEnvOverrides verifies environment variables take precedence
func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("MAX_PLAYERS", "8")
	t.Setenv("RESPAWN_DELAY_MS", "1500")
	t.Setenv("ARENA_HALF_EXTENT", "40")
	t.Setenv("STATS_BACKEND", "REDIS")
	t.Setenv("ALLOWED_ORIGINS", "https://arena.example, http://localhost:5173 ,")
	t.Setenv("DISABLE_DEBUG_SERVER", "true")

	cfg := Load()

	if cfg.Server.Port != 8081 {
		t.Errorf("Expected port 8081, got %d", cfg.Server.Port)
	}
	if cfg.Arena.MaxPlayers != 8 {
		t.Errorf("Expected 8 max players, got %d", cfg.Arena.MaxPlayers)
	}
	if cfg.Arena.RespawnDelay != 1500*time.Millisecond {
		t.Errorf("Expected 1.5s respawn delay, got %v", cfg.Arena.RespawnDelay)
	}
	if cfg.Arena.HalfExtent != 40 {
		t.Errorf("Expected half extent 40, got %f", cfg.Arena.HalfExtent)
	}
	if cfg.Stats.Backend != BackendRedis {
		t.Errorf("Expected redis backend, got %s", cfg.Stats.Backend)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "http://localhost:5173" {
		t.Errorf("Unexpected origins: %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Observability.DebugServerEnabled {
		t.Error("Debug server should be disabled")
	}
}

// TestInvalidEnvFallsBack verifies garbage values keep the defaults
func TestInvalidEnvFallsBack(t *testing.T) {
	t.Setenv("MAX_PLAYERS", "lots")
	t.Setenv("RESPAWN_DELAY_MS", "-5")

	cfg := ArenaFromEnv()
	if cfg.MaxPlayers != 2 {
		t.Errorf("Expected default max players, got %d", cfg.MaxPlayers)
	}
	if cfg.RespawnDelay != 3*time.Second {
		t.Errorf("Expected default respawn delay, got %v", cfg.RespawnDelay)
	}
}
