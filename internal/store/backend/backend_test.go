package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"arena/internal/config"
)

// TestOpen tests backend selection
func TestOpen(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name    string
		cfg     config.StatsConfig
		wantNil bool
		wantErr bool
	}{
		{"none", config.StatsConfig{Backend: config.BackendNone}, true, false},
		{"memory", config.StatsConfig{Backend: config.BackendMemory}, false, false},
		{"sqlite", config.StatsConfig{Backend: config.BackendSQLite, SQLitePath: filepath.Join(t.TempDir(), "a.db")}, false, false},
		{"redis", config.StatsConfig{Backend: config.BackendRedis, RedisURL: "redis://" + mr.Addr()}, false, false},
		{"unknown", config.StatsConfig{Backend: "postgres"}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open() error = %v, wantErr %v", err, tt.wantErr)
			}
			if (s == nil) != tt.wantNil {
				t.Fatalf("Open() store nil = %v, want %v", s == nil, tt.wantNil)
			}
			if s == nil {
				return
			}
			defer s.Close()

			u, err := s.FindOrCreateUser(context.Background(), "alice", "pw")
			if err != nil {
				t.Fatalf("FindOrCreateUser: %v", err)
			}
			if u.ID == "" {
				t.Error("Expected a user id")
			}
		})
	}
}
