// Package backend opens the Store selected by configuration.
package backend

import (
	"fmt"
	"log"

	"arena/internal/config"
	"arena/internal/store"
	"arena/internal/store/memory"
	"arena/internal/store/redis"
	"arena/internal/store/sqlite"
)

// Open returns the configured store. Backend "none" returns a nil Store and a
// nil error: persistence and accounts are disabled.
func Open(cfg config.StatsConfig) (store.Store, error) {
	switch cfg.Backend {
	case config.BackendNone:
		log.Println("💾 Stats persistence disabled")
		return nil, nil

	case config.BackendMemory:
		log.Println("💾 Stats backend: memory (lost on restart)")
		return memory.New(), nil

	case config.BackendSQLite:
		sc := sqlite.DefaultConfig()
		sc.Path = cfg.SQLitePath
		s, err := sqlite.Open(sc)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		log.Printf("💾 Stats backend: sqlite (%s)", cfg.SQLitePath)
		return s, nil

	case config.BackendRedis:
		rc := redis.DefaultConfig()
		rc.URL = cfg.RedisURL
		s, err := redis.New(rc)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		log.Println("💾 Stats backend: redis")
		return s, nil

	default:
		return nil, fmt.Errorf("unknown stats backend %q", cfg.Backend)
	}
}
