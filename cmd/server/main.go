package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"arena/internal/api"
	"arena/internal/config"
	"arena/internal/game"
	"arena/internal/store"
	"arena/internal/store/backend"
)

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🎮 ================================")
	log.Println("🎮  ARENA - GAME STATE SERVER")
	log.Println("🎮 ================================")

	// Load centralized configuration (SSOT - Single Source of Truth)
	appConfig := config.Load()
	arenaCfg := appConfig.Arena
	statsCfg := appConfig.Stats

	log.Printf("🎮 Config: %d players, respawn after %v, arena ±%.0f",
		arenaCfg.MaxPlayers, arenaCfg.RespawnDelay, arenaCfg.HalfExtent)

	// Long-term stats
	st, err := backend.Open(statsCfg)
	if err != nil {
		log.Fatalf("❌ Stats store: %v", err)
	}
	var writer *store.StatsWriter
	var sink game.StatsSink
	if st != nil {
		writer = store.NewStatsWriter(st, store.WriterConfig{
			BufferSize: statsCfg.QueueSize,
			Workers:    statsCfg.Workers,
			Timeout:    statsCfg.WriteTimeout,
		})
		writer.OnResult = api.RecordStatsWrite
		writer.Start()
		sink = writer
	}

	// Start event log
	eventLog := game.NewEventLog()
	if path := appConfig.Observability.EventLogPath; path != "" {
		if err := eventLog.Start(path); err != nil {
			log.Printf("⚠️ Event log disabled: %v", err)
		} else {
			log.Printf("📝 Event log: %s", path)
		}
	}

	// Start debug server
	if err := api.StartDebugServer(api.DebugConfigFrom(appConfig.Observability)); err != nil {
		log.Printf("⚠️ Debug server disabled: %v", err)
	}

	hub := game.NewHub(game.HubConfig{
		MaxPlayers:   arenaCfg.MaxPlayers,
		RespawnDelay: arenaCfg.RespawnDelay,
		Arena:        game.Arena{HalfExtent: arenaCfg.HalfExtent, SpawnHeight: arenaCfg.SpawnHeight},
		Stats:        sink,
		EventLog:     eventLog,
		Metrics:      api.GameMetrics,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)
	go api.WatchEventLog(ctx, eventLog, 10*time.Second)

	server := api.NewServer(ctx, api.ServerConfig{
		Hub:            hub,
		Store:          st,
		Limits:         appConfig.Limits,
		AllowedOrigins: appConfig.Server.AllowedOrigins,
		StaticDir:      appConfig.Server.StaticDir,
	})

	// Start API server in goroutine
	go func() {
		addr := ":" + strconv.Itoa(appConfig.Server.Port)
		log.Printf("🌐 WebSocket endpoint: ws://localhost%s/ws", addr)
		if err := server.Start(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ HTTP shutdown: %v", err)
	}

	// Stopping the hub flushes every connected player's stats into the writer,
	// so the writer and store go last.
	cancel()
	<-hub.Done()
	if writer != nil {
		writer.Stop()
	}
	if st != nil {
		if err := st.Close(); err != nil {
			log.Printf("⚠️ Closing stats store: %v", err)
		}
	}
	eventLog.Stop()
	log.Println("👋 Goodbye!")
}
