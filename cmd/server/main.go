package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/fundsync/fundsync/internal/api"
	"github.com/fundsync/fundsync/internal/config"
	"github.com/fundsync/fundsync/internal/db"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("[Startup] No .env file found, using environment")
	}

	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[Startup] Database connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("[Startup] Database connected")

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("[Startup] Migrations failed: %v", err)
	}

	server, err := api.NewServer(cfg, db.NewStore(pool))
	if err != nil {
		log.Fatalf("[Startup] Server init failed: %v", err)
	}

	log.Printf("[Startup] Listening on :%s", cfg.Port)
	if err := server.Start(); err != nil {
		log.Fatalf("[Startup] Server stopped: %v", err)
	}
}
