// Package main is the entry point for the rental background worker.
// It runs the overdue sweep, reminders, outbox delivery and housekeeping
// against the shared database.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"rentalcore/internal/app"
	"rentalcore/internal/config"
	"rentalcore/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	log = log.WithComponent("worker")

	if cfg.Database.DSN == "" {
		log.Fatal("DATABASE_URL is required; the server runs jobs itself on in-memory storage")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Infow("starting rentalcore worker", "env", cfg.Env, "version", app.Version)

	storage, err := app.NewPostgresStorage(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to open storage", "error", err)
	}
	defer storage.Close()

	services := app.NewServices(storage, nil)

	sched, cleanup, err := app.NewScheduler(ctx, cfg, storage, services, log)
	if err != nil {
		log.Fatalw("failed to create scheduler", "error", err)
	}
	defer cleanup()

	app.StartScheduler(ctx, cfg, sched, log)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()
	sched.Stop()
	log.Info("worker stopped")
}
