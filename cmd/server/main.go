// Package main is the entry point for the rental API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Infow("starting rentalcore server", "env", cfg.Env, "version", app.Version)

	storage, err := app.OpenStorage(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to open storage", "error", err)
	}
	defer storage.Close()

	services := app.NewServices(storage, nil)
	router := app.NewRouter(cfg, storage, services, log)

	if cfg.Auth.JWTSecret == "" {
		log.Warn("JWT secret not set, authentication disabled")
	}

	// The in-memory store is private to this process, so the periodic jobs
	// run here instead of in the worker binary.
	if storage.Backend() == "memory" {
		sched, cleanup, err := app.NewScheduler(ctx, cfg, storage, services, log)
		if err != nil {
			log.Fatalw("failed to create scheduler", "error", err)
		}
		defer cleanup()
		app.StartScheduler(ctx, cfg, sched, log)
		defer sched.Stop()
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Infow("server starting", "addr", cfg.Server.Addr, "storage", storage.Backend())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}
	cancel()

	log.Info("server stopped")
}
