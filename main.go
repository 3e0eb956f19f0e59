package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mohammad2410/Sphere/internal/api"
	"github.com/Mohammad2410/Sphere/internal/app"
	"github.com/Mohammad2410/Sphere/internal/backend"
	"github.com/Mohammad2410/Sphere/internal/config"
	"github.com/Mohammad2410/Sphere/internal/database"
	"github.com/Mohammad2410/Sphere/internal/logger"
	"github.com/Mohammad2410/Sphere/internal/media"
	"github.com/Mohammad2410/Sphere/internal/normalize"
	"github.com/Mohammad2410/Sphere/internal/presence"
	"github.com/Mohammad2410/Sphere/internal/session"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.LogLevel)

	// Set up the local store holding the session token
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	// Set up the backend client
	resolver := media.NewResolver(cfg.BackendURL, cfg.PlaceholderImage)
	client := backend.New(cfg.BackendURL, cfg.APIPrefix, normalize.New(resolver), backend.WithTimeout(cfg.RequestTimeout))

	root := app.New(
		session.New(client, database.NewStorage(db)),
		presence.WithInterval(cfg.PresenceInterval),
		presence.WithWindow(cfg.ActiveWindow),
		presence.WithLimit(cfg.ActiveLimit),
	)

	// Resolve a stored session before serving
	startCtx, cancelStart := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	if err := root.Start(startCtx); err != nil {
		log.Error().Err(err).Msg("Failed to restore session")
	}
	cancelStart()
	log.Info().Str("route", string(root.Route())).Msg("Session resolved")

	// Set up router
	router := api.NewRouter(root, cfg.AllowedOrigins)

	// Set up server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("backend", cfg.BackendURL).Msg("Server starting")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	root.Close() // Stop active user polling

	log.Info().Msg("Server exiting")
}
