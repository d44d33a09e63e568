// This is the main entry point of the Opinion Manager API.
// It loads configuration, opens the storage backend, wires the router and
// starts the HTTP server. It also handles graceful shutdown.
//
// Analogy to Nest.js: This file is similar to `main.ts` in a Nest.js application,
// where the application instance is created and bootstrapped to listen for requests.
// @title Opinion Manager API
// @version 1.0
// @description REST backend for publishing opinion posts and commenting on them.
// @contact.name API Support
// @license.name MIT
// @license.url https://opensource.org/licenses/MIT
// @BasePath /opinionmanager/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type 'Bearer YOUR_JWT_TOKEN' to authorize
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	// `godotenv` loads environment variables from a .env file, useful for development.
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/user/opinion-manager/api"
	"github.com/user/opinion-manager/auth"
	"github.com/user/opinion-manager/background"
	"github.com/user/opinion-manager/config"
	"github.com/user/opinion-manager/db"
	"github.com/user/opinion-manager/logging"
	"github.com/user/opinion-manager/store/pgstore"
)

func main() {
	// Bootstrap logger until the configured one exists.
	boot := zerolog.New(os.Stderr).With().Timestamp().Logger()

	// In production, variables are usually set directly and there is no .env file.
	if err := godotenv.Load(); err != nil {
		boot.Warn().Err(err).Msg(".env file not found or could not be loaded")
	}

	app := &cli.App{
		Name:   "opinion-manager",
		Usage:  "REST backend for opinion posts and comments",
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "start the HTTP server (default)",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply the postgres schema migrations and exit",
				Action: migrate,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		boot.Fatal().Err(err).Msg("opinion-manager failed")
	}
}

// migrate is for deployments that apply the schema out of band; serve runs the
// same migrations on startup.
func migrate(c *cli.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.Driver != config.DriverPostgres {
		return fmt.Errorf("migrate needs a postgres DATABASE_URL, got driver %q", cfg.Database.Driver)
	}
	logger := logging.New(cfg.Log, os.Stdout)
	if err := pgstore.RunMigrations(cfg.Database.URL); err != nil {
		return err
	}
	logger.Info().Msg("migrations applied")
	return nil
}

func serve(c *cli.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.Log, os.Stdout)

	ctx := c.Context
	conn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		// A storage failure at startup is fatal: without it no route can work.
		logger.Error().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to open database")
		return err
	}
	logger.Info().Str("driver", conn.Driver).Msg("database connected")

	counters, memCounters, err := db.Counters(ctx, cfg.RateLimit, conn)
	if err != nil {
		_ = conn.Store.Close(ctx)
		return err
	}

	// `stopChan` is closed on shutdown to tell background tasks to finish.
	stopChan := make(chan struct{})
	var sweeper *sync.WaitGroup
	if memCounters != nil {
		sweeper = background.StartSweeper(memCounters, background.DefaultSweepInterval, logger, stopChan)
	}

	handler := api.NewRouter(api.Deps{
		Store:    conn.Store,
		Tokens:   auth.NewTokenService(cfg.Auth),
		Counters: counters,
		Logger:   logger,
		Config:   cfg,
	})

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// The server runs in its own goroutine so serve can wait for a shutdown signal.
	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until SIGINT (Ctrl+C), SIGTERM or a listen failure.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	var runErr error
	select {
	case <-quit:
		logger.Info().Msg("server shutting down")
	case runErr = <-serverErr:
		logger.Error().Err(runErr).Msg("server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}

	close(stopChan)
	if sweeper != nil {
		sweeper.Wait()
	}

	if err := conn.Store.Close(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to close database")
	}
	if runErr == nil {
		logger.Info().Msg("server stopped gracefully")
	}
	return runErr
}
