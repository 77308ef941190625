// Package main provides the meal analysis API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/PierreDenaes/deploy-sub002/internal/api"
	"github.com/PierreDenaes/deploy-sub002/internal/config"
	"github.com/PierreDenaes/deploy-sub002/internal/database"
	"github.com/PierreDenaes/deploy-sub002/internal/images"
	"github.com/PierreDenaes/deploy-sub002/internal/llm"
	"github.com/PierreDenaes/deploy-sub002/internal/logging"
	"github.com/PierreDenaes/deploy-sub002/internal/nutrition"
	"github.com/PierreDenaes/deploy-sub002/internal/openfoodfacts"
	"github.com/PierreDenaes/deploy-sub002/internal/packaging"
	"github.com/PierreDenaes/deploy-sub002/internal/pipeline"
	"github.com/PierreDenaes/deploy-sub002/internal/portion"
	"github.com/PierreDenaes/deploy-sub002/internal/resilience"
)

func main() {
	migrateOnly := flag.Bool("migrate", false, "Run migrations and exit")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Options{Level: cfg.LogLevel, Environment: cfg.Environment})

	// Run migrations
	if *migrateOnly && cfg.Database.URL == "" {
		logger.Fatal().Msg("DATABASE_URL is required to migrate")
	}
	if cfg.Database.URL != "" {
		logger.Info().Msg("running database migrations")
		if err := database.Migrate(cfg.Database.URL); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		logger.Info().Msg("migrations complete")
	}
	if *migrateOnly {
		return
	}

	completer, err := llm.NewCompleter(llm.Config{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Timeout:     cfg.LLM.Timeout,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create llm client")
	}
	gateway := llm.NewGateway(completer, llm.RetryConfig{
		MaxAttempts: cfg.LLM.RetryMaxAttempts,
		BaseDelay:   cfg.LLM.RetryBaseDelay,
		MaxDelay:    cfg.LLM.RetryMaxDelay,
	}, llm.WithLogger(logger))

	ctx := context.Background()

	var db *database.DB
	if cfg.Database.URL != "" {
		db, err = database.New(ctx, cfg.Database)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()
	} else {
		logger.Warn().Msg("DATABASE_URL not set, meal history and local cache disabled")
	}

	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		rdb, err = openfoodfacts.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, product caching disabled")
			rdb = nil
		} else {
			defer func() { _ = rdb.Close() }()
		}
	}

	fallback, err := nutrition.NewFallbackSource()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load fallback nutrition table")
	}

	products := openfoodfacts.NewClient(cfg.Products, rdb, logger)
	guard := resilience.NewGuard(cfg.Resilience, logger)

	var writer nutrition.ProductWriter
	if db != nil {
		writer = db
	}
	sources := []nutrition.Source{nutrition.NewOnlineSource(products, guard, writer, logger)}
	if db != nil {
		sources = append(sources, nutrition.NewLocalSource(db))
	}
	sources = append(sources, fallback)

	pipe := pipeline.New(pipeline.Options{
		Completer: gateway,
		Packages:  packaging.NewAnalyzer(gateway, cfg.Pipeline.MinExtractRunes, logger),
		Images:    images.NewResolver(cfg.Images),
		Estimator: portion.NewEstimator(cfg.Portion),
		Cascade:   nutrition.NewCascade(sources, cfg.Nutrition, logger),
		Config:    cfg.Pipeline,
		Logger:    logger,
	})

	var store api.MealStore
	if db != nil {
		store = db
	}
	server := api.NewServer(api.Config{
		Analyzer:       pipe,
		Store:          store,
		Logger:         logger,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	httpServer := &http.Server{
		Addr:        addr,
		Handler:     server,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the stream endpoint holds its connection open.
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
