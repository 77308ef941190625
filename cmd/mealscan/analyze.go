package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

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
	"github.com/PierreDenaes/deploy-sub002/pkg/models"
)

var (
	analyzeImage    string
	analyzeCaption  string
	analyzeProvider string
	analyzeModel    string
	analyzeFormat   string
	analyzeVerbose  bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [description]",
	Short: "Analyze a meal from a description or photo",
	Long: `Analyze a meal from a typed description or a photo.

The photo can be a local file path, an http(s) URL, or a data URI. A
description given alongside --image is used as the photo caption.

Examples:
  mealscan analyze "200g grilled chicken with rice"
  mealscan analyze --image ./lunch.jpg
  mealscan analyze --image https://example.com/meal.jpg --caption "chicken salad"
  mealscan analyze "a bowl of skyr" --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeImage, "image", "i", "", "Image locator (file path, URL, or data URI)")
	analyzeCmd.Flags().StringVar(&analyzeCaption, "caption", "", "Caption accompanying the image")
	analyzeCmd.Flags().StringVarP(&analyzeProvider, "provider", "p", "", "LLM provider (gemini, openai, anthropic)")
	analyzeCmd.Flags().StringVarP(&analyzeModel, "model", "m", "", "Specific model name")
	analyzeCmd.Flags().StringVarP(&analyzeFormat, "format", "f", "text", "Output format (text, json)")
	analyzeCmd.Flags().BoolVarP(&analyzeVerbose, "verbose", "v", false, "Show pipeline progress")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	description := ""
	if len(args) == 1 {
		description = args[0]
	}
	if description == "" && analyzeImage == "" {
		return fmt.Errorf("a meal description or --image is required")
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if analyzeProvider != "" {
		cfg.LLM.Provider = analyzeProvider
	}
	if analyzeModel != "" {
		cfg.LLM.Model = analyzeModel
	}

	ctx := context.Background()
	pipe, cleanup, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	req := models.AnalysisRequest{Modality: models.ModalityText, InputText: description}
	if analyzeImage != "" {
		caption := analyzeCaption
		if caption == "" {
			caption = description
		}
		req = models.AnalysisRequest{Modality: models.ModalityImage, ImageRef: analyzeImage, Caption: caption}
	}

	var emitter llm.ProgressEmitter
	var spin *spinner.Spinner
	if analyzeVerbose {
		emitter = &llm.TextEmitter{W: os.Stderr}
	} else if shouldColorize(os.Stderr) {
		spin = spinner.New(spinner.CharSets[14], 120*time.Millisecond, spinner.WithWriter(os.Stderr))
		spin.Suffix = " Analyzing meal..."
		spin.Start()
	}

	start := time.Now()
	result := pipe.Analyze(ctx, req, emitter)
	if spin != nil {
		spin.Stop()
	}

	if analyzeVerbose {
		fmt.Fprintf(os.Stderr, "Analysis complete (%.1fs, %d tokens)\n",
			time.Since(start).Seconds(), result.InputTokens+result.OutputTokens)
	}

	if analyzeFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printResult(os.Stderr, os.Stdout, result)
	return nil
}

// buildPipeline wires the analysis pipeline from configuration. The local
// store and the response cache are optional; without them the cascade
// simply skips those rungs.
func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline.Pipeline, func(), error) {
	logger := logging.New(logging.Options{Level: cfg.LogLevel, Environment: cfg.Environment})

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
		return nil, nil, err
	}
	gateway := llm.NewGateway(completer, llm.RetryConfig{
		MaxAttempts: cfg.LLM.RetryMaxAttempts,
		BaseDelay:   cfg.LLM.RetryBaseDelay,
		MaxDelay:    cfg.LLM.RetryMaxDelay,
	}, llm.WithLogger(logger))

	var db *database.DB
	if cfg.Database.URL != "" {
		if err := database.Migrate(cfg.Database.URL); err != nil {
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		db, err = database.New(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
	}

	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		rdb, err = openfoodfacts.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, product caching disabled")
			rdb = nil
		}
	}

	cleanup := func() {
		if db != nil {
			db.Close()
		}
		if rdb != nil {
			_ = rdb.Close()
		}
	}

	fallback, err := nutrition.NewFallbackSource()
	if err != nil {
		cleanup()
		return nil, nil, err
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

	return pipe, cleanup, nil
}
