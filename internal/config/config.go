// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the full process configuration.
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	LLM        LLM
	Pipeline   Pipeline
	Nutrition  Nutrition
	Portion    Portion
	Resilience Resilience
	Products   Products
	Images     Images
	Redis      Redis
	Database   Database
	Server     Server
}

// LLM configures the model gateway and its retry policy.
type LLM struct {
	Provider         string        `envconfig:"LLM_PROVIDER" default:"gemini"`
	Model            string        `envconfig:"LLM_MODEL"`
	APIKey           string        `envconfig:"LLM_API_KEY"`
	BaseURL          string        `envconfig:"LLM_BASE_URL"`
	MaxTokens        int           `envconfig:"LLM_MAX_TOKENS" default:"8192"`
	Temperature      float64       `envconfig:"LLM_TEMPERATURE" default:"0.1"`
	Timeout          time.Duration `envconfig:"LLM_TIMEOUT" default:"60s"`
	RetryMaxAttempts int           `envconfig:"LLM_RETRY_MAX_ATTEMPTS" default:"3"`
	RetryBaseDelay   time.Duration `envconfig:"LLM_RETRY_BASE_DELAY" default:"500ms"`
	RetryMaxDelay    time.Duration `envconfig:"LLM_RETRY_MAX_DELAY" default:"8s"`
}

// Pipeline configures orchestrator-level confidence adjustments.
type Pipeline struct {
	ReviewThreshold float64 `envconfig:"PIPELINE_REVIEW_THRESHOLD" default:"0.6"`
	PoorImageFactor float64 `envconfig:"PIPELINE_POOR_IMAGE_FACTOR" default:"0.7"`
	MinExtractRunes int     `envconfig:"PIPELINE_MIN_EXTRACT_RUNES" default:"20"`
}

// Nutrition configures cascade confidence weights and fallback triggers.
// The plausibility cutoffs are heuristics, kept configurable on purpose.
type Nutrition struct {
	OfficialConfidence  float64 `envconfig:"NUTRITION_OFFICIAL_CONFIDENCE" default:"0.95"`
	OnlineConfidence    float64 `envconfig:"NUTRITION_ONLINE_CONFIDENCE" default:"0.90"`
	LocalConfidence     float64 `envconfig:"NUTRITION_LOCAL_CONFIDENCE" default:"0.85"`
	FallbackConfidence  float64 `envconfig:"NUTRITION_FALLBACK_CONFIDENCE" default:"0.70"`
	VisualConfidenceCap float64 `envconfig:"NUTRITION_VISUAL_CONFIDENCE_CAP" default:"0.55"`
	MinProtein          float64 `envconfig:"NUTRITION_MIN_PROTEIN" default:"0"`
	MinCalories         float64 `envconfig:"NUTRITION_MIN_CALORIES" default:"0"`
	NearZeroProtein     float64 `envconfig:"NUTRITION_NEAR_ZERO_PROTEIN" default:"0.5"`
	NearZeroCalories    float64 `envconfig:"NUTRITION_NEAR_ZERO_CALORIES" default:"10"`
}

// Portion configures the weight estimator heuristics.
type Portion struct {
	DefaultGrams          float64 `envconfig:"PORTION_DEFAULT_GRAMS" default:"250"`
	WholePackageThreshold float64 `envconfig:"PORTION_WHOLE_PACKAGE_THRESHOLD" default:"400"`
	SingleServingGrams    float64 `envconfig:"PORTION_SINGLE_SERVING_GRAMS" default:"100"`
	ExplicitConfidence    float64 `envconfig:"PORTION_EXPLICIT_CONFIDENCE" default:"0.9"`
	ContainerConfidence   float64 `envconfig:"PORTION_CONTAINER_CONFIDENCE" default:"0.75"`
	BreakdownConfidence   float64 `envconfig:"PORTION_BREAKDOWN_CONFIDENCE" default:"0.7"`
	PackageConfidence     float64 `envconfig:"PORTION_PACKAGE_CONFIDENCE" default:"0.6"`
	DefaultConfidence     float64 `envconfig:"PORTION_DEFAULT_CONFIDENCE" default:"0.3"`
}

// Resilience configures the guard around the remote product database.
type Resilience struct {
	CallTimeout      time.Duration `envconfig:"RESILIENCE_CALL_TIMEOUT" default:"7s"`
	BreakerThreshold int           `envconfig:"RESILIENCE_BREAKER_THRESHOLD" default:"1"`
	BreakerWindow    time.Duration `envconfig:"RESILIENCE_BREAKER_WINDOW" default:"10s"`
	RateLimit        float64       `envconfig:"RESILIENCE_RATE_LIMIT" default:"10"`
	RateBurst        int           `envconfig:"RESILIENCE_RATE_BURST" default:"5"`
}

// Products configures the remote product database client.
type Products struct {
	BaseURL   string        `envconfig:"PRODUCTS_BASE_URL" default:"https://world.openfoodfacts.org"`
	UserAgent string        `envconfig:"PRODUCTS_USER_AGENT" default:"mealscan/1.0"`
	PageSize  int           `envconfig:"PRODUCTS_PAGE_SIZE" default:"5"`
	CacheTTL  time.Duration `envconfig:"PRODUCTS_CACHE_TTL" default:"24h"`
}

// Images configures the image locator resolver.
type Images struct {
	MaxBytes     int64         `envconfig:"IMAGES_MAX_BYTES" default:"8388608"`
	FetchTimeout time.Duration `envconfig:"IMAGES_FETCH_TIMEOUT" default:"10s"`
}

// Redis configures the product response cache. Empty URL disables caching.
type Redis struct {
	URL string `envconfig:"REDIS_URL"`
}

// Database configures the local store. Empty URL disables persistence.
type Database struct {
	URL             string  `envconfig:"DATABASE_URL"`
	SimilarityFloor float64 `envconfig:"DATABASE_SIMILARITY_FLOOR" default:"0.3"`
}

// Server configures the HTTP surface.
type Server struct {
	Port           int    `envconfig:"PORT" default:"8080"`
	AllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}
	return &cfg, nil
}
