// Package openfoodfacts queries the Open Food Facts product database.
package openfoodfacts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/PierreDenaes/deploy-sub002/internal/config"
	"github.com/PierreDenaes/deploy-sub002/pkg/models"
)

// Client handles Open Food Facts search requests with an optional Redis
// response cache in front of the network.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	pageSize   int
	cache      redis.Cmdable
	cacheTTL   time.Duration
	logger     zerolog.Logger
}

// NewClient creates a product database client. A nil rdb disables the
// response cache.
func NewClient(cfg config.Products, rdb *redis.Client, logger zerolog.Logger) *Client {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://world.openfoodfacts.org"
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "mealscan/1.0"
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 5
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	c := &Client{
		httpClient: &http.Client{},
		baseURL:    baseURL,
		userAgent:  userAgent,
		pageSize:   pageSize,
		cacheTTL:   ttl,
		logger:     logger,
	}
	if rdb != nil {
		c.cache = rdb
	}
	return c
}

// NewRedisClient connects to Redis and verifies the connection. An empty
// URL returns nil, which disables caching.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// searchResponse mirrors the cgi/search.pl payload. Nutriment values arrive
// as numbers or strings depending on the product revision.
type searchResponse struct {
	Products []searchProduct `json:"products"`
	Count    int             `json:"count"`
}

type searchProduct struct {
	ProductName string     `json:"product_name"`
	Brands      string     `json:"brands"`
	Nutriments  nutriments `json:"nutriments"`
}

type nutriments struct {
	EnergyKcal100g    interface{} `json:"energy-kcal_100g"`
	Proteins100g      interface{} `json:"proteins_100g"`
	Carbohydrates100g interface{} `json:"carbohydrates_100g"`
	Fat100g           interface{} `json:"fat_100g"`
	Fiber100g         interface{} `json:"fiber_100g"`
}

// Search returns the best matching product as a per-100g record, or nil
// when no hit carries a usable protein value.
func (c *Client) Search(ctx context.Context, name, brand string) (*models.NutritionRecord, error) {
	query := strings.Join(strings.Fields(name+" "+brand), " ")
	if query == "" {
		return nil, nil
	}

	if rec, ok := c.cached(ctx, query); ok {
		return rec, nil
	}

	result, err := c.search(ctx, query)
	if err != nil {
		return nil, err
	}

	best := bestMatch(result.Products, query)
	if best == nil {
		return nil, nil
	}

	rec := best.record()
	c.store(ctx, query, rec)
	return rec, nil
}

func (c *Client) search(ctx context.Context, query string) (*searchResponse, error) {
	u := fmt.Sprintf("%s/cgi/search.pl?search_terms=%s&search_simple=1&action=process&json=1&page_size=%d",
		c.baseURL, url.QueryEscape(query), c.pageSize)

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query product database: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("product database error: %s - %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return &result, nil
}

// bestMatch picks the product whose name and brand share the most tokens
// with the query. Products without a protein value are unusable and never
// selected; among usable ones a zero-overlap product only wins when nothing
// overlaps at all.
func bestMatch(products []searchProduct, query string) *searchProduct {
	queryTokens := tokenSet(query)

	var best *searchProduct
	bestScore := -1.0
	for i := range products {
		p := &products[i]
		if _, ok := toFloat(p.Nutriments.Proteins100g); !ok {
			continue
		}
		score := overlap(queryTokens, tokenSet(p.ProductName+" "+p.Brands))
		if score > bestScore {
			best = p
			bestScore = score
		}
	}
	return best
}

func (p *searchProduct) record() *models.NutritionRecord {
	protein, _ := toFloat(p.Nutriments.Proteins100g)

	rec := &models.NutritionRecord{
		Name:       strings.TrimSpace(p.ProductName),
		Brand:      firstBrand(p.Brands),
		Protein:    protein,
		Basis:      models.BasisPer100g,
		Provenance: models.ProvenanceRemoteDatabase,
	}
	if v, ok := toFloat(p.Nutriments.EnergyKcal100g); ok {
		rec.Calories = v
	}
	if v, ok := toFloat(p.Nutriments.Carbohydrates100g); ok {
		rec.Carbs = &v
	}
	if v, ok := toFloat(p.Nutriments.Fat100g); ok {
		rec.Fat = &v
	}
	if v, ok := toFloat(p.Nutriments.Fiber100g); ok {
		rec.Fiber = &v
	}
	return rec
}

// toFloat accepts the number-or-string values the API returns.
func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func firstBrand(brands string) string {
	first, _, _ := strings.Cut(brands, ",")
	return strings.TrimSpace(first)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		set[tok] = struct{}{}
	}
	return set
}

func overlap(query, candidate map[string]struct{}) float64 {
	if len(query) == 0 {
		return 0
	}
	matched := 0
	for tok := range query {
		if _, ok := candidate[tok]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(query))
}

func cacheKey(query string) string {
	return "product:" + strings.ToLower(query)
}

func (c *Client) cached(ctx context.Context, query string) (*models.NutritionRecord, bool) {
	if c.cache == nil {
		return nil, false
	}

	raw, err := c.cache.Get(ctx, cacheKey(query)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug().Err(err).Msg("product cache read failed")
		}
		return nil, false
	}

	var rec models.NutritionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, false
	}
	return &rec, true
}

func (c *Client) store(ctx context.Context, query string, rec *models.NutritionRecord) {
	if c.cache == nil {
		return
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, cacheKey(query), b, c.cacheTTL).Err(); err != nil {
		c.logger.Debug().Err(err).Msg("product cache write failed")
	}
}
