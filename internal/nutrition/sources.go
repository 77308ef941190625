package nutrition

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/PierreDenaes/deploy-sub002/internal/openfoodfacts"
	"github.com/PierreDenaes/deploy-sub002/internal/resilience"
	"github.com/PierreDenaes/deploy-sub002/pkg/models"
)

// ProductWriter persists resolved records so later lookups can be served
// without the network.
type ProductWriter interface {
	SaveProduct(ctx context.Context, rec *models.NutritionRecord) error
}

// OnlineSource queries the remote product database through the resilience
// guard, so an open breaker skips the network entirely. Hits are written
// behind the request to the store when one is configured.
type OnlineSource struct {
	client *openfoodfacts.Client
	guard  *resilience.Guard
	store  ProductWriter
	logger zerolog.Logger
}

// NewOnlineSource wraps the product database client with the guard. A nil
// store disables write-behind caching.
func NewOnlineSource(client *openfoodfacts.Client, guard *resilience.Guard, store ProductWriter, logger zerolog.Logger) *OnlineSource {
	return &OnlineSource{client: client, guard: guard, store: store, logger: logger}
}

// Name implements Source.
func (s *OnlineSource) Name() string { return "online database" }

// Resolve implements Source.
func (s *OnlineSource) Resolve(ctx context.Context, q Query) (*models.NutritionRecord, error) {
	name := q.ProductName
	if name == "" {
		name = q.PrimaryFood()
	}
	if name == "" {
		return nil, nil
	}

	var rec *models.NutritionRecord
	err := s.guard.Do(ctx, func(callCtx context.Context) error {
		var searchErr error
		rec, searchErr = s.client.Search(callCtx, name, q.Brand)
		return searchErr
	})
	if err != nil {
		return nil, err
	}
	if rec != nil && s.store != nil {
		go s.cacheRecord(rec)
	}
	return rec, nil
}

// cacheRecord writes a remote hit to the local store behind the request.
// The context is detached so a finished request cannot cancel the write.
func (s *OnlineSource) cacheRecord(rec *models.NutritionRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.SaveProduct(ctx, rec); err != nil {
		s.logger.Debug().Err(err).Str("product", rec.Name).Msg("failed to cache product")
	}
}

// ProductStore looks up previously resolved products by text similarity.
type ProductStore interface {
	SimilarProduct(ctx context.Context, name string) (*models.NutritionRecord, error)
}

// LocalSource serves repeat descriptions from the local product store
// without touching the network.
type LocalSource struct {
	store ProductStore
}

// NewLocalSource wraps a product store as a cascade source.
func NewLocalSource(store ProductStore) *LocalSource {
	return &LocalSource{store: store}
}

// Name implements Source.
func (s *LocalSource) Name() string { return "local cache" }

// Resolve implements Source.
func (s *LocalSource) Resolve(ctx context.Context, q Query) (*models.NutritionRecord, error) {
	name := q.ProductName
	if name == "" {
		name = q.PrimaryFood()
	}
	if name == "" {
		return nil, nil
	}
	return s.store.SimilarProduct(ctx, name)
}

//go:embed fallback_foods.yaml
var fallbackYAML []byte

type fallbackEntry struct {
	Names    []string `yaml:"names"`
	Protein  float64  `yaml:"protein"`
	Calories float64  `yaml:"calories"`
	Carbs    *float64 `yaml:"carbs"`
	Fat      *float64 `yaml:"fat"`
	Fiber    *float64 `yaml:"fiber"`
}

// FallbackSource answers from a curated per-100g table of common foods.
type FallbackSource struct {
	entries []fallbackEntry
	byName  map[string]*fallbackEntry
}

// NewFallbackSource parses the embedded food table.
func NewFallbackSource() (*FallbackSource, error) {
	var entries []fallbackEntry
	if err := yaml.Unmarshal(fallbackYAML, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse fallback food table: %w", err)
	}

	s := &FallbackSource{entries: entries, byName: make(map[string]*fallbackEntry)}
	for i := range entries {
		for _, name := range entries[i].Names {
			s.byName[normalizeName(name)] = &entries[i]
		}
	}
	return s, nil
}

// Name implements Source.
func (s *FallbackSource) Name() string { return "fallback table" }

// Resolve implements Source. It tries the product name first, then each
// identified food, preferring an exact normalized match over a token-subset
// match ("grilled chicken breast" still finds "chicken breast").
func (s *FallbackSource) Resolve(ctx context.Context, q Query) (*models.NutritionRecord, error) {
	candidates := make([]string, 0, len(q.Foods)+1)
	if q.ProductName != "" {
		candidates = append(candidates, q.ProductName)
	}
	candidates = append(candidates, q.Foods...)

	for _, candidate := range candidates {
		if entry, name := s.lookup(candidate); entry != nil {
			return entry.record(name), nil
		}
	}
	return nil, nil
}

func (s *FallbackSource) lookup(text string) (*fallbackEntry, string) {
	norm := normalizeName(text)
	if norm == "" {
		return nil, ""
	}
	if entry, ok := s.byName[norm]; ok {
		return entry, norm
	}

	textTokens := tokenSet(norm)
	var best *fallbackEntry
	bestName := ""
	for name, entry := range s.byName {
		if !subset(tokenSet(name), textTokens) {
			continue
		}
		if len(name) > len(bestName) {
			best = entry
			bestName = name
		}
	}
	return best, bestName
}

func (e *fallbackEntry) record(name string) *models.NutritionRecord {
	return &models.NutritionRecord{
		Name:       name,
		Protein:    e.Protein,
		Calories:   e.Calories,
		Carbs:      e.Carbs,
		Fat:        e.Fat,
		Fiber:      e.Fiber,
		Basis:      models.BasisPer100g,
		Provenance: models.ProvenanceFallbackTable,
	}
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		set[tok] = struct{}{}
	}
	return set
}

func subset(small, large map[string]struct{}) bool {
	if len(small) == 0 {
		return false
	}
	for tok := range small {
		if _, ok := large[tok]; !ok {
			return false
		}
	}
	return true
}
