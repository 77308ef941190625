package nutrition

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PierreDenaes/deploy-sub002/internal/config"
	"github.com/PierreDenaes/deploy-sub002/internal/openfoodfacts"
	"github.com/PierreDenaes/deploy-sub002/internal/resilience"
	"github.com/PierreDenaes/deploy-sub002/pkg/models"
)

func TestFallbackSource_ExactMatch(t *testing.T) {
	s, err := NewFallbackSource()
	require.NoError(t, err)

	rec, err := s.Resolve(context.Background(), Query{Foods: []string{"chicken breast"}})
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, float64(31), rec.Protein)
	assert.Equal(t, float64(165), rec.Calories)
	assert.Equal(t, models.BasisPer100g, rec.Basis)
	assert.Equal(t, models.ProvenanceFallbackTable, rec.Provenance)
}

func TestFallbackSource_TokenSubsetMatch(t *testing.T) {
	s, err := NewFallbackSource()
	require.NoError(t, err)

	rec, err := s.Resolve(context.Background(), Query{Foods: []string{"grilled chicken breast with herbs"}})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, float64(31), rec.Protein)
}

func TestFallbackSource_ProductNameBeforeFoods(t *testing.T) {
	s, err := NewFallbackSource()
	require.NoError(t, err)

	rec, err := s.Resolve(context.Background(), Query{ProductName: "Skyr", Foods: []string{"banana"}})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, float64(11), rec.Protein)
}

func TestFallbackSource_Miss(t *testing.T) {
	s, err := NewFallbackSource()
	require.NoError(t, err)

	rec, err := s.Resolve(context.Background(), Query{Foods: []string{"dragonfruit smoothie"}})
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestFallbackSource_EveryEntryUsable(t *testing.T) {
	s, err := NewFallbackSource()
	require.NoError(t, err)
	require.NotEmpty(t, s.entries)

	// Fallback values feed the cascade's plausibility check, so the curated
	// table itself must never contain an implausible row.
	for _, entry := range s.entries {
		require.NotEmpty(t, entry.Names)
		assert.Greater(t, entry.Protein, float64(0), "entry %v", entry.Names)
		assert.Greater(t, entry.Calories, float64(0), "entry %v", entry.Names)
	}
}

type fakeStore struct {
	rec   *models.NutritionRecord
	calls int
	query string
}

func (f *fakeStore) SimilarProduct(ctx context.Context, name string) (*models.NutritionRecord, error) {
	f.calls++
	f.query = name
	return f.rec, nil
}

func TestLocalSource_UsesProductNameFirst(t *testing.T) {
	store := &fakeStore{rec: &models.NutritionRecord{
		Name: "Lindahls Kvarg", Protein: 10.4, Calories: 72,
		Basis: models.BasisPer100g, Provenance: models.ProvenanceLocalCache,
	}}
	s := NewLocalSource(store)

	rec, err := s.Resolve(context.Background(), Query{ProductName: "Lindahls Kvarg", Foods: []string{"quark"}})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Lindahls Kvarg", store.query)
}

func TestLocalSource_EmptyQuery(t *testing.T) {
	store := &fakeStore{}
	s := NewLocalSource(store)

	rec, err := s.Resolve(context.Background(), Query{})
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, 0, store.calls)
}

func TestOnlineSource_BreakerSkipsNetwork(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := openfoodfacts.NewClient(config.Products{BaseURL: srv.URL}, nil, zerolog.Nop())
	guard := resilience.NewGuard(config.Resilience{
		CallTimeout:      time.Second,
		BreakerThreshold: 1,
		BreakerWindow:    10 * time.Second,
	}, zerolog.Nop())
	s := NewOnlineSource(client, guard, nil, zerolog.Nop())

	_, err := s.Resolve(context.Background(), Query{Foods: []string{"cottage cheese"}})
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	// Breaker is open now, the second resolve never reaches the server.
	_, err = s.Resolve(context.Background(), Query{Foods: []string{"cottage cheese"}})
	assert.ErrorIs(t, err, resilience.ErrOpen)
	assert.Equal(t, 1, calls)
}

func TestOnlineSource_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"count": 1, "products": [
			{"product_name": "Cottage Cheese", "brands": "Arla", "nutriments": {"proteins_100g": 11.5, "energy-kcal_100g": 98}}
		]}`)
	}))
	defer srv.Close()

	client := openfoodfacts.NewClient(config.Products{BaseURL: srv.URL}, nil, zerolog.Nop())
	guard := resilience.NewGuard(config.Resilience{BreakerThreshold: 1, BreakerWindow: 10 * time.Second}, zerolog.Nop())
	s := NewOnlineSource(client, guard, nil, zerolog.Nop())

	rec, err := s.Resolve(context.Background(), Query{ProductName: "cottage cheese", Brand: "Arla"})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 11.5, rec.Protein)
	assert.Equal(t, models.ProvenanceRemoteDatabase, rec.Provenance)
}

func TestOnlineSource_EmptyQuery(t *testing.T) {
	guard := resilience.NewGuard(config.Resilience{}, zerolog.Nop())
	s := NewOnlineSource(openfoodfacts.NewClient(config.Products{}, nil, zerolog.Nop()), guard, nil, zerolog.Nop())

	rec, err := s.Resolve(context.Background(), Query{})
	require.NoError(t, err)
	assert.Nil(t, rec)
}

type fakeWriter struct {
	saved chan *models.NutritionRecord
}

func (f *fakeWriter) SaveProduct(ctx context.Context, rec *models.NutritionRecord) error {
	f.saved <- rec
	return nil
}

func TestOnlineSource_WritesHitBehindRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"count": 1, "products": [
			{"product_name": "Cottage Cheese", "brands": "Arla", "nutriments": {"proteins_100g": 11.5, "energy-kcal_100g": 98}}
		]}`)
	}))
	defer srv.Close()

	writer := &fakeWriter{saved: make(chan *models.NutritionRecord, 1)}
	client := openfoodfacts.NewClient(config.Products{BaseURL: srv.URL}, nil, zerolog.Nop())
	guard := resilience.NewGuard(config.Resilience{BreakerThreshold: 1, BreakerWindow: 10 * time.Second}, zerolog.Nop())
	s := NewOnlineSource(client, guard, writer, zerolog.Nop())

	rec, err := s.Resolve(context.Background(), Query{ProductName: "cottage cheese"})
	require.NoError(t, err)
	require.NotNil(t, rec)

	select {
	case saved := <-writer.saved:
		assert.Equal(t, "Cottage Cheese", saved.Name)
		assert.Equal(t, models.ProvenanceRemoteDatabase, saved.Provenance)
	case <-time.After(time.Second):
		t.Fatal("expected the hit to reach the store")
	}
}
