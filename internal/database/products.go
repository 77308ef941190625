package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/PierreDenaes/deploy-sub002/pkg/models"
)

// Product is a locally cached product with per-100g nutrition values.
type Product struct {
	ID        uuid.UUID
	Name      string
	Brand     string
	Protein   float64
	Calories  float64
	Carbs     *float64
	Fat       *float64
	Fiber     *float64
	Source    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// productColumns is the standard column list for product queries.
const productColumns = `id, name, brand, protein_per_100g, calories_per_100g, carbs_per_100g, fat_per_100g, fiber_per_100g, source, created_at, updated_at`

// scanProduct scans a row into a Product struct.
func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Brand, &p.Protein, &p.Calories,
		&p.Carbs, &p.Fat, &p.Fiber, &p.Source, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveProduct upserts a per-100g record keyed by case-insensitive name and
// brand. Per-serving records are not cacheable and are ignored.
func (db *DB) SaveProduct(ctx context.Context, rec *models.NutritionRecord) error {
	if rec == nil || rec.Name == "" || rec.Basis != models.BasisPer100g {
		return nil
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO products (name, brand, protein_per_100g, calories_per_100g, carbs_per_100g, fat_per_100g, fiber_per_100g, source)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (lower(name), lower(brand)) DO UPDATE SET
		   protein_per_100g = EXCLUDED.protein_per_100g,
		   calories_per_100g = EXCLUDED.calories_per_100g,
		   carbs_per_100g = EXCLUDED.carbs_per_100g,
		   fat_per_100g = EXCLUDED.fat_per_100g,
		   fiber_per_100g = EXCLUDED.fiber_per_100g,
		   source = EXCLUDED.source,
		   updated_at = now()`,
		rec.Name, rec.Brand, rec.Protein, rec.Calories, rec.Carbs, rec.Fat, rec.Fiber, string(rec.Provenance),
	)
	return err
}

// GetProductByName retrieves a product by exact case-insensitive name and
// brand.
func (db *DB) GetProductByName(ctx context.Context, name, brand string) (*Product, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE lower(name) = lower($1) AND lower(brand) = lower($2)`,
		name, brand,
	)
	return scanProduct(row)
}

// SimilarProduct returns the closest cached product by trigram similarity
// to name, or nil when nothing clears the similarity floor.
func (db *DB) SimilarProduct(ctx context.Context, name string) (*models.NutritionRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	row := db.pool.QueryRow(ctx,
		`SELECT name, brand, protein_per_100g, calories_per_100g, carbs_per_100g, fat_per_100g, fiber_per_100g
		 FROM products
		 WHERE similarity(name, $1) >= $2
		 ORDER BY similarity(name, $1) DESC, updated_at DESC
		 LIMIT 1`,
		name, db.similarityFloor,
	)

	var rec models.NutritionRecord
	err := row.Scan(&rec.Name, &rec.Brand, &rec.Protein, &rec.Calories, &rec.Carbs, &rec.Fat, &rec.Fiber)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.Basis = models.BasisPer100g
	rec.Provenance = models.ProvenanceLocalCache
	return &rec, nil
}

// DeleteProduct deletes a product by ID.
func (db *DB) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	_, err := db.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	return err
}
