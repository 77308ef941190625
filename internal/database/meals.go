package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/PierreDenaes/deploy-sub002/pkg/models"
)

// mealColumns is the standard column list for meal queries.
const mealColumns = `id, foods, protein, calories, carbs, fat, fiber, confidence, product_type, data_source, is_exact_value, requires_manual_review, explanation, portion_grams, provider, model, input_tokens, output_tokens, created_at`

// scanMeal scans a row into an AnalysisResult.
func scanMeal(row pgx.Row) (*models.AnalysisResult, error) {
	var m models.AnalysisResult
	var productType, dataSource string
	err := row.Scan(
		&m.ID, &m.Foods, &m.Protein, &m.Calories, &m.Carbs, &m.Fat, &m.Fiber,
		&m.Confidence, &productType, &dataSource, &m.IsExactValue, &m.RequiresManualReview,
		&m.Explanation, &m.PortionGrams, &m.Provider, &m.Model,
		&m.InputTokens, &m.OutputTokens, &m.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.ProductType = models.ProductType(productType)
	m.DataSource = models.DataSource(dataSource)
	return &m, nil
}

// SaveMeal stores a finished analysis result. Saving the same result twice
// is a no-op.
func (db *DB) SaveMeal(ctx context.Context, result *models.AnalysisResult) error {
	createdAt := result.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO meals (id, foods, protein, calories, carbs, fat, fiber, confidence, product_type,
		                    data_source, is_exact_value, requires_manual_review, explanation, portion_grams,
		                    provider, model, input_tokens, output_tokens, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		 ON CONFLICT (id) DO NOTHING`,
		result.ID, result.Foods, result.Protein, result.Calories, result.Carbs, result.Fat, result.Fiber,
		result.Confidence, string(result.ProductType), string(result.DataSource), result.IsExactValue,
		result.RequiresManualReview, result.Explanation, result.PortionGrams, result.Provider, result.Model,
		result.InputTokens, result.OutputTokens, createdAt,
	)
	return err
}

// GetMealByID retrieves a stored meal by ID.
func (db *DB) GetMealByID(ctx context.Context, id uuid.UUID) (*models.AnalysisResult, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+mealColumns+` FROM meals WHERE id = $1`,
		id,
	)
	return scanMeal(row)
}

// RecentMeals returns stored meals ordered by creation date descending.
func (db *DB) RecentMeals(ctx context.Context, limit int) ([]models.AnalysisResult, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.pool.Query(ctx,
		`SELECT `+mealColumns+` FROM meals ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var meals []models.AnalysisResult
	for rows.Next() {
		var m models.AnalysisResult
		var productType, dataSource string
		if err := rows.Scan(
			&m.ID, &m.Foods, &m.Protein, &m.Calories, &m.Carbs, &m.Fat, &m.Fiber,
			&m.Confidence, &productType, &dataSource, &m.IsExactValue, &m.RequiresManualReview,
			&m.Explanation, &m.PortionGrams, &m.Provider, &m.Model,
			&m.InputTokens, &m.OutputTokens, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		m.ProductType = models.ProductType(productType)
		m.DataSource = models.DataSource(dataSource)
		meals = append(meals, m)
	}
	return meals, rows.Err()
}

// DeleteMeal deletes a stored meal by ID.
func (db *DB) DeleteMeal(ctx context.Context, id uuid.UUID) error {
	_, err := db.pool.Exec(ctx, `DELETE FROM meals WHERE id = $1`, id)
	return err
}

// DeleteOldMeals deletes meals created before the given time and returns
// how many were removed.
func (db *DB) DeleteOldMeals(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := db.pool.Exec(ctx,
		`DELETE FROM meals WHERE created_at < $1`,
		olderThan,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
