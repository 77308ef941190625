// Package packaging reads a packaged product in two model passes: a
// transcription-only extraction of the label text, then a text-only
// interpretation of what was transcribed. Splitting the passes keeps the
// model from inventing nutrition numbers it never saw on the package.
package packaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/PierreDenaes/deploy-sub002/internal/llm"
	"github.com/PierreDenaes/deploy-sub002/internal/normalize"
	"github.com/PierreDenaes/deploy-sub002/pkg/models"
)

const unreadableMarker = "UNREADABLE"

// Reading is the understanding of a packaged product after both passes
// succeeded. Label is only set when the transcribed table carried a
// numeric protein value and an explicit printed basis.
type Reading struct {
	ProductName        string
	Brand              string
	Category           string
	Ingredients        []string
	Label              *models.NutritionRecord
	PackageWeightGrams float64
	Confidence         float64
	Extracted          string
}

// Outcome is the tagged result of a two-step read. Exactly one side is
// set: a Reading on success, or the reason the caller should fall back
// to its single-shot estimate.
type Outcome struct {
	Reading        *Reading
	FallbackReason string
}

// Fallback reports whether the caller should keep its single-shot estimate.
func (o Outcome) Fallback() bool { return o.Reading == nil }

// interpretation mirrors the JSON contract of the interpretation pass.
type interpretation struct {
	ProductName        string      `json:"product_name"`
	Brand              string      `json:"brand"`
	Category           string      `json:"category"`
	Ingredients        []string    `json:"ingredients"`
	NutritionTable     *labelTable `json:"nutrition_table"`
	PackageWeightGrams float64     `json:"package_weight_grams"`
	Confidence         float64     `json:"confidence"`
}

type labelTable struct {
	Protein  *float64 `json:"protein"`
	Calories *float64 `json:"calories"`
	Carbs    *float64 `json:"carbs"`
	Fat      *float64 `json:"fat"`
	Fiber    *float64 `json:"fiber"`
	Unit     string   `json:"unit"`
}

// Analyzer runs the two-step package read against a completer.
type Analyzer struct {
	completer llm.Completer
	minRunes  int
	logger    zerolog.Logger
}

// NewAnalyzer returns an analyzer that rejects extractions shorter than
// minExtractRunes.
func NewAnalyzer(completer llm.Completer, minExtractRunes int, logger zerolog.Logger) *Analyzer {
	if minExtractRunes <= 0 {
		minExtractRunes = 20
	}
	return &Analyzer{
		completer: completer,
		minRunes:  minExtractRunes,
		logger:    logger.With().Str("component", "packaging").Logger(),
	}
}

// Read transcribes the package in the image and interprets the result.
// A failure in either pass produces a fallback outcome instead of an
// error, so a bad label read can never sink the whole analysis.
func (a *Analyzer) Read(ctx context.Context, image *llm.ImageData, caption string) Outcome {
	extracted, err := a.extract(ctx, image, caption)
	if err != nil {
		a.logger.Debug().Err(err).Msg("package text extraction failed")
		return Outcome{FallbackReason: fmt.Sprintf("extract: %v", err)}
	}

	interp, err := a.interpret(ctx, extracted, caption)
	if err != nil {
		a.logger.Debug().Err(err).Msg("package text interpretation failed")
		return Outcome{FallbackReason: fmt.Sprintf("interpret: %v", err)}
	}

	reading := buildReading(interp, extracted)
	a.logger.Debug().
		Str("product", reading.ProductName).
		Bool("label", reading.Label != nil).
		Msg("package read complete")
	return Outcome{Reading: reading}
}

func (a *Analyzer) extract(ctx context.Context, image *llm.ImageData, caption string) (string, error) {
	system, user := llm.ExtractPrompts(caption)
	resp, err := a.completer.Complete(ctx, llm.CompletionRequest{
		System: system,
		User:   user,
		Image:  image,
	})
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.Text)
	if strings.EqualFold(text, unreadableMarker) {
		return "", errors.New("package text unreadable")
	}
	if n := utf8.RuneCountInString(text); n < a.minRunes {
		return "", fmt.Errorf("extracted text too short: %d runes", n)
	}
	return text, nil
}

func (a *Analyzer) interpret(ctx context.Context, extracted, caption string) (*interpretation, error) {
	system, user := llm.InterpretPrompts(extracted, caption)
	resp, err := a.completer.Complete(ctx, llm.CompletionRequest{
		System: system,
		User:   user,
	})
	if err != nil {
		return nil, err
	}

	var interp interpretation
	if err := normalize.Decode(resp.Text, &interp); err != nil {
		return nil, err
	}
	if strings.TrimSpace(interp.ProductName) == "" && interp.NutritionTable == nil {
		return nil, errors.New("interpretation named no product and no nutrition table")
	}
	return &interp, nil
}

func buildReading(interp *interpretation, extracted string) *Reading {
	r := &Reading{
		ProductName:        strings.TrimSpace(interp.ProductName),
		Brand:              strings.TrimSpace(interp.Brand),
		Category:           strings.TrimSpace(interp.Category),
		Ingredients:        interp.Ingredients,
		Label:              labelRecord(interp),
		PackageWeightGrams: interp.PackageWeightGrams,
		Confidence:         interp.Confidence,
		Extracted:          extracted,
	}
	return r
}

// labelRecord turns the interpreted table into an official-label record.
// A table without a numeric protein value or without a printed basis is
// not trusted as a label.
func labelRecord(interp *interpretation) *models.NutritionRecord {
	t := interp.NutritionTable
	if t == nil || t.Protein == nil {
		return nil
	}

	var basis models.Basis
	switch t.Unit {
	case string(models.BasisPer100g):
		basis = models.BasisPer100g
	case string(models.BasisPerServing):
		basis = models.BasisPerServing
	default:
		return nil
	}

	rec := &models.NutritionRecord{
		Name:       strings.TrimSpace(interp.ProductName),
		Brand:      strings.TrimSpace(interp.Brand),
		Protein:    *t.Protein,
		Basis:      basis,
		Provenance: models.ProvenanceOfficialLabel,
	}
	if t.Calories != nil {
		rec.Calories = *t.Calories
	}
	rec.Carbs = t.Carbs
	rec.Fat = t.Fat
	rec.Fiber = t.Fiber
	return rec
}

// Merge folds a successful reading into the single-shot candidate and
// returns the merged result together with the label record, if any. The
// interpreted identity replaces the vision guess, but the higher of the
// two confidence values survives. The candidate is not mutated.
func Merge(candidate *models.AnalysisResult, r *Reading) (*models.AnalysisResult, *models.NutritionRecord) {
	out := *candidate
	out.ProductType = models.ProductTypePackaged

	if name := r.DisplayName(); name != "" {
		out.Foods = []string{name}
	}
	if r.Confidence > out.Confidence {
		out.Confidence = r.Confidence
	}
	return &out, r.Label
}

// DisplayName joins brand and product name without repeating the brand.
func (r *Reading) DisplayName() string {
	if r.ProductName == "" {
		return r.Brand
	}
	if r.Brand == "" || strings.Contains(strings.ToLower(r.ProductName), strings.ToLower(r.Brand)) {
		return r.ProductName
	}
	return r.Brand + " " + r.ProductName
}
