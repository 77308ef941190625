// Package nutrition resolves the best available nutrition numbers for an
// analysed meal. Sources are tried in strict priority order and the first
// plausible hit wins; the raw model estimate is the floor of the cascade,
// so resolution always produces a result.
package nutrition

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/PierreDenaes/deploy-sub002/internal/config"
	"github.com/PierreDenaes/deploy-sub002/pkg/models"
)

// Query identifies what a source should look up.
type Query struct {
	ProductName string
	Brand       string
	Foods       []string
}

// PrimaryFood returns the first identified food, or empty.
func (q Query) PrimaryFood() string {
	if len(q.Foods) == 0 {
		return ""
	}
	return q.Foods[0]
}

// Source is one rung of the cascade. Returning a nil record with a nil
// error means the source has nothing and the next rung should run.
type Source interface {
	Name() string
	Resolve(ctx context.Context, q Query) (*models.NutritionRecord, error)
}

// Input carries the candidate produced by the model analysis, the label
// numbers the model claims to have read (nil when none), and the portion
// estimate used for scaling. Observe, when set, is called with each source
// name as it is tried; it is request-scoped, never shared.
type Input struct {
	Candidate *models.AnalysisResult
	Label     *models.NutritionRecord
	Query     Query
	Portion   models.PortionEstimate
	Observe   func(name string)
}

func (in Input) observe(name string) {
	if in.Observe != nil {
		in.Observe(name)
	}
}

// Cascade tries an official label first, then each source in order, and
// falls back to the candidate's own visual estimate. A cascade is shared
// by concurrent analyses and holds no per-request state.
type Cascade struct {
	sources []Source
	cfg     config.Nutrition
	logger  zerolog.Logger
}

// NewCascade builds a cascade over the given sources. Zero confidence
// settings fall back to the stock tiers.
func NewCascade(sources []Source, cfg config.Nutrition, logger zerolog.Logger) *Cascade {
	if cfg.OfficialConfidence == 0 {
		cfg.OfficialConfidence = 0.95
	}
	if cfg.OnlineConfidence == 0 {
		cfg.OnlineConfidence = 0.90
	}
	if cfg.LocalConfidence == 0 {
		cfg.LocalConfidence = 0.85
	}
	if cfg.FallbackConfidence == 0 {
		cfg.FallbackConfidence = 0.70
	}
	if cfg.VisualConfidenceCap == 0 {
		cfg.VisualConfidenceCap = 0.55
	}
	if cfg.NearZeroProtein == 0 {
		cfg.NearZeroProtein = 0.5
	}
	if cfg.NearZeroCalories == 0 {
		cfg.NearZeroCalories = 10
	}
	return &Cascade{sources: sources, cfg: cfg, logger: logger}
}

// Resolve produces the final scaled result for the candidate. A trusted
// label short-circuits the cascade; source failures and implausible values
// fall through to the next rung.
func (c *Cascade) Resolve(ctx context.Context, in Input) *models.AnalysisResult {
	if in.Label != nil {
		in.observe("official label")
		return c.fromRecord(in.Label, in)
	}

	for _, src := range c.sources {
		in.observe(src.Name())

		rec, err := src.Resolve(ctx, in.Query)
		if err != nil {
			c.logger.Warn().Err(err).Str("source", src.Name()).Msg("nutrition source failed")
			continue
		}
		if rec == nil {
			continue
		}
		if c.implausible(rec) {
			c.logger.Debug().
				Str("source", src.Name()).
				Float64("protein", rec.Protein).
				Float64("calories", rec.Calories).
				Msg("implausible nutrition values, continuing cascade")
			continue
		}
		return c.fromRecord(rec, in)
	}

	in.observe("visual estimate")
	return c.visual(in)
}

// implausible flags records a protein tracker cannot use: non-positive
// protein or calories, or both suspiciously near zero.
func (c *Cascade) implausible(rec *models.NutritionRecord) bool {
	if rec.Protein <= c.cfg.MinProtein || rec.Calories <= c.cfg.MinCalories {
		return true
	}
	return rec.Protein < c.cfg.NearZeroProtein && rec.Calories < c.cfg.NearZeroCalories
}

// fromRecord scales a record to the estimated portion and stamps source,
// confidence, and provenance note onto a copy of the candidate. Per-serving
// records are used as-is; per-100g records scale by the portion weight.
func (c *Cascade) fromRecord(rec *models.NutritionRecord, in Input) *models.AnalysisResult {
	out := *in.Candidate

	grams := in.Portion.Grams
	scale := rec.Basis != models.BasisPerServing
	if !scale && rec.Weight > 0 {
		grams = rec.Weight
	}

	out.Protein = models.RoundNutrient(scaled(rec.Protein, grams, scale))
	out.Calories = models.RoundCalories(scaled(rec.Calories, grams, scale))
	out.Carbs = scaledPtr(rec.Carbs, grams, scale)
	out.Fat = scaledPtr(rec.Fat, grams, scale)
	out.Fiber = scaledPtr(rec.Fiber, grams, scale)
	out.PortionGrams = grams
	out.DataSource = dataSourceFor(rec.Provenance)
	out.Confidence = c.confidenceFor(rec.Provenance)
	out.IsExactValue = rec.Provenance == models.ProvenanceOfficialLabel
	out.RequiresManualReview = false
	out.Explanation = appendNote(out.Explanation, provenanceNote(rec))

	return &out
}

// visual returns the candidate as originally produced, with its confidence
// capped and manual review forced.
func (c *Cascade) visual(in Input) *models.AnalysisResult {
	out := *in.Candidate

	if out.Confidence > c.cfg.VisualConfidenceCap {
		out.Confidence = c.cfg.VisualConfidenceCap
	}
	out.DataSource = models.SourceVisualEstimation
	out.RequiresManualReview = true
	out.IsExactValue = false
	if out.PortionGrams <= 0 {
		out.PortionGrams = in.Portion.Grams
	}
	out.Protein = models.RoundNutrient(out.Protein)
	out.Calories = models.RoundCalories(out.Calories)
	out.Carbs = scaledPtr(out.Carbs, 0, false)
	out.Fat = scaledPtr(out.Fat, 0, false)
	out.Fiber = scaledPtr(out.Fiber, 0, false)

	return &out
}

func (c *Cascade) confidenceFor(p models.Provenance) float64 {
	switch p {
	case models.ProvenanceOfficialLabel:
		return c.cfg.OfficialConfidence
	case models.ProvenanceRemoteDatabase:
		return c.cfg.OnlineConfidence
	case models.ProvenanceLocalCache:
		return c.cfg.LocalConfidence
	case models.ProvenanceFallbackTable:
		return c.cfg.FallbackConfidence
	default:
		return c.cfg.VisualConfidenceCap
	}
}

func dataSourceFor(p models.Provenance) models.DataSource {
	switch p {
	case models.ProvenanceOfficialLabel:
		return models.SourceOfficialLabel
	case models.ProvenanceFallbackTable:
		return models.SourceFallbackDatabase
	default:
		return models.SourceOnlineDatabase
	}
}

func provenanceNote(rec *models.NutritionRecord) string {
	switch rec.Provenance {
	case models.ProvenanceOfficialLabel:
		return "Values read from the nutrition label."
	case models.ProvenanceRemoteDatabase:
		return fmt.Sprintf("Matched %q in the product database.", rec.Name)
	case models.ProvenanceLocalCache:
		return fmt.Sprintf("Matched %q from previous analyses.", rec.Name)
	case models.ProvenanceFallbackTable:
		return fmt.Sprintf("Used reference values for %q.", rec.Name)
	default:
		return ""
	}
}

func appendNote(explanation, note string) string {
	if note == "" {
		return explanation
	}
	return strings.TrimSpace(explanation + " " + note)
}

func scaled(v, grams float64, scale bool) float64 {
	if !scale {
		return v
	}
	return models.ScalePer100g(v, grams)
}

func scaledPtr(v *float64, grams float64, scale bool) *float64 {
	if v == nil {
		return nil
	}
	x := models.RoundNutrient(scaled(*v, grams, scale))
	return &x
}
