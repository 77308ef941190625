// Package pipeline orchestrates one meal analysis end to end: model
// analysis, normalization, the optional two-step package read, portion
// estimation, and nutrition resolution. One request runs one flow; the
// only state shared between concurrent requests lives in the resilience
// layer.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/PierreDenaes/deploy-sub002/internal/config"
	"github.com/PierreDenaes/deploy-sub002/internal/llm"
	"github.com/PierreDenaes/deploy-sub002/internal/normalize"
	"github.com/PierreDenaes/deploy-sub002/internal/nutrition"
	"github.com/PierreDenaes/deploy-sub002/internal/packaging"
	"github.com/PierreDenaes/deploy-sub002/internal/portion"
	"github.com/PierreDenaes/deploy-sub002/pkg/models"
)

// degradedConfidence marks the synthetic result produced when no model
// output was usable at all.
const degradedConfidence = 0.1

// PackageReader runs the two-step package read.
type PackageReader interface {
	Read(ctx context.Context, image *llm.ImageData, caption string) packaging.Outcome
}

// ImageResolver turns an image locator into inline image bytes.
type ImageResolver interface {
	Resolve(ctx context.Context, locator string) (*llm.ImageData, error)
}

// Options assembles a Pipeline.
type Options struct {
	Completer llm.Completer
	Packages  PackageReader
	Images    ImageResolver
	Estimator *portion.Estimator
	Cascade   *nutrition.Cascade
	Config    config.Pipeline
	Logger    zerolog.Logger
}

// Pipeline is the top-level analysis entry point.
type Pipeline struct {
	completer llm.Completer
	packages  PackageReader
	images    ImageResolver
	estimator *portion.Estimator
	cascade   *nutrition.Cascade
	cfg       config.Pipeline
	logger    zerolog.Logger
}

// New builds a pipeline, filling zero config values with the stock
// thresholds.
func New(opts Options) *Pipeline {
	if opts.Config.ReviewThreshold <= 0 {
		opts.Config.ReviewThreshold = 0.6
	}
	if opts.Config.PoorImageFactor <= 0 {
		opts.Config.PoorImageFactor = 0.7
	}
	return &Pipeline{
		completer: opts.Completer,
		packages:  opts.Packages,
		images:    opts.Images,
		estimator: opts.Estimator,
		cascade:   opts.Cascade,
		cfg:       opts.Config,
		logger:    opts.Logger.With().Str("component", "pipeline").Logger(),
	}
}

// AnalyzeText analyses a typed meal description.
func (p *Pipeline) AnalyzeText(ctx context.Context, description string) *models.AnalysisResult {
	return p.Analyze(ctx, models.AnalysisRequest{
		Modality:  models.ModalityText,
		InputText: description,
	}, nil)
}

// AnalyzeImage analyses a meal photo addressed by locator.
func (p *Pipeline) AnalyzeImage(ctx context.Context, locator, caption string) *models.AnalysisResult {
	return p.Analyze(ctx, models.AnalysisRequest{
		Modality: models.ModalityImage,
		ImageRef: locator,
		Caption:  caption,
	}, nil)
}

// Analyze runs the full flow for one request. It always returns a result:
// a failed stage degrades the confidence and sets the review flag instead
// of surfacing an error.
func (p *Pipeline) Analyze(ctx context.Context, req models.AnalysisRequest, emitter llm.ProgressEmitter) *models.AnalysisResult {
	var image *llm.ImageData
	if req.Modality == models.ModalityImage {
		emitStage(emitter, "image", "Loading image")
		img, err := p.images.Resolve(ctx, req.ImageRef)
		if err != nil {
			p.logger.Warn().Err(err).Msg("image resolution failed")
			return p.degraded(req, emitter, "The image could not be loaded.")
		}
		image = img
	}

	candidate, reply, err := p.modelAnalysis(ctx, req, image, emitter)
	if err != nil {
		p.logger.Warn().Err(err).Msg("model analysis failed")
		note := "The analysis model was unavailable."
		var vErr *normalize.ValidationError
		if errors.Is(err, normalize.ErrMalformed) || errors.As(err, &vErr) {
			note = "The model reply could not be understood."
		}
		return p.degraded(req, emitter, note)
	}

	label := reply.LabelRecord()
	productName, brand := reply.ProductName, reply.Brand

	var reading *packaging.Reading
	if image != nil && p.packages != nil && candidate.ProductType == models.ProductTypePackaged {
		emitStage(emitter, "package", "Reading the package label")
		outcome := p.packages.Read(ctx, image, req.Caption)
		if outcome.Fallback() {
			p.logger.Debug().
				Str("reason", outcome.FallbackReason).
				Msg("package read fell back to single-shot estimate")
			emitInfo(emitter, "Package label unreadable, keeping the visual estimate")
		} else {
			reading = outcome.Reading
			var readLabel *models.NutritionRecord
			candidate, readLabel = packaging.Merge(candidate, reading)
			if readLabel != nil {
				label = readLabel
			}
			productName, brand = reading.ProductName, reading.Brand
		}
	}

	emitStage(emitter, "portion", "Estimating portion weight")
	portionIn := portion.Input{
		Description: requestText(req),
		Foods:       candidate.Foods,
		ProductName: productName,
		Breakdown:   breakdownHints(reply),
	}
	if reading != nil {
		portionIn.PackageGrams = reading.PackageWeightGrams
	}
	estimate := p.estimator.Estimate(portionIn)

	emitStage(emitter, "nutrition", "Resolving nutrition sources")
	result := p.cascade.Resolve(ctx, nutrition.Input{
		Candidate: candidate,
		Label:     label,
		Query:     nutrition.Query{ProductName: productName, Brand: brand, Foods: candidate.Foods},
		Portion:   estimate,
		Observe:   func(name string) { emitSource(emitter, name) },
	})

	p.adjust(result, reply, image != nil)

	p.logger.Info().
		Str("id", result.ID.String()).
		Str("source", string(result.DataSource)).
		Float64("protein", result.Protein).
		Float64("portion_grams", result.PortionGrams).
		Float64("confidence", result.Confidence).
		Msg("analysis complete")

	emitDone(emitter, result)
	return result
}

// modelAnalysis issues the single-shot completion and normalizes the reply
// into a scored candidate.
func (p *Pipeline) modelAnalysis(ctx context.Context, req models.AnalysisRequest, image *llm.ImageData, emitter llm.ProgressEmitter) (*models.AnalysisResult, *normalize.Reply, error) {
	emitStage(emitter, "model", "Analyzing the meal")
	system, user := llm.AnalysisPrompts(requestText(req), image != nil)

	started := time.Now()
	resp, err := p.completer.Complete(ctx, llm.CompletionRequest{
		System: system,
		User:   user,
		Image:  image,
	})
	if err != nil {
		return nil, nil, err
	}

	reply, err := normalize.Normalize(resp.Text)
	if err != nil {
		return nil, nil, err
	}

	candidate := reply.ToResult()
	candidate.Provider = string(p.completer.Provider())
	candidate.Model = resp.Model
	candidate.InputTokens = resp.InputTokens
	candidate.OutputTokens = resp.OutputTokens

	if emitter != nil {
		emitter.Emit(llm.ProgressEvent{
			Type:    "stage",
			Stage:   "model",
			Message: "Model reply parsed",
			ModelMs: int(time.Since(started).Milliseconds()),
			Tokens:  resp.InputTokens + resp.OutputTokens,
		})
	}
	return candidate, reply, nil
}

// adjust applies the post-resolution confidence arithmetic: a poor image
// discounts the confidence, and anything under the review threshold is
// flagged for manual review.
func (p *Pipeline) adjust(result *models.AnalysisResult, reply *normalize.Reply, hasImage bool) {
	if hasImage && reply.PoorImage() {
		result.Confidence *= p.cfg.PoorImageFactor
		result.RequiresManualReview = true
	}
	if result.Confidence < p.cfg.ReviewThreshold {
		result.RequiresManualReview = true
	}
}

// degraded builds the synthetic best-effort result returned when no model
// output was usable. The confidence and review flag carry the bad news;
// callers never see an error.
func (p *Pipeline) degraded(req models.AnalysisRequest, emitter llm.ProgressEmitter, note string) *models.AnalysisResult {
	foods := []string{"unidentified meal"}
	if text := strings.TrimSpace(requestText(req)); text != "" {
		foods = []string{text}
	}

	estimate := p.estimator.Estimate(portion.Input{Description: requestText(req), Foods: foods})

	result := &models.AnalysisResult{
		ID:                   uuid.New(),
		Foods:                foods,
		ProductType:          models.ProductTypeNatural,
		DataSource:           models.SourceVisualEstimation,
		Confidence:           degradedConfidence,
		RequiresManualReview: true,
		PortionGrams:         estimate.Grams,
		Explanation:          note + " Nutrition values could not be determined.",
		CreatedAt:            time.Now().UTC(),
	}

	emitError(emitter, note)
	emitDone(emitter, result)
	return result
}

// requestText returns the user-entered text for the request: the typed
// description, or the caption on the image path.
func requestText(req models.AnalysisRequest) string {
	if req.Modality == models.ModalityImage {
		return req.Caption
	}
	return req.InputText
}

func breakdownHints(reply *normalize.Reply) []portion.Hint {
	if len(reply.Breakdown) == 0 {
		return nil
	}
	hints := make([]portion.Hint, 0, len(reply.Breakdown))
	for _, item := range reply.Breakdown {
		hints = append(hints, portion.Hint{Name: item.Name, Grams: item.Grams})
	}
	return hints
}

func emitStage(e llm.ProgressEmitter, stage, msg string) {
	if e != nil {
		e.Emit(llm.ProgressEvent{Type: "stage", Stage: stage, Message: msg})
	}
}

func emitInfo(e llm.ProgressEmitter, msg string) {
	if e != nil {
		e.Emit(llm.ProgressEvent{Type: "info", Message: msg})
	}
}

func emitSource(e llm.ProgressEmitter, name string) {
	if e != nil {
		e.Emit(llm.ProgressEvent{Type: "source", Source: name})
	}
}

func emitError(e llm.ProgressEmitter, msg string) {
	if e != nil {
		e.Emit(llm.ProgressEvent{Type: "error", Message: msg})
	}
}

func emitDone(e llm.ProgressEmitter, result *models.AnalysisResult) {
	if e != nil {
		e.Emit(llm.ProgressEvent{Type: "done", Result: result})
	}
}
