// Package portion infers the consumed weight in grams from noisy text cues.
package portion

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PierreDenaes/deploy-sub002/internal/config"
	"github.com/PierreDenaes/deploy-sub002/pkg/models"
)

// Hint is one model-supplied meal component with an estimated weight.
type Hint struct {
	Name  string
	Grams float64
}

// Input carries every quantity cue a single analysis produced.
// PackageGrams is the printed net weight when a label read supplied one.
type Input struct {
	Description  string
	Foods        []string
	ProductName  string
	PackageGrams float64
	Breakdown    []Hint
}

// Estimator turns quantity cues into a PortionEstimate. Heuristics run in
// a fixed order and the first match wins; the fallthrough default keeps the
// estimate strictly positive so scaling never sees a zero weight.
type Estimator struct {
	cfg config.Portion
}

// NewEstimator returns an estimator, filling zero weight settings with the
// stock defaults.
func NewEstimator(cfg config.Portion) *Estimator {
	if cfg.DefaultGrams <= 0 {
		cfg.DefaultGrams = 250
	}
	if cfg.SingleServingGrams <= 0 {
		cfg.SingleServingGrams = 100
	}
	if cfg.WholePackageThreshold <= 0 {
		cfg.WholePackageThreshold = 400
	}
	return &Estimator{cfg: cfg}
}

type containerWeight struct {
	keyword string
	grams   float64
}

// containers maps canonical container or unit words to typical weights.
// Order matters: specific words come before generic ones, so "yogurt cup"
// resolves to a yogurt pot rather than a measuring cup.
var containers = []containerWeight{
	{"yoghurt", 125},
	{"yogurt", 125},
	{"skyr", 125},
	{"tablespoon", 15},
	{"tbsp", 15},
	{"teaspoon", 5},
	{"tsp", 5},
	{"scoop", 30},
	{"slice", 25},
	{"bottle", 500},
	{"glass", 200},
	{"bowl", 350},
	{"plate", 350},
	{"can", 330},
	{"cup", 240},
	{"bar", 45},
	{"egg", 60},
	{"piece", 80},
}

var (
	metricRe = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(kilograms?|kgs?|grams?|grammes?|gr|g|millilitres?|milliliters?|ml|centilitres?|cl|litres?|liters?|l)\b`)
	countRe  = regexp.MustCompile(`(?i)\b(\d+(?:[.,]\d+)?|an?|one|two|three|four|five|six|half)\s+(?:(?:small|medium|large|big)\s+)?(` + containerPattern() + `)(?:e?s)?\b`)
)

func containerPattern() string {
	words := make([]string, len(containers))
	for i, c := range containers {
		words[i] = c.keyword
	}
	return strings.Join(words, "|")
}

// Estimate applies the heuristics in order: explicit quantity phrase, named
// container keyword, model breakdown sum, package weight embedded in the
// product name, stock default.
func (e *Estimator) Estimate(in Input) models.PortionEstimate {
	texts := make([]string, 0, len(in.Foods)+1)
	if in.Description != "" {
		texts = append(texts, in.Description)
	}
	texts = append(texts, in.Foods...)

	for _, text := range texts {
		if est, ok := e.parseQuantity(text); ok {
			return est
		}
	}

	scan := texts
	if in.ProductName != "" {
		scan = append(scan, in.ProductName)
	}
	for _, text := range scan {
		if c, ok := matchContainer(text); ok {
			return models.PortionEstimate{
				Grams:      c.grams,
				Confidence: e.cfg.ContainerConfidence,
				Heuristic:  models.HeuristicNamedContainer,
			}
		}
	}

	if total := sumBreakdown(in.Breakdown); total > 0 {
		return models.PortionEstimate{
			Grams:      total,
			Confidence: e.cfg.BreakdownConfidence,
			Heuristic:  models.HeuristicModelBreakdown,
		}
	}

	if est, ok := e.packageWeight(in.ProductName, in.PackageGrams); ok {
		return est
	}

	return models.PortionEstimate{
		Grams:      e.cfg.DefaultGrams,
		Confidence: e.cfg.DefaultConfidence,
		Heuristic:  models.HeuristicDefault,
	}
}

// parseQuantity extracts an explicit quantity phrase such as "200g" or
// "2 slices". A metric figure is more certain than a counted container, so
// the counted form gets the midpoint between the explicit and container
// confidence tiers.
func (e *Estimator) parseQuantity(text string) (models.PortionEstimate, bool) {
	if m := metricRe.FindStringSubmatch(text); m != nil {
		grams := parseNumber(m[1]) * unitGrams(m[2])
		if grams > 0 {
			return models.PortionEstimate{
				Grams:      grams,
				Confidence: e.cfg.ExplicitConfidence,
				Heuristic:  models.HeuristicExplicitQuantity,
			}, true
		}
	}

	if m := countRe.FindStringSubmatch(text); m != nil {
		count := parseCount(m[1])
		c, ok := containerByKeyword(m[2])
		if ok && count > 0 {
			return models.PortionEstimate{
				Grams:      count * c.grams,
				Confidence: (e.cfg.ExplicitConfidence + e.cfg.ContainerConfidence) / 2,
				Heuristic:  models.HeuristicExplicitQuantity,
			}, true
		}
	}

	return models.PortionEstimate{}, false
}

// packageWeight uses the printed net weight when a label read supplied
// one, or reads a weight figure out of the product's full name. Figures
// above the whole-package threshold describe the pack, not the portion,
// and are replaced with a single-serving weight.
func (e *Estimator) packageWeight(productName string, packageGrams float64) (models.PortionEstimate, bool) {
	grams := packageGrams
	if grams <= 0 {
		if productName == "" {
			return models.PortionEstimate{}, false
		}
		m := metricRe.FindStringSubmatch(productName)
		if m == nil {
			return models.PortionEstimate{}, false
		}
		grams = parseNumber(m[1]) * unitGrams(m[2])
	}
	if grams <= 0 {
		return models.PortionEstimate{}, false
	}
	if grams > e.cfg.WholePackageThreshold {
		grams = e.cfg.SingleServingGrams
	}
	return models.PortionEstimate{
		Grams:      grams,
		Confidence: e.cfg.PackageConfidence,
		Heuristic:  models.HeuristicPackageWeight,
	}, true
}

// matchContainer scans whole words so "pancake" never matches "can".
func matchContainer(text string) (containerWeight, bool) {
	tokens := tokenize(text)
	for _, c := range containers {
		for _, tok := range tokens {
			if tok == c.keyword || tok == c.keyword+"s" || tok == c.keyword+"es" {
				return c, true
			}
		}
	}
	return containerWeight{}, false
}

func containerByKeyword(word string) (containerWeight, bool) {
	word = strings.ToLower(word)
	for _, c := range containers {
		if c.keyword == word {
			return c, true
		}
	}
	return containerWeight{}, false
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z')
	})
}

func sumBreakdown(hints []Hint) float64 {
	var total float64
	for _, h := range hints {
		if h.Grams > 0 {
			total += h.Grams
		}
	}
	return total
}

func parseNumber(s string) float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0
	}
	return v
}

// unitGrams converts a unit word matched by metricRe into grams per unit,
// treating liquid volumes as water-density grams. Unknown units return 0 so
// the caller's positive-grams guard rejects the match.
func unitGrams(unit string) float64 {
	switch strings.ToLower(unit) {
	case "kilogram", "kilograms", "kg", "kgs":
		return 1000
	case "gram", "grams", "gramme", "grammes", "gr", "g":
		return 1
	case "millilitre", "millilitres", "milliliter", "milliliters", "ml":
		return 1
	case "centilitre", "centilitres", "cl":
		return 10
	case "litre", "litres", "liter", "liters", "l":
		return 1000
	default:
		return 0
	}
}

func parseCount(word string) float64 {
	switch strings.ToLower(word) {
	case "a", "an", "one":
		return 1
	case "two":
		return 2
	case "three":
		return 3
	case "four":
		return 4
	case "five":
		return 5
	case "six":
		return 6
	case "half":
		return 0.5
	default:
		return parseNumber(word)
	}
}
