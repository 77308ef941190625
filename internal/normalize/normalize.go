// Package normalize repairs raw model replies into structured records.
// Model output may be clean JSON, JSON wrapped in prose or code fences, or
// unparsable noise; this package owns all of that repair, so callers only
// ever see a fully-populated Reply or a typed error.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/PierreDenaes/deploy-sub002/pkg/models"
)

// ErrMalformed reports a reply that stayed unparsable after balanced-brace
// extraction. Re-issuing the model call is a gateway-level decision, never
// a parse-level one.
var ErrMalformed = errors.New("malformed model reply")

// ValidationError reports a parseable reply missing a required field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid model reply: %s: %s", e.Field, e.Reason)
}

// NutritionTable is the on-package label block the model claims to have read.
type NutritionTable struct {
	Protein  *float64 `json:"protein"`
	Calories *float64 `json:"calories"`
	Carbs    *float64 `json:"carbs"`
	Fat      *float64 `json:"fat"`
	Fiber    *float64 `json:"fiber"`
	Unit     string   `json:"unit"`
}

// BreakdownItem is one meal component with its estimated weight.
type BreakdownItem struct {
	Name  string  `json:"name"`
	Grams float64 `json:"grams"`
}

// Reply is the normalized model output. After Normalize returns, every
// optional field holds its documented default, so downstream code never
// branches on a missing key.
type Reply struct {
	Foods          []string        `json:"foods"`
	ProductName    string          `json:"product_name"`
	Brand          string          `json:"brand"`
	ProductType    string          `json:"product_type"`
	Protein        *float64        `json:"protein"`
	Calories       *float64        `json:"calories"`
	Carbs          *float64        `json:"carbs"`
	Fat            *float64        `json:"fat"`
	Fiber          *float64        `json:"fiber"`
	PortionGrams   float64         `json:"portion_grams"`
	Confidence     float64         `json:"confidence"`
	ImageQuality   string          `json:"image_quality"`
	NutritionTable *NutritionTable `json:"nutrition_table"`
	Breakdown      []BreakdownItem `json:"breakdown"`
	Explanation    string          `json:"explanation"`
}

// Normalize parses raw model text into a Reply. Parse failures after repair
// return ErrMalformed; structurally parseable replies missing required
// fields return a ValidationError naming the field.
func Normalize(raw string) (*Reply, error) {
	var reply Reply
	if err := Decode(raw, &reply); err != nil {
		return nil, err
	}
	if err := reply.validate(); err != nil {
		return nil, err
	}
	reply.fillDefaults()
	return &reply, nil
}

// Decode unmarshals model text into target, stripping code fences and
// control characters first and falling back to balanced-brace extraction
// when the text wraps JSON in prose.
func Decode(raw string, target any) error {
	cleaned := stripNoise(raw)
	if cleaned == "" {
		return fmt.Errorf("%w: empty reply", ErrMalformed)
	}

	directErr := json.Unmarshal([]byte(cleaned), target)
	if directErr == nil {
		return nil
	}

	extracted, ok := extractBalanced(cleaned)
	if !ok {
		return fmt.Errorf("%w: %s", ErrMalformed, snippet(cleaned))
	}
	if err := json.Unmarshal([]byte(extracted), target); err != nil {
		return fmt.Errorf("%w: %s", ErrMalformed, snippet(extracted))
	}
	return nil
}

// stripNoise removes control characters (keeping line structure) and
// unwraps a surrounding markdown code fence.
func stripNoise(raw string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, raw)
	return stripCodeFence(strings.TrimSpace(cleaned))
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	body := strings.TrimLeft(s[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

// extractBalanced returns the substring from the first '{' through its
// matching closing brace, tracking depth and ignoring braces inside JSON
// strings. Reports false when no balanced object exists.
func extractBalanced(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func snippet(s string) string {
	clean := strings.Join(strings.Fields(s), " ")
	runes := []rune(clean)
	if len(runes) > 160 {
		clean = string(runes[:160]) + "..."
	}
	return clean
}

// validate enforces the structural contract: something identified, a numeric
// protein value, and confidence within [0,1].
func (r *Reply) validate() error {
	if len(r.Foods) == 0 && strings.TrimSpace(r.ProductName) == "" {
		return &ValidationError{Field: "foods", Reason: "no foods or product name identified"}
	}
	if r.Protein == nil {
		return &ValidationError{Field: "protein", Reason: "missing numeric value"}
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return &ValidationError{Field: "confidence", Reason: "outside [0,1]"}
	}
	return nil
}

// fillDefaults populates the documented defaults for optional fields.
// An unrecognized product type is inferred: replies naming a product are
// treated as packaged, anything else as natural food.
func (r *Reply) fillDefaults() {
	if r.Foods == nil {
		r.Foods = []string{}
	}
	if r.Breakdown == nil {
		r.Breakdown = []BreakdownItem{}
	}
	if r.ImageQuality == "" {
		r.ImageQuality = "none"
	}
	if r.PortionGrams < 0 {
		r.PortionGrams = 0
	}
	switch models.ProductType(r.ProductType) {
	case models.ProductTypePackaged, models.ProductTypeNatural, models.ProductTypeCooked:
	default:
		if strings.TrimSpace(r.ProductName) != "" {
			r.ProductType = string(models.ProductTypePackaged)
		} else {
			r.ProductType = string(models.ProductTypeNatural)
		}
	}
}

// ProteinValue returns the protein grams, zero when absent.
func (r *Reply) ProteinValue() float64 {
	if r.Protein == nil {
		return 0
	}
	return *r.Protein
}

// CaloriesValue returns the calories, zero when absent.
func (r *Reply) CaloriesValue() float64 {
	if r.Calories == nil {
		return 0
	}
	return *r.Calories
}

// PoorImage reports whether the model flagged the photo as hard to read.
func (r *Reply) PoorImage() bool {
	return r.ImageQuality == "poor"
}

// ToResult converts the reply into a visual-estimation candidate record.
// The foods list falls back to the product name so the record is never
// empty-handed.
func (r *Reply) ToResult() *models.AnalysisResult {
	foods := r.Foods
	if len(foods) == 0 && r.ProductName != "" {
		foods = []string{r.ProductName}
	}
	return &models.AnalysisResult{
		ID:           uuid.New(),
		Foods:        foods,
		Protein:      r.ProteinValue(),
		Calories:     r.CaloriesValue(),
		Carbs:        r.Carbs,
		Fat:          r.Fat,
		Fiber:        r.Fiber,
		Confidence:   r.Confidence,
		ProductType:  models.ProductType(r.ProductType),
		DataSource:   models.SourceVisualEstimation,
		PortionGrams: r.PortionGrams,
		Explanation:  r.Explanation,
		CreatedAt:    time.Now().UTC(),
	}
}

// LabelRecord turns a nutrition table the model read off the package into
// an official-label record. A table without a numeric protein value or
// without a stated basis is not trusted as a label.
func (r *Reply) LabelRecord() *models.NutritionRecord {
	t := r.NutritionTable
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
		Name:       r.ProductName,
		Brand:      r.Brand,
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
