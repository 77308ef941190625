package models

import (
	"time"

	"github.com/google/uuid"
)

// Modality identifies the kind of input an analysis started from
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
)

// ProductType classifies what kind of food the meal contains
type ProductType string

const (
	ProductTypePackaged ProductType = "PACKAGED_PRODUCT"
	ProductTypeNatural  ProductType = "NATURAL_FOOD"
	ProductTypeCooked   ProductType = "COOKED_DISH"
)

// DataSource identifies where the nutrition numbers in a result came from
type DataSource string

const (
	SourceOfficialLabel    DataSource = "OFFICIAL_LABEL"
	SourceOnlineDatabase   DataSource = "ONLINE_DATABASE"
	SourceFallbackDatabase DataSource = "FALLBACK_DATABASE"
	SourceVisualEstimation DataSource = "VISUAL_ESTIMATION"
)

// AnalysisRequest represents a single meal-analysis job
type AnalysisRequest struct {
	Modality  Modality `json:"modality"`
	InputText string   `json:"input_text,omitempty"`
	ImageRef  string   `json:"image_ref,omitempty"`
	Caption   string   `json:"caption,omitempty"`
}

// AnalysisResult represents the complete outcome of analyzing a meal
type AnalysisResult struct {
	ID                   uuid.UUID   `json:"id"`
	Foods                []string    `json:"foods"`
	Protein              float64     `json:"protein"`
	Calories             float64     `json:"calories"`
	Carbs                *float64    `json:"carbs,omitempty"`
	Fat                  *float64    `json:"fat,omitempty"`
	Fiber                *float64    `json:"fiber,omitempty"`
	Confidence           float64     `json:"confidence"`
	ProductType          ProductType `json:"product_type"`
	DataSource           DataSource  `json:"data_source"`
	IsExactValue         bool        `json:"is_exact_value"`
	RequiresManualReview bool        `json:"requires_manual_review"`
	Explanation          string      `json:"explanation,omitempty"`
	PortionGrams         float64     `json:"portion_grams"`
	Provider             string      `json:"provider,omitempty"`
	Model                string      `json:"model,omitempty"`
	InputTokens          int         `json:"input_tokens,omitempty"`
	OutputTokens         int         `json:"output_tokens,omitempty"`
	CreatedAt            time.Time   `json:"created_at"`
}

// PrimaryFood returns the first recognized food name, or an empty string
func (r *AnalysisResult) PrimaryFood() string {
	if len(r.Foods) == 0 {
		return ""
	}
	return r.Foods[0]
}
