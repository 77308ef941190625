package models

import "math"

// Basis declares what quantity a NutritionRecord's numbers describe
type Basis string

const (
	BasisPer100g    Basis = "per_100g"
	BasisPerServing Basis = "per_serving"
)

// Provenance records which collaborator produced a NutritionRecord
type Provenance string

const (
	ProvenanceOfficialLabel  Provenance = "official_label"
	ProvenanceRemoteDatabase Provenance = "remote_database"
	ProvenanceLocalCache     Provenance = "local_cache"
	ProvenanceFallbackTable  Provenance = "fallback_table"
)

// NutritionRecord represents nutrition numbers fetched from a single source.
// Records are read-only once fetched.
type NutritionRecord struct {
	Name     string   `json:"name"`
	Brand    string   `json:"brand,omitempty"`
	Protein  float64  `json:"protein"`
	Calories float64  `json:"calories"`
	Carbs    *float64 `json:"carbs,omitempty"`
	Fat      *float64 `json:"fat,omitempty"`
	Fiber    *float64 `json:"fiber,omitempty"`
	Basis    Basis    `json:"basis"`
	// Weight is the portion described by the record when Basis is per_serving
	Weight     float64    `json:"weight,omitempty"`
	Provenance Provenance `json:"provenance"`
}

// Heuristic names the rule a portion weight estimate came from
type Heuristic string

const (
	HeuristicExplicitQuantity Heuristic = "explicit_quantity"
	HeuristicNamedContainer   Heuristic = "named_container"
	HeuristicModelBreakdown   Heuristic = "model_breakdown"
	HeuristicPackageWeight    Heuristic = "package_weight"
	HeuristicDefault          Heuristic = "default"
)

// PortionEstimate represents an estimated portion weight and how it was derived
type PortionEstimate struct {
	Grams      float64   `json:"grams"`
	Confidence float64   `json:"confidence"`
	Heuristic  Heuristic `json:"heuristic"`
}

// ScalePer100g converts a per-100g value to the amount in a portion of the given weight
func ScalePer100g(valuePer100g, grams float64) float64 {
	return valuePer100g * grams / 100
}

// RoundNutrient rounds a nutrient amount to one decimal place
func RoundNutrient(v float64) float64 {
	return math.Round(v*10) / 10
}

// RoundCalories rounds an energy amount to the nearest whole calorie
func RoundCalories(v float64) float64 {
	return math.Round(v)
}
