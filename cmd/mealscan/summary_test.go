package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PierreDenaes/deploy-sub002/pkg/models"
)

func init() {
	color.NoColor = true
}

func TestPrintResult_OfficialLabel(t *testing.T) {
	var stderr, stdout bytes.Buffer
	carbs := 3.9
	r := &models.AnalysisResult{
		ID:           uuid.New(),
		Foods:        []string{"cottage cheese"},
		Protein:      33.0,
		Calories:     294.0,
		Carbs:        &carbs,
		Confidence:   0.95,
		ProductType:  models.ProductTypePackaged,
		DataSource:   models.SourceOfficialLabel,
		PortionGrams: 300,
		Explanation:  "Half a 600 g tub, label values.",
	}

	printResult(&stderr, &stdout, r)

	assert.Contains(t, stderr.String(), "━")
	assert.Contains(t, stderr.String(), "Confidence: 95%")
	assert.Contains(t, stderr.String(), "OFFICIAL_LABEL")
	assert.Contains(t, stdout.String(), "cottage cheese")
	assert.Contains(t, stdout.String(), "Protein:  33.0 g")
	assert.Contains(t, stdout.String(), "Calories: 294 kcal")
	assert.Contains(t, stdout.String(), "Carbs:    3.9 g")
	assert.NotContains(t, stdout.String(), "Fat:")
	assert.Contains(t, stdout.String(), "Half a 600 g tub")
	assert.NotContains(t, stderr.String(), "Check these values")
}

func TestPrintResult_LowConfidenceReview(t *testing.T) {
	var stderr, stdout bytes.Buffer
	r := &models.AnalysisResult{
		ID:                   uuid.New(),
		Foods:                []string{"mixed salad"},
		Protein:              4.2,
		Calories:             120.0,
		Confidence:           0.35,
		ProductType:          models.ProductTypeCooked,
		DataSource:           models.SourceVisualEstimation,
		RequiresManualReview: true,
		PortionGrams:         250,
	}

	printResult(&stderr, &stdout, r)

	assert.Contains(t, stderr.String(), "Confidence: 35%")
	assert.Contains(t, stderr.String(), "Check these values")
	assert.Contains(t, stdout.String(), "mixed salad")
}

func TestPrintResult_ModelFooter(t *testing.T) {
	var stderr, stdout bytes.Buffer
	r := &models.AnalysisResult{
		ID:           uuid.New(),
		Foods:        []string{"skyr"},
		Protein:      21.0,
		Calories:     130.0,
		Confidence:   0.8,
		DataSource:   models.SourceOnlineDatabase,
		PortionGrams: 200,
		Provider:     "gemini",
		Model:        "gemini-2.0-flash",
		InputTokens:  820,
		OutputTokens: 145,
	}

	printResult(&stderr, &stdout, r)

	assert.Contains(t, stdout.String(), "Model: gemini-2.0-flash | Tokens: 820 in / 145 out")
}

func TestPrintResult_NoModelNoFooter(t *testing.T) {
	var stderr, stdout bytes.Buffer
	r := &models.AnalysisResult{
		ID:           uuid.New(),
		Foods:        []string{"banana"},
		Protein:      1.3,
		Calories:     105.0,
		Confidence:   0.7,
		DataSource:   models.SourceFallbackDatabase,
		PortionGrams: 118,
	}

	printResult(&stderr, &stdout, r)

	assert.NotContains(t, stdout.String(), "Model:")
	assert.NotContains(t, stdout.String(), "Tokens:")
}

func TestPrintConfidenceBar_High(t *testing.T) {
	var buf bytes.Buffer
	printConfidenceBar(&buf, 0.9, "OFFICIAL_LABEL")

	out := buf.String()
	assert.Contains(t, out, "Confidence: 90%")
	assert.Contains(t, out, "█")
	assert.Contains(t, out, "OFFICIAL_LABEL")
}

func TestPrintConfidenceBar_Medium(t *testing.T) {
	var buf bytes.Buffer
	printConfidenceBar(&buf, 0.5, "ONLINE_DATABASE")

	assert.Contains(t, buf.String(), "Confidence: 50%")
}

func TestPrintConfidenceBar_Low(t *testing.T) {
	var buf bytes.Buffer
	printConfidenceBar(&buf, 0.1, "VISUAL_ESTIMATION")

	assert.Contains(t, buf.String(), "Confidence: 10%")
	assert.Contains(t, buf.String(), "░")
}

func TestPrintConfidenceBar_OverflowClamped(t *testing.T) {
	var buf bytes.Buffer
	printConfidenceBar(&buf, 1.5, "OFFICIAL_LABEL")

	assert.Contains(t, buf.String(), "Confidence: 150%")
}

func TestJSONOutput(t *testing.T) {
	fat := 8.5
	r := &models.AnalysisResult{
		ID:           uuid.New(),
		Foods:        []string{"salmon fillet", "rice"},
		Protein:      34.0,
		Calories:     540.0,
		Fat:          &fat,
		Confidence:   0.85,
		ProductType:  models.ProductTypeCooked,
		DataSource:   models.SourceOnlineDatabase,
		PortionGrams: 350,
	}

	var buf bytes.Buffer
	err := json.NewEncoder(&buf).Encode(r)
	require.NoError(t, err)

	var decoded models.AnalysisResult
	err = json.Unmarshal(buf.Bytes(), &decoded)
	require.NoError(t, err)

	assert.Equal(t, r.ID, decoded.ID)
	assert.Equal(t, r.Foods, decoded.Foods)
	assert.Equal(t, r.Protein, decoded.Protein)
	assert.Equal(t, r.DataSource, decoded.DataSource)
	require.NotNil(t, decoded.Fat)
	assert.Equal(t, fat, *decoded.Fat)
}

func TestShouldColorize_Buffer(t *testing.T) {
	var buf bytes.Buffer
	assert.False(t, shouldColorize(&buf))
}
