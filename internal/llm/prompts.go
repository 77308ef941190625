package llm

import "fmt"

const analysisSystemPrompt = `You are a nutrition expert. Analyze the meal and estimate its nutritional content.

Classify the product_type:
- PACKAGED_PRODUCT: a branded packaged food or drink (wrapper, bottle, can, box)
- NATURAL_FOOD: an unprocessed single food (fruit, eggs, plain rice)
- COOKED_DISH: a prepared or home-cooked meal with several components

IMPORTANT: Always respond with valid JSON in this exact format:
{
  "foods": ["each food item you identify"],
  "product_name": "full product name if packaged, else empty",
  "brand": "brand name if known, else empty",
  "product_type": "PACKAGED_PRODUCT|NATURAL_FOOD|COOKED_DISH",
  "protein": 12.5,
  "calories": 340,
  "carbs": 45.0,
  "fat": 10.0,
  "fiber": 3.0,
  "portion_grams": 250,
  "confidence": 0.8,
  "image_quality": "good|poor|none",
  "nutrition_table": {"protein": 8.0, "calories": 55, "unit": "per_100g"},
  "breakdown": [{"name": "component", "grams": 120}],
  "explanation": "one or two sentences naming what you based the numbers on"
}

Rules:
- protein and calories describe the whole portion you believe was consumed.
- Fill nutrition_table ONLY when you can actually read a printed nutrition label; set unit to per_100g or per_serving exactly as printed. Otherwise set nutrition_table to null.
- breakdown lists the visible components with estimated grams; use an empty list when not applicable.
- confidence is your overall estimate quality from 0.0 to 1.0.
- image_quality is "none" for text-only requests, "poor" when the photo is blurry, dark, or partially obscured.`

const extractSystemPrompt = `You transcribe food packaging. Copy ALL visible text from the package exactly as printed: product name, brand, ingredient list, and every nutrition table row with its numbers and units.

Rules:
- Transcribe only. Do not interpret, summarize, or guess at hidden text.
- Keep line breaks between distinct label sections.
- If the package text is unreadable, reply with the single word: UNREADABLE`

const interpretSystemPrompt = `You are a nutrition expert reading transcribed food-package text. Identify the product and its printed nutrition facts.

IMPORTANT: Always respond with valid JSON in this exact format:
{
  "product_name": "full product name",
  "brand": "brand name, else empty",
  "category": "product category, e.g. yogurt, cereal, soft drink",
  "ingredients": ["ingredient list if printed"],
  "nutrition_table": {"protein": 4.1, "calories": 62, "carbs": 5.0, "fat": 3.2, "fiber": 0.0, "unit": "per_100g"},
  "package_weight_grams": 500,
  "confidence": 0.9
}

Rules:
- Use ONLY numbers present in the transcription; never invent values.
- unit is per_100g or per_serving, exactly as the label states it.
- package_weight_grams is the printed net weight, 0 when absent.
- confidence reflects how legible and complete the transcription is, 0.0 to 1.0.`

// AnalysisPrompts returns the system and user prompts for a single-shot meal
// analysis over a description, a photo, or both.
func AnalysisPrompts(description string, hasImage bool) (system, user string) {
	if !hasImage {
		return analysisSystemPrompt, fmt.Sprintf("Analyze this meal description: %q", description)
	}
	if description != "" {
		return analysisSystemPrompt, fmt.Sprintf("Analyze the meal in this photo. User caption: %q", description)
	}
	return analysisSystemPrompt, "Analyze the meal in this photo."
}

// ExtractPrompts returns the prompts for the transcription-only package
// text extraction pass.
func ExtractPrompts(caption string) (system, user string) {
	user = "Transcribe all text visible on this package."
	if caption != "" {
		user = fmt.Sprintf("%s The user says it is: %q", user, caption)
	}
	return extractSystemPrompt, user
}

// InterpretPrompts returns the prompts for turning extracted package text
// into product identity and nutrition facts.
func InterpretPrompts(extracted, caption string) (system, user string) {
	user = fmt.Sprintf("Package text:\n%s", extracted)
	if caption != "" {
		user = fmt.Sprintf("%s\n\nUser caption: %q", user, caption)
	}
	return interpretSystemPrompt, user
}
