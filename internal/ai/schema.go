package ai

import "github.com/ignatzorin/scout-reports/internal/models"

// SchemaName имя схемы в response_format.
const SchemaName = "plant_report"

// ClassificationSchema JSON Schema ответа модели. Все поля обязательны,
// лишние поля запрещены.
func ClassificationSchema() map[string]any {
	hazards := make([]string, 0, len(models.HazardRatings))
	for _, h := range models.HazardRatings {
		hazards = append(hazards, string(h))
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"species_name": map[string]any{
				"type":        "string",
				"description": `The identified plant or species name. Use "Unidentifiable" or "Unknown species" if the image does not contain a recognizable plant/species.`,
			},
			"is_invasive": map[string]any{
				"type":        "boolean",
				"description": "Whether this species is invasive in the deployment region. Set to false if unidentifiable.",
			},
			"hazard_rating": map[string]any{
				"type":        "string",
				"enum":        hazards,
				"description": "Fire hazard rating: safe, low, medium, high, critical, or unknown (use unknown if the image does not contain a plant/species or is unidentifiable)",
			},
			"description": map[string]any{
				"type":        "string",
				"description": "Brief description of the species and its characteristics. If unidentifiable, describe what is visible in the image.",
			},
			"confidence": map[string]any{
				"type":        "number",
				"minimum":     0,
				"maximum":     1,
				"description": "Confidence score from 0.0 to 1.0. Use lower scores (0.0-0.3) for unidentifiable or unclear images.",
			},
		},
		"required":             []string{"species_name", "is_invasive", "hazard_rating", "description", "confidence"},
		"additionalProperties": false,
	}
}
