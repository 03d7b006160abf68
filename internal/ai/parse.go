package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ignatzorin/scout-reports/internal/models"
	"github.com/ignatzorin/scout-reports/internal/pkg/apperror"
)

// ErrContractViolation ответ модели не соответствует схеме.
var ErrContractViolation = errors.New("ai: ответ не соответствует схеме")

// Classification ответ модели после проверки схемы.
// Confidence == nil, если модель не вернула число.
type Classification struct {
	SpeciesName  string              `json:"species_name"`
	IsInvasive   bool                `json:"is_invasive"`
	HazardRating models.HazardRating `json:"hazard_rating"`
	Description  string              `json:"description"`
	Confidence   *float64            `json:"confidence"`
}

var codeBlockRe = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")

// ParseClassification достаёт JSON объект из ответа модели и проверяет обязательные поля.
func ParseClassification(raw string) (*Classification, error) {
	obj, err := extractJSONObject(raw)
	if err != nil {
		return nil, contractError(err.Error())
	}

	species, ok := obj["species_name"].(string)
	if !ok {
		return nil, contractError("species_name должен быть строкой")
	}
	description, ok := obj["description"].(string)
	if !ok {
		return nil, contractError("description должен быть строкой")
	}
	invasive, ok := obj["is_invasive"].(bool)
	if !ok {
		return nil, contractError("is_invasive должен быть boolean")
	}
	hazardStr, ok := obj["hazard_rating"].(string)
	hazard := models.HazardRating(strings.ToLower(strings.TrimSpace(hazardStr)))
	if !ok || !hazard.Valid() {
		return nil, contractError(fmt.Sprintf("недопустимый hazard_rating %v", obj["hazard_rating"]))
	}

	c := &Classification{
		SpeciesName:  species,
		IsInvasive:   invasive,
		HazardRating: hazard,
		Description:  description,
	}
	if conf, ok := obj["confidence"].(float64); ok {
		c.Confidence = &conf
	}
	return c, nil
}

func extractJSONObject(text string) (map[string]any, error) {
	var result map[string]any

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		if err := json.Unmarshal([]byte(text[start:end+1]), &result); err == nil {
			return result, nil
		}
	}

	if m := codeBlockRe.FindStringSubmatch(text); len(m) > 1 {
		if err := json.Unmarshal([]byte(m[1]), &result); err == nil {
			return result, nil
		}
	}

	return nil, errors.New("в ответе нет JSON объекта")
}

func contractError(detail string) error {
	return apperror.Wrap(fmt.Errorf("%w: %s", ErrContractViolation, detail),
		apperror.ErrCodeClassifierContract, "Classifier returned an invalid response: "+detail)
}
