package ai

import (
	"fmt"
	"strconv"
	"strings"
)

// Region описывает территорию, для которой настроен классификатор.
type Region struct {
	// Area полное название, например "Santa Cruz, California".
	Area string
	// State используется в пользовательском сообщении.
	State string
	// InvasiveList название списка инвазивных видов, на который ссылается промпт.
	InvasiveList string
}

// DefaultRegion регион по умолчанию.
var DefaultRegion = ParseRegion("Santa Cruz, California")

// ParseRegion строит Region из строки вида "<округ>, <штат>".
func ParseRegion(area string) Region {
	area = strings.TrimSpace(area)
	parts := strings.Split(area, ",")
	state := strings.TrimSpace(parts[len(parts)-1])
	local := strings.TrimSpace(parts[0])

	list := local + " invasive weeds list"
	if len(parts) > 1 {
		list = local + " County invasive weeds list"
	}

	return Region{Area: area, State: state, InvasiveList: list}
}

// ClassificationRequest всё, что уходит в модель: инструкция, сообщение пользователя и схема ответа.
type ClassificationRequest struct {
	SystemPrompt string
	UserText     string
	ImageURL     string
	Schema       map[string]any
}

// BuildRequest собирает запрос на классификацию фотографии.
func BuildRequest(imageURL string, lat, long float64, region Region) ClassificationRequest {
	return ClassificationRequest{
		SystemPrompt: systemPrompt(region),
		UserText: fmt.Sprintf("Please analyze this image of a plant/species found at coordinates %s, %s in %s.",
			formatCoord(lat), formatCoord(long), region.State),
		ImageURL: imageURL,
		Schema:   ClassificationSchema(),
	}
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func systemPrompt(r Region) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a Park Ranger with expertise in %s ecosystems. Analyze the provided image to:\n", r.Area)
	b.WriteString(`1. Identify the plant/species name (use "Unidentifiable" or "Unknown species" if the image does not contain a recognizable plant/species, contains only non-plant objects, or is too unclear to identify)` + "\n")
	fmt.Fprintf(&b, "2. Determine if it's an invasive species in %s (set to false if unidentifiable)\n", r.Area)
	b.WriteString(`3. Rate the fire hazard level: safe, low, medium, high, critical, or unknown (use "unknown" if the image does not contain a plant/species, is unidentifiable, or contains non-plant objects)` + "\n")
	b.WriteString("4. Provide a brief description of what you see in the image\n")
	b.WriteString("5. Provide a confidence score from 0.0 to 1.0 for your identification (use lower scores 0.0-0.3 for unidentifiable images)\n")
	b.WriteString("\n")
	b.WriteString("IMPORTANT: If the image does not contain a plant/species, is unidentifiable, or contains non-plant objects (animals, buildings, vehicles, etc.), you MUST:\n")
	b.WriteString(`- Set species_name to "Unidentifiable" or "Unknown species"` + "\n")
	b.WriteString(`- Set hazard_rating to "unknown"` + "\n")
	b.WriteString("- Set is_invasive to false\n")
	b.WriteString("- Set confidence to a low value (0.0-0.3)\n")
	b.WriteString("- Describe what is actually visible in the image\n")
	b.WriteString("\n")
	fmt.Fprintf(&b, "Be precise and consider the %s. Only identify actual plant species - do not make up names for unidentifiable objects.", r.InvasiveList)

	return b.String()
}
