package models

import "github.com/google/uuid"

// MarkerStyle класс отображения точки на карте.
type MarkerStyle string

const (
	MarkerDanger   MarkerStyle = "danger"
	MarkerInvasive MarkerStyle = "invasive"
	MarkerNormal   MarkerStyle = "normal"
)

// StyleFor выбирает стиль маркера: high и critical опасны, прочие инвазивные
// отмечаются отдельно, остальное обычные точки.
func StyleFor(r *Report) MarkerStyle {
	switch {
	case r.HazardRating == HazardHigh || r.HazardRating == HazardCritical:
		return MarkerDanger
	case r.IsInvasive:
		return MarkerInvasive
	default:
		return MarkerNormal
	}
}

// Marker точка отчёта на карте.
type Marker struct {
	ReportID     uuid.UUID    `json:"id"`
	Lon          float64      `json:"lon"`
	Lat          float64      `json:"lat"`
	SpeciesName  string       `json:"species_name"`
	HazardRating HazardRating `json:"hazard_rating"`
	Style        MarkerStyle  `json:"style"`
	ImageURL     string       `json:"image_url"`
}

// MarkerFor строит маркер из отчёта. ok == false, если точку не удалось разобрать.
func MarkerFor(r *Report) (Marker, bool) {
	p, ok := r.Location.Point()
	if !ok {
		return Marker{}, false
	}
	return Marker{
		ReportID:     r.ID,
		Lon:          p.Lon,
		Lat:          p.Lat,
		SpeciesName:  r.SpeciesName,
		HazardRating: r.HazardRating,
		Style:        StyleFor(r),
		ImageURL:     r.ImageURL,
	}, true
}
