package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/scout-reports/internal/geo"
)

// Report описывает наблюдение разведчика.
// Location хранится в том виде, в каком пришёл из БД или realtime канала.
type Report struct {
	ID              uuid.UUID    `db:"id" json:"id"`
	UserID          uuid.UUID    `db:"user_id" json:"user_id"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updated_at"`
	SpeciesName     string       `db:"species_name" json:"species_name"`
	Description     string       `db:"description" json:"description"`
	HazardRating    HazardRating `db:"hazard_rating" json:"hazard_rating"`
	IsInvasive      bool         `db:"is_invasive" json:"is_invasive"`
	ConfidenceScore float64      `db:"confidence_score" json:"confidence_score"`
	ImageURL        string       `db:"image_url" json:"image_url"`
	Location        geo.Location `db:"location" json:"location"`
	LocationName    *string      `db:"location_name" json:"location_name,omitempty"`
	Status          ReportStatus `db:"status" json:"status"`
}

// NewReport данные для вставки нового отчёта. LocationWKT в формате POINT(lon lat).
type NewReport struct {
	UserID          uuid.UUID
	SpeciesName     string
	Description     string
	HazardRating    HazardRating
	IsInvasive      bool
	ConfidenceScore float64
	ImageURL        string
	LocationWKT     string
	LocationName    *string
}

// ReportFilter параметры выборки списка отчётов.
type ReportFilter struct {
	// OwnerID ограничивает выборку отчётами одного разведчика.
	OwnerID *uuid.UUID
	// InvasiveMinHazard оставляет только инвазивные отчёты с опасностью не ниже указанной.
	InvasiveMinHazard *HazardRating
	Status            *ReportStatus
	Hazards           []HazardRating
	Limit             int
}

// ReportStats агрегаты по отчётам пользователя.
type ReportStats struct {
	Total    int `db:"total" json:"total_reports"`
	Invasive int `db:"invasive" json:"invasive_found"`
}

// SectorMetrics показатели сектора для рейнджера.
type SectorMetrics struct {
	ActiveThreats  int     `db:"active_threats" json:"active_threats"`
	ResolvedToday  int     `db:"resolved_today" json:"resolved_today"`
	Total          int     `db:"total" json:"total"`
	Resolved       int     `db:"resolved" json:"resolved"`
	ResolutionRate float64 `db:"-" json:"resolution_rate"`
}

// ComputeResolutionRate resolved/total*100 с округлением до целого, 0 при пустой выборке.
func (m *SectorMetrics) ComputeResolutionRate() {
	if m.Total == 0 {
		m.ResolutionRate = 0
		return
	}
	m.ResolutionRate = float64((m.Resolved*100 + m.Total/2) / m.Total)
}

// ClassificationResult ответ эндпоинта анализа: нормализованная классификация без строки БД.
type ClassificationResult struct {
	SpeciesName  string       `json:"species_name"`
	IsInvasive   bool         `json:"is_invasive"`
	HazardRating HazardRating `json:"hazard_rating"`
	Description  string       `json:"description"`
	Confidence   float64      `json:"confidence"`
}
