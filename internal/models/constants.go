package models

import "strings"

// HazardRating уровень опасности растения.
type HazardRating string

const (
	HazardSafe     HazardRating = "safe"
	HazardLow      HazardRating = "low"
	HazardMedium   HazardRating = "medium"
	HazardHigh     HazardRating = "high"
	HazardCritical HazardRating = "critical"
	HazardUnknown  HazardRating = "unknown"
)

// HazardRatings все допустимые значения в порядке возрастания опасности, unknown в конце.
var HazardRatings = []HazardRating{HazardSafe, HazardLow, HazardMedium, HazardHigh, HazardCritical, HazardUnknown}

var hazardSeverity = map[HazardRating]int{
	HazardSafe:     0,
	HazardLow:      1,
	HazardMedium:   2,
	HazardHigh:     3,
	HazardCritical: 4,
}

// Severity возвращает порядковую опасность. У unknown её нет: ok == false.
func (h HazardRating) Severity() (int, bool) {
	s, ok := hazardSeverity[h]
	return s, ok
}

// AtLeast true, если опасность известна и не ниже floor.
func (h HazardRating) AtLeast(floor HazardRating) bool {
	s, ok := h.Severity()
	if !ok {
		return false
	}
	m, ok := floor.Severity()
	return ok && s >= m
}

func (h HazardRating) Valid() bool {
	for _, v := range HazardRatings {
		if v == h {
			return true
		}
	}
	return false
}

// ReportStatus статус обработки отчёта.
type ReportStatus string

const (
	ReportStatusPending  ReportStatus = "pending"
	ReportStatusVerified ReportStatus = "verified"
	ReportStatusResolved ReportStatus = "resolved"
)

func (s ReportStatus) Valid() bool {
	switch s {
	case ReportStatusPending, ReportStatusVerified, ReportStatusResolved:
		return true
	}
	return false
}

// Role роль пользователя. Пустая строка означает, что роль ещё не определена.
type Role string

const (
	RoleScout  Role = "scout"
	RoleRanger Role = "ranger"
)

func (r Role) Valid() bool {
	return r == RoleScout || r == RoleRanger
}

// Названия-заглушки, которые модель возвращает для неопознанных растений.
const (
	SpeciesUnidentifiable = "Unidentifiable"
	SpeciesUnknown        = "Unknown species"
)

// IsUnidentifiableSpecies сравнивает без учёта регистра и пробелов по краям.
func IsUnidentifiableSpecies(name string) bool {
	n := strings.TrimSpace(name)
	return strings.EqualFold(n, SpeciesUnidentifiable) || strings.EqualFold(n, SpeciesUnknown)
}

// XPPerLevel опыт на один уровень профиля.
const XPPerLevel = 200

// XPProgressCap опыт, при котором общий прогресс считается 100%.
const XPProgressCap = 1000
