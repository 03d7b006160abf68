// Package visibility решает, какие отчёты видит пользователь.
// Одно и то же правило применяется в SQL выборке, в realtime рассылке и на клиенте.
package visibility

import (
	"github.com/google/uuid"

	"github.com/ignatzorin/scout-reports/internal/models"
)

// RangerMinHazard минимальная опасность инвазивного отчёта, который видит рейнджер.
const RangerMinHazard = models.HazardMedium

// Visible сообщает, виден ли отчёт пользователю с данной ролью.
// Разведчик видит только свои отчёты, рейнджер только инвазивные с опасностью
// medium и выше. Неизвестная роль не видит ничего.
func Visible(role models.Role, viewerID uuid.UUID, r *models.Report) bool {
	if r == nil {
		return false
	}

	switch role {
	case models.RoleScout:
		return viewerID != uuid.Nil && r.UserID == viewerID
	case models.RoleRanger:
		return r.IsInvasive && r.HazardRating.AtLeast(RangerMinHazard)
	default:
		return false
	}
}

// Filter оставляет видимые отчёты, сохраняя порядок.
func Filter(role models.Role, viewerID uuid.UUID, reports []models.Report) []models.Report {
	out := make([]models.Report, 0, len(reports))
	for i := range reports {
		if Visible(role, viewerID, &reports[i]) {
			out = append(out, reports[i])
		}
	}
	return out
}

// QueryFilter переводит правило в параметры SQL выборки.
// ok == false, если роль не даёт доступа ни к одному отчёту.
func QueryFilter(role models.Role, viewerID uuid.UUID) (models.ReportFilter, bool) {
	switch role {
	case models.RoleScout:
		if viewerID == uuid.Nil {
			return models.ReportFilter{}, false
		}
		id := viewerID
		return models.ReportFilter{OwnerID: &id}, true
	case models.RoleRanger:
		minHazard := RangerMinHazard
		return models.ReportFilter{InvasiveMinHazard: &minHazard}, true
	default:
		return models.ReportFilter{}, false
	}
}
