package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/scout-reports/internal/logger"
	"github.com/ignatzorin/scout-reports/internal/models"
	"github.com/ignatzorin/scout-reports/internal/pkg/apperror"
	"github.com/ignatzorin/scout-reports/internal/visibility"
)

// PriorityAlertsLimit сколько срочных отчётов показывать на панели рейнджера.
const PriorityAlertsLimit = 3

// ReportStore операции чтения и закрытия отчётов.
type ReportStore interface {
	List(ctx context.Context, f models.ReportFilter) ([]models.Report, error)
	Resolve(ctx context.Context, id uuid.UUID) (*models.Report, error)
	SectorMetrics(ctx context.Context, floor models.HazardRating, dayStart time.Time) (*models.SectorMetrics, error)
}

// RoleLookup разрешает роль пользователя.
type RoleLookup interface {
	Resolve(ctx context.Context, userID uuid.UUID) (models.Role, error)
}

// Dashboard данные панели рейнджера.
type Dashboard struct {
	Metrics        *models.SectorMetrics `json:"metrics"`
	PriorityAlerts []models.Report       `json:"priority_alerts"`
}

// ReportService выдаёт отчёты с учётом роли.
type ReportService struct {
	repo  ReportStore
	roles RoleLookup
	now   func() time.Time
}

// NewReportService создаёт сервис отчётов.
func NewReportService(repo ReportStore, roles RoleLookup) *ReportService {
	return &ReportService{repo: repo, roles: roles, now: time.Now}
}

// List отчёты, видимые пользователю, новые первыми.
func (s *ReportService) List(ctx context.Context, viewerID uuid.UUID, status *models.ReportStatus) ([]models.Report, error) {
	role, err := s.roles.Resolve(ctx, viewerID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeUnauthorized, "не удалось определить роль")
	}

	filter, ok := visibility.QueryFilter(role, viewerID)
	if !ok {
		return []models.Report{}, nil
	}
	filter.Status = status

	reports, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return visibility.Filter(role, viewerID, reports), nil
}

// Map маркеры видимых отчётов. Точки, которые не удалось разобрать, пропускаются.
func (s *ReportService) Map(ctx context.Context, viewerID uuid.UUID) ([]models.Marker, error) {
	reports, err := s.List(ctx, viewerID, nil)
	if err != nil {
		return nil, err
	}

	markers := make([]models.Marker, 0, len(reports))
	for i := range reports {
		m, ok := models.MarkerFor(&reports[i])
		if !ok {
			logger.Get().WithFields(logrus.Fields{
				"report_id": reports[i].ID,
			}).Warn("report service: не удалось разобрать координаты отчёта")
			continue
		}
		markers = append(markers, m)
	}
	return markers, nil
}

// Resolve закрывает отчёт. Доступно только рейнджеру.
func (s *ReportService) Resolve(ctx context.Context, viewerID, reportID uuid.UUID) (*models.Report, error) {
	if err := s.requireRanger(ctx, viewerID); err != nil {
		return nil, err
	}

	report, err := s.repo.Resolve(ctx, reportID)
	if err != nil {
		return nil, err
	}

	logger.Get().WithFields(logrus.Fields{
		"report_id": reportID,
		"ranger_id": viewerID,
	}).Info("report service: отчёт закрыт")
	return report, nil
}

// Dashboard показатели сектора и срочные отчёты: ожидающие, high или critical, три новейших.
func (s *ReportService) Dashboard(ctx context.Context, viewerID uuid.UUID) (*Dashboard, error) {
	if err := s.requireRanger(ctx, viewerID); err != nil {
		return nil, err
	}

	metrics, err := s.repo.SectorMetrics(ctx, visibility.RangerMinHazard, startOfDay(s.now()))
	if err != nil {
		return nil, err
	}

	floor := visibility.RangerMinHazard
	pending := models.ReportStatusPending
	alerts, err := s.repo.List(ctx, models.ReportFilter{
		InvasiveMinHazard: &floor,
		Status:            &pending,
		Hazards:           []models.HazardRating{models.HazardHigh, models.HazardCritical},
		Limit:             PriorityAlertsLimit,
	})
	if err != nil {
		return nil, err
	}

	return &Dashboard{Metrics: metrics, PriorityAlerts: alerts}, nil
}

func (s *ReportService) requireRanger(ctx context.Context, viewerID uuid.UUID) error {
	role, err := s.roles.Resolve(ctx, viewerID)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeUnauthorized, "не удалось определить роль")
	}
	if role != models.RoleRanger {
		return apperror.ErrForbidden
	}
	return nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
