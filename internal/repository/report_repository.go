package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/scout-reports/internal/models"
	"github.com/ignatzorin/scout-reports/internal/pkg/apperror"
)

// ErrAlreadyResolved отчёт уже закрыт.
var ErrAlreadyResolved = apperror.New(apperror.ErrCodeConflict, "отчёт уже закрыт")

// location отдаётся как hex EWKB, так же как в realtime канале.
const reportColumns = `
	id, user_id, created_at, updated_at, species_name, description, hazard_rating,
	is_invasive, confidence_score, image_url,
	encode(ST_AsEWKB(location::geometry), 'hex') AS location,
	location_name, status`

// ReportRepository работает с таблицей reports.
type ReportRepository struct {
	db *sqlx.DB
}

func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Insert сохраняет отчёт. Точка передаётся в WKT и переводится в geography на стороне БД.
func (r *ReportRepository) Insert(ctx context.Context, in *models.NewReport) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO reports (user_id, species_name, description, hazard_rating, is_invasive,
			confidence_score, image_url, location, location_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, ST_GeogFromText($8), $9)
		RETURNING id`,
		in.UserID, in.SpeciesName, in.Description, in.HazardRating, in.IsInvasive,
		in.ConfidenceScore, in.ImageURL, in.LocationWKT, in.LocationName,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("report repository: insert %w", err)
	}
	return id, nil
}

// GetByID возвращает отчёт.
func (r *ReportRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	var report models.Report
	err := r.db.GetContext(ctx, &report, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("report repository: get %w", err)
	}
	return &report, nil
}

// List возвращает отчёты по фильтру, новые первыми.
func (r *ReportRepository) List(ctx context.Context, f models.ReportFilter) ([]models.Report, error) {
	where, args := buildReportWhere(f)

	query := `SELECT ` + reportColumns + ` FROM reports`
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	reports := []models.Report{}
	if err := r.db.SelectContext(ctx, &reports, query, args...); err != nil {
		return nil, fmt.Errorf("report repository: list %w", err)
	}
	return reports, nil
}

func buildReportWhere(f models.ReportFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.OwnerID != nil {
		conds = append(conds, "user_id = "+next(*f.OwnerID))
	}
	if f.InvasiveMinHazard != nil {
		conds = append(conds, "is_invasive", "hazard_rating = ANY("+next(pq.Array(hazardsAtLeast(*f.InvasiveMinHazard)))+")")
	}
	if f.Status != nil {
		conds = append(conds, "status = "+next(*f.Status))
	}
	if len(f.Hazards) > 0 {
		conds = append(conds, "hazard_rating = ANY("+next(pq.Array(hazardStrings(f.Hazards)))+")")
	}

	return strings.Join(conds, " AND "), args
}

func hazardsAtLeast(floor models.HazardRating) []string {
	var out []string
	for _, h := range models.HazardRatings {
		if h.AtLeast(floor) {
			out = append(out, string(h))
		}
	}
	return out
}

func hazardStrings(hs []models.HazardRating) []string {
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = string(h)
	}
	return out
}

// Resolve переводит отчёт в resolved. Для неизвестного id возвращает ErrReportNotFound,
// для уже закрытого ErrAlreadyResolved.
func (r *ReportRepository) Resolve(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	var report models.Report
	err := r.db.GetContext(ctx, &report, `
		UPDATE reports
		SET status = 'resolved', updated_at = NOW()
		WHERE id = $1 AND status <> 'resolved'
		RETURNING `+reportColumns, id)
	if err == nil {
		return &report, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report repository: resolve %w", err)
	}

	var status models.ReportStatus
	err = r.db.GetContext(ctx, &status, `SELECT status FROM reports WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("report repository: resolve status %w", err)
	}
	return nil, ErrAlreadyResolved
}

// StatsForUser количество отчётов пользователя и сколько из них инвазивные.
func (r *ReportRepository) StatsForUser(ctx context.Context, userID uuid.UUID) (*models.ReportStats, error) {
	var stats models.ReportStats
	err := r.db.GetContext(ctx, &stats, `
		SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE is_invasive) AS invasive
		FROM reports
		WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("report repository: stats %w", err)
	}
	return &stats, nil
}

// SectorMetrics считает показатели по отчётам, видимым рейнджеру.
// Закрытыми сегодня считаются отчёты с updated_at >= dayStart.
func (r *ReportRepository) SectorMetrics(ctx context.Context, floor models.HazardRating, dayStart time.Time) (*models.SectorMetrics, error) {
	var m models.SectorMetrics
	err := r.db.GetContext(ctx, &m, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending') AS active_threats,
			COUNT(*) FILTER (WHERE status = 'resolved' AND updated_at >= $2) AS resolved_today,
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'resolved') AS resolved
		FROM reports
		WHERE is_invasive AND hazard_rating = ANY($1)`,
		pq.Array(hazardsAtLeast(floor)), dayStart)
	if err != nil {
		return nil, fmt.Errorf("report repository: sector metrics %w", err)
	}
	m.ComputeResolutionRate()
	return &m, nil
}
