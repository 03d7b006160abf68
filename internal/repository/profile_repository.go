package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/scout-reports/internal/models"
	"github.com/ignatzorin/scout-reports/internal/pkg/apperror"
)

// ProfileRepository читает профили и достижения.
type ProfileRepository struct {
	db *sqlx.DB
}

func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetByID возвращает профиль пользователя.
func (r *ProfileRepository) GetByID(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	var p models.Profile
	query := `
		SELECT id, username, avatar_url, role, xp_points, updated_at
		FROM profiles
		WHERE id = $1
	`
	if err := r.db.GetContext(ctx, &p, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrProfileNotFound
		}
		return nil, fmt.Errorf("profile repository: get %w", err)
	}
	return &p, nil
}

// GetRole возвращает только роль, это самый частый запрос.
func (r *ProfileRepository) GetRole(ctx context.Context, userID uuid.UUID) (models.Role, error) {
	var role models.Role
	if err := r.db.GetContext(ctx, &role, `SELECT role FROM profiles WHERE id = $1`, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperror.ErrProfileNotFound
		}
		return "", fmt.Errorf("profile repository: get role %w", err)
	}
	return role, nil
}

// UpdateRole меняет роль пользователя.
func (r *ProfileRepository) UpdateRole(ctx context.Context, userID uuid.UUID, role models.Role) error {
	res, err := r.db.ExecContext(ctx, `UPDATE profiles SET role = $2, updated_at = NOW() WHERE id = $1`, userID, role)
	if err != nil {
		return fmt.Errorf("profile repository: update role: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("profile repository: update role rows affected: %w", err)
	}
	if n == 0 {
		return apperror.ErrProfileNotFound
	}
	return nil
}

// ListAchievements возвращает разблокированные достижения, новые первыми.
func (r *ProfileRepository) ListAchievements(ctx context.Context, userID uuid.UUID) ([]models.Achievement, error) {
	var out []models.Achievement
	query := `
		SELECT user_id, achievement_key, unlocked_at
		FROM achievements
		WHERE user_id = $1
		ORDER BY unlocked_at DESC
	`
	if err := r.db.SelectContext(ctx, &out, query, userID); err != nil {
		return nil, fmt.Errorf("profile repository: list achievements %w", err)
	}
	return out, nil
}
