package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/ignatzorin/scout-reports/internal/models"
)

// RoleSource читает роль из хранилища профилей.
type RoleSource interface {
	GetRole(ctx context.Context, userID uuid.UUID) (models.Role, error)
}

// RoleResolver кеширует роль пользователя на время сессии.
// Запись сбрасывается при выходе или истекает через ttl.
type RoleResolver struct {
	source RoleSource
	cache  *cache.Cache
}

// NewRoleResolver создаёт резолвер с заданным временем жизни записи.
func NewRoleResolver(source RoleSource, ttl time.Duration) *RoleResolver {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	// Без janitor: просроченные записи отбрасываются при Get.
	return &RoleResolver{
		source: source,
		cache:  cache.New(ttl, 0),
	}
}

// Resolve возвращает роль пользователя.
func (r *RoleResolver) Resolve(ctx context.Context, userID uuid.UUID) (models.Role, error) {
	if userID == uuid.Nil {
		return "", fmt.Errorf("role resolver: пустой идентификатор пользователя")
	}

	key := userID.String()
	if v, ok := r.cache.Get(key); ok {
		if role, ok := v.(models.Role); ok {
			return role, nil
		}
	}

	role, err := r.source.GetRole(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("role resolver: %w", err)
	}
	if !role.Valid() {
		return "", fmt.Errorf("role resolver: неизвестная роль %q", role)
	}

	r.cache.Set(key, role, cache.DefaultExpiration)
	return role, nil
}

// Invalidate сбрасывает закешированную роль.
func (r *RoleResolver) Invalidate(userID uuid.UUID) {
	r.cache.Delete(userID.String())
}
