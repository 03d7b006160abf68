package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/scout-reports/internal/logger"
	"github.com/ignatzorin/scout-reports/internal/models"
	"github.com/ignatzorin/scout-reports/internal/pkg/apperror"
	"github.com/ignatzorin/scout-reports/internal/service"
)

// Context ключи для gin.Context.
const (
	ContextUserIDKey = "userID"
	ContextRoleKey   = "role"
)

// RoleLookup разрешает роль пользователя по идентификатору.
type RoleLookup interface {
	Resolve(ctx context.Context, userID uuid.UUID) (models.Role, error)
}

// AuthMiddleware проверяет JWT access токен и кладёт в контекст пользователя и его роль.
// Для websocket рукопожатия токен принимается из параметра ?token=.
func AuthMiddleware(tokens *service.TokenManager, roles RoleLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			abortWithError(c, apperror.New(apperror.ErrCodeUnauthorized, "требуется авторизация"))
			return
		}

		userID, err := tokens.ParseAccess(raw)
		if err != nil || userID == uuid.Nil {
			abortWithError(c, apperror.New(apperror.ErrCodeUnauthorized, "токен невалиден"))
			return
		}

		role, err := roles.Resolve(c.Request.Context(), userID)
		if err != nil {
			logger.Get().WithFields(logrus.Fields{
				"user_id": userID,
				"error":   err.Error(),
			}).Warn("auth: не удалось определить роль")
			abortWithError(c, apperror.Wrap(err, apperror.ErrCodeUnauthorized, "не удалось определить роль"))
			return
		}

		c.Set(ContextUserIDKey, userID)
		c.Set(ContextRoleKey, role)
		c.Next()
	}
}

// OptionalAuth кладёт пользователя в контекст, если передан валидный токен.
// Без токена запрос проходит анонимно, решение принимает обработчик.
func OptionalAuth(tokens *service.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := bearerToken(c); raw != "" {
			if userID, err := tokens.ParseAccess(raw); err == nil && userID != uuid.Nil {
				c.Set(ContextUserIDKey, userID)
			}
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		return c.Query("token")
	}
	return ""
}
