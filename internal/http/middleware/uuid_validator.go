package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/scout-reports/internal/pkg/apperror"
)

// UUIDValidator проверяет, что параметр с указанным именем является валидным UUID.
// Использование: router.PATCH("/reports/:id/resolve", UUIDValidator("id"), handler.Resolve)
func UUIDValidator(paramName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		idStr := c.Param(paramName)
		if idStr == "" {
			abortWithError(c, apperror.New(apperror.ErrCodeInvalidInput, "параметр "+paramName+" обязателен"))
			return
		}

		if _, err := uuid.Parse(idStr); err != nil {
			abortWithError(c, apperror.New(apperror.ErrCodeInvalidInput, "параметр "+paramName+" должен быть валидным UUID"))
			return
		}

		c.Next()
	}
}
