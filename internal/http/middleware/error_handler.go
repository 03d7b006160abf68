package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/scout-reports/internal/dto"
	"github.com/ignatzorin/scout-reports/internal/logger"
	"github.com/ignatzorin/scout-reports/internal/pkg/apperror"
)

// internalMessage текст для ошибок без кода приложения.
const internalMessage = "внутренняя ошибка сервера"

// ErrorHandler обрабатывает ошибки, добавленные через c.Error.
// Логирует каждую; если обработчик ещё не ответил, пишет конверт с ошибкой.
// Ошибки без AppError маскируются.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		status := apperror.StatusOf(err)

		entry := logger.Get().WithFields(logrus.Fields{
			"error":  err.Error(),
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
			"status": status,
		})
		if userID, ok := c.Get(ContextUserIDKey); ok {
			entry = entry.WithField("user_id", userID)
		}
		if status >= http.StatusInternalServerError {
			entry.Error("request error")
		} else {
			entry.Debug("request rejected")
		}

		if c.Writer.Written() {
			return
		}
		c.JSON(status, dto.Envelope{Error: PublicMessage(err)})
	}
}

// PublicMessage сообщение для клиента: текст AppError либо общая фраза.
func PublicMessage(err error) string {
	if appErr, ok := apperror.As(err); ok {
		return appErr.Message
	}
	return internalMessage
}

// abortWithError прерывает цепочку с ошибкой приложения.
func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(apperror.StatusOf(err), dto.Envelope{Error: PublicMessage(err)})
}
