package common

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/scout-reports/internal/dto"
	"github.com/ignatzorin/scout-reports/internal/http/middleware"
	"github.com/ignatzorin/scout-reports/internal/models"
	"github.com/ignatzorin/scout-reports/internal/pkg/apperror"
)

var (
	// ErrUserNotFound is returned when user is not found in context
	ErrUserNotFound = errors.New("пользователь не найден в контексте")

	// ErrInvalidUUID is returned when UUID parsing fails
	ErrInvalidUUID = errors.New("неверный формат UUID")
)

// CurrentUserID extracts user ID from Gin context
func CurrentUserID(c *gin.Context) (uuid.UUID, error) {
	raw, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return uuid.Nil, ErrUserNotFound
	}

	userID, ok := raw.(uuid.UUID)
	if !ok {
		return uuid.Nil, ErrUserNotFound
	}

	return userID, nil
}

// OptionalUserID returns uuid.Nil for anonymous requests
func OptionalUserID(c *gin.Context) uuid.UUID {
	userID, _ := CurrentUserID(c)
	return userID
}

// CurrentUserRole extracts the resolved role from Gin context
func CurrentUserRole(c *gin.Context) (models.Role, error) {
	raw, exists := c.Get(middleware.ContextRoleKey)
	if !exists {
		return "", ErrUserNotFound
	}

	role, ok := raw.(models.Role)
	if !ok {
		return "", ErrUserNotFound
	}

	return role, nil
}

// ParseUUIDParam parses UUID from URL parameter
func ParseUUIDParam(c *gin.Context, paramName string) (uuid.UUID, error) {
	param := c.Param(paramName)
	if param == "" {
		return uuid.Nil, fmt.Errorf("параметр %s отсутствует", paramName)
	}

	parsed, err := uuid.Parse(param)
	if err != nil {
		return uuid.Nil, ErrInvalidUUID
	}

	return parsed, nil
}

// RespondData sends {success: true, data: ...}
func RespondData(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, dto.Envelope{Success: true, Data: data})
}

// RespondError sends {success: false, error: message}
func RespondError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, dto.Envelope{Error: message})
}

// RespondErr maps an error to its status and public message.
// The error is attached to the context so ErrorHandler logs it.
func RespondErr(c *gin.Context, err error) {
	_ = c.Error(err)
	RespondError(c, apperror.StatusOf(err), middleware.PublicMessage(err))
}

// RespondUnauthorized sends a 401 Unauthorized response
func RespondUnauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "требуется авторизация"
	}
	RespondError(c, http.StatusUnauthorized, message)
}

// RespondBadRequest sends a 400 Bad Request response
func RespondBadRequest(c *gin.Context, message string) {
	if message == "" {
		message = "некорректный запрос"
	}
	RespondError(c, http.StatusBadRequest, message)
}
