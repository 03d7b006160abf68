package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/scout-reports/internal/http/handlers/common"
	"github.com/ignatzorin/scout-reports/internal/service"
)

// ProfileHandler страница профиля и статистика.
type ProfileHandler struct {
	profiles *service.ProfileService
}

// NewProfileHandler создаёт хэндлер.
func NewProfileHandler(profiles *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// Get обрабатывает GET /api/profile.
func (h *ProfileHandler) Get(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	view, err := h.profiles.Get(c.Request.Context(), userID)
	if err != nil {
		common.RespondErr(c, err)
		return
	}
	common.RespondData(c, http.StatusOK, view)
}

// Stats обрабатывает GET /api/profile/stats.
func (h *ProfileHandler) Stats(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	stats, err := h.profiles.Stats(c.Request.Context(), userID)
	if err != nil {
		common.RespondErr(c, err)
		return
	}
	common.RespondData(c, http.StatusOK, stats)
}
