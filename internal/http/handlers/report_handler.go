package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/scout-reports/internal/http/handlers/common"
	"github.com/ignatzorin/scout-reports/internal/models"
	"github.com/ignatzorin/scout-reports/internal/pkg/apperror"
	"github.com/ignatzorin/scout-reports/internal/service"
)

// ReportHandler отдаёт отчёты с учётом роли и закрывает их.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler создаёт хэндлер.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// List обрабатывает GET /api/reports?status=pending.
func (h *ReportHandler) List(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	var status *models.ReportStatus
	if raw := c.Query("status"); raw != "" {
		s := models.ReportStatus(raw)
		if !s.Valid() {
			common.RespondErr(c, apperror.New(apperror.ErrCodeInvalidInput, "неизвестный статус"))
			return
		}
		status = &s
	}

	reports, err := h.reports.List(c.Request.Context(), userID, status)
	if err != nil {
		common.RespondErr(c, err)
		return
	}
	common.RespondData(c, http.StatusOK, reports)
}

// Map обрабатывает GET /api/reports/map.
func (h *ReportHandler) Map(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	markers, err := h.reports.Map(c.Request.Context(), userID)
	if err != nil {
		common.RespondErr(c, err)
		return
	}
	common.RespondData(c, http.StatusOK, markers)
}

// Resolve обрабатывает PATCH /api/reports/:id/resolve.
func (h *ReportHandler) Resolve(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}
	reportID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	report, err := h.reports.Resolve(c.Request.Context(), userID, reportID)
	if err != nil {
		common.RespondErr(c, err)
		return
	}
	common.RespondData(c, http.StatusOK, report)
}

// Dashboard обрабатывает GET /api/ranger/dashboard.
func (h *ReportHandler) Dashboard(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	dashboard, err := h.reports.Dashboard(c.Request.Context(), userID)
	if err != nil {
		common.RespondErr(c, err)
		return
	}
	common.RespondData(c, http.StatusOK, dashboard)
}
