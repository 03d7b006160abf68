package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/scout-reports/internal/dto"
	"github.com/ignatzorin/scout-reports/internal/http/handlers/common"
	"github.com/ignatzorin/scout-reports/internal/service"
)

// AnalyzeHandler принимает фотографию с координатами и возвращает классификацию.
type AnalyzeHandler struct {
	ingestion *service.IngestionService
}

// NewAnalyzeHandler создаёт хэндлер.
func NewAnalyzeHandler(ingestion *service.IngestionService) *AnalyzeHandler {
	return &AnalyzeHandler{ingestion: ingestion}
}

// Analyze обрабатывает POST /api/analyze.
func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	var req dto.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, service.InvalidRequestMessage)
		return
	}

	result, err := h.ingestion.Submit(c.Request.Context(), service.SubmitInput{
		ImageURL: req.ImageURL,
		Lat:      req.Lat,
		Long:     req.Long,
	}, common.OptionalUserID(c))
	if err != nil {
		common.RespondErr(c, err)
		return
	}

	common.RespondData(c, http.StatusOK, result)
}
