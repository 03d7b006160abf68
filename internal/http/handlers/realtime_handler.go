package handlers

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/scout-reports/internal/http/handlers/common"
	"github.com/ignatzorin/scout-reports/internal/logger"
	"github.com/ignatzorin/scout-reports/internal/realtime"
	"github.com/ignatzorin/scout-reports/internal/ws"
)

// RealtimeHandler отвечает за установку WebSocket соединений канала report_changes.
type RealtimeHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

// NewRealtimeHandler создаёт хэндлер. Пустой allowedOrigins разрешает любой origin.
func NewRealtimeHandler(hub *ws.Hub, allowedOrigins []string) *RealtimeHandler {
	return &RealtimeHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// Handle обслуживает GET /api/realtime?token=...&events=INSERT.
// Пользователь и роль уже положены в контекст AuthMiddleware.
func (h *RealtimeHandler) Handle(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}
	role, err := common.CurrentUserRole(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Get().WithFields(logrus.Fields{
			"user_id": userID,
			"error":   err.Error(),
		}).Warn("realtime: не удалось установить websocket")
		return
	}

	events := realtime.ParseEventTypes(c.QueryArray("events"))
	client := ws.NewClient(conn, h.hub, userID, role, events)
	client.Run(c.Request.Context())
}
