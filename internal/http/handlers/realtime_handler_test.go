package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ignatzorin/scout-reports/internal/http/middleware"
	"github.com/ignatzorin/scout-reports/internal/metrics"
	"github.com/ignatzorin/scout-reports/internal/models"
	"github.com/ignatzorin/scout-reports/internal/realtime"
	"github.com/ignatzorin/scout-reports/internal/ws"
)

func TestRealtimeHandler(t *testing.T) {
	defer goleak.VerifyNone(t)

	ranger := uuid.New()
	tokens := newTestTokens()
	roles := staticRoles{ranger: models.RoleRanger}

	hub := ws.NewHub(metrics.NewNoop())
	ctx, cancel := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()

	r := gin.New()
	r.GET("/api/realtime", middleware.AuthMiddleware(tokens, roles), NewRealtimeHandler(hub, nil).Handle)
	srv := httptest.NewServer(r)
	defer func() {
		cancel()
		<-hubDone
		srv.Close()
	}()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/realtime"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+accessToken(t, tokens, ranger)+"&events=INSERT", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish(realtime.ChangeEvent{Type: realtime.EventInsert, Table: "reports", Record: models.Report{
		ID: uuid.New(), SpeciesName: "Low hazard", IsInvasive: true, HazardRating: models.HazardLow,
	}})
	visible := models.Report{ID: uuid.New(), SpeciesName: "Pampas Grass", IsInvasive: true, HazardRating: models.HazardCritical}
	hub.Publish(realtime.ChangeEvent{Type: realtime.EventInsert, Table: "reports", Record: visible})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev realtime.ChangeEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, visible.ID, ev.Record.ID)
}
