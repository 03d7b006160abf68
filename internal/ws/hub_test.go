package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ignatzorin/scout-reports/internal/metrics"
	"github.com/ignatzorin/scout-reports/internal/models"
	"github.com/ignatzorin/scout-reports/internal/realtime"
)

type viewer struct {
	id   uuid.UUID
	role models.Role
}

// startHub поднимает хаб и тестовый сервер. Подписчик выбирается параметром who.
func startHub(t *testing.T, viewers map[string]viewer) (*Hub, *httptest.Server, func()) {
	t.Helper()
	hub := NewHub(metrics.NewNoop())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v := viewers[r.URL.Query().Get("who")]
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(conn, hub, v.id, v.role, realtime.ParseEventTypes(r.URL.Query()["events"]))
		client.Run(context.Background())
	}))

	stop := func() {
		cancel()
		<-stopped
		srv.Close()
	}
	return hub, srv, stop
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn, wait time.Duration) (realtime.ChangeEvent, error) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(wait))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return realtime.ChangeEvent{}, err
	}
	var ev realtime.ChangeEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev, nil
}

func TestHub_FiltersByRoleAndEventType(t *testing.T) {
	defer goleak.VerifyNone(t)

	scoutID := uuid.New()
	hub, srv, stop := startHub(t, map[string]viewer{
		"scout":  {id: scoutID, role: models.RoleScout},
		"ranger": {id: uuid.New(), role: models.RoleRanger},
		"other":  {id: uuid.New(), role: models.RoleScout},
	})
	defer stop()

	scoutConn := dial(t, srv, "who=scout")
	rangerConn := dial(t, srv, "who=ranger&events=INSERT,UPDATE")
	otherConn := dial(t, srv, "who=other")
	require.Eventually(t, func() bool { return hub.ClientCount() == 3 }, time.Second, 10*time.Millisecond)

	invasive := realtime.ChangeEvent{Type: realtime.EventInsert, Table: "reports", Record: models.Report{
		ID:           uuid.New(),
		UserID:       scoutID,
		SpeciesName:  "Himalayan Blackberry",
		HazardRating: models.HazardHigh,
		IsInvasive:   true,
	}}
	resolved := invasive
	resolved.Type = realtime.EventUpdate
	resolved.Record.Status = models.ReportStatusResolved

	hub.Publish(invasive)
	hub.Publish(resolved)

	ev, err := readEvent(t, scoutConn, time.Second)
	require.NoError(t, err)
	assert.Equal(t, invasive.Record.ID, ev.Record.ID)
	assert.Equal(t, realtime.EventInsert, ev.Type)

	ev, err = readEvent(t, rangerConn, time.Second)
	require.NoError(t, err)
	assert.Equal(t, realtime.EventInsert, ev.Type)
	ev, err = readEvent(t, rangerConn, time.Second)
	require.NoError(t, err)
	assert.Equal(t, realtime.EventUpdate, ev.Type)

	_, err = readEvent(t, otherConn, 200*time.Millisecond)
	assert.Error(t, err, "чужой отчёт не должен доходить до другого разведчика")

	_, err = readEvent(t, scoutConn, 200*time.Millisecond)
	assert.Error(t, err, "UPDATE не запрошен разведчиком")

	for _, c := range []*websocket.Conn{scoutConn, rangerConn, otherConn} {
		_ = c.Close()
	}
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_StopClosesClients(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub, srv, stop := startHub(t, map[string]viewer{
		"ranger": {id: uuid.New(), role: models.RoleRanger},
	})

	conn := dial(t, srv, "who=ranger")
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	stop()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, hub.ClientCount())

	// после остановки Publish не блокируется
	done := make(chan struct{})
	go func() {
		hub.Publish(realtime.ChangeEvent{Type: realtime.EventInsert})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish заблокирован после остановки хаба")
	}
}
