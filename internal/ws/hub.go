package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/scout-reports/internal/logger"
	"github.com/ignatzorin/scout-reports/internal/metrics"
	"github.com/ignatzorin/scout-reports/internal/realtime"
	"github.com/ignatzorin/scout-reports/internal/visibility"
)

// Hub рассылает изменения отчётов подписчикам websocket.
// Каждому подписчику уходят только события, видимые его роли.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan realtime.ChangeEvent
	done       chan struct{}
	metrics    *metrics.Metrics
}

// NewHub создаёт новый хаб.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan realtime.ChangeEvent, 32),
		done:       make(chan struct{}),
		metrics:    m,
	}
}

// Run главный цикл хаба. При отмене контекста закрывает каналы всех клиентов.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case ev := <-h.broadcast:
			h.send(ev)
		}
	}
}

// Register добавляет клиента. false, если хаб уже остановлен.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister удаляет клиента.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish реализует realtime.Publisher.
func (h *Hub) Publish(ev realtime.ChangeEvent) {
	select {
	case h.broadcast <- ev:
	case <-h.done:
	}
}

// ClientCount количество подключённых клиентов.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = struct{}{}
	h.metrics.SubscriberConnected()
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(client)
}

func (h *Hub) dropLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	h.metrics.SubscriberDisconnected()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		h.dropLocked(client)
	}
}

func (h *Hub) send(ev realtime.ChangeEvent) {
	raw, err := json.Marshal(ev)
	if err != nil {
		logger.Get().WithError(err).Error("ws: не удалось сериализовать событие")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if !client.wants(ev) {
			continue
		}
		select {
		case client.send <- raw:
		default:
			// медленный клиент отключается
			logger.Get().WithFields(logrus.Fields{
				"user_id": client.userID,
			}).Warn("ws: очередь клиента переполнена, отключаем")
			h.dropLocked(client)
		}
	}
}

// wants проверяет тип события и видимость отчёта для роли клиента.
func (c *Client) wants(ev realtime.ChangeEvent) bool {
	if _, ok := c.events[ev.Type]; !ok {
		return false
	}
	return visibility.Visible(c.role, c.userID, &ev.Record)
}

