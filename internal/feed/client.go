package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ignatzorin/scout-reports/internal/dto"
	"github.com/ignatzorin/scout-reports/internal/goroutine"
	"github.com/ignatzorin/scout-reports/internal/logger"
	"github.com/ignatzorin/scout-reports/internal/models"
	"github.com/ignatzorin/scout-reports/internal/realtime"
)

// HTTPFetcher читает отчёты через GET /api/reports.
type HTTPFetcher struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// FetchReports реализует Fetcher.
func (f *HTTPFetcher) FetchReports(ctx context.Context) ([]models.Report, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(f.BaseURL, "/")+"/api/reports", nil)
	if err != nil {
		return nil, fmt.Errorf("feed: создание запроса: %w", err)
	}
	if f.Token != "" {
		req.Header.Set("Authorization", "Bearer "+f.Token)
	}

	client := f.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed: запрос отчётов: %w", err)
	}
	defer resp.Body.Close()

	var env dto.RawEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("feed: разбор ответа (код %d): %w", resp.StatusCode, err)
	}
	if !env.Success {
		return nil, fmt.Errorf("feed: код ответа %d: %s", resp.StatusCode, env.Error)
	}

	var reports []models.Report
	if err := json.Unmarshal(env.Data, &reports); err != nil {
		return nil, fmt.Errorf("feed: разбор отчётов: %w", err)
	}
	return reports, nil
}

// WSSubscriber подписывается на /api/realtime.
type WSSubscriber struct {
	BaseURL string
	Token   string
	Dialer  *websocket.Dialer
}

// Subscribe реализует Subscriber.
func (w *WSSubscriber) Subscribe(ctx context.Context, events []string) (Subscription, error) {
	u, err := realtimeURL(w.BaseURL, w.Token, events)
	if err != nil {
		return nil, err
	}

	dialer := w.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, u, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("feed: подключение к realtime (код %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("feed: подключение к realtime: %w", err)
	}

	sub := &wsSubscription{
		conn:   conn,
		events: make(chan realtime.ChangeEvent, 16),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	goroutine.SafeGo("feed-ws-reader", sub.read)
	return sub, nil
}

func realtimeURL(base, token string, events []string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/") + "/api/realtime")
	if err != nil {
		return "", fmt.Errorf("feed: некорректный адрес %q: %w", base, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("feed: неподдерживаемая схема %q", u.Scheme)
	}

	q := u.Query()
	if token != "" {
		q.Set("token", token)
	}
	if len(events) > 0 {
		q.Set("events", strings.Join(events, ","))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type wsSubscription struct {
	conn      *websocket.Conn
	events    chan realtime.ChangeEvent
	done      chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

func (s *wsSubscription) Events() <-chan realtime.ChangeEvent {
	return s.events
}

// read пересылает события в канал до ошибки чтения или закрытия подписки.
func (s *wsSubscription) read() {
	defer close(s.done)
	defer close(s.events)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		ev, err := realtime.DecodeEvent(data)
		if err != nil {
			logger.Get().WithError(err).Warn("feed: пропущено сообщение realtime")
			continue
		}
		select {
		case s.events <- ev:
		case <-s.closed:
			return
		}
	}
}

// Close закрывает соединение и ждёт завершения чтения.
func (s *wsSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadlineSoon())
		err = s.conn.Close()
		<-s.done
	})
	return err
}

func deadlineSoon() time.Time {
	return time.Now().Add(time.Second)
}
