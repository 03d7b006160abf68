package realtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/scout-reports/internal/logger"
	"github.com/ignatzorin/scout-reports/internal/metrics"
	"github.com/ignatzorin/scout-reports/internal/models"
)

// loadTimeout предел чтения строки по уведомлению.
const loadTimeout = 5 * time.Second

// Publisher получает события из канала изменений.
type Publisher interface {
	Publish(ev ChangeEvent)
}

// ReportLoader читает строку отчёта по идентификатору из уведомления.
type ReportLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Report, error)
}

// notificationSource часть pq.Listener, нужная Listener.
type notificationSource interface {
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

// Listener слушает report_changes через LISTEN/NOTIFY и передаёт события хабу.
type Listener struct {
	source    notificationSource
	reports   ReportLoader
	publisher Publisher
	metrics   *metrics.Metrics
	pingEvery time.Duration
}

// NewListener открывает отдельное соединение pq.Listener и подписывается на канал.
func NewListener(databaseURL string, reports ReportLoader, publisher Publisher, m *metrics.Metrics) (*Listener, error) {
	pl := pq.NewListener(databaseURL, 2*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		entry := logger.Get().WithField("event", listenerEventName(ev))
		if err != nil {
			entry.WithError(err).Warn("realtime: событие соединения listener")
			return
		}
		entry.Info("realtime: событие соединения listener")
	})
	if err := pl.Listen(Channel); err != nil {
		_ = pl.Close()
		return nil, fmt.Errorf("realtime: LISTEN %s: %w", Channel, err)
	}
	return newListener(pl, reports, publisher, m), nil
}

func newListener(source notificationSource, reports ReportLoader, publisher Publisher, m *metrics.Metrics) *Listener {
	return &Listener{
		source:    source,
		reports:   reports,
		publisher: publisher,
		metrics:   m,
		pingEvery: 90 * time.Second,
	}
}

// Run читает уведомления до отмены контекста.
func (l *Listener) Run(ctx context.Context) {
	ticker := time.NewTicker(l.pingEvery)
	defer ticker.Stop()

	notifications := l.source.NotificationChannel()
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notifications:
			if !ok {
				return
			}
			// nil приходит после переподключения
			if n == nil {
				continue
			}
			l.handle(ctx, n)
		case <-ticker.C:
			if err := l.source.Ping(); err != nil {
				logger.Get().WithError(err).Warn("realtime: ping listener")
			}
		}
	}
}

// handle читает строку по идентификатору из уведомления и публикует полное событие.
// Строка, которую не удалось прочитать, пропускается.
func (l *Listener) handle(ctx context.Context, n *pq.Notification) {
	notice, err := DecodeNotice([]byte(n.Extra))
	if err != nil {
		logger.Get().WithFields(logrus.Fields{
			"channel": n.Channel,
			"error":   err.Error(),
		}).Warn("realtime: пропущено событие")
		return
	}

	loadCtx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()
	report, err := l.reports.GetByID(loadCtx, notice.ID)
	if err != nil {
		logger.Get().WithFields(logrus.Fields{
			"report_id": notice.ID,
			"type":      notice.Type,
			"error":     err.Error(),
		}).Warn("realtime: не удалось прочитать отчёт по уведомлению")
		return
	}

	l.metrics.RecordRealtimeEvent(notice.Type)
	l.publisher.Publish(ChangeEvent{Type: notice.Type, Table: notice.Table, Record: *report})
}

// Close освобождает соединение.
func (l *Listener) Close() error {
	return l.source.Close()
}

func listenerEventName(ev pq.ListenerEventType) string {
	switch ev {
	case pq.ListenerEventConnected:
		return "connected"
	case pq.ListenerEventDisconnected:
		return "disconnected"
	case pq.ListenerEventReconnected:
		return "reconnected"
	case pq.ListenerEventConnectionAttemptFailed:
		return "connection_attempt_failed"
	default:
		return "unknown"
	}
}

func splitComma(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
