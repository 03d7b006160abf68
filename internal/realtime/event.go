// Package realtime доставляет изменения таблицы reports подписчикам.
package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignatzorin/scout-reports/internal/models"
)

// Channel канал pg_notify, в который пишет триггер reports_notify.
const Channel = "report_changes"

// Типы событий.
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
)

// ChangeEvent изменение строки отчёта. Он же формат сообщения websocket.
type ChangeEvent struct {
	Type   string        `json:"type"`
	Table  string        `json:"table"`
	Record models.Report `json:"record"`
}

// Notice payload pg_notify: тип операции и идентификатор строки.
type Notice struct {
	Type  string    `json:"type"`
	Table string    `json:"table"`
	ID    uuid.UUID `json:"id"`
}

// DecodeNotice разбирает payload уведомления из канала report_changes.
func DecodeNotice(payload []byte) (Notice, error) {
	var n Notice
	if err := json.Unmarshal(payload, &n); err != nil {
		return Notice{}, fmt.Errorf("realtime: разбор уведомления: %w", err)
	}
	if n.Type == "" {
		return Notice{}, fmt.Errorf("realtime: уведомление без типа")
	}
	if n.ID == uuid.Nil {
		return Notice{}, fmt.Errorf("realtime: уведомление без id")
	}
	return n, nil
}

// DecodeEvent разбирает сообщение websocket.
func DecodeEvent(payload []byte) (ChangeEvent, error) {
	var ev ChangeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return ChangeEvent{}, fmt.Errorf("realtime: разбор события: %w", err)
	}
	if ev.Type == "" {
		return ChangeEvent{}, fmt.Errorf("realtime: событие без типа")
	}
	return ev, nil
}

// ParseEventTypes разбирает список типов событий вида "INSERT,UPDATE".
// Пустая строка означает только INSERT.
func ParseEventTypes(raw []string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, item := range raw {
		for _, part := range splitComma(item) {
			switch part {
			case EventInsert, EventUpdate:
				out[part] = struct{}{}
			case "*":
				out[EventInsert] = struct{}{}
				out[EventUpdate] = struct{}{}
			}
		}
	}
	if len(out) == 0 {
		out[EventInsert] = struct{}{}
	}
	return out
}
