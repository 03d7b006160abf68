package upload

import (
	"fmt"
	"io"
	"sync"

	"github.com/ignatzorin/scout-reports/internal/logger"
)

// LogNotifier пишет уведомления в лог.
type LogNotifier struct{}

// Notify реализует Notifier.
func (LogNotifier) Notify(n Notification) {
	entry := logger.Get().WithField("level_ui", string(n.Level))
	if n.Level == LevelError {
		entry.Error(n.Message)
		return
	}
	entry.Info(n.Message)
}

// WriterNotifier печатает уведомления построчно, например в терминал.
type WriterNotifier struct {
	mu sync.Mutex
	W  io.Writer
}

// Notify реализует Notifier.
func (w *WriterNotifier) Notify(n Notification) {
	w.mu.Lock()
	defer w.mu.Unlock()
	prefix := "✔"
	if n.Level == LevelError {
		prefix = "✖"
	}
	fmt.Fprintf(w.W, "%s %s\n", prefix, n.Message)
}
