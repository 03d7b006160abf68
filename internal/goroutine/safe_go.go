package goroutine

import (
	"context"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/scout-reports/internal/logger"
)

// SafeGo запускает фоновую задачу и логирует panic вместо падения процесса.
// name попадает в поле "task" лога.
func SafeGo(name string, fn func()) {
	go func() {
		defer recoverTask(name)
		fn()
	}()
}

// SafeGoWithContext то же, что SafeGo, но передаёт ctx в задачу.
func SafeGoWithContext(ctx context.Context, name string, fn func(context.Context)) {
	go func() {
		defer recoverTask(name)
		fn(ctx)
	}()
}

func recoverTask(name string) {
	if r := recover(); r != nil {
		logger.Get().WithFields(logrus.Fields{
			"task":  name,
			"panic": r,
			"stack": string(debug.Stack()),
		}).Error("goroutine: panic в фоновой задаче")
	}
}
