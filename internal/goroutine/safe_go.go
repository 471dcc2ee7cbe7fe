package goroutine

import (
	"context"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// RecoveryHandler обрабатывает panic в горутинах
type RecoveryHandler struct {
	logger logrus.FieldLogger
}

// NewRecoveryHandler создает новый обработчик
func NewRecoveryHandler(logger logrus.FieldLogger) *RecoveryHandler {
	return &RecoveryHandler{logger: logger}
}

// SafeGoWithContext запускает горутину с контекстом и обработкой panic.
// name попадает в лог, чтобы было видно, какая фоновая задача упала.
func (rh *RecoveryHandler) SafeGoWithContext(ctx context.Context, name string, fn func(context.Context)) {
	go func() {
		defer rh.recover(name)
		fn(ctx)
	}()
}

func (rh *RecoveryHandler) recover(name string) {
	if r := recover(); r != nil {
		entry := rh.logger.WithField("panic", r).WithField("stack", string(debug.Stack()))
		if name != "" {
			entry = entry.WithField("task", name)
		}
		entry.Error("panic в горутине")
	}
}

// DefaultRecoveryHandler глобальный обработчик, пишет в стандартный логгер logrus.
var DefaultRecoveryHandler = NewRecoveryHandler(logrus.StandardLogger())

// SafeGoWithContext - упрощенная функция для запуска безопасной горутины с контекстом
func SafeGoWithContext(ctx context.Context, name string, fn func(context.Context)) {
	DefaultRecoveryHandler.SafeGoWithContext(ctx, name, fn)
}
