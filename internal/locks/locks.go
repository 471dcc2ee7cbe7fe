// Package locks блокировки документов на время операции над его страницами.
package locks

import (
	"context"
	"errors"
	"sync"
)

// ErrLocked документ уже обрабатывается другим запросом.
var ErrLocked = errors.New("locks: документ заблокирован другой операцией")

// Locker выдаёт неблокирующую блокировку по ключу.
// Повторный захват занятого ключа сразу возвращает ErrLocked.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// MemoryLocker блокировки внутри одного процесса.
type MemoryLocker struct {
	held sync.Map
}

var _ Locker = (*MemoryLocker)(nil)

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, loaded := l.held.LoadOrStore(key, struct{}{}); loaded {
		return nil, ErrLocked
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.held.Delete(key) })
	}, nil
}

// ProposalKey ключ блокировки предложения.
func ProposalKey(id string) string {
	return "proposal:" + id
}

// TemplateKey ключ блокировки шаблона.
func TemplateKey(id string) string {
	return "template:" + id
}
