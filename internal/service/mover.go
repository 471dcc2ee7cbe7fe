package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/proposaldesk/internal/storage"
)

type blobMove struct {
	from, to string
}

// blobMover выполняет перемещения объектов и умеет откатить выполненные
// в обратном порядке. Хранилище не транзакционно, поэтому откат best-effort.
type blobMover struct {
	store  storage.ObjectStore
	bucket string
	log    logrus.FieldLogger
	done   []blobMove
}

func newBlobMover(store storage.ObjectStore, bucket string, log logrus.FieldLogger) *blobMover {
	return &blobMover{store: store, bucket: bucket, log: log}
}

func (m *blobMover) Move(ctx context.Context, from, to string) error {
	if from == to {
		return nil
	}
	if err := m.store.Move(ctx, m.bucket, from, to); err != nil {
		return err
	}
	m.done = append(m.done, blobMove{from: from, to: to})
	return nil
}

// Rollback возвращает объекты на исходные пути. Контекст запроса может быть
// уже отменён, поэтому используется отдельный.
func (m *blobMover) Rollback() {
	ctx := context.Background()
	for i := len(m.done) - 1; i >= 0; i-- {
		mv := m.done[i]
		if err := m.store.Move(ctx, m.bucket, mv.to, mv.from); err != nil {
			m.log.WithError(err).WithFields(logrus.Fields{
				"from": mv.to,
				"to":   mv.from,
			}).Error("не удалось откатить перемещение страницы")
		}
	}
	m.done = nil
}
