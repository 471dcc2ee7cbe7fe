package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/proposaldesk/internal/locks"
	"github.com/ignatzorin/proposaldesk/internal/models"
	"github.com/ignatzorin/proposaldesk/internal/pagenames"
	"github.com/ignatzorin/proposaldesk/internal/pdf"
	"github.com/ignatzorin/proposaldesk/internal/pkg/apperror"
	"github.com/ignatzorin/proposaldesk/internal/storage"
)

// ReconcileService сверяет метаданные с файлами в хранилище. Запись файла
// идёт раньше записи строки, поэтому после сбоя устаревшей может оказаться
// только строка, и её можно восстановить по файлу.
type ReconcileService struct {
	proposals ProposalRepository
	templates TemplateRepository
	store     storage.ObjectStore
	bucket    string
	locker    locks.Locker
	log       logrus.FieldLogger
}

func NewReconcileService(proposals ProposalRepository, templates TemplateRepository, store storage.ObjectStore, bucket string, locker locks.Locker, log logrus.FieldLogger) *ReconcileService {
	return &ReconcileService{
		proposals: proposals,
		templates: templates,
		store:     store,
		bucket:    bucket,
		locker:    locker,
		log:       log,
	}
}

type ReconcileResult struct {
	Changed    bool
	TotalPages int
}

// ReconcileProposal пересчитывает page_count, размер и контрольную сумму по
// файлу и выравнивает page_names по фактическому числу страниц.
func (s *ReconcileService) ReconcileProposal(ctx context.Context, id uuid.UUID) (*ReconcileResult, error) {
	release, err := s.locker.Acquire(ctx, locks.ProposalKey(id.String()))
	if err != nil {
		return nil, lockError(err)
	}
	defer release()

	p, err := s.proposals.GetByID(ctx, id)
	if err != nil {
		return nil, proposalRepoError(err)
	}
	data, err := s.store.Download(ctx, s.bucket, p.FilePath)
	if err != nil {
		return nil, downloadError(err)
	}
	doc, err := pdf.Load(data)
	if err != nil {
		return nil, codecError(err)
	}

	total := doc.PageCount()
	sum := checksum(data)
	names, parseErr := pagenames.Parse(p.PageNamesRaw)
	if parseErr != nil {
		names = []models.PageNameEntry{}
	}

	changed := parseErr != nil ||
		sum != p.FileChecksum ||
		total != p.PageCount ||
		int64(len(data)) != p.FileSizeBytes ||
		len(names) != total

	if changed {
		_, err := s.proposals.UpdateDocument(ctx, id, p.Version, models.DocumentUpdate{
			PageNames:     pagenames.Normalize(names, total),
			PageCount:     total,
			FileSizeBytes: int64(len(data)),
			FileChecksum:  sum,
		})
		if err != nil {
			return nil, proposalRepoError(err)
		}
		s.log.WithFields(logrus.Fields{
			"proposal_id": id,
			"pages":       total,
			"was_pages":   p.PageCount,
		}).Warn("метаданные предложения восстановлены по файлу")
	}

	if err := s.proposals.MarkReconciled(ctx, id); err != nil {
		return nil, proposalRepoError(err)
	}
	return &ReconcileResult{Changed: changed, TotalPages: total}, nil
}

// ReconcileTemplate пересчитывает page_count шаблона по числу строк страниц.
func (s *ReconcileService) ReconcileTemplate(ctx context.Context, id uuid.UUID) (int, error) {
	release, err := s.locker.Acquire(ctx, locks.TemplateKey(id.String()))
	if err != nil {
		return 0, lockError(err)
	}
	defer release()

	count, err := s.templates.SyncPageCount(ctx, id)
	if err != nil {
		return 0, templateRepoError(err)
	}
	return count, nil
}

// RunOnce сверяет limit предложений, которые дольше всех не проверялись.
// Ошибки отдельных предложений логируются и не прерывают проход.
func (s *ReconcileService) RunOnce(ctx context.Context, limit int) (checked, changed int, err error) {
	ids, err := s.proposals.ListForReconcile(ctx, limit)
	if err != nil {
		return 0, 0, proposalRepoError(err)
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return checked, changed, ctx.Err()
		}
		res, err := s.ReconcileProposal(ctx, id)
		if err != nil {
			entry := s.log.WithError(err).WithField("proposal_id", id)
			switch {
			case apperror.IsConflict(err):
				entry.Debug("предложение занято, сверка отложена")
			case apperror.IsNotFound(err):
				entry.Debug("предложение удалено до сверки")
			default:
				entry.Error("сверка предложения не удалась")
			}
			continue
		}
		checked++
		if res.Changed {
			changed++
		}
	}
	return checked, changed, nil
}

// Run запускает RunOnce каждые interval до отмены ctx.
func (s *ReconcileService) Run(ctx context.Context, interval time.Duration, batch int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			checked, changed, err := s.RunOnce(ctx, batch)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.log.WithError(err).Error("проход сверки прерван")
				continue
			}
			if changed > 0 {
				s.log.WithFields(logrus.Fields{"checked": checked, "changed": changed}).Info("сверка завершена")
			}
		}
	}
}
