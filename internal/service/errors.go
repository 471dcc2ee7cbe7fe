package service

import (
	"context"
	"errors"

	"github.com/ignatzorin/proposaldesk/internal/locks"
	"github.com/ignatzorin/proposaldesk/internal/pdf"
	"github.com/ignatzorin/proposaldesk/internal/pkg/apperror"
	"github.com/ignatzorin/proposaldesk/internal/repository"
	"github.com/ignatzorin/proposaldesk/internal/storage"
)

// Перевод ошибок нижних слоёв в apperror. Уже переведённые ошибки
// возвращаются как есть.

func lockError(err error) error {
	if errors.Is(err, locks.ErrLocked) {
		return apperror.Conflict(err, "документ редактируется другим запросом, повторите позже")
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось заблокировать документ")
}

func proposalRepoError(err error) error {
	var appErr *apperror.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, repository.ErrProposalNotFound):
		return apperror.ErrProposalNotFound
	case errors.Is(err, repository.ErrVersionConflict):
		return apperror.Conflict(err, "предложение было изменено другим запросом, обновите данные")
	default:
		return apperror.Database(err, "ошибка базы данных")
	}
}

func templateRepoError(err error) error {
	var appErr *apperror.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, repository.ErrTemplateNotFound):
		return apperror.ErrTemplateNotFound
	case errors.Is(err, repository.ErrTemplatePageNotFound):
		return apperror.ErrTemplatePageNotFound
	default:
		return apperror.Database(err, "ошибка базы данных")
	}
}

func downloadError(err error) error {
	if errors.Is(err, storage.ErrObjectNotFound) {
		return apperror.ErrFileNotFound
	}
	return apperror.Storage(err, "не удалось скачать файл из хранилища")
}

func uploadError(err error) error {
	if errors.Is(err, storage.ErrObjectTooLarge) {
		return apperror.ErrFileTooLarge
	}
	return apperror.Storage(err, "не удалось загрузить файл в хранилище")
}

func codecError(err error) error {
	switch {
	case errors.Is(err, pdf.ErrCorruptDocument):
		return apperror.Corrupt(err, "файл не является корректным PDF")
	case errors.Is(err, pdf.ErrIndexOutOfRange), errors.Is(err, pdf.ErrInvalidPage):
		return apperror.Validation("%s", err.Error())
	default:
		return apperror.Corrupt(err, "не удалось обработать PDF")
	}
}
