// Package storage адаптеры объектного хранилища: байтовые объекты по путям
// внутри именованных бакетов.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrObjectNotFound = errors.New("storage: объект не найден")
	ErrObjectExists   = errors.New("storage: объект уже существует")
	ErrObjectTooLarge = errors.New("storage: размер объекта превышает лимит")
	ErrInvalidPath    = errors.New("storage: недопустимый путь")
	ErrInvalidToken   = errors.New("storage: подпись ссылки невалидна")
)

// UploadOptions параметры загрузки объекта.
type UploadOptions struct {
	ContentType string
	// Upsert разрешает перезапись существующего объекта.
	Upsert bool
}

// ObjectStore контракт объектного хранилища. Операции не транзакционны:
// вызывающий код сам упорядочивает записи относительно базы метаданных.
type ObjectStore interface {
	Download(ctx context.Context, bucket, path string) ([]byte, error)
	Upload(ctx context.Context, bucket, path string, data []byte, opts UploadOptions) error
	Remove(ctx context.Context, bucket string, paths ...string) error
	Move(ctx context.Context, bucket, from, to string) error
	PublicURL(bucket, path string) string
	SignedURL(ctx context.Context, bucket, path string, ttl time.Duration) (string, error)
}

// ProposalPath путь файла предложения в бакете предложений.
func ProposalPath(companyID, proposalID uuid.UUID) string {
	return fmt.Sprintf("%s/%s.pdf", companyID, proposalID)
}

// TemplatePagePath детерминированный путь страницы шаблона.
func TemplatePagePath(templateID uuid.UUID, pageNumber int) string {
	return fmt.Sprintf("templates/%s/page-%d.pdf", templateID, pageNumber)
}

// TemplateStagingPath временный путь для страницы, которая ещё не заняла своё место.
func TemplateStagingPath(templateID uuid.UUID) string {
	return fmt.Sprintf("templates/%s/staging-%s.pdf", templateID, uuid.New())
}
