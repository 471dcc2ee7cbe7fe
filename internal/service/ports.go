package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/proposaldesk/internal/models"
)

type ProposalRepository interface {
	Create(ctx context.Context, p *models.Proposal) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error)
	UpdateDocument(ctx context.Context, id uuid.UUID, version int64, upd models.DocumentUpdate) (int64, error)
	UpdatePageNames(ctx context.Context, id uuid.UUID, version int64, entries []models.PageNameEntry) (int64, error)
	ListForReconcile(ctx context.Context, limit int) ([]uuid.UUID, error)
	MarkReconciled(ctx context.Context, id uuid.UUID) error
}

type TemplateRepository interface {
	CreateTemplate(ctx context.Context, t *models.ProposalTemplate) error
	GetTemplate(ctx context.Context, id uuid.UUID) (*models.ProposalTemplate, error)
	DeleteTemplate(ctx context.Context, id uuid.UUID) error
	SyncPageCount(ctx context.Context, templateID uuid.UUID) (int, error)
	ListPages(ctx context.Context, templateID uuid.UUID) ([]models.TemplatePage, error)
	InsertPages(ctx context.Context, pages []models.TemplatePage) error
	ApplyLayout(ctx context.Context, templateID uuid.UUID, change models.PageLayoutChange) (int, error)
}

// EventPublisher рассылает события об изменении документа.
type EventPublisher interface {
	PublishDocumentEvent(event models.DocumentEvent)
}

// NopPublisher используется, когда рассылка событий не нужна.
type NopPublisher struct{}

func (NopPublisher) PublishDocumentEvent(models.DocumentEvent) {}
