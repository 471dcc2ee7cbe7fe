package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/proposaldesk/internal/models"
	"github.com/ignatzorin/proposaldesk/internal/repository/common"
)

var (
	ErrTemplateNotFound     = errors.New("template not found")
	ErrTemplatePageNotFound = errors.New("template page not found")
)

// TemplateRepository работает с proposal_templates и template_pages.
type TemplateRepository struct {
	db *sqlx.DB
}

func NewTemplateRepository(db *sqlx.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) CreateTemplate(ctx context.Context, t *models.ProposalTemplate) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO proposal_templates (company_id, name, page_count)
		VALUES ($1, $2, $3)
		RETURNING id, version, created_at, updated_at
	`, t.CompanyID, t.Name, t.PageCount).Scan(&t.ID, &t.Version, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("template repository: create: %w", err)
	}
	return nil
}

func (r *TemplateRepository) GetTemplate(ctx context.Context, id uuid.UUID) (*models.ProposalTemplate, error) {
	t, err := common.GetByID[models.ProposalTemplate](ctx, r.db, "proposal_templates", id, ErrTemplateNotFound)
	if err != nil {
		if errors.Is(err, ErrTemplateNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("template repository: %w", err)
	}
	return t, nil
}

// DeleteTemplate удаляет шаблон, страницы удаляются каскадно.
func (r *TemplateRepository) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM proposal_templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("template repository: delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

// SyncPageCount пересчитывает page_count по числу строк страниц.
func (r *TemplateRepository) SyncPageCount(ctx context.Context, templateID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowxContext(ctx, `
		UPDATE proposal_templates
		SET page_count = (SELECT COUNT(*) FROM template_pages WHERE template_id = $1),
			version = version + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING page_count
	`, templateID).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrTemplateNotFound
		}
		return 0, fmt.Errorf("template repository: sync page count: %w", err)
	}
	return count, nil
}

// ListPages страницы шаблона по возрастанию page_number.
func (r *TemplateRepository) ListPages(ctx context.Context, templateID uuid.UUID) ([]models.TemplatePage, error) {
	pages := make([]models.TemplatePage, 0)
	err := r.db.SelectContext(ctx, &pages, `
		SELECT * FROM template_pages WHERE template_id = $1 ORDER BY page_number
	`, templateID)
	if err != nil {
		return nil, fmt.Errorf("template repository: list pages: %w", err)
	}
	return pages, nil
}

// InsertPages вставляет страницы одной транзакцией.
func (r *TemplateRepository) InsertPages(ctx context.Context, pages []models.TemplatePage) error {
	if len(pages) == 0 {
		return nil
	}

	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		inserter := common.NewBatchInserter(tx,
			`INSERT INTO template_pages (template_id, page_number, file_path, label, indent)`, 5, 100)
		for _, p := range pages {
			if err := inserter.Add(ctx, p.TemplateID, p.PageNumber, p.FilePath, p.Label, p.Indent); err != nil {
				return fmt.Errorf("template repository: insert pages: %w", err)
			}
		}
		if err := inserter.Flush(ctx); err != nil {
			return fmt.Errorf("template repository: insert pages: %w", err)
		}
		return nil
	})
}

// ApplyLayout применяет изменение раскладки одной транзакцией и возвращает
// пересчитанный page_count. Уникальный индекс (template_id, page_number)
// проверяется после каждого шага, поэтому порядок шагов выбирает вызывающий код.
func (r *TemplateRepository) ApplyLayout(ctx context.Context, templateID uuid.UUID, change models.PageLayoutChange) (int, error) {
	var count int
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if change.DeletePageID != nil {
			res, err := tx.ExecContext(ctx, `
				DELETE FROM template_pages WHERE id = $1 AND template_id = $2
			`, *change.DeletePageID, templateID)
			if err != nil {
				return fmt.Errorf("template repository: delete page: %w", err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return ErrTemplatePageNotFound
			}
		}

		for _, step := range change.Renumber {
			res, err := tx.ExecContext(ctx, `
				UPDATE template_pages SET page_number = $3, file_path = $4, updated_at = NOW()
				WHERE id = $1 AND template_id = $2
			`, step.PageID, templateID, step.PageNumber, step.FilePath)
			if err != nil {
				if common.IsUniqueViolation(err) {
					return fmt.Errorf("template repository: renumber to %d: %w", step.PageNumber, common.ErrAlreadyExists)
				}
				return fmt.Errorf("template repository: renumber: %w", err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return ErrTemplatePageNotFound
			}
		}

		if p := change.Upsert; p != nil {
			err := tx.QueryRowxContext(ctx, `
				INSERT INTO template_pages (template_id, page_number, file_path, label, indent)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (template_id, page_number) DO UPDATE
				SET file_path = EXCLUDED.file_path, label = EXCLUDED.label,
					indent = EXCLUDED.indent, updated_at = NOW()
				RETURNING id, created_at, updated_at
			`, templateID, p.PageNumber, p.FilePath, p.Label, p.Indent).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
			if err != nil {
				return fmt.Errorf("template repository: upsert page: %w", err)
			}
			p.TemplateID = templateID
		}

		return tx.QueryRowxContext(ctx, `
			UPDATE proposal_templates
			SET page_count = (SELECT COUNT(*) FROM template_pages WHERE template_id = $1),
				version = version + 1, updated_at = NOW()
			WHERE id = $1
			RETURNING page_count
		`, templateID).Scan(&count)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrTemplateNotFound
		}
		return 0, err
	}
	return count, nil
}
