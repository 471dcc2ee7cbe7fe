package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/proposaldesk/internal/models"
	"github.com/ignatzorin/proposaldesk/internal/pagenames"
	"github.com/ignatzorin/proposaldesk/internal/repository/common"
)

var (
	ErrProposalNotFound = errors.New("proposal not found")
	// ErrVersionConflict строку изменили после того, как её прочитали.
	ErrVersionConflict = errors.New("proposal version conflict")
)

// ProposalRepository работает с таблицей proposals.
type ProposalRepository struct {
	db *sqlx.DB
}

func NewProposalRepository(db *sqlx.DB) *ProposalRepository {
	return &ProposalRepository{db: db}
}

// Create сохраняет новое предложение, page_names всегда сериализуется как массив.
func (r *ProposalRepository) Create(ctx context.Context, p *models.Proposal) error {
	names := p.PageNamesRaw
	if len(names) == 0 {
		names = []byte("[]")
	}

	query := `
		INSERT INTO proposals (id, company_id, title, file_path, page_names, page_count,
			file_size_bytes, file_checksum, status, share_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING version, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		p.ID, p.CompanyID, p.Title, p.FilePath, string(names), p.PageCount,
		p.FileSizeBytes, p.FileChecksum, p.Status, p.ShareToken,
	).Scan(&p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("proposal repository: create: %w", common.ErrAlreadyExists)
		}
		return fmt.Errorf("proposal repository: create: %w", err)
	}

	p.PageNamesRaw = names
	return nil
}

func (r *ProposalRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	p, err := common.GetByID[models.Proposal](ctx, r.db, "proposals", id, ErrProposalNotFound)
	if err != nil {
		if errors.Is(err, ErrProposalNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("proposal repository: %w", err)
	}
	return p, nil
}

// UpdateDocument записывает метаданные файла, если version не изменилась.
// Возвращает новую версию строки.
func (r *ProposalRepository) UpdateDocument(ctx context.Context, id uuid.UUID, version int64, upd models.DocumentUpdate) (int64, error) {
	names, err := pagenames.Encode(upd.PageNames)
	if err != nil {
		return 0, fmt.Errorf("proposal repository: %w", err)
	}

	query := `
		UPDATE proposals
		SET page_names = $3, page_count = $4, file_size_bytes = $5, file_checksum = $6,
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version
	`
	var next int64
	err = r.db.QueryRowxContext(ctx, query, id, version, string(names), upd.PageCount, upd.FileSizeBytes, upd.FileChecksum).Scan(&next)
	if err != nil {
		return 0, r.versionError(ctx, id, err)
	}
	return next, nil
}

// UpdatePageNames меняет только подписи страниц.
func (r *ProposalRepository) UpdatePageNames(ctx context.Context, id uuid.UUID, version int64, entries []models.PageNameEntry) (int64, error) {
	names, err := pagenames.Encode(entries)
	if err != nil {
		return 0, fmt.Errorf("proposal repository: %w", err)
	}

	query := `
		UPDATE proposals SET page_names = $3, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version
	`
	var next int64
	if err := r.db.QueryRowxContext(ctx, query, id, version, string(names)).Scan(&next); err != nil {
		return 0, r.versionError(ctx, id, err)
	}
	return next, nil
}

// ListForReconcile id предложений, которые дольше всего не сверялись с хранилищем.
func (r *ProposalRepository) ListForReconcile(ctx context.Context, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := `
		SELECT id FROM proposals
		ORDER BY reconciled_at NULLS FIRST, updated_at
		LIMIT $1
	`
	if err := r.db.SelectContext(ctx, &ids, query, limit); err != nil {
		return nil, fmt.Errorf("proposal repository: list for reconcile: %w", err)
	}
	return ids, nil
}

func (r *ProposalRepository) MarkReconciled(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `UPDATE proposals SET reconciled_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("proposal repository: mark reconciled: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProposalNotFound
	}
	return nil
}

// versionError отличает отсутствующую строку от конфликта версий.
func (r *ProposalRepository) versionError(ctx context.Context, id uuid.UUID, err error) error {
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("proposal repository: update: %w", err)
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM proposals WHERE id = $1)`, id); err != nil {
		return fmt.Errorf("proposal repository: check exists: %w", err)
	}
	if !exists {
		return ErrProposalNotFound
	}
	return ErrVersionConflict
}
