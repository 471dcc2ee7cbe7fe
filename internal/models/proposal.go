package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
)

// Proposal описывает PDF предложение компании.
// PageNamesRaw хранится как есть: старые записи содержат строки вместо объектов,
// поэтому разбор выполняется только через пакет pagenames.
type Proposal struct {
	ID            uuid.UUID      `db:"id" json:"id"`
	CompanyID     uuid.UUID      `db:"company_id" json:"company_id"`
	Title         string         `db:"title" json:"title"`
	FilePath      string         `db:"file_path" json:"file_path"`
	PageNamesRaw  types.JSONText `db:"page_names" json:"-"`
	PageCount     int            `db:"page_count" json:"page_count"`
	FileSizeBytes int64          `db:"file_size_bytes" json:"file_size_bytes"`
	FileChecksum  string         `db:"file_checksum" json:"-"`
	Status        ProposalStatus `db:"status" json:"status"`
	ShareToken    string         `db:"share_token" json:"share_token"`
	Version       int64          `db:"version" json:"version"`
	ReconciledAt  *time.Time     `db:"reconciled_at" json:"-"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// DocumentUpdate набор полей, которые сохраняются после каждой мутации файла.
type DocumentUpdate struct {
	PageNames     []PageNameEntry
	PageCount     int
	FileSizeBytes int64
	FileChecksum  string
}
