package models

import (
	"time"

	"github.com/google/uuid"
)

// ProposalTemplate шаблон, собранный из отдельных одностраничных PDF.
type ProposalTemplate struct {
	ID        uuid.UUID `db:"id" json:"id"`
	CompanyID uuid.UUID `db:"company_id" json:"company_id"`
	Name      string    `db:"name" json:"name"`
	PageCount int       `db:"page_count" json:"page_count"`
	Version   int64     `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TemplatePage одна страница шаблона. PageNumber уникален внутри шаблона
// и образует плотную последовательность 1..N.
type TemplatePage struct {
	ID         uuid.UUID `db:"id" json:"id"`
	TemplateID uuid.UUID `db:"template_id" json:"template_id"`
	PageNumber int       `db:"page_number" json:"page_number"`
	FilePath   string    `db:"file_path" json:"file_path"`
	Label      string    `db:"label" json:"label"`
	Indent     int       `db:"indent" json:"indent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// PageRenumber один шаг перенумерации страницы шаблона.
// Шаги применяются строго по порядку внутри одной транзакции.
type PageRenumber struct {
	PageID     uuid.UUID
	PageNumber int
	FilePath   string
}

// PageLayoutChange изменение раскладки страниц шаблона, применяемое одной
// транзакцией в порядке: удаление, перенумерация, upsert.
type PageLayoutChange struct {
	DeletePageID *uuid.UUID
	Renumber     []PageRenumber
	Upsert       *TemplatePage
}
