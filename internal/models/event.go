package models

import "github.com/google/uuid"

const (
	EventProposalPagesChanged = "proposal.pages_changed"
	EventProposalNamesChanged = "proposal.names_changed"
	EventTemplatePagesChanged = "template.pages_changed"
)

// DocumentEvent уведомление редакторам документа об изменении страниц.
type DocumentEvent struct {
	Type       string          `json:"type"`
	DocumentID uuid.UUID       `json:"document_id"`
	Operation  string          `json:"operation"`
	TotalPages int             `json:"total_pages"`
	PageNames  []PageNameEntry `json:"page_names,omitempty"`
}
