package dto

import (
	"mime/multipart"

	"github.com/ignatzorin/proposaldesk/internal/models"
)

// DeletePageRequest represents POST /proposals/delete-page
type DeletePageRequest struct {
	ProposalID string `json:"proposal_id" binding:"required,uuid"`
	PageNumber *int   `json:"page_number" binding:"required"`
}

// InsertPageForm represents multipart POST /proposals/insert-page
type InsertPageForm struct {
	ProposalID string                `form:"proposal_id" binding:"required,uuid"`
	AfterPage  *int                  `form:"after_page" binding:"required"`
	File       *multipart.FileHeader `form:"file" binding:"required"`
}

// ReplacePageForm represents multipart POST /proposals/replace-page
type ReplacePageForm struct {
	ProposalID string                `form:"proposal_id" binding:"required,uuid"`
	PageNumber *int                  `form:"page_number" binding:"required"`
	File       *multipart.FileHeader `form:"file" binding:"required"`
}

// ReorderPagesRequest represents POST /proposals/reorder-pages
type ReorderPagesRequest struct {
	ProposalID string `json:"proposal_id" binding:"required,uuid"`
	PageOrder  []int  `json:"page_order" binding:"required"`
}

// CreateProposalForm represents multipart POST /proposals
type CreateProposalForm struct {
	Title string                `form:"title" binding:"required"`
	File  *multipart.FileHeader `form:"file" binding:"required"`
}

// UpdatePageNamesRequest represents PUT /proposals/:id/page-names
type UpdatePageNamesRequest struct {
	PageNames []models.PageNameEntry `json:"page_names" binding:"required"`
}

// SplitTemplateRequest represents POST /templates/split
type SplitTemplateRequest struct {
	TemplateName string `json:"template_name" binding:"required"`
	FilePath     string `json:"file_path" binding:"required"`
}

// MergePageRequest одна страница в запросе сборки
type MergePageRequest struct {
	FilePath string `json:"file_path" binding:"required"`
	Label    string `json:"label"`
	Indent   int    `json:"indent"`
}

// MergeTemplateRequest represents POST /templates/merge
type MergeTemplateRequest struct {
	Pages            []MergePageRequest `json:"pages" binding:"required,min=1,dive"`
	ProposalFilePath string             `json:"proposal_file_path" binding:"required"`
}

// TemplateAddPageForm represents multipart POST /templates/pages
type TemplateAddPageForm struct {
	TemplateID string                `form:"template_id" binding:"required,uuid"`
	PageNumber *int                  `form:"page_number" binding:"required"`
	File       *multipart.FileHeader `form:"file" binding:"required"`
	Label      string                `form:"label"`
	Indent     int                   `form:"indent"`
	Insert     bool                  `form:"insert"`
}

// TemplateDeletePageRequest represents DELETE /templates/pages
type TemplateDeletePageRequest struct {
	TemplateID string `json:"template_id" binding:"required,uuid"`
	PageNumber *int   `json:"page_number" binding:"required"`
}

// TemplateReorderRequest represents POST /templates/reorder-pages
type TemplateReorderRequest struct {
	TemplateID string `json:"template_id" binding:"required,uuid"`
	PageOrder  []int  `json:"page_order" binding:"required"`
}
