package dto

import (
	"github.com/google/uuid"

	"github.com/ignatzorin/proposaldesk/internal/models"
)

// DeletePageResponse represents the result of a page deletion
type DeletePageResponse struct {
	Success       bool  `json:"success"`
	DeletedPage   int   `json:"deleted_page"`
	TotalPages    int   `json:"total_pages"`
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// InsertPageResponse represents the result of a page insertion
type InsertPageResponse struct {
	Success       bool  `json:"success"`
	InsertedAfter int   `json:"inserted_after"`
	PagesInserted int   `json:"pages_inserted"`
	TotalPages    int   `json:"total_pages"`
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// ReplacePageResponse represents the result of a page replacement
type ReplacePageResponse struct {
	Success       bool  `json:"success"`
	PageNumber    int   `json:"page_number"`
	TotalPages    int   `json:"total_pages"`
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// ReorderPagesResponse represents the result of a reorder.
// PageNames and FileSizeBytes are present only when the order changed.
type ReorderPagesResponse struct {
	Success       bool                   `json:"success"`
	Reordered     bool                   `json:"reordered"`
	TotalPages    int                    `json:"total_pages"`
	PageNames     []models.PageNameEntry `json:"page_names,omitempty"`
	FileSizeBytes *int64                 `json:"file_size_bytes,omitempty"`
}

// PageNamesResponse represents updated page names
type PageNamesResponse struct {
	Success   bool                   `json:"success"`
	PageNames []models.PageNameEntry `json:"page_names"`
}

// FileURLResponse represents a signed link to the proposal file
type FileURLResponse struct {
	URL       string `json:"url"`
	ExpiresIn int64  `json:"expires_in"`
}

// ReconcileResponse represents the result of a reconciliation
type ReconcileResponse struct {
	Success    bool `json:"success"`
	Changed    bool `json:"changed"`
	TotalPages int  `json:"total_pages"`
}

// SplitTemplateResponse represents the created template
type SplitTemplateResponse struct {
	TemplateID   uuid.UUID `json:"template_id"`
	PageCount    int       `json:"page_count"`
	SkippedPages int       `json:"skipped_pages,omitempty"`
}

// MergeTemplateResponse represents the merged proposal file
type MergeTemplateResponse struct {
	FilePath      string                 `json:"file_path"`
	FileSizeBytes int64                  `json:"file_size_bytes"`
	PageCount     int                    `json:"page_count"`
	PageNames     []models.PageNameEntry `json:"page_names"`
}

// TemplateAddPageResponse represents the stored template page
type TemplateAddPageResponse struct {
	Success    bool `json:"success"`
	PageNumber int  `json:"page_number"`
	Replaced   bool `json:"replaced"`
	TotalPages int  `json:"total_pages"`
}

// TemplateDeletePageResponse represents the result of a template page deletion
type TemplateDeletePageResponse struct {
	Success    bool `json:"success"`
	TotalPages int  `json:"total_pages"`
}

// TemplateReorderResponse represents the result of a template reorder
type TemplateReorderResponse struct {
	Success    bool `json:"success"`
	Reordered  bool `json:"reordered"`
	TotalPages int  `json:"total_pages"`
}

// TemplateReconcileResponse represents the recounted template
type TemplateReconcileResponse struct {
	Success    bool `json:"success"`
	TotalPages int  `json:"total_pages"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error string `json:"error"`
}
