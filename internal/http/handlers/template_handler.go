package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/proposaldesk/internal/dto"
	"github.com/ignatzorin/proposaldesk/internal/http/handlers/common"
	"github.com/ignatzorin/proposaldesk/internal/models"
	"github.com/ignatzorin/proposaldesk/internal/service"
	"github.com/ignatzorin/proposaldesk/internal/validation"
)

// TemplateOperations операции над постраничными шаблонами.
type TemplateOperations interface {
	Split(ctx context.Context, in service.SplitInput) (*service.SplitResult, error)
	Merge(ctx context.Context, in service.MergeInput) (*service.MergeResult, error)
	AddPage(ctx context.Context, in service.AddPageInput) (*service.AddPageResult, error)
	DeletePage(ctx context.Context, templateID uuid.UUID, pageNumber int) (int, error)
	Reorder(ctx context.Context, templateID uuid.UUID, order []int) (*service.TemplateReorderResult, error)
	GetTemplate(ctx context.Context, templateID uuid.UUID) (*service.TemplateView, error)
}

// TemplateReconciler пересчёт page_count шаблона по строкам страниц.
type TemplateReconciler interface {
	ReconcileTemplate(ctx context.Context, id uuid.UUID) (int, error)
}

// TemplateHandler обслуживает маршруты /templates.
type TemplateHandler struct {
	templates TemplateOperations
	reconcile TemplateReconciler
	maxUpload int64
}

// NewTemplateHandler создаёт новый хэндлер.
func NewTemplateHandler(templates TemplateOperations, reconcile TemplateReconciler, maxUploadBytes int64) *TemplateHandler {
	return &TemplateHandler{templates: templates, reconcile: reconcile, maxUpload: maxUploadBytes}
}

// Split обрабатывает POST /templates/split.
func (h *TemplateHandler) Split(c *gin.Context) {
	companyID, err := common.CurrentCompanyID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	var req dto.SplitTemplateRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	if err := validation.ValidateTemplateName(req.TemplateName); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	if err := validation.ValidateStoragePath("file_path", req.FilePath); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	res, err := h.templates.Split(c.Request.Context(), service.SplitInput{
		CompanyID:    companyID,
		TemplateName: req.TemplateName,
		FilePath:     req.FilePath,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	common.RespondJSON(c, http.StatusCreated, dto.SplitTemplateResponse{
		TemplateID:   res.TemplateID,
		PageCount:    res.PageCount,
		SkippedPages: res.Skipped,
	})
}

// Merge обрабатывает POST /templates/merge.
func (h *TemplateHandler) Merge(c *gin.Context) {
	var req dto.MergeTemplateRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	if err := validation.ValidateStoragePath("proposal_file_path", req.ProposalFilePath); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	pages := make([]service.MergePage, 0, len(req.Pages))
	entries := make([]models.PageNameEntry, 0, len(req.Pages))
	for i, p := range req.Pages {
		if err := validation.ValidateStoragePath(fmt.Sprintf("pages[%d].file_path", i), p.FilePath); err != nil {
			common.RespondBadRequest(c, err.Error())
			return
		}
		pages = append(pages, service.MergePage{FilePath: p.FilePath, Label: p.Label, Indent: p.Indent})
		entries = append(entries, models.PageNameEntry{Name: p.Label, Indent: p.Indent})
	}
	if err := validation.ValidatePageNames(entries); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	res, err := h.templates.Merge(c.Request.Context(), service.MergeInput{
		Pages:            pages,
		ProposalFilePath: req.ProposalFilePath,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	common.RespondJSON(c, http.StatusOK, dto.MergeTemplateResponse{
		FilePath:      res.FilePath,
		FileSizeBytes: res.FileSizeBytes,
		PageCount:     res.PageCount,
		PageNames:     res.PageNames,
	})
}

// AddPage обрабатывает POST /templates/pages (multipart).
func (h *TemplateHandler) AddPage(c *gin.Context) {
	var form dto.TemplateAddPageForm
	if err := common.BindForm(c, &form); err != nil {
		common.RespondAppError(c, asValidation(err))
		return
	}
	if err := validation.ValidateLabel(form.Label); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	data, err := readPDF(form.File, h.maxUpload)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	res, err := h.templates.AddPage(c.Request.Context(), service.AddPageInput{
		TemplateID: uuid.MustParse(form.TemplateID),
		PageNumber: *form.PageNumber,
		File:       data,
		Label:      form.Label,
		Indent:     form.Indent,
		Insert:     form.Insert,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	common.RespondJSON(c, http.StatusOK, dto.TemplateAddPageResponse{
		Success:    true,
		PageNumber: res.PageNumber,
		Replaced:   res.Replaced,
		TotalPages: res.TotalPages,
	})
}

// DeletePage обрабатывает DELETE /templates/pages.
func (h *TemplateHandler) DeletePage(c *gin.Context) {
	var req dto.TemplateDeletePageRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	total, err := h.templates.DeletePage(c.Request.Context(), uuid.MustParse(req.TemplateID), *req.PageNumber)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondJSON(c, http.StatusOK, dto.TemplateDeletePageResponse{Success: true, TotalPages: total})
}

// ReorderPages обрабатывает POST /templates/reorder-pages.
func (h *TemplateHandler) ReorderPages(c *gin.Context) {
	var req dto.TemplateReorderRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	res, err := h.templates.Reorder(c.Request.Context(), uuid.MustParse(req.TemplateID), req.PageOrder)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondJSON(c, http.StatusOK, dto.TemplateReorderResponse{
		Success:    true,
		Reordered:  res.Reordered,
		TotalPages: res.TotalPages,
	})
}

// GetTemplate обрабатывает GET /templates/:id.
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный идентификатор шаблона")
		return
	}

	view, err := h.templates.GetTemplate(c.Request.Context(), id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondJSON(c, http.StatusOK, view)
}

// Reconcile обрабатывает POST /templates/:id/reconcile.
func (h *TemplateHandler) Reconcile(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный идентификатор шаблона")
		return
	}

	count, err := h.reconcile.ReconcileTemplate(c.Request.Context(), id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondJSON(c, http.StatusOK, dto.TemplateReconcileResponse{Success: true, TotalPages: count})
}
