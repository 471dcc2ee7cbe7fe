package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/proposaldesk/internal/dto"
	"github.com/ignatzorin/proposaldesk/internal/http/handlers/common"
	"github.com/ignatzorin/proposaldesk/internal/models"
	"github.com/ignatzorin/proposaldesk/internal/pkg/apperror"
	"github.com/ignatzorin/proposaldesk/internal/service"
	"github.com/ignatzorin/proposaldesk/internal/validation"
)

// PageOperations постраничные операции над предложением.
type PageOperations interface {
	CreateProposal(ctx context.Context, in service.CreateProposalInput) (*service.ProposalView, error)
	GetProposal(ctx context.Context, id uuid.UUID) (*service.ProposalView, error)
	InsertPages(ctx context.Context, id uuid.UUID, afterPage int, file []byte) (*service.InsertPagesResult, error)
	DeletePage(ctx context.Context, id uuid.UUID, pageNumber int) (*service.DeletePageResult, error)
	ReplacePage(ctx context.Context, id uuid.UUID, pageNumber int, file []byte) (*service.ReplacePageResult, error)
	ReorderPages(ctx context.Context, id uuid.UUID, order []int) (*service.ReorderPagesResult, error)
	UpdatePageNames(ctx context.Context, id uuid.UUID, entries []models.PageNameEntry) ([]models.PageNameEntry, error)
	FileURL(ctx context.Context, id uuid.UUID) (string, time.Duration, error)
}

// ProposalReconciler сверка метаданных предложения с файлом.
type ProposalReconciler interface {
	ReconcileProposal(ctx context.Context, id uuid.UUID) (*service.ReconcileResult, error)
}

// ProposalHandler обслуживает маршруты постраничного редактирования предложений.
type ProposalHandler struct {
	pages     PageOperations
	reconcile ProposalReconciler
	maxUpload int64
}

// NewProposalHandler создаёт новый хэндлер.
func NewProposalHandler(pages PageOperations, reconcile ProposalReconciler, maxUploadBytes int64) *ProposalHandler {
	return &ProposalHandler{pages: pages, reconcile: reconcile, maxUpload: maxUploadBytes}
}

// CreateProposal обрабатывает POST /proposals (multipart: title, file).
func (h *ProposalHandler) CreateProposal(c *gin.Context) {
	companyID, err := common.CurrentCompanyID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	var form dto.CreateProposalForm
	if err := common.BindForm(c, &form); err != nil {
		common.RespondAppError(c, asValidation(err))
		return
	}
	if err := validation.ValidateTitle(form.Title); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	data, err := readPDF(form.File, h.maxUpload)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	view, err := h.pages.CreateProposal(c.Request.Context(), service.CreateProposalInput{
		CompanyID: companyID,
		Title:     form.Title,
		File:      data,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondJSON(c, http.StatusCreated, view)
}

// GetProposal обрабатывает GET /proposals/:id.
func (h *ProposalHandler) GetProposal(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный идентификатор предложения")
		return
	}

	view, err := h.pages.GetProposal(c.Request.Context(), id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondJSON(c, http.StatusOK, view)
}

// DeletePage обрабатывает POST /proposals/delete-page.
func (h *ProposalHandler) DeletePage(c *gin.Context) {
	var req dto.DeletePageRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	res, err := h.pages.DeletePage(c.Request.Context(), uuid.MustParse(req.ProposalID), *req.PageNumber)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	common.RespondJSON(c, http.StatusOK, dto.DeletePageResponse{
		Success:       true,
		DeletedPage:   res.DeletedPage,
		TotalPages:    res.TotalPages,
		FileSizeBytes: res.FileSizeBytes,
	})
}

// InsertPage обрабатывает POST /proposals/insert-page (multipart).
func (h *ProposalHandler) InsertPage(c *gin.Context) {
	var form dto.InsertPageForm
	if err := common.BindForm(c, &form); err != nil {
		common.RespondAppError(c, asValidation(err))
		return
	}

	data, err := readPDF(form.File, h.maxUpload)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	res, err := h.pages.InsertPages(c.Request.Context(), uuid.MustParse(form.ProposalID), *form.AfterPage, data)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	common.RespondJSON(c, http.StatusOK, dto.InsertPageResponse{
		Success:       true,
		InsertedAfter: res.InsertedAfter,
		PagesInserted: res.PagesInserted,
		TotalPages:    res.TotalPages,
		FileSizeBytes: res.FileSizeBytes,
	})
}

// ReplacePage обрабатывает POST /proposals/replace-page (multipart).
func (h *ProposalHandler) ReplacePage(c *gin.Context) {
	var form dto.ReplacePageForm
	if err := common.BindForm(c, &form); err != nil {
		common.RespondAppError(c, asValidation(err))
		return
	}

	data, err := readPDF(form.File, h.maxUpload)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	res, err := h.pages.ReplacePage(c.Request.Context(), uuid.MustParse(form.ProposalID), *form.PageNumber, data)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	common.RespondJSON(c, http.StatusOK, dto.ReplacePageResponse{
		Success:       true,
		PageNumber:    res.PageNumber,
		TotalPages:    res.TotalPages,
		FileSizeBytes: res.FileSizeBytes,
	})
}

// ReorderPages обрабатывает POST /proposals/reorder-pages.
func (h *ProposalHandler) ReorderPages(c *gin.Context) {
	var req dto.ReorderPagesRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	res, err := h.pages.ReorderPages(c.Request.Context(), uuid.MustParse(req.ProposalID), req.PageOrder)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	resp := dto.ReorderPagesResponse{
		Success:    true,
		Reordered:  res.Reordered,
		TotalPages: res.TotalPages,
	}
	if res.Reordered {
		size := res.FileSizeBytes
		resp.PageNames = res.PageNames
		resp.FileSizeBytes = &size
	}
	common.RespondJSON(c, http.StatusOK, resp)
}

// UpdatePageNames обрабатывает PUT /proposals/:id/page-names.
func (h *ProposalHandler) UpdatePageNames(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный идентификатор предложения")
		return
	}

	var req dto.UpdatePageNamesRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	if err := validation.ValidatePageNames(req.PageNames); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	names, err := h.pages.UpdatePageNames(c.Request.Context(), id, req.PageNames)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondJSON(c, http.StatusOK, dto.PageNamesResponse{Success: true, PageNames: names})
}

// FileURL обрабатывает GET /proposals/:id/file-url.
func (h *ProposalHandler) FileURL(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный идентификатор предложения")
		return
	}

	url, ttl, err := h.pages.FileURL(c.Request.Context(), id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondJSON(c, http.StatusOK, dto.FileURLResponse{URL: url, ExpiresIn: int64(ttl.Seconds())})
}

// Reconcile обрабатывает POST /proposals/:id/reconcile.
func (h *ProposalHandler) Reconcile(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный идентификатор предложения")
		return
	}

	res, err := h.reconcile.ReconcileProposal(c.Request.Context(), id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondJSON(c, http.StatusOK, dto.ReconcileResponse{
		Success:    true,
		Changed:    res.Changed,
		TotalPages: res.TotalPages,
	})
}

// asValidation оставляет AppError как есть, остальные ошибки привязки дают 400.
func asValidation(err error) error {
	if apperror.HTTPStatus(err) != http.StatusInternalServerError {
		return err
	}
	return apperror.Validation("%s", err.Error())
}
