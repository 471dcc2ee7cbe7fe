package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/proposaldesk/internal/dto"
	"github.com/ignatzorin/proposaldesk/internal/models"
	"github.com/ignatzorin/proposaldesk/internal/pdf/pdftest"
	"github.com/ignatzorin/proposaldesk/internal/pkg/apperror"
	"github.com/ignatzorin/proposaldesk/internal/service"
)

const testMaxUpload = 1 << 20

func newProposalRouter(pages *mockPages, rec *mockReconciler) (*ProposalHandler, http.Handler) {
	h := NewProposalHandler(pages, rec, testMaxUpload)
	r := newTestRouter(uuid.New(), uuid.New())
	r.POST("/proposals", h.CreateProposal)
	r.GET("/proposals/:id", h.GetProposal)
	r.POST("/proposals/delete-page", h.DeletePage)
	r.POST("/proposals/insert-page", h.InsertPage)
	r.POST("/proposals/replace-page", h.ReplacePage)
	r.POST("/proposals/reorder-pages", h.ReorderPages)
	r.PUT("/proposals/:id/page-names", h.UpdatePageNames)
	r.GET("/proposals/:id/file-url", h.FileURL)
	r.POST("/proposals/:id/reconcile", h.Reconcile)
	return h, r
}

func TestProposalHandler_DeletePage_Success(t *testing.T) {
	pages := new(mockPages)
	_, r := newProposalRouter(pages, nil)
	id := uuid.New()

	pages.On("DeletePage", mock.Anything, id, 2).
		Return(&service.DeletePageResult{DeletedPage: 2, TotalPages: 2, FileSizeBytes: 1234}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPost, "/proposals/delete-page",
		`{"proposal_id":"`+id.String()+`","page_number":2}`))

	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.DeletePageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.DeletePageResponse{Success: true, DeletedPage: 2, TotalPages: 2, FileSizeBytes: 1234}, resp)
	pages.AssertExpectations(t)
}

func TestProposalHandler_DeletePage_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"last page", apperror.ErrLastPage, http.StatusBadRequest},
		{"out of range", apperror.Validation("page_number вне диапазона"), http.StatusBadRequest},
		{"not found", apperror.ErrProposalNotFound, http.StatusNotFound},
		{"conflict", apperror.Conflict(nil, "документ изменяется другим запросом"), http.StatusConflict},
		{"storage", apperror.Storage(assert.AnError, "не удалось сохранить файл"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages := new(mockPages)
			_, r := newProposalRouter(pages, nil)
			id := uuid.New()
			pages.On("DeletePage", mock.Anything, id, 1).Return(nil, tt.err)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, jsonRequest(http.MethodPost, "/proposals/delete-page",
				`{"proposal_id":"`+id.String()+`","page_number":1}`))

			assert.Equal(t, tt.status, w.Code)
			var resp dto.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
			assert.NotContains(t, resp.Error, assert.AnError.Error())
		})
	}
}

func TestProposalHandler_DeletePage_InvalidBody(t *testing.T) {
	bodies := map[string]string{
		"missing page_number": `{"proposal_id":"` + uuid.NewString() + `"}`,
		"bad proposal_id":     `{"proposal_id":"nope","page_number":1}`,
		"malformed json":      `{"proposal_id":`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			pages := new(mockPages)
			_, r := newProposalRouter(pages, nil)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, jsonRequest(http.MethodPost, "/proposals/delete-page", body))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			pages.AssertNotCalled(t, "DeletePage", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestProposalHandler_InsertPage_Success(t *testing.T) {
	pages := new(mockPages)
	_, r := newProposalRouter(pages, nil)
	id := uuid.New()
	file := pdftest.Build(2)

	pages.On("InsertPages", mock.Anything, id, 0, file).
		Return(&service.InsertPagesResult{InsertedAfter: 0, PagesInserted: 2, TotalPages: 5, FileSizeBytes: 900}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, http.MethodPost, "/proposals/insert-page",
		map[string]string{"proposal_id": id.String(), "after_page": "0"},
		&formFile{name: "extra.pdf", data: file}))

	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.InsertPageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.PagesInserted)
	assert.Equal(t, 5, resp.TotalPages)
	pages.AssertExpectations(t)
}

func TestProposalHandler_InsertPage_RejectsUpload(t *testing.T) {
	id := uuid.New().String()
	tests := []struct {
		name   string
		fields map[string]string
		file   *formFile
		status int
	}{
		{"no file", map[string]string{"proposal_id": id, "after_page": "1"}, nil, http.StatusBadRequest},
		{"no after_page", map[string]string{"proposal_id": id}, &formFile{"a.pdf", pdftest.Build(1)}, http.StatusBadRequest},
		{"not a pdf", map[string]string{"proposal_id": id, "after_page": "1"}, &formFile{"a.pdf", []byte("\x89PNG\r\n\x1a\n0000000000000")}, http.StatusBadRequest},
		{"text", map[string]string{"proposal_id": id, "after_page": "1"}, &formFile{"a.pdf", []byte("hello world")}, http.StatusBadRequest},
		{"too large", map[string]string{"proposal_id": id, "after_page": "1"}, &formFile{"a.pdf", make([]byte, testMaxUpload+1)}, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages := new(mockPages)
			_, r := newProposalRouter(pages, nil)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, multipartRequest(t, http.MethodPost, "/proposals/insert-page", tt.fields, tt.file))

			assert.Equal(t, tt.status, w.Code)
			pages.AssertNotCalled(t, "InsertPages", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestProposalHandler_ReplacePage_Success(t *testing.T) {
	pages := new(mockPages)
	_, r := newProposalRouter(pages, nil)
	id := uuid.New()
	file := pdftest.Build(1)

	pages.On("ReplacePage", mock.Anything, id, 3, file).
		Return(&service.ReplacePageResult{PageNumber: 3, TotalPages: 4, FileSizeBytes: 700}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, http.MethodPost, "/proposals/replace-page",
		map[string]string{"proposal_id": id.String(), "page_number": "3"},
		&formFile{name: "p.pdf", data: file}))

	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.ReplacePageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ReplacePageResponse{Success: true, PageNumber: 3, TotalPages: 4, FileSizeBytes: 700}, resp)
}

func TestProposalHandler_ReorderPages(t *testing.T) {
	t.Run("changed", func(t *testing.T) {
		pages := new(mockPages)
		_, r := newProposalRouter(pages, nil)
		id := uuid.New()
		names := []models.PageNameEntry{{Name: "B"}, {Name: "A"}}
		pages.On("ReorderPages", mock.Anything, id, []int{1, 0}).
			Return(&service.ReorderPagesResult{Reordered: true, TotalPages: 2, PageNames: names, FileSizeBytes: 512}, nil)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, jsonRequest(http.MethodPost, "/proposals/reorder-pages",
			`{"proposal_id":"`+id.String()+`","page_order":[1,0]}`))

		require.Equal(t, http.StatusOK, w.Code)
		var resp dto.ReorderPagesResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Reordered)
		assert.Equal(t, names, resp.PageNames)
		require.NotNil(t, resp.FileSizeBytes)
		assert.EqualValues(t, 512, *resp.FileSizeBytes)
	})

	t.Run("identity", func(t *testing.T) {
		pages := new(mockPages)
		_, r := newProposalRouter(pages, nil)
		id := uuid.New()
		pages.On("ReorderPages", mock.Anything, id, []int{0, 1}).
			Return(&service.ReorderPagesResult{Reordered: false, TotalPages: 2}, nil)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, jsonRequest(http.MethodPost, "/proposals/reorder-pages",
			`{"proposal_id":"`+id.String()+`","page_order":[0,1]}`))

		require.Equal(t, http.StatusOK, w.Code)
		var raw map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
		assert.Equal(t, false, raw["reordered"])
		assert.NotContains(t, raw, "page_names")
		assert.NotContains(t, raw, "file_size_bytes")
	})
}

func TestProposalHandler_CreateProposal(t *testing.T) {
	pages := new(mockPages)
	h := NewProposalHandler(pages, nil, testMaxUpload)
	userID, companyID := uuid.New(), uuid.New()
	r := newTestRouter(userID, companyID)
	r.POST("/proposals", h.CreateProposal)
	file := pdftest.Build(3)

	view := &service.ProposalView{
		Proposal:  &models.Proposal{ID: uuid.New(), CompanyID: companyID, Title: "Offer", PageCount: 3},
		PageNames: []models.PageNameEntry{{Name: "Page 1"}, {Name: "Page 2"}, {Name: "Page 3"}},
	}
	pages.On("CreateProposal", mock.Anything, service.CreateProposalInput{CompanyID: companyID, Title: "Offer", File: file}).
		Return(view, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, http.MethodPost, "/proposals",
		map[string]string{"title": "Offer"}, &formFile{name: "offer.pdf", data: file}))

	require.Equal(t, http.StatusCreated, w.Code)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Equal(t, "Offer", raw["title"])
	assert.Len(t, raw["page_names"], 3)
	pages.AssertExpectations(t)
}

func TestProposalHandler_CreateProposal_Unauthorized(t *testing.T) {
	h := NewProposalHandler(nil, nil, testMaxUpload)
	r := newTestRouter(uuid.Nil, uuid.Nil)
	r.POST("/proposals", h.CreateProposal)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, http.MethodPost, "/proposals",
		map[string]string{"title": "Offer"}, &formFile{name: "offer.pdf", data: pdftest.Build(1)}))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProposalHandler_GetProposal(t *testing.T) {
	pages := new(mockPages)
	_, r := newProposalRouter(pages, nil)
	id := uuid.New()

	pages.On("GetProposal", mock.Anything, id).Return(nil, apperror.ErrProposalNotFound)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/proposals/"+id.String(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/proposals/invalid-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProposalHandler_UpdatePageNames(t *testing.T) {
	pages := new(mockPages)
	_, r := newProposalRouter(pages, nil)
	id := uuid.New()
	names := []models.PageNameEntry{{Name: "Cover"}, {Name: "Scope", Indent: 1}}

	pages.On("UpdatePageNames", mock.Anything, id, names).Return(names, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPut, "/proposals/"+id.String()+"/page-names",
		`{"page_names":[{"name":"Cover","indent":0},{"name":"Scope","indent":1}]}`))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPut, "/proposals/"+id.String()+"/page-names",
		`{"page_names":[{"name":"Cover","indent":5}]}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	pages.AssertNumberOfCalls(t, "UpdatePageNames", 1)
}

func TestProposalHandler_FileURL(t *testing.T) {
	pages := new(mockPages)
	_, r := newProposalRouter(pages, nil)
	id := uuid.New()

	pages.On("FileURL", mock.Anything, id).Return("https://files.example/p.pdf?sig=1", 15*time.Minute, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/proposals/"+id.String()+"/file-url", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.FileURLResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "https://files.example/p.pdf?sig=1", resp.URL)
	assert.EqualValues(t, 900, resp.ExpiresIn)
}

func TestProposalHandler_Reconcile(t *testing.T) {
	rec := new(mockReconciler)
	_, r := newProposalRouter(new(mockPages), rec)
	id := uuid.New()

	rec.On("ReconcileProposal", mock.Anything, id).Return(&service.ReconcileResult{Changed: true, TotalPages: 4}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/proposals/"+id.String()+"/reconcile", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.ReconcileResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ReconcileResponse{Success: true, Changed: true, TotalPages: 4}, resp)
}
