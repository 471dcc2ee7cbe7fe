package handlers

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/proposaldesk/internal/http/middleware"
	"github.com/ignatzorin/proposaldesk/internal/models"
	"github.com/ignatzorin/proposaldesk/internal/service"
)

type mockPages struct {
	mock.Mock
}

func (m *mockPages) CreateProposal(ctx context.Context, in service.CreateProposalInput) (*service.ProposalView, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ProposalView), args.Error(1)
}

func (m *mockPages) GetProposal(ctx context.Context, id uuid.UUID) (*service.ProposalView, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ProposalView), args.Error(1)
}

func (m *mockPages) InsertPages(ctx context.Context, id uuid.UUID, afterPage int, file []byte) (*service.InsertPagesResult, error) {
	args := m.Called(ctx, id, afterPage, file)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.InsertPagesResult), args.Error(1)
}

func (m *mockPages) DeletePage(ctx context.Context, id uuid.UUID, pageNumber int) (*service.DeletePageResult, error) {
	args := m.Called(ctx, id, pageNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DeletePageResult), args.Error(1)
}

func (m *mockPages) ReplacePage(ctx context.Context, id uuid.UUID, pageNumber int, file []byte) (*service.ReplacePageResult, error) {
	args := m.Called(ctx, id, pageNumber, file)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ReplacePageResult), args.Error(1)
}

func (m *mockPages) ReorderPages(ctx context.Context, id uuid.UUID, order []int) (*service.ReorderPagesResult, error) {
	args := m.Called(ctx, id, order)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ReorderPagesResult), args.Error(1)
}

func (m *mockPages) UpdatePageNames(ctx context.Context, id uuid.UUID, entries []models.PageNameEntry) ([]models.PageNameEntry, error) {
	args := m.Called(ctx, id, entries)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PageNameEntry), args.Error(1)
}

func (m *mockPages) FileURL(ctx context.Context, id uuid.UUID) (string, time.Duration, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Get(1).(time.Duration), args.Error(2)
}

type mockReconciler struct {
	mock.Mock
}

func (m *mockReconciler) ReconcileProposal(ctx context.Context, id uuid.UUID) (*service.ReconcileResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ReconcileResult), args.Error(1)
}

func (m *mockReconciler) ReconcileTemplate(ctx context.Context, id uuid.UUID) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}

type mockTemplates struct {
	mock.Mock
}

func (m *mockTemplates) Split(ctx context.Context, in service.SplitInput) (*service.SplitResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SplitResult), args.Error(1)
}

func (m *mockTemplates) Merge(ctx context.Context, in service.MergeInput) (*service.MergeResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.MergeResult), args.Error(1)
}

func (m *mockTemplates) AddPage(ctx context.Context, in service.AddPageInput) (*service.AddPageResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AddPageResult), args.Error(1)
}

func (m *mockTemplates) DeletePage(ctx context.Context, templateID uuid.UUID, pageNumber int) (int, error) {
	args := m.Called(ctx, templateID, pageNumber)
	return args.Int(0), args.Error(1)
}

func (m *mockTemplates) Reorder(ctx context.Context, templateID uuid.UUID, order []int) (*service.TemplateReorderResult, error) {
	args := m.Called(ctx, templateID, order)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.TemplateReorderResult), args.Error(1)
}

func (m *mockTemplates) GetTemplate(ctx context.Context, templateID uuid.UUID) (*service.TemplateView, error) {
	args := m.Called(ctx, templateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.TemplateView), args.Error(1)
}

// newTestRouter роутер с принципалом в контексте, как после AuthMiddleware.
func newTestRouter(userID, companyID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if userID != uuid.Nil {
			c.Set(middleware.ContextUserIDKey, userID)
			c.Set(middleware.ContextCompanyIDKey, companyID)
		}
		c.Next()
	})
	return r
}

type formFile struct {
	name string
	data []byte
}

func multipartRequest(t *testing.T, method, url string, fields map[string]string, file *formFile) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		part, err := mw.CreateFormFile("file", file.name)
		require.NoError(t, err)
		_, err = part.Write(file.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, url, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(method, url, body string) *http.Request {
	req := httptest.NewRequest(method, url, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}
