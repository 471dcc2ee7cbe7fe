package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/proposaldesk/internal/http/handlers/common"
	"github.com/ignatzorin/proposaldesk/internal/pkg/apperror"
	"github.com/ignatzorin/proposaldesk/internal/storage"
)

// SignedFileStore хранилище, которое само раздаёт файлы по подписанным ссылкам.
type SignedFileStore interface {
	Download(ctx context.Context, bucket, path string) ([]byte, error)
	VerifySignedToken(bucket, path, token string) error
}

// FilesHandler раздаёт объекты локального хранилища по ссылкам из SignedURL.
type FilesHandler struct {
	store SignedFileStore
}

// NewFilesHandler создаёт новый хэндлер.
func NewFilesHandler(store SignedFileStore) *FilesHandler {
	return &FilesHandler{store: store}
}

// Serve обрабатывает GET /files/:bucket/*path?token=...
func (h *FilesHandler) Serve(c *gin.Context) {
	bucket := c.Param("bucket")
	path := strings.TrimPrefix(c.Param("path"), "/")

	token := c.Query("token")
	if token == "" {
		common.RespondUnauthorized(c, "токен ссылки обязателен")
		return
	}
	if err := h.store.VerifySignedToken(bucket, path, token); err != nil {
		common.RespondError(c, http.StatusForbidden, "ссылка недействительна или истекла")
		return
	}

	data, err := h.store.Download(c.Request.Context(), bucket, path)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrObjectNotFound):
			common.RespondAppError(c, apperror.ErrFileNotFound)
		case errors.Is(err, storage.ErrInvalidPath):
			common.RespondBadRequest(c, "некорректный путь")
		default:
			common.RespondAppError(c, apperror.Storage(err, "не удалось прочитать файл"))
		}
		return
	}

	c.Header("Cache-Control", "private, no-store")
	c.Data(http.StatusOK, "application/pdf", data)
}
