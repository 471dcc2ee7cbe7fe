package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/proposaldesk/internal/pdf/pdftest"
	"github.com/ignatzorin/proposaldesk/internal/storage"
)

func newFilesRouter(t *testing.T) (*storage.LocalStorage, *gin.Engine) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir(), 0, "http://localhost:8080", "files-test-key")
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/files/:bucket/*path", NewFilesHandler(store).Serve)
	return store, r
}

// signedRequest превращает ссылку SignedURL в запрос к тестовому роутеру.
func signedRequest(t *testing.T, raw string) *http.Request {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return httptest.NewRequest(http.MethodGet, u.RequestURI(), nil)
}

func TestFilesHandler_ServesSignedFile(t *testing.T) {
	store, r := newFilesRouter(t)
	ctx := context.Background()
	data := pdftest.Build(2)
	require.NoError(t, store.Upload(ctx, "proposals", "c1/offer.pdf", data, storage.UploadOptions{ContentType: "application/pdf"}))

	link, err := store.SignedURL(ctx, "proposals", "c1/offer.pdf", time.Minute)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(t, link))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, data, w.Body.Bytes())
}

func TestFilesHandler_Rejects(t *testing.T) {
	store, r := newFilesRouter(t)
	ctx := context.Background()
	require.NoError(t, store.Upload(ctx, "proposals", "c1/offer.pdf", pdftest.Build(1), storage.UploadOptions{}))
	require.NoError(t, store.Upload(ctx, "proposals", "c1/other.pdf", pdftest.Build(1), storage.UploadOptions{}))

	t.Run("no token", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/files/proposals/c1/offer.pdf", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("token for another object", func(t *testing.T) {
		link, err := store.SignedURL(ctx, "proposals", "c1/other.pdf", time.Minute)
		require.NoError(t, err)
		token := link[strings.Index(link, "?"):]

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/files/proposals/c1/offer.pdf"+token, nil))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("expired", func(t *testing.T) {
		link, err := store.SignedURL(ctx, "proposals", "c1/offer.pdf", -time.Minute)
		require.NoError(t, err)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, signedRequest(t, link))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("removed object", func(t *testing.T) {
		link, err := store.SignedURL(ctx, "proposals", "c1/other.pdf", time.Minute)
		require.NoError(t, err)
		require.NoError(t, store.Remove(ctx, "proposals", "c1/other.pdf"))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, signedRequest(t, link))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
