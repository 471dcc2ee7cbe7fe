package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/proposaldesk/internal/pkg/apperror"
	"github.com/ignatzorin/proposaldesk/internal/service"
)

type stubVerifier struct {
	principal *service.Principal
	err       error
}

func (s stubVerifier) ParseAccess(string) (*service.Principal, error) {
	return s.principal, s.err
}

func perform(r http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	principal := &service.Principal{UserID: uuid.New(), CompanyID: uuid.New()}

	newRouter := func(v AccessVerifier) *gin.Engine {
		r := gin.New()
		r.Use(AuthMiddleware(v))
		r.GET("/me", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"user":    c.MustGet(ContextUserIDKey).(uuid.UUID),
				"company": c.MustGet(ContextCompanyIDKey).(uuid.UUID),
			})
		})
		return r
	}

	w := perform(newRouter(stubVerifier{principal: principal}), "GET", "/me", map[string]string{"Authorization": "Bearer ok"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), principal.CompanyID.String())

	w = perform(newRouter(stubVerifier{principal: principal}), "GET", "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = perform(newRouter(stubVerifier{principal: principal}), "GET", "/me", map[string]string{"Authorization": "Basic abc"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = perform(newRouter(stubVerifier{err: errors.New("expired")}), "GET", "/me", map[string]string{"Authorization": "Bearer bad"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"токен невалиден"}`, w.Body.String())
}

func TestErrorHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/conflict", func(c *gin.Context) {
		_ = c.Error(apperror.Conflict(errors.New("version"), "документ изменён"))
	})
	r.GET("/internal", func(c *gin.Context) {
		_ = c.Error(errors.New("pq: connection refused"))
	})

	w := perform(r, "GET", "/conflict", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"документ изменён"}`, w.Body.String())

	w = perform(r, "GET", "/internal", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "pq:")
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery())
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := perform(r, "GET", "/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "error")
}

func TestUUIDValidator(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/proposals/:id", UUIDValidator("id"), func(c *gin.Context) {
		c.String(http.StatusOK, c.MustGet(ParamKey("id")).(uuid.UUID).String())
	})

	id := uuid.New()
	w := perform(r, "GET", "/proposals/"+id.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id.String(), w.Body.String())

	w = perform(r, "GET", "/proposals/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimitMiddleware(2, time.Minute))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, perform(r, "GET", "/", nil).Code)
	assert.Equal(t, http.StatusOK, perform(r, "GET", "/", nil).Code)
	w := perform(r, "GET", "/", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://app.example.com"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, "OPTIONS", "/", map[string]string{"Origin": "https://app.example.com"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = perform(r, "GET", "/", map[string]string{"Origin": "https://evil.example.com"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestBodyLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(BodyLimit(0))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	body := strings.Repeat("x", multipartOverhead+1)
	req, err := http.NewRequest("POST", "/", strings.NewReader(body))
	require.NoError(t, err)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
