package common

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/proposaldesk/internal/dto"
	"github.com/ignatzorin/proposaldesk/internal/http/middleware"
	"github.com/ignatzorin/proposaldesk/internal/logger"
	"github.com/ignatzorin/proposaldesk/internal/pkg/apperror"
)

var (
	// ErrUserNotFound is returned when user is not found in context
	ErrUserNotFound = errors.New("пользователь не найден в контексте")

	// ErrInvalidUUID is returned when UUID parsing fails
	ErrInvalidUUID = errors.New("неверный формат UUID")
)

// CurrentCompanyID extracts tenant ID from Gin context
func CurrentCompanyID(c *gin.Context) (uuid.UUID, error) {
	return contextUUID(c, middleware.ContextCompanyIDKey)
}

func contextUUID(c *gin.Context, key string) (uuid.UUID, error) {
	raw, exists := c.Get(key)
	if !exists {
		return uuid.Nil, ErrUserNotFound
	}

	id, ok := raw.(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, ErrUserNotFound
	}
	return id, nil
}

// ParseUUIDParam returns the path parameter checked by middleware.UUIDValidator
// or parses it when the validator is not installed on the route
func ParseUUIDParam(c *gin.Context, paramName string) (uuid.UUID, error) {
	if raw, ok := c.Get(middleware.ParamKey(paramName)); ok {
		if id, ok := raw.(uuid.UUID); ok {
			return id, nil
		}
	}

	param := c.Param(paramName)
	if param == "" {
		return uuid.Nil, fmt.Errorf("параметр %s отсутствует", paramName)
	}

	parsed, err := uuid.Parse(param)
	if err != nil {
		return uuid.Nil, ErrInvalidUUID
	}
	return parsed, nil
}

// BindAndValidate binds JSON request and returns properly formatted error
func BindAndValidate(c *gin.Context, req interface{}) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return fmt.Errorf("ошибка валидации запроса: %w", err)
	}
	return nil
}

// BindForm binds multipart form request
func BindForm(c *gin.Context, req interface{}) error {
	if err := c.ShouldBind(req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperror.ErrFileTooLarge
		}
		return fmt.Errorf("ошибка валидации запроса: %w", err)
	}
	return nil
}

// RespondError sends a standardized error response
func RespondError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, dto.ErrorResponse{Error: message})
}

// RespondAppError maps err through apperror and logs server-side failures
func RespondAppError(c *gin.Context, err error) {
	status := apperror.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Log.WithFields(logrus.Fields{
			"error":  err.Error(),
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}).Error("ошибка обработки запроса")
	} else if apperror.IsValidation(err) {
		logger.Log.WithFields(logrus.Fields{
			"error": err.Error(),
			"path":  c.Request.URL.Path,
		}).Debug("запрос отклонён")
	}
	RespondError(c, status, apperror.PublicMessage(err))
}

// RespondJSON sends a JSON response with the given status code and data
func RespondJSON(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// RespondUnauthorized sends a 401 Unauthorized response
func RespondUnauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "требуется авторизация"
	}
	RespondError(c, http.StatusUnauthorized, message)
}

// RespondBadRequest sends a 400 Bad Request response
func RespondBadRequest(c *gin.Context, message string) {
	if message == "" {
		message = "некорректный запрос"
	}
	RespondError(c, http.StatusBadRequest, message)
}
