package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrCodeBadRequest      ErrorCode = "BAD_REQUEST"
	ErrCodeConflict        ErrorCode = "CONFLICT"
	ErrCodeTooLarge        ErrorCode = "PAYLOAD_TOO_LARGE"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeDatabaseError   ErrorCode = "DATABASE_ERROR"
	ErrCodeStorageError    ErrorCode = "STORAGE_ERROR"
	ErrCodeCorruptDocument ErrorCode = "CORRUPT_DOCUMENT"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// Validation ошибка входных данных, сообщение отдаётся клиенту как есть.
func Validation(format string, args ...any) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf(format, args...))
}

// NotFound ресурс не найден.
func NotFound(message string) *AppError {
	return New(ErrCodeNotFound, message)
}

// Storage ошибка объектного хранилища.
func Storage(err error, message string) *AppError {
	return Wrap(err, ErrCodeStorageError, message)
}

// Database ошибка хранилища метаданных.
func Database(err error, message string) *AppError {
	return Wrap(err, ErrCodeDatabaseError, message)
}

// Corrupt документ не удалось разобрать как PDF.
func Corrupt(err error, message string) *AppError {
	return Wrap(err, ErrCodeCorruptDocument, message)
}

// Conflict документ изменён или заблокирован параллельным запросом.
func Conflict(err error, message string) *AppError {
	return Wrap(err, ErrCodeConflict, message)
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// HTTPStatus возвращает статус для любой ошибки; неизвестные ошибки дают 500.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// PublicMessage сообщение для клиента. Внутренние детали не раскрываются.
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "внутренняя ошибка сервера"
}

func IsNotFound(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeNotFound
}

func IsValidation(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeValidation
}

func IsConflict(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeConflict
}

var (
	ErrProposalNotFound     = New(ErrCodeNotFound, "предложение не найдено")
	ErrTemplateNotFound     = New(ErrCodeNotFound, "шаблон не найден")
	ErrTemplatePageNotFound = New(ErrCodeNotFound, "страница шаблона не найдена")
	ErrFileNotFound         = New(ErrCodeNotFound, "файл не найден в хранилище")
	ErrUnauthorized         = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrLastPage             = New(ErrCodeValidation, "нельзя удалить единственную страницу документа")
	ErrFileTooLarge         = New(ErrCodeTooLarge, "размер файла превышает лимит")
)
