package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/proposaldesk/internal/logger"
	"github.com/ignatzorin/proposaldesk/internal/pkg/apperror"
)

// ErrorHandler отвечает на ошибки, прикреплённые через c.Error, если
// обработчик сам ничего не записал. Внутренние ошибки маскируются.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status := apperror.HTTPStatus(err)

		entry := logger.Log.WithFields(logrus.Fields{
			"error":  err.Error(),
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
			"status": status,
		})
		if status >= http.StatusInternalServerError {
			entry.Error("ошибка запроса")
		} else {
			entry.Debug("ошибка запроса")
		}

		c.JSON(status, gin.H{"error": apperror.PublicMessage(err)})
	}
}

// Recovery переводит panic обработчика в ответ 500 с тем же форматом ошибки.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Log.WithFields(logrus.Fields{
			"panic":  recovered,
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}).Error("panic в обработчике")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": apperror.PublicMessage(nil)})
	})
}
