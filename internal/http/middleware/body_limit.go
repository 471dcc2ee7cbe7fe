package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// multipartOverhead запас на заголовки и поля формы сверх самого файла.
const multipartOverhead = 1 << 20

// BodyLimit ограничивает размер тела запроса. Запрос с известной длиной сверх
// лимита отклоняется сразу, остальные обрезаются http.MaxBytesReader.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	limit := maxBytes + multipartOverhead
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "файл слишком большой"})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
