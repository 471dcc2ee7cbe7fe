package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ignatzorin/proposaldesk/internal/http/middleware"
	"github.com/ignatzorin/proposaldesk/internal/ws"
)

// WSHandler отвечает за установку WebSocket соединений.
type WSHandler struct {
	hub      *ws.Hub
	tokens   middleware.AccessVerifier
	upgrader websocket.Upgrader
}

// NewWSHandler создаёт новый хэндлер. allowedOrigins пустой означает любой Origin.
func NewWSHandler(hub *ws.Hub, tokens middleware.AccessVerifier, allowedOrigins []string) *WSHandler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return &WSHandler{
		hub:    hub,
		tokens: tokens,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

// Handle обслуживает GET /api/ws?token=...&document_id=...
// Клиент получает события об изменении одного документа.
func (h *WSHandler) Handle(c *gin.Context) {
	rawToken := c.Query("token")
	if rawToken == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "access токен обязателен"})
		return
	}

	principal, err := h.tokens.ParseAccess(rawToken)
	if err != nil || principal.UserID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "невалидный access токен"})
		return
	}

	documentID, err := uuid.Parse(c.Query("document_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "document_id обязателен и должен быть UUID"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade уже записал ответ клиенту.
		return
	}

	client := ws.NewClient(conn, h.hub, principal.UserID, documentID)
	h.hub.Register(client)

	client.Run(c.Request.Context())
}
