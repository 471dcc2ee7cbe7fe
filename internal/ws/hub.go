package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/proposaldesk/internal/models"
)

// Hub рассылает события документа всем клиентам, открывшим этот документ.
type Hub struct {
	mu         sync.RWMutex
	clients    map[uuid.UUID]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	done       chan struct{}
	log        logrus.FieldLogger
}

type message struct {
	documentID uuid.UUID
	payload    []byte
}

// envelope формат сообщения клиенту: "type" имя события, "data" полезная нагрузка.
type envelope struct {
	Type string               `json:"type"`
	Data models.DocumentEvent `json:"data"`
}

// NewHub создаёт новый хаб.
func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 64),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run запускает главный цикл хаба до отмены ctx.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			h.send(msg.documentID, msg.payload)
		}
	}
}

// Register добавляет клиента. После остановки хаба вызов ничего не делает.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister удаляет клиента.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// PublishDocumentEvent отправляет событие подписчикам документа. Вызов не
// блокирует операцию: при переполненной очереди событие отбрасывается.
func (h *Hub) PublishDocumentEvent(event models.DocumentEvent) {
	raw, err := json.Marshal(envelope{Type: event.Type, Data: event})
	if err != nil {
		h.log.WithError(err).Error("ws: не удалось сериализовать событие")
		return
	}

	select {
	case h.broadcast <- message{documentID: event.DocumentID, payload: raw}:
	case <-h.done:
	default:
		h.log.WithFields(logrus.Fields{
			"document_id": event.DocumentID,
			"type":        event.Type,
		}).Warn("ws: очередь событий переполнена, событие отброшено")
	}
}

// Subscribers число клиентов документа.
func (h *Hub) Subscribers(documentID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[documentID])
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.documentID]; !ok {
		h.clients[client.documentID] = make(map[*Client]struct{})
	}
	h.clients[client.documentID][client] = struct{}{}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.documentID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client.send)
		}
		if len(clients) == 0 {
			delete(h.clients, client.documentID)
		}
	}
}

func (h *Hub) send(documentID uuid.UUID, payload []byte) {
	h.mu.RLock()
	var slow []*Client
	for client := range h.clients[documentID] {
		select {
		case client.send <- payload:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	// Медленный клиент отключается, чтобы не задерживать остальных.
	for _, c := range slow {
		h.log.WithField("document_id", documentID).Warn("ws: клиент не успевает читать, соединение закрыто")
		h.removeClient(c)
		go c.Close()
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[uuid.UUID]map[*Client]struct{})
	h.mu.Unlock()

	for _, set := range clients {
		for c := range set {
			close(c.send)
		}
	}
}
