package events

import (
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"movierec/pkg/logger"
)

const writeTimeout = 2 * time.Second

type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	log     *logger.Logger
}

type Stats struct {
	WSClients int `json:"ws_clients"`
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		clients: make(map[*websocket.Conn]struct{}),
		log:     log.With("component", "EventHub"),
	}
}

func (h *Hub) Add(ws *websocket.Conn) {
	h.mu.Lock()
	h.clients[ws] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) Remove(ws *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, ws)
	h.mu.Unlock()
	_ = ws.Close()
}

// Publish stamps and broadcasts a job event. A nil hub drops it.
func (h *Hub) Publish(ev JobEvent) {
	if h == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	h.BroadcastJSON(ev)
}

// BroadcastJSON writes v to every client, dropping the ones that fail.
func (h *Hub) BroadcastJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		h.log.Warn("drop unencodable event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for ws := range h.clients {
		_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
			_ = ws.Close()
			delete(h.clients, ws)
		}
	}
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{WSClients: len(h.clients)}
}
