package lspserver

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"cqasm/internal/serialize"
)

// ListenAndServeWebsocket serves hub's websocket upgrade handler at / on
// addr. Diagnostics published by any Server sharing this Hub reach every
// subscriber connected here.
func ListenAndServeWebsocket(addr string, hub *Hub) error {
	mux := http.NewServeMux()
	mux.Handle("/", hub)
	return http.ListenAndServe(addr, mux)
}

// Update is one diagnostics push: which session and document produced it,
// and the current LSP-shaped diagnostic list for that document.
type Update struct {
	SessionID   string                 `json:"sessionId"`
	URI         string                 `json:"uri"`
	Diagnostics []serialize.Diagnostic `json:"diagnostics"`
}

// Hub fans out diagnostics Updates to every live websocket subscriber. The
// zero value is ready to use.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*subscriber
}

type subscriber struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

// NewHub returns a Hub that accepts connections from any origin, matching
// the permissive default an editor-facing local tool needs (the server
// only ever speaks to a loopback-bound client).
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:  make(map[string]*subscriber),
	}
}

// ServeHTTP upgrades the request to a websocket and registers the
// connection as a subscriber until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	sub := &subscriber{id: uuid.NewString(), conn: conn}

	h.mu.Lock()
	h.clients[sub.id] = sub
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, sub.id)
		h.mu.Unlock()
		conn.Close()
	}()

	// The connection is push-only from the server's side; drain and discard
	// anything the client sends so control frames (ping/close) still get
	// processed by the gorilla/websocket read loop.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Broadcast pushes u to every connected subscriber, dropping any that have
// gone stale rather than letting one slow client block the rest.
func (h *Hub) Broadcast(u Update) {
	payload, err := json.Marshal(u)
	if err != nil {
		return
	}

	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.clients))
	for _, s := range h.clients {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	var stale []string
	for _, s := range subs {
		s.mu.Lock()
		err := s.conn.WriteMessage(websocket.TextMessage, payload)
		s.mu.Unlock()
		if err != nil {
			stale = append(stale, s.id)
		}
	}
	if len(stale) == 0 {
		return
	}
	h.mu.Lock()
	for _, id := range stale {
		delete(h.clients, id)
	}
	h.mu.Unlock()
}
