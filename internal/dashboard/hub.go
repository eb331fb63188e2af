// Package dashboard implements icg serve's optional local, read-only
// dashboard: a JSON snapshot of the latest Work Order plus a live
// WebSocket feed of Signal rows as they are appended to the ledger.
// Entirely additive — the CLI pipeline (icg run, icg approval, icg
// adapter) works with no dashboard process running at all.
//
// Grounded on the teacher's internal/api.WebSocketHub: a connection set
// guarded by a mutex, a CheckOrigin-gated upgrader, a dead-connection
// sweep on broadcast. Generalized from a trace-event feed to a signal
// feed and from the teacher's always-on management API to a single
// read-only handler pair.
package dashboard

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/icg-systems/icg/internal/domain"
)

func newUpgrader(allowAllOrigins bool) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if allowAllOrigins {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			return strings.Contains(origin, r.Host)
		},
	}
}

// Hub fans out appended Signal rows to every connected dashboard client.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*websocket.Conn]bool
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHub creates a Hub. allowAllOrigins should only be set for local dev.
func NewHub(logger *slog.Logger, allowAllOrigins bool) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:  make(map[*websocket.Conn]bool),
		upgrader: newUpgrader(allowAllOrigins),
		logger:   logger.With("component", "dashboard.Hub"),
	}
}

// HandleWebSocket upgrades the request and registers the connection for
// Broadcast until the client disconnects. Read-only: any client message
// is discarded, it only keeps the read pump alive to detect disconnects.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
	h.logger.Debug("dashboard client connected", "remote", conn.RemoteAddr())

	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			_ = conn.Close()
			h.logger.Debug("dashboard client disconnected", "remote", conn.RemoteAddr())
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast pushes a Signal row to every connected client, dropping any
// connection a write fails on.
func (h *Hub) Broadcast(sig domain.Signal) {
	msg, err := json.Marshal(map[string]any{"type": "signal", "data": sig})
	if err != nil {
		h.logger.Error("failed to marshal signal for dashboard", "error", err)
		return
	}

	h.mu.RLock()
	var dead []*websocket.Conn
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			dead = append(dead, conn)
		}
	}
	h.mu.RUnlock()

	if len(dead) > 0 {
		h.mu.Lock()
		for _, c := range dead {
			delete(h.clients, c)
			_ = c.Close()
		}
		h.mu.Unlock()
	}
}

// ClientCount returns the number of currently connected dashboard clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
