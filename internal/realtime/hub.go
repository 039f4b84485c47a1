package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"vitamora/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const maxTotalConns = 10000

// ErrHubClosed is returned by Register after Shutdown.
var ErrHubClosed = errors.New("realtime hub is shut down")

// Hub forwards broker changes to websocket clients by table.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	subs    []Subscription
	closed  bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "realtime hub" }

// Register adds a connection listening to tables.
func (h *Hub) Register(conn *websocket.Conn, userID uint, tables []string) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if len(h.clients) >= maxTotalConns {
		return nil, errors.New("server connection limit reached")
	}
	client := NewClient(h, conn, userID, tables)
	h.clients[client] = struct{}{}
	observability.WebSocketConnectionsTotal.Inc()
	return client, nil
}

// UnregisterClient removes the client and closes its send channel. Safe to call twice.
func (h *Hub) UnregisterClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.Send)
	observability.WebSocketConnectionsTotal.Dec()
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends change to every client listening to its table.
func (h *Hub) Broadcast(change Change) {
	data, err := json.Marshal(change)
	if err != nil {
		slog.Error("marshal realtime change", "error", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.Wants(change.Table) {
			c.TrySend(data)
		}
	}
}

// Attach subscribes the hub to every change of the given tables on sub.
func (h *Hub) Attach(ctx context.Context, sub Subscriber, tables ...string) error {
	for _, table := range tables {
		s, err := sub.Subscribe(ctx, table, nil, h.Broadcast)
		if err != nil {
			return err
		}
		h.mu.Lock()
		h.subs = append(h.subs, s)
		h.mu.Unlock()
	}
	return nil
}

// Disconnect closes every connection opened by userID and returns how many
// there were. Anonymous connections are never matched.
func (h *Hub) Disconnect(userID uint) int {
	if userID == 0 {
		return 0
	}
	h.mu.RLock()
	var matched []*Client
	for c := range h.clients {
		if c.UserID == userID {
			matched = append(matched, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range matched {
		if c.Conn != nil {
			_ = c.Conn.Close()
		}
		h.UnregisterClient(c)
	}
	return len(matched)
}

// Shutdown detaches from the broker and closes every connection.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	subs := h.subs
	h.subs = nil
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
	for _, c := range clients {
		if c.Conn != nil {
			_ = c.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down"))
			_ = c.Conn.Close()
		}
		h.UnregisterClient(c)
	}
	return nil
}
