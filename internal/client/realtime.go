package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"vitamora/internal/models"
	"vitamora/internal/realtime"
	"vitamora/internal/session"

	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 10 * time.Second
	closeWait        = time.Second
)

// RealtimeClient subscribes to row changes over the server's WebSocket
// endpoint. Each subscription owns one connection and does not reconnect;
// a dropped connection ends the subscription after a final RESYNC whose
// reason is realtime.ReasonDisconnected. Resubscribing is up to the caller.
type RealtimeClient struct {
	wsURL   string
	session *session.Context
	dialer  *websocket.Dialer
}

var _ realtime.Subscriber = (*RealtimeClient)(nil)

// NewRealtimeClient derives the ws:// or wss:// endpoint from baseURL.
func NewRealtimeClient(baseURL string, sess *session.Context) (*RealtimeClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, models.NewValidationError("Invalid server URL: " + err.Error())
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, models.NewValidationError("Unsupported server URL scheme " + u.Scheme)
	}
	u.Path += "/api/ws/realtime"
	return &RealtimeClient{
		wsURL:   u.String(),
		session: sess,
		dialer:  &websocket.Dialer{HandshakeTimeout: handshakeTimeout, Proxy: http.ProxyFromEnvironment},
	}, nil
}

// Subscribe dials the server and delivers matching changes to fn on the
// subscription's own goroutine. It returns once the server has accepted the
// connection.
func (r *RealtimeClient) Subscribe(ctx context.Context, table string, types []realtime.EventType, fn realtime.Handler) (realtime.Subscription, error) {
	q := url.Values{}
	q.Set("tables", table)
	header := http.Header{}
	if r.session != nil {
		if token := r.session.AccessToken(); token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}

	conn, resp, err := r.dialer.DialContext(ctx, r.wsURL+"?"+q.Encode(), header)
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if err != nil {
		if resp != nil && resp.StatusCode >= http.StatusBadRequest {
			return nil, decodeError(resp)
		}
		return nil, models.NewNetworkError(fmt.Errorf("dial realtime: %w", err))
	}

	sub := &wsSubscription{conn: conn, done: make(chan struct{})}
	go sub.readLoop(table, types, fn)
	go func() {
		select {
		case <-ctx.Done():
			sub.Unsubscribe()
		case <-sub.done:
		}
	}()
	return sub, nil
}

type wsSubscription struct {
	conn    *websocket.Conn
	once    sync.Once
	done    chan struct{}
	closing bool
	mu      sync.Mutex
}

func (s *wsSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closing = true
		s.mu.Unlock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(closeWait))
		_ = s.conn.Close()
	})
}

func (s *wsSubscription) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func (s *wsSubscription) readLoop(table string, types []realtime.EventType, fn realtime.Handler) {
	defer close(s.done)
	defer s.Unsubscribe()

	for {
		var change realtime.Change
		if err := s.conn.ReadJSON(&change); err != nil {
			if s.isClosing() {
				return
			}
			slog.Warn("realtime connection lost", "table", table, "error", err)
			// The caller can no longer trust its view of the table.
			resync := realtime.ResyncChange(realtime.ReasonDisconnected)
			resync.Table = table
			deliver(fn, resync)
			return
		}
		if change.Matches(table, types) {
			deliver(fn, change)
		}
	}
}

func deliver(fn realtime.Handler, change realtime.Change) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in realtime handler", "table", change.Table, "panic", r)
		}
	}()
	fn(change)
}
