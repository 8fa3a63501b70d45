package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/speakeasy/internal/platform/metrics"
)

const defaultWriteTimeout = 10 * time.Second

// WebSocketHub keeps the open notification sockets of each learner.
type WebSocketHub struct {
	mu             sync.RWMutex
	conns          map[string]map[*websocket.Conn]struct{}
	writeTimeout   time.Duration
	originPatterns []string
}

// HubOption configures a WebSocketHub.
type HubOption func(*WebSocketHub)

// WithOriginPatterns allows cross-origin upgrades from the given host patterns.
func WithOriginPatterns(patterns ...string) HubOption {
	return func(h *WebSocketHub) { h.originPatterns = patterns }
}

// WithWriteTimeout bounds each frame write.
func WithWriteTimeout(d time.Duration) HubOption {
	return func(h *WebSocketHub) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// NewWebSocketHub creates an empty hub.
func NewWebSocketHub(opts ...HubOption) *WebSocketHub {
	h := &WebSocketHub{
		conns:        make(map[string]map[*websocket.Conn]struct{}),
		writeTimeout: defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeUser upgrades the request and holds the socket open for userID until
// the client goes away or the request context ends. The socket is
// write-only: any data frame from the client closes it.
func (h *WebSocketHub) ServeUser(w http.ResponseWriter, r *http.Request, userID string) error {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		return fmt.Errorf("accepting websocket: %w", err)
	}
	defer c.CloseNow()

	h.add(userID, c)
	defer h.remove(userID, c)

	ctx := c.CloseRead(r.Context())
	<-ctx.Done()
	return nil
}

// Notify writes n as a JSON frame to every socket of the learner.
func (h *WebSocketHub) Notify(ctx context.Context, n Notification) error {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.conns[n.UserID]))
	for c := range h.conns[n.UserID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	if len(conns) == 0 {
		return ErrNoRecipient
	}

	var errs []error
	for _, c := range conns {
		wctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
		err := wsjson.Write(wctx, c, n)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("writing websocket frame: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Count returns the number of open sockets for userID.
func (h *WebSocketHub) Count(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

func (h *WebSocketHub) add(userID string, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[userID]
	if !ok {
		set = make(map[*websocket.Conn]struct{})
		h.conns[userID] = set
	}
	set[c] = struct{}{}
	metrics.WebSocketClients.Inc()
	slog.Debug("websocket connected", "user_id", userID, "sockets", len(set))
}

func (h *WebSocketHub) remove(userID string, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.conns[userID]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.conns, userID)
	}
	metrics.WebSocketClients.Dec()
	slog.Debug("websocket disconnected", "user_id", userID)
}
