// Package notify delivers achievement notifications to learners over the
// registered channels (WebSocket, Telegram).
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/p-n-ai/speakeasy/internal/platform/metrics"
	"github.com/p-n-ai/speakeasy/internal/progress"
)

// ErrNoRecipient is returned by a channel that cannot currently reach the
// learner, e.g. no open socket or no linked chat. The gateway treats it as a
// skip, not a failure.
var ErrNoRecipient = errors.New("no recipient")

// Notification announces one unlocked achievement.
type Notification struct {
	UserID      string               `json:"userId"`
	LessonID    int                  `json:"lessonId"`
	Achievement progress.Achievement `json:"achievement"`
	CreatedAt   time.Time            `json:"createdAt"`
}

// Text renders the notification for plain-text channels.
func (n Notification) Text() string {
	a := n.Achievement
	if a.Icon == "" {
		return a.Title + "\n" + a.Description
	}
	return fmt.Sprintf("%s %s\n%s", a.Icon, a.Title, a.Description)
}

// Channel is the interface each delivery channel implements.
type Channel interface {
	Notify(ctx context.Context, n Notification) error
}

// Gateway fans notifications out to registered channels.
type Gateway struct {
	channels map[string]Channel
	mu       sync.RWMutex
}

// NewGateway creates an empty gateway.
func NewGateway() *Gateway {
	return &Gateway{
		channels: make(map[string]Channel),
	}
}

// Register adds a channel to the gateway.
func (g *Gateway) Register(name string, ch Channel) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channels[name] = ch
	slog.Info("notification channel registered", "channel", name)
}

// HasChannel returns true if the named channel is registered.
func (g *Gateway) HasChannel(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.channels[name]
	return ok
}

// Channels returns the registered channel names in sorted order.
func (g *Gateway) Channels() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.channels))
	for name := range g.channels {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Notify delivers n on every channel. Channels without a recipient are
// skipped; the remaining failures are joined into the returned error.
func (g *Gateway) Notify(ctx context.Context, n Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	g.mu.RLock()
	channels := make(map[string]Channel, len(g.channels))
	for name, ch := range g.channels {
		channels[name] = ch
	}
	g.mu.RUnlock()

	var errs []error
	for name, ch := range channels {
		err := ch.Notify(ctx, n)
		switch {
		case err == nil:
			metrics.NotificationsSent.WithLabelValues(name, "sent").Inc()
		case errors.Is(err, ErrNoRecipient):
			metrics.NotificationsSent.WithLabelValues(name, "skipped").Inc()
		default:
			metrics.NotificationsSent.WithLabelValues(name, "failed").Inc()
			slog.Warn("notification failed",
				"channel", name,
				"user_id", n.UserID,
				"achievement", n.Achievement.Type,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// NotifyAll sends one notification per achievement.
func (g *Gateway) NotifyAll(ctx context.Context, userID string, lessonID int, achievements []progress.Achievement) error {
	var errs []error
	for _, a := range achievements {
		if err := g.Notify(ctx, Notification{UserID: userID, LessonID: lessonID, Achievement: a}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MockChannel is a test double for Channel.
type MockChannel struct {
	mu   sync.Mutex
	sent []Notification
	Err  error
}

func (m *MockChannel) Notify(_ context.Context, n Notification) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	m.sent = append(m.sent, n)
	m.mu.Unlock()
	return nil
}

// Sent returns the delivered notifications.
func (m *MockChannel) Sent() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Notification{}, m.sent...)
}
