package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	DefaultTitle = "Coffee Masters"
	DefaultBody  = "Your order is ready for pickup!"
	icon         = "/images/icons/icon.png"
	keepRecent   = 20
)

// Payload is the inbound push message. Both fields are optional.
type Payload struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
}

// Action is a button of a displayed notification.
type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
	URL    string `json:"url,omitempty"`
}

// Notification is what gets displayed.
type Notification struct {
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Icon      string    `json:"icon"`
	Actions   []Action  `json:"actions"`
	ArrivedAt time.Time `json:"arrived_at"`
}

// Notifier displays a notification.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier "displays" notifications in the log.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, notification Notification) error {
	n.logger.Info("notification", zap.String("title", notification.Title), zap.String("body", notification.Body))
	return nil
}

// Build fills the defaults in for missing payload fields.
func Build(p Payload, now time.Time) Notification {
	n := Notification{
		Title: DefaultTitle,
		Body:  DefaultBody,
		Icon:  icon,
		Actions: []Action{
			{Action: "explore", Title: "View Order", URL: "/order"},
			{Action: "close", Title: "Close"},
		},
		ArrivedAt: now,
	}
	if p.Title != "" {
		n.Title = p.Title
	}
	if p.Body != "" {
		n.Body = p.Body
	}
	return n
}

// Handler turns push payloads into displayed notifications and remembers the
// most recent ones.
type Handler struct {
	notifier Notifier
	clock    clockwork.Clock
	logger   *zap.Logger

	mu     sync.Mutex
	recent []Notification
}

func NewHandler(notifier Notifier, clock clockwork.Clock, logger *zap.Logger) *Handler {
	return &Handler{notifier: notifier, clock: clock, logger: logger}
}

// Handle processes one raw push message. An empty body shows the default notification.
func (h *Handler) Handle(ctx context.Context, body []byte) error {
	h.logger.Debug("push payload received", zap.Int("bytes", len(body)))

	var p Payload
	if len(body) > 0 {
		if err := json.Unmarshal(body, &p); err != nil {
			return fmt.Errorf("invalid push payload: %w", err)
		}
	}

	n := Build(p, h.clock.Now())
	if err := h.notifier.Notify(ctx, n); err != nil {
		return fmt.Errorf("failed to display notification: %w", err)
	}

	h.mu.Lock()
	h.recent = append(h.recent, n)
	if len(h.recent) > keepRecent {
		h.recent = h.recent[len(h.recent)-keepRecent:]
	}
	h.mu.Unlock()
	return nil
}

// Recent returns the last notifications, newest first.
func (h *Handler) Recent() []Notification {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := slices.Clone(h.recent)
	slices.Reverse(out)
	return out
}
