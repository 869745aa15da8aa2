package display

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/tinywideclouds/go-push-receiver/pkg/display"
)

// TapListener is told about a tapped notification.
type TapListener func(n display.Notification)

// Tray is an in-memory notification shade. It is the local manager used when
// the receiver runs next to the host UI, and in tests.
type Tray struct {
	mu            sync.RWMutex
	channels      map[string]display.Channel
	notifications map[int32]display.Notification
	order         []int32
	listeners     []TapListener
	logger        *slog.Logger
}

func NewTray(logger *slog.Logger) *Tray {
	return &Tray{
		channels:      make(map[string]display.Channel),
		notifications: make(map[int32]display.Notification),
		logger:        logger.With("component", "Tray"),
	}
}

func (t *Tray) CreateChannel(_ context.Context, ch display.Channel) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.channels[ch.ID]; ok {
		return nil
	}
	t.channels[ch.ID] = ch
	t.logger.Debug("Channel created", "channel_id", ch.ID)
	return nil
}

func (t *Tray) Notify(_ context.Context, n display.Notification) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.notifications[n.ID]; !ok {
		t.order = append(t.order, n.ID)
	}
	t.notifications[n.ID] = n
	return nil
}

// OnTap registers a listener for taps.
func (t *Tray) OnTap(l TapListener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, l)
}

// List returns the notifications currently shown, oldest first.
func (t *Tray) List() []display.Notification {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]display.Notification, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.notifications[id])
	}
	return out
}

// Channels returns the declared channels.
func (t *Tray) Channels() []display.Channel {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]display.Channel, 0, len(t.channels))
	for _, ch := range t.channels {
		out = append(out, ch)
	}
	slices.SortFunc(out, func(a, b display.Channel) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Tap simulates the user tapping a notification. Auto-cancel notifications
// are removed from the tray.
func (t *Tray) Tap(id int32) (display.Notification, error) {
	t.mu.Lock()
	n, ok := t.notifications[id]
	if !ok {
		t.mu.Unlock()
		return display.Notification{}, display.ErrNotFound
	}
	if n.AutoCancel {
		t.removeLocked(id)
	}
	listeners := slices.Clone(t.listeners)
	t.mu.Unlock()

	for _, l := range listeners {
		l(n)
	}
	return n, nil
}

// Dismiss removes a notification without tapping it.
func (t *Tray) Dismiss(id int32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.notifications[id]; !ok {
		return display.ErrNotFound
	}
	t.removeLocked(id)
	return nil
}

func (t *Tray) removeLocked(id int32) {
	delete(t.notifications, id)
	t.order = slices.DeleteFunc(t.order, func(v int32) bool { return v == id })
}
