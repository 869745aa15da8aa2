package display

import (
	"context"
	"log/slog"

	"github.com/tinywideclouds/go-push-receiver/pkg/display"
)

// Fanout posts to a primary manager and then to any mirrors. Only the
// primary's outcome is returned: once it has shown the notification, a mirror
// failure is logged and never surfaces as a display failure.
type Fanout struct {
	primary display.Manager
	mirrors []display.Manager
	logger  *slog.Logger
}

var _ display.Manager = (*Fanout)(nil)

// NewFanout wraps primary with zero or more best-effort mirrors.
func NewFanout(primary display.Manager, logger *slog.Logger, mirrors ...display.Manager) *Fanout {
	return &Fanout{
		primary: primary,
		mirrors: mirrors,
		logger:  logger.With("component", "Fanout"),
	}
}

// AddMirror appends m. It is not safe to call once notifications are flowing.
func (f *Fanout) AddMirror(m display.Manager) {
	f.mirrors = append(f.mirrors, m)
}

// Mirrors reports how many best-effort managers are attached.
func (f *Fanout) Mirrors() int {
	return len(f.mirrors)
}

func (f *Fanout) CreateChannel(ctx context.Context, ch display.Channel) error {
	if err := f.primary.CreateChannel(ctx, ch); err != nil {
		return err
	}
	for i, m := range f.mirrors {
		if err := m.CreateChannel(ctx, ch); err != nil {
			f.logger.Warn("Mirror channel creation failed", "mirror", i, "channel_id", ch.ID, "err", err)
		}
	}
	return nil
}

func (f *Fanout) Notify(ctx context.Context, n display.Notification) error {
	if err := f.primary.Notify(ctx, n); err != nil {
		return err
	}
	for i, m := range f.mirrors {
		if err := m.Notify(ctx, n); err != nil {
			f.logger.Warn("Mirror notify failed", "mirror", i, "notification_id", n.ID, "err", err)
		}
	}
	return nil
}
