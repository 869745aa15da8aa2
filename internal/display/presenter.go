// Package display builds local notifications from resolved message fields and
// hands them to a display.Manager.
package display

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/tinywideclouds/go-push-receiver/pkg/display"
	"github.com/tinywideclouds/go-push-receiver/pkg/push"
)

// DefaultSound is the system default notification sound.
const DefaultSound = "default"

// DefaultChannel is declared when no channel is configured.
var DefaultChannel = display.Channel{
	ID:          "imanage_alerts",
	Name:        "Imanage AI Alerts",
	Description: "Business alerts and notifications",
	Importance:  display.ImportanceHigh,
}

// Config controls how notifications are built.
type Config struct {
	Channel display.Channel
	// RequireChannels is set when the notification subsystem needs a channel
	// declared before anything is posted to it.
	RequireChannels bool
	Icon            string
	Sound           string
}

type Presenter struct {
	manager display.Manager
	ids     display.IDGenerator
	cfg     Config
	now     func() time.Time
	logger  *slog.Logger
}

func NewPresenter(manager display.Manager, ids display.IDGenerator, cfg Config, logger *slog.Logger) *Presenter {
	if cfg.Channel.ID == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Sound == "" {
		cfg.Sound = DefaultSound
	}
	return &Presenter{
		manager: manager,
		ids:     ids,
		cfg:     cfg,
		now:     time.Now,
		logger:  logger.With("component", "Presenter"),
	}
}

// Show builds the notification and posts it. It returns what was posted.
// Errors from the manager are returned as-is apart from wrapping.
func (p *Presenter) Show(ctx context.Context, title, message string, kind push.Kind, data map[string]string) (display.Notification, error) {
	if p.cfg.RequireChannels {
		if err := p.manager.CreateChannel(ctx, p.cfg.Channel); err != nil {
			return display.Notification{}, fmt.Errorf("failed to create channel %q: %w", p.cfg.Channel.ID, err)
		}
	}

	n := display.Notification{
		ID:         p.ids.NextID(),
		ChannelID:  p.cfg.Channel.ID,
		Title:      title,
		Body:       message,
		Kind:       kind,
		Priority:   PriorityFor(kind),
		Sound:      p.cfg.Sound,
		AutoCancel: true,
		Icon:       p.cfg.Icon,
		Tag:        kind.String(),
		Data:       maps.Clone(data),
		PostedAt:   p.now(),
	}

	if err := p.manager.Notify(ctx, n); err != nil {
		return display.Notification{}, fmt.Errorf("failed to post notification %d: %w", n.ID, err)
	}
	p.logger.Debug("Notification posted", "id", n.ID, "kind", n.Kind.String(), "priority", n.Priority.String())
	return n, nil
}

// PriorityFor is High for routine categories and Max for urgent ones.
func PriorityFor(kind push.Kind) display.Priority {
	if kind.Urgent() {
		return display.PriorityMax
	}
	return display.PriorityHigh
}
