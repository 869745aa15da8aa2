package receiverservice

import (
	"fmt"
	"log/slog"

	"github.com/tinywideclouds/go-push-receiver/internal/api"
	"github.com/tinywideclouds/go-push-receiver/internal/background"
	internaldisplay "github.com/tinywideclouds/go-push-receiver/internal/display"
	"github.com/tinywideclouds/go-push-receiver/internal/lifecycle"
	"github.com/tinywideclouds/go-push-receiver/pkg/display"
	"github.com/tinywideclouds/go-push-receiver/pkg/push"
	"github.com/tinywideclouds/go-push-receiver/receiverservice/config"
)

// BackgroundSignaler is a signaler that can be drained on shutdown.
type BackgroundSignaler interface {
	push.BackgroundSignaler
	Wait()
}

// NewPresenter builds the display operation on top of manager.
func NewPresenter(cfg config.DisplayConfig, manager display.Manager, logger *slog.Logger) *internaldisplay.Presenter {
	var ids display.IDGenerator = internaldisplay.NewSequence()
	if cfg.IDStrategy == config.IDStrategyClock {
		ids = internaldisplay.Clock{}
	}

	channel := internaldisplay.DefaultChannel
	if cfg.ChannelID != "" {
		channel.ID = cfg.ChannelID
	}
	if cfg.ChannelName != "" {
		channel.Name = cfg.ChannelName
	}
	if cfg.ChannelDescription != "" {
		channel.Description = cfg.ChannelDescription
	}

	return internaldisplay.NewPresenter(manager, ids, internaldisplay.Config{
		Channel:         channel,
		RequireChannels: cfg.RequireChannels,
		Icon:            cfg.Icon,
		Sound:           cfg.Sound,
	}, logger)
}

// NewAppState returns the foreground detector and, when the host reports its
// state, the setter the lifecycle endpoint drives.
func NewAppState(cfg config.LifecycleConfig, logger *slog.Logger) (push.AppState, api.StateSetter, error) {
	if cfg.AlwaysBackground {
		return lifecycle.NewAlwaysBackground(logger), nil, nil
	}
	initial := lifecycle.Foreground
	if cfg.InitialState != "" {
		s, err := lifecycle.ParseState(cfg.InitialState)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid lifecycle.initial_state: %w", err)
		}
		initial = s
	}
	tracker := lifecycle.NewTracker(initial, logger)
	return tracker, tracker, nil
}

// NewBackgroundSignaler picks the hand-off for cfg.Mode. It returns nil for
// BackgroundNone. publisher is only used in pubsub mode and task only in
// local mode.
func NewBackgroundSignaler(
	cfg config.BackgroundConfig,
	installation string,
	publisher background.Publisher,
	task background.Task,
	logger *slog.Logger,
) (BackgroundSignaler, error) {
	switch cfg.Mode {
	case config.BackgroundPubsub:
		if publisher == nil {
			return nil, fmt.Errorf("background mode %q needs a publisher", cfg.Mode)
		}
		return background.NewPubsubSignaler(publisher, installation, logger), nil
	case config.BackgroundLocal:
		if task == nil {
			return nil, fmt.Errorf("background mode %q needs a task", cfg.Mode)
		}
		return background.NewRunner(task, cfg.Hold, logger), nil
	case config.BackgroundNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown background mode %q", cfg.Mode)
	}
}
