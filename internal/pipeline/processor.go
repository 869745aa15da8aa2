package pipeline

import (
	"context"
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/tinywideclouds/go-push-receiver/pkg/push"
)

// NewProcessor routes each decoded event to the receiver. Handler failures are
// logged and the delivery is still Acked: display is at-most-once, so a
// redelivery must never post a second copy of a notification.
func NewProcessor(handler push.EventHandler, logger *slog.Logger) messagepipeline.StreamProcessor[Event] {
	return func(ctx context.Context, original messagepipeline.Message, ev *Event) error {
		procLogger := logger.With("pubsub_msg_id", original.ID, "event", string(ev.Kind))

		switch ev.Kind {
		case EventTokenRefresh:
			if err := handler.OnTokenRefresh(ctx, ev.Token); err != nil {
				procLogger.Error("Token refresh failed", "err", err)
				return nil
			}
		default:
			if err := handler.OnMessageReceived(ctx, *ev.Message); err != nil {
				procLogger.Error("Message handling failed; not redelivering", "message_id", ev.Message.ID, "err", err)
				return nil
			}
		}
		procLogger.Debug("Event processed")
		return nil
	}
}
