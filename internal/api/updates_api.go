package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-push-receiver/internal/receiver"
)

const updateBuffer = 32

// UpdateSource fans received messages and taps out to subscribers.
type UpdateSource interface {
	Subscribe(l receiver.Listener) (unsubscribe func())
}

// UpdatesAPI streams receiver updates to the app as server-sent events.
type UpdatesAPI struct {
	Source UpdateSource
	Logger *slog.Logger
}

func NewUpdatesAPI(source UpdateSource, logger *slog.Logger) *UpdatesAPI {
	return &UpdatesAPI{Source: source, Logger: logger.With("component", "UpdatesAPI")}
}

// Stream holds the request open and writes one "update" event per receiver
// update until the client goes away. A client that falls behind loses updates
// rather than stalling the receiver.
func (api *UpdatesAPI) Stream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	updates := make(chan receiver.Update, updateBuffer)
	unsubscribe := api.Source.Subscribe(func(u receiver.Update) {
		select {
		case updates <- u:
		default:
			api.Logger.Warn("Update stream is behind; dropping update", "notification_id", u.NotificationID)
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		api.Logger.Error("Streaming unsupported", "err", err)
		return
	}
	api.Logger.Debug("Update stream opened", "actor", actor(r))

	for {
		select {
		case <-r.Context().Done():
			api.Logger.Debug("Update stream closed", "actor", actor(r))
			return
		case u := <-updates:
			b, err := json.Marshal(u)
			if err != nil {
				api.Logger.Error("Failed to encode update", "err", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: update\ndata: %s\n\n", b); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
