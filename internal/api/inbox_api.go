package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/tinywideclouds/go-push-receiver/pkg/display"
)

// Inbox is the in-memory notification tray.
type Inbox interface {
	List() []display.Notification
	Tap(id int32) (display.Notification, error)
	Dismiss(id int32) error
}

type InboxAPI struct {
	Inbox  Inbox
	Logger *slog.Logger
}

func NewInboxAPI(inbox Inbox, logger *slog.Logger) *InboxAPI {
	return &InboxAPI{Inbox: inbox, Logger: logger.With("component", "InboxAPI")}
}

func (api *InboxAPI) List(w http.ResponseWriter, _ *http.Request) {
	items := api.Inbox.List()
	if items == nil {
		items = []display.Notification{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (api *InboxAPI) Tap(w http.ResponseWriter, r *http.Request) {
	id, ok := notificationID(w, r)
	if !ok {
		return
	}
	n, err := api.Inbox.Tap(id)
	if err != nil {
		writeInboxError(w, err)
		return
	}
	api.Logger.Debug("Notification tapped", "notification_id", id, "actor", actor(r))
	writeJSON(w, http.StatusOK, n)
}

func (api *InboxAPI) Dismiss(w http.ResponseWriter, r *http.Request) {
	id, ok := notificationID(w, r)
	if !ok {
		return
	}
	if err := api.Inbox.Dismiss(id); err != nil {
		writeInboxError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func notificationID(w http.ResponseWriter, r *http.Request) (int32, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 32)
	if err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid notification id")
		return 0, false
	}
	return int32(id), true
}

func writeInboxError(w http.ResponseWriter, err error) {
	if errors.Is(err, display.ErrNotFound) {
		response.WriteJSONError(w, http.StatusNotFound, "notification not found")
		return
	}
	response.WriteJSONError(w, http.StatusInternalServerError, "inbox failure")
}
