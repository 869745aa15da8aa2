// Package api exposes the receiver over HTTP for hosts that cannot reach
// the Pub/Sub subscription, and for operators.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/tinywideclouds/go-push-receiver/internal/lifecycle"
	"github.com/tinywideclouds/go-push-receiver/internal/receiver"
	"github.com/tinywideclouds/go-push-receiver/pkg/push"
)

// StateSetter accepts host lifecycle reports.
type StateSetter interface {
	Set(lifecycle.State)
}

// StatsSource reports receiver counters.
type StatsSource interface {
	Stats() receiver.Stats
}

type ReceiverAPI struct {
	Handler   push.EventHandler
	Lifecycle StateSetter // nil when the state is fixed
	Stats     StatsSource
	Logger    *slog.Logger
}

func NewReceiverAPI(handler push.EventHandler, lc StateSetter, stats StatsSource, logger *slog.Logger) *ReceiverAPI {
	return &ReceiverAPI{
		Handler:   handler,
		Lifecycle: lc,
		Stats:     stats,
		Logger:    logger.With("component", "ReceiverAPI"),
	}
}

type LifecycleRequest struct {
	State string `json:"state"`
}

func (api *ReceiverAPI) SetLifecycle(w http.ResponseWriter, r *http.Request) {
	if api.Lifecycle == nil {
		response.WriteJSONError(w, http.StatusConflict, "app state is not host-reported")
		return
	}

	var req LifecycleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	state, err := lifecycle.ParseState(req.State)
	if err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	api.Lifecycle.Set(state)
	w.WriteHeader(http.StatusNoContent)
}

func (api *ReceiverAPI) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := api.Handler.OnTokenRefresh(r.Context(), req.Token); err != nil {
		if errors.Is(err, push.ErrEmptyToken) {
			response.WriteJSONError(w, http.StatusBadRequest, "missing token")
			return
		}
		api.Logger.Error("token refresh failed", "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "token refresh failed")
		return
	}

	// Registration continues in the background.
	w.WriteHeader(http.StatusAccepted)
}

func (api *ReceiverAPI) ReceiveMessage(w http.ResponseWriter, r *http.Request) {
	var msg push.InboundMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid message json")
		return
	}

	if err := api.Handler.OnMessageReceived(r.Context(), msg); err != nil {
		api.Logger.Error("message handling failed", "actor", actor(r), "err", err)
		response.WriteJSONError(w, http.StatusBadGateway, "failed to display notification")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (api *ReceiverAPI) GetStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, api.Stats.Stats())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// actor names the authenticated caller for audit logs.
func actor(r *http.Request) string {
	if id, ok := middleware.GetUserHandleFromContext(r.Context()); ok {
		return id
	}
	return "anonymous"
}
