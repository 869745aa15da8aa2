package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-microservice-base/pkg/response"
	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"

	"github.com/tinywideclouds/go-push-receiver/pkg/registration"
)

// DeviceAPI registers the extra surfaces (iOS, browsers) that local
// notifications are mirrored to. FCM tokens arrive through the token refresh
// path instead.
type DeviceAPI struct {
	Store        registration.Store
	Installation urn.URN
	Logger       *slog.Logger
}

func NewDeviceAPI(store registration.Store, installation urn.URN, logger *slog.Logger) *DeviceAPI {
	return &DeviceAPI{
		Store:        store,
		Installation: installation,
		Logger:       logger.With("component", "DeviceAPI"),
	}
}

type TokenRequest struct {
	Token string `json:"token"`
}

// --- DOOR A: Apple (APNs) ---

func (api *DeviceAPI) RegisterAPNS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Token == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing token")
		return
	}

	if err := api.Store.RegisterAPNS(ctx, api.Installation, req.Token); err != nil {
		api.Logger.Error("failed to register apns", "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}
	api.Logger.Info("RegisterAPNS: Token registered", "actor", actor(r))

	w.WriteHeader(http.StatusNoContent)
}

func (api *DeviceAPI) UnregisterAPNS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := api.Store.UnregisterAPNS(ctx, api.Installation, req.Token); err != nil {
		// Log but don't fail hard; idempotency is preferred for unregister
		api.Logger.Warn("failed to unregister apns", "err", err)
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- DOOR B: Web (VAPID) ---

func (api *DeviceAPI) RegisterWeb(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var sub registration.WebSubscription
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		api.Logger.Error("RegisterWeb: JSON Decode failed", "err", err)
		response.WriteJSONError(w, http.StatusBadRequest, "invalid subscription json")
		return
	}

	if sub.Endpoint == "" || sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		api.Logger.Warn("RegisterWeb: Validation failed", "reason", "missing fields")
		response.WriteJSONError(w, http.StatusBadRequest, "incomplete subscription object")
		return
	}

	if err := api.Store.RegisterWeb(ctx, api.Installation, sub); err != nil {
		api.Logger.Error("failed to register web", "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}
	api.Logger.Info("RegisterWeb: Subscription registered", "actor", actor(r), "endpoint", sub.Endpoint)

	w.WriteHeader(http.StatusNoContent)
}

type UnregisterWebRequest struct {
	Endpoint string `json:"endpoint"`
}

func (api *DeviceAPI) UnregisterWeb(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req UnregisterWebRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Logger.Error("UnregisterWeb: JSON Decode failed", "err", err)
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	// We only need the Endpoint URL to identify and delete the row
	if req.Endpoint == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing endpoint")
		return
	}

	if err := api.Store.UnregisterWeb(ctx, api.Installation, req.Endpoint); err != nil {
		api.Logger.Warn("failed to unregister web", "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "failed to unregister web")
		return
	}
	api.Logger.Info("UnregisterWeb: Subscription unregistered", "actor", actor(r), "endpoint", req.Endpoint)

	w.WriteHeader(http.StatusNoContent)
}
