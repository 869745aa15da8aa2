package registrar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultRegisterPath is the backend's device registration endpoint.
const DefaultRegisterPath = "/api/notifications/register-device/"

// BackendConfig addresses the backend registration endpoint.
type BackendConfig struct {
	BaseURL    string
	Path       string
	AuthToken  string
	DeviceType string
	Timeout    time.Duration
}

type registerDeviceRequest struct {
	Token      string `json:"token"`
	DeviceType string `json:"device_type"`
}

// BackendRegistrar posts new tokens to the backend so it can target this device.
type BackendRegistrar struct {
	url        string
	authToken  string
	deviceType string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewBackendRegistrar(cfg BackendConfig, logger *slog.Logger) *BackendRegistrar {
	path := cfg.Path
	if path == "" {
		path = DefaultRegisterPath
	}
	deviceType := cfg.DeviceType
	if deviceType == "" {
		deviceType = "android"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BackendRegistrar{
		url:        strings.TrimRight(cfg.BaseURL, "/") + path,
		authToken:  cfg.AuthToken,
		deviceType: deviceType,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "BackendRegistrar"),
	}
}

func (r *BackendRegistrar) RegisterToken(ctx context.Context, token string) error {
	body, err := json.Marshal(registerDeviceRequest{Token: token, DeviceType: r.deviceType})
	if err != nil {
		return fmt.Errorf("failed to marshal register request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build register request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+r.authToken)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("register request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		// Older backends do not expose the endpoint yet.
		r.logger.Info("Registration endpoint not implemented; continuing without backend registration", "url", r.url)
		return nil
	default:
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("backend rejected token registration: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
}
