// Package web renders local notifications on registered browsers via Web Push.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
	"github.com/tinywideclouds/go-push-receiver/pkg/display"
	"github.com/tinywideclouds/go-push-receiver/pkg/registration"
)

// VapidConfig holds the application server keys used to sign Web Push requests.
type VapidConfig struct {
	PublicKey       string
	PrivateKey      string
	SubscriberEmail string
	TTL             int
}

type Display struct {
	vapid        VapidConfig
	store        registration.Store
	installation urn.URN
	logger       *slog.Logger
	httpClient   webpush.HTTPClient
}

func NewDisplay(cfg VapidConfig, store registration.Store, installation urn.URN, logger *slog.Logger) *Display {
	if cfg.TTL <= 0 {
		cfg.TTL = 60
	}
	return &Display{
		vapid:        cfg,
		store:        store,
		installation: installation,
		logger:       logger.With("component", "WebPushDisplay"),
		httpClient:   &http.Client{},
	}
}

// WithHTTPClient swaps the transport used for push service requests.
func (d *Display) WithHTTPClient(c webpush.HTTPClient) *Display {
	d.httpClient = c
	return d
}

// CreateChannel is a no-op; browsers have no channel concept.
func (d *Display) CreateChannel(context.Context, display.Channel) error {
	return nil
}

func (d *Display) Notify(ctx context.Context, n display.Notification) error {
	reg, err := d.store.Fetch(ctx, d.installation)
	if err != nil {
		return fmt.Errorf("failed to fetch web subscriptions: %w", err)
	}
	if len(reg.WebSubscriptions) == 0 {
		return nil
	}

	payloadBytes, err := BuildPayload(n)
	if err != nil {
		return err
	}

	urgency := webpush.UrgencyNormal
	if n.Priority >= display.PriorityHigh {
		urgency = webpush.UrgencyHigh
	}

	var invalid []string
	successCount, failureCount := 0, 0

	for _, sub := range reg.WebSubscriptions {
		s := &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.Keys.P256dh,
				Auth:   sub.Keys.Auth,
			},
		}

		resp, err := webpush.SendNotificationWithContext(ctx, payloadBytes, s, &webpush.Options{
			Subscriber:      d.vapid.SubscriberEmail,
			VAPIDPublicKey:  d.vapid.PublicKey,
			VAPIDPrivateKey: d.vapid.PrivateKey,
			TTL:             d.vapid.TTL,
			Urgency:         urgency,
			Topic:           n.ReplaceKey(),
			HTTPClient:      d.httpClient,
		})
		if err != nil {
			// Transport error (DNS, Timeout) - Log and skip, don't delete
			d.logger.Error("WebPush transport error", "endpoint", sub.Endpoint, "err", err)
			failureCount++
			continue
		}
		_ = resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusCreated, http.StatusOK, http.StatusAccepted:
			successCount++
		case http.StatusGone, http.StatusNotFound:
			invalid = append(invalid, sub.Endpoint)
			failureCount++
		default:
			d.logger.Warn("WebPush rejected", "status", resp.StatusCode, "endpoint", sub.Endpoint)
			failureCount++
		}
	}

	for _, endpoint := range invalid {
		if err := d.store.UnregisterWeb(ctx, d.installation, endpoint); err != nil {
			d.logger.Warn("Failed to delete web subscription", "endpoint", endpoint, "err", err)
		}
	}

	d.logger.Debug("WebPush dispatched", "notification_id", n.ID,
		"success", successCount, "invalid", len(invalid), "total_fail", failureCount)
	return nil
}

// BuildPayload renders the JSON body a service worker receives.
func BuildPayload(n display.Notification) ([]byte, error) {
	data := make(map[string]string, len(n.Data)+2)
	for k, v := range n.Data {
		data[k] = v
	}
	data["notification_id"] = fmt.Sprint(n.ID)
	data["type"] = n.Kind.String()

	b, err := json.Marshal(map[string]any{
		"notification": map[string]any{
			"title":              n.Title,
			"body":               n.Body,
			"icon":               n.Icon,
			"tag":                n.ReplaceKey(),
			"requireInteraction": n.Priority == display.PriorityMax,
		},
		"data": data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return b, nil
}
