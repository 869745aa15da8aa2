// --- File: internal/platform/apns/apnsdispatcher.go ---
// Package apns renders local notifications on registered Apple devices.
package apns

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"

	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
	"github.com/tinywideclouds/go-push-receiver/pkg/display"
	"github.com/tinywideclouds/go-push-receiver/pkg/registration"
)

// APNSClient defines the subset of the apns2.Client methods we use.
// This allows mocking for unit tests.
type APNSClient interface {
	PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error)
}

// Config holds the credentials required to sign APNs tokens.
type Config struct {
	KeyID    string
	TeamID   string
	BundleID string
	// P8KeyContent is the raw string content of the .p8 file
	P8KeyContent string
	Sandbox      bool
}

type Display struct {
	client       APNSClient
	topic        string // the app bundle ID
	store        registration.Store
	installation urn.URN
	logger       *slog.Logger
}

// NewDisplay parses the P8 key immediately to fail fast on bad credentials.
func NewDisplay(cfg Config, store registration.Store, installation urn.URN, logger *slog.Logger) (*Display, error) {
	authKey, err := token.AuthKeyFromBytes([]byte(cfg.P8KeyContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse APNs P8 key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	})
	if cfg.Sandbox {
		client = client.Development()
	} else {
		client = client.Production()
	}

	return newDisplay(client, cfg.BundleID, store, installation, logger), nil
}

func newDisplay(client APNSClient, topic string, store registration.Store, installation urn.URN, logger *slog.Logger) *Display {
	return &Display{
		client:       client,
		topic:        topic,
		store:        store,
		installation: installation,
		logger:       logger.With("component", "APNSDisplay"),
	}
}

// CreateChannel is a no-op; APNs has no channel concept.
func (d *Display) CreateChannel(context.Context, display.Channel) error {
	return nil
}

// Notify pushes to each registered APNs token in turn. APNs has no multicast
// endpoint, so the loop is serial.
func (d *Display) Notify(ctx context.Context, n display.Notification) error {
	reg, err := d.store.Fetch(ctx, d.installation)
	if err != nil {
		return fmt.Errorf("failed to fetch apns tokens: %w", err)
	}
	if len(reg.APNSTokens) == 0 {
		return nil
	}

	p := BuildPayload(n)
	successCount, failureCount := 0, 0
	var invalidTokens []string

	for _, deviceToken := range reg.APNSTokens {
		notification := &apns2.Notification{
			DeviceToken: deviceToken,
			Topic:       d.topic,
			Payload:     p,
			Priority:    apns2.PriorityHigh,
			PushType:    apns2.PushTypeAlert,
			CollapseID:  n.ReplaceKey(),
		}

		res, err := d.client.PushWithContext(ctx, notification)
		if err != nil {
			d.logger.Error("APNs transport failed", "err", err)
			failureCount++
			continue
		}

		if res.Sent() {
			successCount++
			continue
		}
		failureCount++
		switch res.Reason {
		case apns2.ReasonBadDeviceToken, apns2.ReasonUnregistered, apns2.ReasonDeviceTokenNotForTopic:
			invalidTokens = append(invalidTokens, deviceToken)
		default:
			// The token may be fine and our configuration wrong.
			d.logger.Warn("APNs rejected notification", "reason", res.Reason, "status", res.StatusCode)
		}
	}

	for _, t := range invalidTokens {
		if err := d.store.UnregisterAPNS(ctx, d.installation, t); err != nil {
			d.logger.Warn("Failed to delete APNs token", "err", err)
		}
	}

	d.logger.Debug("APNs dispatched", "notification_id", n.ID,
		"success", successCount, "invalid", len(invalidTokens), "total_fail", failureCount)
	return nil
}

// BuildPayload maps a local notification onto an APNs alert payload.
func BuildPayload(n display.Notification) *payload.Payload {
	p := payload.NewPayload().
		AlertTitle(n.Title).
		AlertBody(n.Body).
		Sound(n.Sound).
		ThreadID(n.Tag).
		Category(n.Tag).
		Custom("notification_id", n.ID)

	if n.Priority == display.PriorityMax {
		p.InterruptionLevel(payload.InterruptionLevelTimeSensitive)
	}
	for k, v := range n.Data {
		switch k {
		case "aps", "notification_id":
			// Owned by the payload itself.
			continue
		}
		p.Custom(k, v)
	}
	return p
}
