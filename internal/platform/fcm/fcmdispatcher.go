// --- File: internal/platform/fcm/fcmdispatcher.go ---
// Package fcm relays local notifications to the installation's devices through
// Firebase Cloud Messaging.
package fcm

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"firebase.google.com/go/v4/messaging"

	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
	"github.com/tinywideclouds/go-push-receiver/pkg/display"
	"github.com/tinywideclouds/go-push-receiver/pkg/registration"
)

// MessagingClient defines the subset of the Firebase Messaging API we use.
// *messaging.Client satisfies it.
type MessagingClient interface {
	SendEachForMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// Relay is a display.Manager that renders notifications on registered FCM devices.
type Relay struct {
	client       MessagingClient
	store        registration.Store
	installation urn.URN
	logger       *slog.Logger
}

func NewRelay(client MessagingClient, store registration.Store, installation urn.URN, logger *slog.Logger) *Relay {
	return &Relay{
		client:       client,
		store:        store,
		installation: installation,
		logger:       logger.With("component", "FCMRelay"),
	}
}

// CreateChannel is a no-op: Android channels are declared on the device and
// FCM only references them by ID.
func (r *Relay) CreateChannel(context.Context, display.Channel) error {
	return nil
}

func (r *Relay) Notify(ctx context.Context, n display.Notification) error {
	reg, err := r.store.Fetch(ctx, r.installation)
	if err != nil {
		return fmt.Errorf("failed to fetch fcm tokens: %w", err)
	}
	tokens := reg.FCMTokens
	if len(tokens) == 0 {
		r.logger.Debug("No FCM tokens registered; skipping", "notification_id", n.ID)
		return nil
	}

	br, err := r.client.SendEachForMulticast(ctx, BuildMessage(tokens, n))
	if err != nil {
		if messaging.IsInvalidArgument(err) {
			r.logger.Error("FCM rejected batch as InvalidArgument (dropping)", "err", err)
			return nil
		}
		return fmt.Errorf("fcm transport failed: %w", err)
	}

	var invalidTokens []string
	retryableErrors := 0
	if br.FailureCount > 0 {
		for idx, resp := range br.Responses {
			if resp.Success {
				continue
			}
			if messaging.IsInvalidArgument(resp.Error) || messaging.IsRegistrationTokenNotRegistered(resp.Error) {
				invalidTokens = append(invalidTokens, tokens[idx])
				continue
			}
			retryableErrors++
		}
	}

	for _, t := range invalidTokens {
		if err := r.store.UnregisterFCM(ctx, r.installation, t); err != nil {
			r.logger.Warn("Failed to delete FCM token", "err", err)
		}
	}

	if retryableErrors > 0 {
		return fmt.Errorf("fcm batch had %d retryable errors", retryableErrors)
	}
	r.logger.Debug("FCM relayed", "notification_id", n.ID, "success", br.SuccessCount, "invalid", len(invalidTokens))
	return nil
}

// BuildMessage maps a local notification onto an FCM multicast message.
func BuildMessage(tokens []string, n display.Notification) *messaging.MulticastMessage {
	data := make(map[string]string, len(n.Data)+2)
	for k, v := range n.Data {
		if reservedDataKey(k) {
			continue
		}
		data[k] = v
	}
	data["notification_id"] = strconv.FormatInt(int64(n.ID), 10)
	if _, ok := data["type"]; !ok && n.Kind != "" {
		data["type"] = string(n.Kind)
	}

	return &messaging.MulticastMessage{
		Tokens: tokens,
		Data:   data,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Title:     n.Title,
				Body:      n.Body,
				Icon:      n.Icon,
				Sound:     n.Sound,
				Tag:       n.ReplaceKey(),
				ChannelID: n.ChannelID,
				Priority:  androidPriority(n.Priority),
			},
		},
	}
}

// reservedDataKey reports keys FCM refuses in a data payload. One of them
// fails the whole multicast with InvalidArgument.
func reservedDataKey(k string) bool {
	switch k {
	case "from", "notification", "message_type", "collapse_key":
		return true
	}
	return strings.HasPrefix(k, "google.") || strings.HasPrefix(k, "gcm.")
}

func androidPriority(p display.Priority) messaging.AndroidNotificationPriority {
	switch p {
	case display.PriorityMax:
		return messaging.PriorityMax
	case display.PriorityHigh:
		return messaging.PriorityHigh
	default:
		return messaging.PriorityDefault
	}
}
