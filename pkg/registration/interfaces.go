// --- File: pkg/registration/interfaces.go ---
package registration

import (
	"context"

	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
)

// WebSubscription is a browser Push API subscription. Keys are the
// base64url strings the browser hands out.
type WebSubscription struct {
	Endpoint string `json:"endpoint" firestore:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh" firestore:"p256dh"`
		Auth   string `json:"auth" firestore:"auth"`
	} `json:"keys" firestore:"keys"`
}

// Registration lists every address an installation can be reached on,
// bucketed by platform.
type Registration struct {
	Installation     urn.URN           `json:"installation"`
	FCMTokens        []string          `json:"fcm_tokens"`
	APNSTokens       []string          `json:"apns_tokens"`
	WebSubscriptions []WebSubscription `json:"web_subscriptions"`
}

// Store remembers where an installation can be reached.
type Store interface {
	RegisterFCM(ctx context.Context, installation urn.URN, token string) error
	RegisterAPNS(ctx context.Context, installation urn.URN, token string) error
	RegisterWeb(ctx context.Context, installation urn.URN, sub WebSubscription) error

	UnregisterFCM(ctx context.Context, installation urn.URN, token string) error
	UnregisterAPNS(ctx context.Context, installation urn.URN, token string) error
	UnregisterWeb(ctx context.Context, installation urn.URN, endpoint string) error

	// Fetch returns all current addresses for the installation.
	Fetch(ctx context.Context, installation urn.URN) (*Registration, error)
}
