package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
	"github.com/tinywideclouds/go-push-receiver/pkg/registration"
)

const (
	platformFCM  = "fcm"
	platformAPNS = "apns"
	platformWeb  = "web"
)

// FirestoreStore implements registration.Store using Google Cloud Firestore.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

// deviceRecord holds either a plain token (fcm, apns) or a web subscription.
type deviceRecord struct {
	Platform        string                        `firestore:"platform"`
	Token           string                        `firestore:"token,omitempty"`
	WebSubscription *registration.WebSubscription `firestore:"web_subscription,omitempty"`
	UpdatedAt       time.Time                     `firestore:"updated_at"`
}

func (s *FirestoreStore) RegisterFCM(ctx context.Context, installation urn.URN, token string) error {
	return s.putToken(ctx, installation, platformFCM, token)
}

func (s *FirestoreStore) RegisterAPNS(ctx context.Context, installation urn.URN, token string) error {
	return s.putToken(ctx, installation, platformAPNS, token)
}

func (s *FirestoreStore) RegisterWeb(ctx context.Context, installation urn.URN, sub registration.WebSubscription) error {
	// The endpoint URL identifies a web subscription.
	record := deviceRecord{
		Platform:        platformWeb,
		WebSubscription: &sub,
		UpdatedAt:       time.Now(),
	}
	if _, err := s.deviceRef(installation, platformWeb, sub.Endpoint).Set(ctx, record); err != nil {
		return fmt.Errorf("failed to store web subscription: %w", err)
	}
	return nil
}

func (s *FirestoreStore) UnregisterFCM(ctx context.Context, installation urn.URN, token string) error {
	return s.delete(ctx, installation, platformFCM, token)
}

func (s *FirestoreStore) UnregisterAPNS(ctx context.Context, installation urn.URN, token string) error {
	return s.delete(ctx, installation, platformAPNS, token)
}

func (s *FirestoreStore) UnregisterWeb(ctx context.Context, installation urn.URN, endpoint string) error {
	return s.delete(ctx, installation, platformWeb, endpoint)
}

// Fetch reads every device document of the installation and sorts them into buckets.
func (s *FirestoreStore) Fetch(ctx context.Context, installation urn.URN) (*registration.Registration, error) {
	iter := s.devicesCollection(installation).Documents(ctx)
	defer iter.Stop()

	reg := &registration.Registration{
		Installation:     installation,
		FCMTokens:        make([]string, 0),
		APNSTokens:       make([]string, 0),
		WebSubscriptions: make([]registration.WebSubscription, 0),
	}

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore iteration failed: %w", err)
		}

		var record deviceRecord
		if err := doc.DataTo(&record); err != nil {
			// corrupt rows are skipped
			continue
		}

		switch {
		case record.Platform == platformWeb && record.WebSubscription != nil:
			reg.WebSubscriptions = append(reg.WebSubscriptions, *record.WebSubscription)
		case record.Platform == platformAPNS && record.Token != "":
			reg.APNSTokens = append(reg.APNSTokens, record.Token)
		case record.Token != "":
			reg.FCMTokens = append(reg.FCMTokens, record.Token)
		}
	}

	return reg, nil
}

// --- Helpers ---

func (s *FirestoreStore) putToken(ctx context.Context, installation urn.URN, platform, token string) error {
	record := deviceRecord{
		Platform:  platform,
		Token:     token,
		UpdatedAt: time.Now(),
	}
	if _, err := s.deviceRef(installation, platform, token).Set(ctx, record); err != nil {
		return fmt.Errorf("failed to store %s token: %w", platform, err)
	}
	return nil
}

func (s *FirestoreStore) delete(ctx context.Context, installation urn.URN, platform, key string) error {
	if _, err := s.deviceRef(installation, platform, key).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete %s registration: %w", platform, err)
	}
	return nil
}

// deviceRef: installations/{installation}/devices/{hash(platform:key)}
func (s *FirestoreStore) deviceRef(installation urn.URN, platform, key string) *firestore.DocumentRef {
	return s.devicesCollection(installation).Doc(hashKey(platform + ":" + key))
}

func (s *FirestoreStore) devicesCollection(installation urn.URN) *firestore.CollectionRef {
	return s.client.Collection("installations").Doc(installation.String()).Collection("devices")
}

func hashKey(k string) string {
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:])
}
