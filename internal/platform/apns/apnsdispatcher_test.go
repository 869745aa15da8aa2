// --- File: internal/platform/apns/apnsdispatcher_test.go ---
package apns

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/sideshow/apns2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
	"github.com/tinywideclouds/go-push-receiver/pkg/display"
	"github.com/tinywideclouds/go-push-receiver/pkg/registration"
)

type MockAPNSClient struct {
	mock.Mock
}

func (m *MockAPNSClient) PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error) {
	args := m.Called(ctx, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apns2.Response), args.Error(1)
}

type mockStore struct {
	mock.Mock
	tokens []string
}

func (m *mockStore) Fetch(context.Context, urn.URN) (*registration.Registration, error) {
	return &registration.Registration{APNSTokens: m.tokens}, nil
}
func (m *mockStore) UnregisterAPNS(ctx context.Context, u urn.URN, token string) error {
	return m.Called(ctx, u, token).Error(0)
}
func (m *mockStore) RegisterFCM(context.Context, urn.URN, string) error   { return nil }
func (m *mockStore) RegisterAPNS(context.Context, urn.URN, string) error  { return nil }
func (m *mockStore) UnregisterFCM(context.Context, urn.URN, string) error { return nil }
func (m *mockStore) RegisterWeb(context.Context, urn.URN, registration.WebSubscription) error {
	return nil
}
func (m *mockStore) UnregisterWeb(context.Context, urn.URN, string) error { return nil }

func TestDisplay_Internal(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()
	installation, _ := urn.Parse("urn:pr:device:owner-iphone")
	n := display.Notification{ID: 5, Title: "Fraud alert", Body: "Refund spike", Priority: display.PriorityMax, Sound: "default", Tag: "alert"}

	t.Run("Happy Path - Success", func(t *testing.T) {
		client := new(MockAPNSClient)
		store := &mockStore{tokens: []string{"token-1"}}
		d := newDisplay(client, "com.test.app", store, installation, logger)

		client.On("PushWithContext", ctx, mock.MatchedBy(func(an *apns2.Notification) bool {
			return an.DeviceToken == "token-1" && an.Topic == "com.test.app" && an.Priority == apns2.PriorityHigh &&
				an.CollapseID == "5"
		})).Return(&apns2.Response{StatusCode: http.StatusOK}, nil)

		require.NoError(t, d.Notify(ctx, n))
		client.AssertExpectations(t)
	})

	t.Run("Self-Healing - Bad Device Token", func(t *testing.T) {
		client := new(MockAPNSClient)
		store := &mockStore{tokens: []string{"bad-token"}}
		d := newDisplay(client, "com.test.app", store, installation, logger)

		client.On("PushWithContext", ctx, mock.Anything).Return(&apns2.Response{
			StatusCode: http.StatusBadRequest,
			Reason:     apns2.ReasonBadDeviceToken,
		}, nil)
		store.On("UnregisterAPNS", ctx, installation, "bad-token").Return(nil)

		require.NoError(t, d.Notify(ctx, n))
		store.AssertExpectations(t)
	})

	t.Run("Transport Failure - best effort", func(t *testing.T) {
		client := new(MockAPNSClient)
		store := &mockStore{tokens: []string{"token-1"}}
		d := newDisplay(client, "com.test.app", store, installation, logger)

		client.On("PushWithContext", ctx, mock.Anything).Return(nil, errors.New("connection refused"))

		require.NoError(t, d.Notify(ctx, n))
		store.AssertNotCalled(t, "UnregisterAPNS", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestBuildPayload(t *testing.T) {
	raw, err := json.Marshal(BuildPayload(display.Notification{
		ID: 9, Title: "Low Stock", Body: "Item #42", Priority: display.PriorityMax, Sound: "default", Tag: "stock",
		Data: map[string]string{"product_id": "42"},
	}))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	aps := decoded["aps"].(map[string]any)
	assert.Equal(t, "time-sensitive", aps["interruption-level"])
	assert.Equal(t, "stock", aps["thread-id"])
	assert.Equal(t, "42", decoded["product_id"])
	alert := aps["alert"].(map[string]any)
	assert.Equal(t, "Low Stock", alert["title"])
}

func TestDisplay_SameKindDoesNotCollapse(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()
	installation, _ := urn.Parse("urn:pr:device:owner-iphone")

	client := new(MockAPNSClient)
	store := &mockStore{tokens: []string{"token-1"}}
	d := newDisplay(client, "com.test.app", store, installation, logger)

	var collapseIDs []string
	client.On("PushWithContext", ctx, mock.Anything).Run(func(args mock.Arguments) {
		collapseIDs = append(collapseIDs, args.Get(1).(*apns2.Notification).CollapseID)
	}).Return(&apns2.Response{StatusCode: http.StatusOK}, nil)

	require.NoError(t, d.Notify(ctx, display.Notification{ID: 1, Title: "Low Stock", Body: "Item #1", Tag: "stock"}))
	require.NoError(t, d.Notify(ctx, display.Notification{ID: 2, Title: "Low Stock", Body: "Item #2", Tag: "stock"}))

	assert.Equal(t, []string{"1", "2"}, collapseIDs)
}

func TestBuildPayload_ReservedKeys(t *testing.T) {
	raw, err := json.Marshal(BuildPayload(display.Notification{
		ID: 4, Title: "Refund", Body: "Order #9", Tag: "alert",
		Data: map[string]string{"aps": "hijack", "notification_id": "999", "order_id": "9"},
	}))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	aps, ok := decoded["aps"].(map[string]any)
	require.True(t, ok, "aps must stay the alert dictionary")
	assert.Equal(t, "Refund", aps["alert"].(map[string]any)["title"])
	assert.Equal(t, float64(4), decoded["notification_id"])
	assert.Equal(t, "9", decoded["order_id"])
}
