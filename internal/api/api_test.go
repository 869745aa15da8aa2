package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"

	"github.com/tinywideclouds/go-push-receiver/internal/api"
	internaldisplay "github.com/tinywideclouds/go-push-receiver/internal/display"
	"github.com/tinywideclouds/go-push-receiver/internal/lifecycle"
	"github.com/tinywideclouds/go-push-receiver/internal/receiver"
	"github.com/tinywideclouds/go-push-receiver/pkg/display"
	"github.com/tinywideclouds/go-push-receiver/pkg/push"
	"github.com/tinywideclouds/go-push-receiver/pkg/registration"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Mocks ---

type MockStore struct {
	mock.Mock
}

func (m *MockStore) RegisterFCM(ctx context.Context, u urn.URN, token string) error {
	return m.Called(ctx, u, token).Error(0)
}
func (m *MockStore) RegisterAPNS(ctx context.Context, u urn.URN, token string) error {
	return m.Called(ctx, u, token).Error(0)
}
func (m *MockStore) RegisterWeb(ctx context.Context, u urn.URN, sub registration.WebSubscription) error {
	return m.Called(ctx, u, sub).Error(0)
}
func (m *MockStore) UnregisterFCM(ctx context.Context, u urn.URN, token string) error {
	return m.Called(ctx, u, token).Error(0)
}
func (m *MockStore) UnregisterAPNS(ctx context.Context, u urn.URN, token string) error {
	return m.Called(ctx, u, token).Error(0)
}
func (m *MockStore) UnregisterWeb(ctx context.Context, u urn.URN, endpoint string) error {
	return m.Called(ctx, u, endpoint).Error(0)
}
func (m *MockStore) Fetch(ctx context.Context, u urn.URN) (*registration.Registration, error) {
	args := m.Called(ctx, u)
	return args.Get(0).(*registration.Registration), args.Error(1)
}

type MockHandler struct {
	mock.Mock
}

func (m *MockHandler) OnTokenRefresh(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}
func (m *MockHandler) OnMessageReceived(ctx context.Context, msg push.InboundMessage) error {
	return m.Called(ctx, msg).Error(0)
}

type fixedStats receiver.Stats

func (f fixedStats) Stats() receiver.Stats { return receiver.Stats(f) }

// Helper to inject UserID into context (simulating Auth Middleware)
func withUser(req *http.Request, userID string) *http.Request {
	return req.WithContext(middleware.ContextWithUserID(req.Context(), userID))
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

// --- Device registration ---

func TestRegisterAPNS(t *testing.T) {
	installation, _ := urn.Parse("urn:pr:device:owner-phone")

	t.Run("Success", func(t *testing.T) {
		store := new(MockStore)
		handler := api.NewDeviceAPI(store, installation, newTestLogger())
		store.On("RegisterAPNS", mock.Anything, installation, "apns-abc").Return(nil)

		req := withUser(httptest.NewRequest(http.MethodPost, "/api/v1/register/apns", jsonBody(t, map[string]string{"token": "apns-abc"})), "urn:pr:user:owner")
		w := httptest.NewRecorder()
		handler.RegisterAPNS(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		store.AssertExpectations(t)
	})

	t.Run("Rejects Empty Token", func(t *testing.T) {
		store := new(MockStore)
		handler := api.NewDeviceAPI(store, installation, newTestLogger())

		w := httptest.NewRecorder()
		handler.RegisterAPNS(w, httptest.NewRequest(http.MethodPost, "/api/v1/register/apns", strings.NewReader(`{"token":""}`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		store.AssertNotCalled(t, "RegisterAPNS", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Unregister Is Idempotent", func(t *testing.T) {
		store := new(MockStore)
		handler := api.NewDeviceAPI(store, installation, newTestLogger())
		store.On("UnregisterAPNS", mock.Anything, installation, "gone").Return(assert.AnError)

		w := httptest.NewRecorder()
		handler.UnregisterAPNS(w, httptest.NewRequest(http.MethodPost, "/api/v1/unregister/apns", strings.NewReader(`{"token":"gone"}`)))

		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestRegisterWeb(t *testing.T) {
	installation, _ := urn.Parse("urn:pr:device:owner-browser")

	validSub := registration.WebSubscription{Endpoint: "https://fcm.googleapis.com/fcm/send/xyz"}
	validSub.Keys.P256dh = "BNcRdreALRFXTkOOUHK1EtK2wtaz5Ry4YfYCA_0QTpQtUbVlUls0VJXg7A8u-Ts1XbjhazAkj7I99e8QcYP7DkM"
	validSub.Keys.Auth = "tBHItJI5svbpez7KI4CCXg"

	t.Run("Success", func(t *testing.T) {
		store := new(MockStore)
		handler := api.NewDeviceAPI(store, installation, newTestLogger())
		store.On("RegisterWeb", mock.Anything, installation, validSub).Return(nil)

		w := httptest.NewRecorder()
		handler.RegisterWeb(w, httptest.NewRequest(http.MethodPost, "/api/v1/register/web", jsonBody(t, validSub)))

		assert.Equal(t, http.StatusNoContent, w.Code)
		store.AssertExpectations(t)
	})

	t.Run("Rejects Missing Keys (Invalid Object)", func(t *testing.T) {
		store := new(MockStore)
		handler := api.NewDeviceAPI(store, installation, newTestLogger())

		w := httptest.NewRecorder()
		handler.RegisterWeb(w, httptest.NewRequest(http.MethodPost, "/api/v1/register/web", strings.NewReader(`{"endpoint": "https://valid.com"}`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Unregister Requires Endpoint", func(t *testing.T) {
		store := new(MockStore)
		handler := api.NewDeviceAPI(store, installation, newTestLogger())

		w := httptest.NewRecorder()
		handler.UnregisterWeb(w, httptest.NewRequest(http.MethodPost, "/api/v1/unregister/web", strings.NewReader(`{}`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Unregister Storage Failure", func(t *testing.T) {
		store := new(MockStore)
		handler := api.NewDeviceAPI(store, installation, newTestLogger())
		store.On("UnregisterWeb", mock.Anything, installation, "https://dead").Return(assert.AnError)

		w := httptest.NewRecorder()
		handler.UnregisterWeb(w, httptest.NewRequest(http.MethodPost, "/api/v1/unregister/web", strings.NewReader(`{"endpoint":"https://dead"}`)))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

// --- Receiver ---

func TestReceiverAPI(t *testing.T) {
	t.Run("Lifecycle Updates Tracker", func(t *testing.T) {
		tracker := lifecycle.NewTracker(lifecycle.Foreground, newTestLogger())
		handler := api.NewReceiverAPI(new(MockHandler), tracker, fixedStats{}, newTestLogger())

		w := httptest.NewRecorder()
		handler.SetLifecycle(w, httptest.NewRequest(http.MethodPut, "/api/v1/lifecycle", strings.NewReader(`{"state":"background"}`)))

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.True(t, tracker.IsInBackground())
	})

	t.Run("Lifecycle Rejects Unknown State", func(t *testing.T) {
		tracker := lifecycle.NewTracker(lifecycle.Foreground, newTestLogger())
		handler := api.NewReceiverAPI(new(MockHandler), tracker, fixedStats{}, newTestLogger())

		w := httptest.NewRecorder()
		handler.SetLifecycle(w, httptest.NewRequest(http.MethodPut, "/api/v1/lifecycle", strings.NewReader(`{"state":"asleep"}`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.False(t, tracker.IsInBackground())
	})

	t.Run("Lifecycle Without Tracker", func(t *testing.T) {
		handler := api.NewReceiverAPI(new(MockHandler), nil, fixedStats{}, newTestLogger())

		w := httptest.NewRecorder()
		handler.SetLifecycle(w, httptest.NewRequest(http.MethodPut, "/api/v1/lifecycle", strings.NewReader(`{"state":"background"}`)))

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("Token Refresh Accepted", func(t *testing.T) {
		h := new(MockHandler)
		h.On("OnTokenRefresh", mock.Anything, "fcm-1").Return(nil)
		handler := api.NewReceiverAPI(h, nil, fixedStats{}, newTestLogger())

		w := httptest.NewRecorder()
		handler.RefreshToken(w, httptest.NewRequest(http.MethodPost, "/api/v1/token", strings.NewReader(`{"token":"fcm-1"}`)))

		assert.Equal(t, http.StatusAccepted, w.Code)
		h.AssertExpectations(t)
	})

	t.Run("Token Refresh Empty", func(t *testing.T) {
		h := new(MockHandler)
		h.On("OnTokenRefresh", mock.Anything, "").Return(push.ErrEmptyToken)
		handler := api.NewReceiverAPI(h, nil, fixedStats{}, newTestLogger())

		w := httptest.NewRecorder()
		handler.RefreshToken(w, httptest.NewRequest(http.MethodPost, "/api/v1/token", strings.NewReader(`{}`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Message Delivered To Handler", func(t *testing.T) {
		h := new(MockHandler)
		h.On("OnMessageReceived", mock.Anything, mock.MatchedBy(func(m push.InboundMessage) bool {
			return m.Title() == "New Sale" && m.Kind() == push.KindSale
		})).Return(nil)
		handler := api.NewReceiverAPI(h, nil, fixedStats{}, newTestLogger())

		body := `{"data":{"title":"New Sale","message":"$120","type":"sale"}}`
		w := httptest.NewRecorder()
		handler.ReceiveMessage(w, httptest.NewRequest(http.MethodPost, "/api/v1/messages", strings.NewReader(body)))

		assert.Equal(t, http.StatusNoContent, w.Code)
		h.AssertExpectations(t)
	})

	t.Run("Message Display Failure", func(t *testing.T) {
		h := new(MockHandler)
		h.On("OnMessageReceived", mock.Anything, mock.Anything).Return(assert.AnError)
		handler := api.NewReceiverAPI(h, nil, fixedStats{}, newTestLogger())

		w := httptest.NewRecorder()
		handler.ReceiveMessage(w, httptest.NewRequest(http.MethodPost, "/api/v1/messages", strings.NewReader(`{}`)))

		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("Stats", func(t *testing.T) {
		handler := api.NewReceiverAPI(new(MockHandler), nil, fixedStats{Received: 3, Displayed: 2, Dropped: 1}, newTestLogger())

		w := httptest.NewRecorder()
		handler.GetStats(w, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var got receiver.Stats
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, int64(3), got.Received)
		assert.Equal(t, int64(1), got.Dropped)
	})
}

// --- Inbox ---

func TestInboxAPI(t *testing.T) {
	ctx := context.Background()
	tray := internaldisplay.NewTray(newTestLogger())
	require.NoError(t, tray.Notify(ctx, display.Notification{ID: 7, Title: "Low Stock", AutoCancel: true}))
	require.NoError(t, tray.Notify(ctx, display.Notification{ID: 8, Title: "Daily Summary"}))

	handler := api.NewInboxAPI(tray, newTestLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/notifications", handler.List)
	mux.HandleFunc("POST /api/v1/notifications/{id}/tap", handler.Tap)
	mux.HandleFunc("DELETE /api/v1/notifications/{id}", handler.Dismiss)

	do := func(method, path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(method, path, nil))
		return w
	}

	t.Run("List", func(t *testing.T) {
		w := do(http.MethodGet, "/api/v1/notifications")
		require.Equal(t, http.StatusOK, w.Code)
		var items []display.Notification
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
		assert.Len(t, items, 2)
	})

	t.Run("Tap Auto-Cancels", func(t *testing.T) {
		w := do(http.MethodPost, "/api/v1/notifications/7/tap")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, tray.List(), 1)
	})

	t.Run("Tap Unknown", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, do(http.MethodPost, "/api/v1/notifications/99/tap").Code)
	})

	t.Run("Bad ID", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, do(http.MethodDelete, "/api/v1/notifications/abc").Code)
	})

	t.Run("Dismiss", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, do(http.MethodDelete, "/api/v1/notifications/8").Code)
		assert.Empty(t, tray.List())
	})
}
