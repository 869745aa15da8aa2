// Package receiver turns inbound push messages into local notifications.
package receiver

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"firebase.google.com/go/v4/messaging"

	"github.com/tinywideclouds/go-push-receiver/pkg/display"
	"github.com/tinywideclouds/go-push-receiver/pkg/push"
)

// Presenter is the display operation.
type Presenter interface {
	Show(ctx context.Context, title, message string, kind push.Kind, data map[string]string) (display.Notification, error)
}

// Update is what listeners are told: a message as it arrives, displayed or
// not, or a tap on a notification the receiver displayed.
type Update struct {
	Message push.InboundMessage `json:"message"`
	// NotificationID is zero when nothing was displayed.
	NotificationID int32 `json:"notification_id,omitempty"`
	Tapped         bool  `json:"tapped"`
}

// Listener is told about every Update.
type Listener func(u Update)

// Stats is a snapshot of the receiver counters.
type Stats struct {
	Received          int64 `json:"received"`
	Displayed         int64 `json:"displayed"`
	Dropped           int64 `json:"dropped"`
	BackgroundSignals int64 `json:"background_signals"`
	TokenRefreshes    int64 `json:"token_refreshes"`
	Taps              int64 `json:"taps"`
}

const defaultRegisterTimeout = 15 * time.Second

// Service implements push.EventHandler.
type Service struct {
	presenter  Presenter
	registrar  push.TokenRegistrar
	appState   push.AppState
	background push.BackgroundSignaler
	logger     *slog.Logger

	// RegisterTimeout bounds a single fire-and-forget token registration.
	RegisterTimeout time.Duration

	mu        sync.RWMutex
	listeners map[int]Listener
	nextID    int

	inflight sync.WaitGroup

	received, displayed, dropped, bgSignals, refreshes, taps atomic.Int64
}

var _ push.EventHandler = (*Service)(nil)

// New wires the receiver. registrar may be nil, in which case new tokens are
// only logged.
func New(
	presenter Presenter,
	registrar push.TokenRegistrar,
	appState push.AppState,
	background push.BackgroundSignaler,
	logger *slog.Logger,
) *Service {
	return &Service{
		presenter:       presenter,
		registrar:       registrar,
		appState:        appState,
		background:      background,
		logger:          logger.With("component", "Receiver"),
		RegisterTimeout: defaultRegisterTimeout,
		listeners:       make(map[int]Listener),
	}
}

// OnTokenRefresh logs the new token and hands it to the registrar without
// waiting for the outcome.
func (s *Service) OnTokenRefresh(ctx context.Context, token string) error {
	if token == "" {
		return push.ErrEmptyToken
	}
	s.refreshes.Add(1)
	s.logger.Debug("New registration token", "token", token)

	if s.registrar == nil {
		return nil
	}

	regCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.RegisterTimeout)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer cancel()
		if err := s.registrar.RegisterToken(regCtx, token); err != nil {
			s.logger.Warn("Token registration failed", "err", err)
			return
		}
		s.logger.Info("Token registered")
	}()
	return nil
}

// OnMessageReceived displays msg when both a title and a body resolve, then
// hands off to the background collaborator if the app is not in the foreground.
func (s *Service) OnMessageReceived(ctx context.Context, msg push.InboundMessage) error {
	s.received.Add(1)
	s.logger.Debug("Message received", "message_id", msg.ID, "from", msg.From, "data_keys", len(msg.Data))

	update := Update{Message: msg}
	title, body := msg.Title(), msg.Message()
	if title != "" && body != "" {
		n, err := s.presenter.Show(ctx, title, body, msg.Kind(), msg.Data)
		if err != nil {
			return err
		}
		s.displayed.Add(1)
		update.NotificationID = n.ID
	} else {
		s.dropped.Add(1)
		s.logger.Debug("Message has no displayable title/body; skipping", "message_id", msg.ID)
	}

	s.notifyListeners(update)

	if s.appState != nil && s.background != nil && s.appState.IsInBackground() {
		s.bgSignals.Add(1)
		s.background.SignalBackgroundStart(ctx)
	}
	return nil
}

// OnNotificationTapped tells listeners that the user opened n. The update
// carries the notification's data so the app can route to it.
func (s *Service) OnNotificationTapped(n display.Notification) {
	s.taps.Add(1)
	s.logger.Debug("Notification tapped", "notification_id", n.ID, "kind", n.Kind.String())
	s.notifyListeners(Update{
		Message: push.InboundMessage{
			Data:         maps.Clone(n.Data),
			Notification: &messaging.Notification{Title: n.Title, Body: n.Body},
		},
		NotificationID: n.ID,
		Tapped:         true,
	})
}

// Subscribe registers l for every received message and tap. The returned func removes it.
func (s *Service) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Service) notifyListeners(u Update) {
	s.mu.RLock()
	ls := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		ls = append(ls, l)
	}
	s.mu.RUnlock()

	for _, l := range ls {
		l(u)
	}
}

// Stats returns the current counters.
func (s *Service) Stats() Stats {
	return Stats{
		Received:          s.received.Load(),
		Displayed:         s.displayed.Load(),
		Dropped:           s.dropped.Load(),
		BackgroundSignals: s.bgSignals.Load(),
		TokenRefreshes:    s.refreshes.Load(),
		Taps:              s.taps.Load(),
	}
}

// Wait blocks until in-flight token registrations finish.
func (s *Service) Wait() {
	s.inflight.Wait()
}
