// Package background signals the background-processing collaborator that it
// should start its own work. Signals are fire-and-forget.
package background

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
)

// EventBackgroundStart is the event name carried by published signals.
const EventBackgroundStart = "background_start"

// Publisher publishes one message and waits for the server ID.
type Publisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) (string, error)
}

type topicPublisher struct {
	publisher *pubsub.Publisher
}

// NewTopicPublisher adapts a Pub/Sub publisher for the given topic.
func NewTopicPublisher(client *pubsub.Client, topicID string) Publisher {
	return &topicPublisher{publisher: client.Publisher(topicID)}
}

func (t *topicPublisher) Publish(ctx context.Context, msg *pubsub.Message) (string, error) {
	return t.publisher.Publish(ctx, msg).Get(ctx)
}

type startEvent struct {
	Event        string    `json:"event"`
	EventID      string    `json:"event_id"`
	Installation string    `json:"installation,omitempty"`
	SentAt       time.Time `json:"sent_at"`
}

// PubsubSignaler publishes a start event for an out-of-process worker.
type PubsubSignaler struct {
	publisher    Publisher
	installation string
	timeout      time.Duration
	logger       *slog.Logger
	wg           sync.WaitGroup
}

func NewPubsubSignaler(publisher Publisher, installation string, logger *slog.Logger) *PubsubSignaler {
	return &PubsubSignaler{
		publisher:    publisher,
		installation: installation,
		timeout:      10 * time.Second,
		logger:       logger.With("component", "PubsubSignaler"),
	}
}

func (s *PubsubSignaler) SignalBackgroundStart(ctx context.Context) {
	evt := startEvent{
		Event:        EventBackgroundStart,
		EventID:      uuid.NewString(),
		Installation: s.installation,
		SentAt:       time.Now().UTC(),
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		s.logger.Error("Failed to marshal background event", "err", err)
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		id, err := s.publisher.Publish(pubCtx, &pubsub.Message{
			Data:       payload,
			Attributes: map[string]string{"event": EventBackgroundStart},
		})
		if err != nil {
			s.logger.Warn("Background signal publish failed", "event_id", evt.EventID, "err", err)
			return
		}
		s.logger.Debug("Background signal published", "event_id", evt.EventID, "pubsub_msg_id", id)
	}()
}

// Wait blocks until pending publishes finish.
func (s *PubsubSignaler) Wait() {
	s.wg.Wait()
}
