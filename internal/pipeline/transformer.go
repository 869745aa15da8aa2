// --- File: internal/pipeline/transformer.go ---
// Package pipeline turns Pub/Sub deliveries into receiver callbacks.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/tinywideclouds/go-push-receiver/pkg/push"
)

// EventKind discriminates the envelope.
type EventKind string

const (
	EventMessage      EventKind = "message"
	EventTokenRefresh EventKind = "token_refresh"
)

var errUnknownEvent = errors.New("unknown event")

// Event is one decoded delivery from the push provider.
type Event struct {
	Kind    EventKind           `json:"event"`
	Message *push.InboundMessage `json:"message,omitempty"`
	Token   string               `json:"token,omitempty"`
}

// EventTransformer decodes the envelope. A payload with no "event" field is
// treated as a bare provider message. Anything undecodable is skipped with an
// error so the StreamingService can Nack it towards the dead-letter topic.
func EventTransformer(
	_ context.Context,
	msg *messagepipeline.Message,
) (*Event, bool, error) {
	var ev Event
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return nil, true, fmt.Errorf("failed to unmarshal event from message %s: %w", msg.ID, err)
	}

	switch ev.Kind {
	case "":
		var bare push.InboundMessage
		if err := json.Unmarshal(msg.Payload, &bare); err != nil {
			return nil, true, fmt.Errorf("failed to unmarshal bare message %s: %w", msg.ID, err)
		}
		ev.Kind = EventMessage
		ev.Message = &bare
	case EventMessage:
		if ev.Message == nil {
			ev.Message = &push.InboundMessage{}
		}
	case EventTokenRefresh:
		if ev.Token == "" {
			return nil, true, fmt.Errorf("message %s: %w", msg.ID, push.ErrEmptyToken)
		}
	default:
		return nil, true, fmt.Errorf("message %s: %w %q", msg.ID, errUnknownEvent, ev.Kind)
	}

	if ev.Kind == EventMessage && ev.Message.ID == "" {
		ev.Message.ID = msg.ID
	}
	return &ev, false, nil
}
