// Package push contains the public domain types and collaborator contracts for
// receiving push messages delivered by an external push provider.
package push

import (
	"errors"
	"strings"

	"firebase.google.com/go/v4/messaging"
)

// Keys of the application-level data contract honoured by the sender.
const (
	DataKeyTitle   = "title"
	DataKeyMessage = "message"
	DataKeyType    = "type"
)

// ErrEmptyToken is returned when a token refresh carries no token.
var ErrEmptyToken = errors.New("push: empty registration token")

// InboundMessage is a push message as delivered by the provider.
// Notification is the provider-level convenience payload and may be nil.
type InboundMessage struct {
	ID           string                  `json:"message_id,omitempty"`
	From         string                  `json:"from,omitempty"`
	Data         map[string]string       `json:"data,omitempty"`
	Notification *messaging.Notification `json:"notification,omitempty"`
}

// Title resolves the display title: data first, then the notification payload.
func (m InboundMessage) Title() string {
	if v := m.Data[DataKeyTitle]; v != "" {
		return v
	}
	if m.Notification != nil {
		return m.Notification.Title
	}
	return ""
}

// Message resolves the display body: data first, then the notification payload.
func (m InboundMessage) Message() string {
	if v := m.Data[DataKeyMessage]; v != "" {
		return v
	}
	if m.Notification != nil {
		return m.Notification.Body
	}
	return ""
}

// Kind classifies the message from data["type"].
func (m InboundMessage) Kind() Kind {
	return ParseKind(m.Data[DataKeyType])
}

// Kind is the open-ended category tag a sender puts in data["type"].
type Kind string

const (
	KindSale         Kind = "sale"
	KindStock        Kind = "stock"
	KindAlert        Kind = "alert"
	KindSummary      Kind = "summary"
	KindSystem       Kind = "system"
	KindUnclassified Kind = ""
)

// ParseKind maps a raw tag onto a known Kind. Unknown or empty tags are
// KindUnclassified; this is never an error.
func ParseKind(raw string) Kind {
	switch k := Kind(strings.ToLower(strings.TrimSpace(raw))); k {
	case KindSale, KindStock, KindAlert, KindSummary, KindSystem:
		return k
	default:
		return KindUnclassified
	}
}

// Urgent reports whether the category must interrupt more aggressively.
func (k Kind) Urgent() bool {
	return k == KindAlert || k == KindStock
}

func (k Kind) String() string {
	if k == KindUnclassified {
		return "unclassified"
	}
	return string(k)
}
