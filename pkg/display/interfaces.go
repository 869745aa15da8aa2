// Package display defines the contract between the receiver and whatever
// notification subsystem renders notifications for the user.
package display

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/tinywideclouds/go-push-receiver/pkg/push"
)

// ErrNotFound is returned by managers that track notifications when an ID is unknown.
var ErrNotFound = errors.New("display: notification not found")

// Manager is the notification subsystem. Both calls are fire-and-forget:
// a nil error means the request was accepted, not that anything was rendered.
type Manager interface {
	// CreateChannel declares a channel. Calling it again with the same ID is a no-op.
	CreateChannel(ctx context.Context, ch Channel) error
	// Notify posts n. A notification with an existing ID replaces the earlier one.
	Notify(ctx context.Context, n Notification) error
}

// IDGenerator hands out notification identifiers.
type IDGenerator interface {
	NextID() int32
}

// Priority of a displayed notification.
type Priority int

const (
	PriorityDefault Priority = iota
	PriorityHigh
	PriorityMax
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMax:
		return "max"
	default:
		return "default"
	}
}

// Importance of a channel.
type Importance int

const (
	ImportanceDefault Importance = iota
	ImportanceHigh
	ImportanceMax
)

// Channel groups notifications on platforms that require explicit declaration.
type Channel struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Importance  Importance `json:"importance"`
}

// Notification is a fully built local notification.
type Notification struct {
	ID         int32             `json:"id"`
	ChannelID  string            `json:"channel_id,omitempty"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	Kind       push.Kind         `json:"kind"`
	Priority   Priority          `json:"priority"`
	Sound      string            `json:"sound,omitempty"`
	AutoCancel bool              `json:"auto_cancel"`
	Icon       string            `json:"icon,omitempty"`
	// Tag groups related notifications. It never replaces one with another.
	Tag        string            `json:"tag,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
	PostedAt   time.Time         `json:"posted_at"`
}

// ReplaceKey is the value a platform uses to decide that a new notification
// replaces an earlier one. It derives from the ID, so only notifications that
// share an ID collapse into each other.
func (n Notification) ReplaceKey() string {
	return strconv.FormatInt(int64(n.ID), 10)
}
