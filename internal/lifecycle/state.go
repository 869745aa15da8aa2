// Package lifecycle tracks whether the host application is in the foreground.
package lifecycle

import (
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
)

// State of the host application.
type State int32

const (
	Foreground State = iota
	Background
)

func (s State) String() string {
	if s == Background {
		return "background"
	}
	return "foreground"
}

// ParseState accepts "foreground" or "background", case-insensitively.
func ParseState(raw string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "foreground", "active":
		return Foreground, nil
	case "background", "inactive":
		return Background, nil
	default:
		return Foreground, fmt.Errorf("unknown app state %q", raw)
	}
}

// Tracker holds the state last reported by the host runtime.
type Tracker struct {
	state  atomic.Int32
	logger *slog.Logger
}

func NewTracker(initial State, logger *slog.Logger) *Tracker {
	t := &Tracker{logger: logger.With("component", "LifecycleTracker")}
	t.state.Store(int32(initial))
	return t
}

func (t *Tracker) Set(s State) {
	if prev := State(t.state.Swap(int32(s))); prev != s {
		t.logger.Debug("App state changed", "from", prev.String(), "to", s.String())
	}
}

func (t *Tracker) State() State {
	return State(t.state.Load())
}

func (t *Tracker) IsInBackground() bool {
	return t.State() == Background
}

// AlwaysBackground reports the app as backgrounded on every call. It is an
// approximation for hosts that cannot report their state.
type AlwaysBackground struct{}

func NewAlwaysBackground(logger *slog.Logger) AlwaysBackground {
	logger.Warn("Foreground detection unavailable; treating the app as always in background. This is an approximation.",
		"component", "LifecycleTracker")
	return AlwaysBackground{}
}

func (AlwaysBackground) IsInBackground() bool { return true }
