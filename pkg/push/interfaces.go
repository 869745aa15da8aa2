package push

import "context"

// EventHandler receives callbacks from the push-delivery subsystem.
// Each call is an independent invocation and may arrive on any goroutine.
type EventHandler interface {
	// OnTokenRefresh is called whenever the provider issues a new registration token.
	OnTokenRefresh(ctx context.Context, token string) error
	// OnMessageReceived is called once per delivered message.
	OnMessageReceived(ctx context.Context, msg InboundMessage) error
}

// TokenRegistrar forwards a registration token to whoever needs to address this installation.
type TokenRegistrar interface {
	RegisterToken(ctx context.Context, token string) error
}

// AppState is provided by the host runtime.
type AppState interface {
	IsInBackground() bool
}

// BackgroundSignaler starts the background-processing collaborator.
// Implementations own their resource acquisition and completion; callers never wait.
type BackgroundSignaler interface {
	SignalBackgroundStart(ctx context.Context)
}
