package receiverservice_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-push-receiver/internal/background"
	internaldisplay "github.com/tinywideclouds/go-push-receiver/internal/display"
	"github.com/tinywideclouds/go-push-receiver/pkg/display"
	"github.com/tinywideclouds/go-push-receiver/pkg/push"
	"github.com/tinywideclouds/go-push-receiver/receiverservice"
	"github.com/tinywideclouds/go-push-receiver/receiverservice/config"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, *pubsub.Message) (string, error) { return "1", nil }

func TestNewPresenter(t *testing.T) {
	ctx := context.Background()

	t.Run("Happy Path - Configured Channel", func(t *testing.T) {
		tray := internaldisplay.NewTray(newTestLogger())
		p := receiverservice.NewPresenter(config.DisplayConfig{
			ChannelID:       "shop",
			ChannelName:     "Shop",
			RequireChannels: true,
			Icon:            "ic_store",
		}, tray, newTestLogger())

		n, err := p.Show(ctx, "Low Stock", "Item #42", push.KindStock, nil)
		require.NoError(t, err)

		assert.Equal(t, "shop", n.ChannelID)
		assert.Equal(t, "ic_store", n.Icon)
		assert.Equal(t, display.PriorityMax, n.Priority)
		require.Len(t, tray.Channels(), 1)
		assert.Equal(t, "Shop", tray.Channels()[0].Name)
		assert.Equal(t, internaldisplay.DefaultChannel.Description, tray.Channels()[0].Description)
	})

	t.Run("Sequence IDs Are Distinct", func(t *testing.T) {
		tray := internaldisplay.NewTray(newTestLogger())
		p := receiverservice.NewPresenter(config.DisplayConfig{IDStrategy: config.IDStrategySequence}, tray, newTestLogger())

		a, err := p.Show(ctx, "A", "a", push.KindSale, nil)
		require.NoError(t, err)
		b, err := p.Show(ctx, "B", "b", push.KindSale, nil)
		require.NoError(t, err)

		assert.NotEqual(t, a.ID, b.ID)
		assert.Len(t, tray.List(), 2)
	})
}

func TestNewAppState(t *testing.T) {
	t.Run("Host Reported", func(t *testing.T) {
		state, setter, err := receiverservice.NewAppState(config.LifecycleConfig{InitialState: "background"}, newTestLogger())
		require.NoError(t, err)
		require.NotNil(t, setter)
		assert.True(t, state.IsInBackground())
	})

	t.Run("Always Background", func(t *testing.T) {
		state, setter, err := receiverservice.NewAppState(config.LifecycleConfig{AlwaysBackground: true}, newTestLogger())
		require.NoError(t, err)
		assert.Nil(t, setter)
		assert.True(t, state.IsInBackground())
	})

	t.Run("Bad Initial State", func(t *testing.T) {
		_, _, err := receiverservice.NewAppState(config.LifecycleConfig{InitialState: "sleeping"}, newTestLogger())
		assert.Error(t, err)
	})
}

func TestNewBackgroundSignaler(t *testing.T) {
	task := func(context.Context) error { return nil }

	t.Run("None", func(t *testing.T) {
		s, err := receiverservice.NewBackgroundSignaler(config.BackgroundConfig{Mode: config.BackgroundNone}, "", nil, nil, newTestLogger())
		require.NoError(t, err)
		assert.Nil(t, s)
	})

	t.Run("Local", func(t *testing.T) {
		s, err := receiverservice.NewBackgroundSignaler(config.BackgroundConfig{Mode: config.BackgroundLocal, Hold: time.Second}, "", nil, task, newTestLogger())
		require.NoError(t, err)
		assert.IsType(t, &background.Runner{}, s)
	})

	t.Run("Pubsub", func(t *testing.T) {
		s, err := receiverservice.NewBackgroundSignaler(config.BackgroundConfig{Mode: config.BackgroundPubsub}, "urn:pr:device:x", nopPublisher{}, nil, newTestLogger())
		require.NoError(t, err)
		assert.IsType(t, &background.PubsubSignaler{}, s)
	})

	t.Run("Pubsub Without Publisher", func(t *testing.T) {
		_, err := receiverservice.NewBackgroundSignaler(config.BackgroundConfig{Mode: config.BackgroundPubsub}, "", nil, nil, newTestLogger())
		assert.Error(t, err)
	})
}
