package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-push-receiver/internal/pipeline"
	"github.com/tinywideclouds/go-push-receiver/pkg/push"
)

func newMessage(id, payload string) *messagepipeline.Message {
	return &messagepipeline.Message{
		MessageData: messagepipeline.MessageData{ID: id, Payload: []byte(payload)},
	}
}

func TestEventTransformer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	testCases := []struct {
		name                  string
		payload               string
		expectSkip            bool
		expectedErrorContains string
		check                 func(t *testing.T, ev *pipeline.Event)
	}{
		{
			name:    "Happy Path - Message Envelope",
			payload: `{"event":"message","message":{"message_id":"m-1","data":{"title":"Low Stock","message":"Item #42","type":"stock"}}}`,
			check: func(t *testing.T, ev *pipeline.Event) {
				assert.Equal(t, pipeline.EventMessage, ev.Kind)
				assert.Equal(t, "m-1", ev.Message.ID)
				assert.Equal(t, push.KindStock, ev.Message.Kind())
			},
		},
		{
			name:    "Happy Path - Bare Provider Message",
			payload: `{"notification":{"title":"Hi","body":"there"}}`,
			check: func(t *testing.T, ev *pipeline.Event) {
				assert.Equal(t, pipeline.EventMessage, ev.Kind)
				assert.Equal(t, "Hi", ev.Message.Title())
				assert.Equal(t, "ps-1", ev.Message.ID, "falls back to the delivery ID")
			},
		},
		{
			name:    "Happy Path - Token Refresh",
			payload: `{"event":"token_refresh","token":"abc"}`,
			check: func(t *testing.T, ev *pipeline.Event) {
				assert.Equal(t, pipeline.EventTokenRefresh, ev.Kind)
				assert.Equal(t, "abc", ev.Token)
			},
		},
		{
			name:    "Message Event Without Body",
			payload: `{"event":"message"}`,
			check: func(t *testing.T, ev *pipeline.Event) {
				require.NotNil(t, ev.Message)
				assert.Empty(t, ev.Message.Title())
			},
		},
		{
			name:                  "Failure - Malformed JSON",
			payload:               `{"event":`,
			expectSkip:            true,
			expectedErrorContains: "failed to unmarshal event",
		},
		{
			name:                  "Failure - Unknown Event",
			payload:               `{"event":"reboot"}`,
			expectSkip:            true,
			expectedErrorContains: "unknown event",
		},
		{
			name:                  "Failure - Token Refresh Without Token",
			payload:               `{"event":"token_refresh"}`,
			expectSkip:            true,
			expectedErrorContains: "empty registration token",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ev, skip, err := pipeline.EventTransformer(ctx, newMessage("ps-1", tc.payload))

			assert.Equal(t, tc.expectSkip, skip)
			if tc.expectedErrorContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectedErrorContains)
				assert.Nil(t, ev)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, ev)
			tc.check(t, ev)
		})
	}
}
