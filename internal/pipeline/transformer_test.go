package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-condo-notifier/internal/pipeline"
)

func TestTriggerEventTransformer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	testCases := []struct {
		name                  string
		payload               string
		expectError           bool
		expectedErrorContains string
		expected              *pipeline.TriggerEvent
	}{
		{
			name:     "Happy Path - Notification",
			payload:  `{"collection":"notifications","documentId":"n-1"}`,
			expected: &pipeline.TriggerEvent{Collection: "notifications", DocumentID: "n-1"},
		},
		{
			name:     "Happy Path - Pending",
			payload:  `{"collection":"pendingNotifications","documentId":"p-1"}`,
			expected: &pipeline.TriggerEvent{Collection: "pendingNotifications", DocumentID: "p-1"},
		},
		{
			name:                  "Failure - Malformed JSON",
			payload:               "not-json",
			expectError:           true,
			expectedErrorContains: "failed to unmarshal trigger event",
		},
		{
			name:                  "Failure - Unknown collection",
			payload:               `{"collection":"users","documentId":"u-1"}`,
			expectError:           true,
			expectedErrorContains: "invalid trigger event",
		},
		{
			name:                  "Failure - Missing document id",
			payload:               `{"collection":"notifications"}`,
			expectError:           true,
			expectedErrorContains: "invalid trigger event",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			msg := &messagepipeline.Message{
				MessageData: messagepipeline.MessageData{ID: "msg-1", Payload: []byte(tc.payload)},
			}

			event, skip, err := pipeline.TriggerEventTransformer(ctx, msg)

			if tc.expectError {
				require.Error(t, err)
				assert.True(t, skip)
				assert.Contains(t, err.Error(), tc.expectedErrorContains)
				return
			}
			require.NoError(t, err)
			assert.False(t, skip)
			assert.Equal(t, tc.expected, event)
		})
	}
}
