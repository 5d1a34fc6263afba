package fcm_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-condo-notifier/internal/platform/fcm"
	"github.com/tinywideclouds/go-condo-notifier/pkg/push"
)

// MockClient satisfies the MessagingClient interface
type MockClient struct {
	mock.Mock
}

func (m *MockClient) SendEachForMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*messaging.BatchResponse), args.Error(1)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFCMSend(t *testing.T) {
	logger := newTestLogger()
	ctx := context.Background()
	msg := push.DefaultMessage("Test", "Hello", map[string]string{push.DataNotificationID: "n-1"})

	t.Run("Happy Path - All Success", func(t *testing.T) {
		mockClient := new(MockClient)
		dispatcher := fcm.NewDispatcher(mockClient, 0, logger)
		tokens := []string{"token-1", "token-2"}

		mockResponse := &messaging.BatchResponse{
			SuccessCount: 2,
			Responses: []*messaging.SendResponse{
				{Success: true, MessageID: "msg-1"},
				{Success: true, MessageID: "msg-2"},
			},
		}
		mockClient.On("SendEachForMulticast", ctx, mock.MatchedBy(func(m *messaging.MulticastMessage) bool {
			return assert.ObjectsAreEqual(tokens, m.Tokens) &&
				m.Notification.Title == "Test" &&
				m.Notification.Body == "Hello" &&
				m.Data[push.DataNotificationID] == "n-1" &&
				m.Android.Priority == "high" &&
				m.Android.Notification.ChannelID == "default" &&
				m.APNS.Payload.Aps.Sound == "default"
		})).Return(mockResponse, nil)

		res := dispatcher.Send(ctx, tokens, msg)

		assert.True(t, res.OK())
		assert.Equal(t, 2, res.SuccessCount())
		assert.Equal(t, 0, res.FailureCount())
		mockClient.AssertExpectations(t)
	})

	t.Run("Per-token failure does not fail siblings", func(t *testing.T) {
		mockClient := new(MockClient)
		dispatcher := fcm.NewDispatcher(mockClient, 0, logger)
		tokens := []string{"token-1", "token-2", "token-3"}

		mockResponse := &messaging.BatchResponse{
			SuccessCount: 2,
			FailureCount: 1,
			Responses: []*messaging.SendResponse{
				{Success: true},
				{Success: false, Error: errors.New("boom")},
				{Success: true},
			},
		}
		mockClient.On("SendEachForMulticast", ctx, mock.Anything).Return(mockResponse, nil)

		res := dispatcher.Send(ctx, tokens, msg)

		require.True(t, res.OK())
		assert.Equal(t, 2, res.SuccessCount())
		require.Len(t, res.Failures, 1)
		assert.Equal(t, "token-2", res.Failures[0].Token)
		assert.Equal(t, "unknown", res.Failures[0].Code)
		assert.False(t, res.Failures[0].Permanent)
	})

	t.Run("Tokens without a response are failed", func(t *testing.T) {
		mockClient := new(MockClient)
		dispatcher := fcm.NewDispatcher(mockClient, 0, logger)
		tokens := []string{"token-1", "token-2", "token-3"}

		mockResponse := &messaging.BatchResponse{
			SuccessCount: 1,
			Responses:    []*messaging.SendResponse{{Success: true}},
		}
		mockClient.On("SendEachForMulticast", ctx, mock.Anything).Return(mockResponse, nil)

		res := dispatcher.Send(ctx, tokens, msg)

		require.True(t, res.OK())
		assert.Equal(t, 1, res.SuccessCount())
		assert.Equal(t, 2, res.FailureCount())
		assert.Equal(t, len(tokens), res.SuccessCount()+res.FailureCount())
		assert.Equal(t, "token-2", res.Failures[0].Token)
		assert.Equal(t, "missing-response", res.Failures[0].Code)
	})

	t.Run("Transport Failure fails the whole batch", func(t *testing.T) {
		mockClient := new(MockClient)
		dispatcher := fcm.NewDispatcher(mockClient, 0, logger)
		tokens := []string{"token-1", "token-2"}

		mockClient.On("SendEachForMulticast", ctx, mock.Anything).Return(nil, errors.New("network down"))

		res := dispatcher.Send(ctx, tokens, msg)

		require.False(t, res.OK())
		assert.Equal(t, 0, res.SuccessCount())
		assert.Equal(t, 2, res.FailureCount())
		assert.Contains(t, res.Transport.Error(), "no response received")
	})

	t.Run("Empty token list makes no call", func(t *testing.T) {
		mockClient := new(MockClient)
		dispatcher := fcm.NewDispatcher(mockClient, 0, logger)

		res := dispatcher.Send(ctx, nil, msg)

		assert.True(t, res.OK())
		mockClient.AssertNotCalled(t, "SendEachForMulticast", mock.Anything, mock.Anything)
	})

	// Note: the IsRegistrationTokenNotRegistered mapping is not covered here,
	// as mocking the internal error types of the Firebase SDK is brittle.
}

func TestFCMBatchSize(t *testing.T) {
	logger := newTestLogger()
	assert.Equal(t, fcm.MaxBatchSize, fcm.NewDispatcher(nil, 0, logger).MaxBatchSize())
	assert.Equal(t, fcm.MaxBatchSize, fcm.NewDispatcher(nil, 1000, logger).MaxBatchSize())
	assert.Equal(t, 50, fcm.NewDispatcher(nil, 50, logger).MaxBatchSize())
	assert.Equal(t, push.ProviderFCM, fcm.NewDispatcher(nil, 0, logger).Provider())
}
