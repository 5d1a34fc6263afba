// Package dispatch defines the contracts between the fan-out core and its
// providers and stores.
package dispatch

import (
	"context"

	"github.com/tinywideclouds/go-condo-notifier/pkg/push"
)

// Dispatcher defines the contract for a component that can send notifications
// to a specific push provider (Expo, FCM).
type Dispatcher interface {
	Provider() push.Provider
	// MaxBatchSize is the provider's documented per-call token ceiling.
	MaxBatchSize() int
	// Send delivers msg to at most MaxBatchSize tokens in one call. Failures
	// are reported inside the result, never as a Go error.
	Send(ctx context.Context, tokens []string, msg push.Message) push.BatchResult
}

// UserStore gives access to the device tokens held on user records.
type UserStore interface {
	// ListUsers returns every user record in iteration order.
	ListUsers(ctx context.Context) ([]push.UserRecord, error)
	// SetPushToken overwrites the user's active token.
	SetPushToken(ctx context.Context, userID, token string) error
	// ClearPushToken removes token from every user record still holding it.
	ClearPushToken(ctx context.Context, token string) error
	// ClearUserPushToken removes the user's token only if it still equals token.
	ClearUserPushToken(ctx context.Context, userID, token string) error
}

// TrackingStore reads trigger documents and persists their outcome.
type TrackingStore interface {
	GetNotification(ctx context.Context, id string) (*push.StoredNotification, error)
	GetPending(ctx context.Context, id string) (*push.StoredPending, error)
	MarkProcessed(ctx context.Context, ref push.RecordRef, report push.Report) error
	MarkFailed(ctx context.Context, ref push.RecordRef, cause string) error
}

// InvalidTokenHandler is called back with tokens a provider reported as
// permanently undeliverable.
type InvalidTokenHandler interface {
	HandleInvalidTokens(ctx context.Context, failures []push.TokenFailure)
}
