// Package push contains the domain model shared by the fan-out service:
// trigger documents, user records, the provider-neutral message and the
// per-batch delivery results.
package push

import (
	"errors"
	"time"
)

var (
	// ErrRecordNotFound is returned by stores when a trigger document does not exist.
	ErrRecordNotFound = errors.New("record not found")
	// ErrNoTokens signals that there is nobody to deliver to.
	ErrNoTokens = errors.New("no device tokens")
	// ErrInvalidRequest wraps boundary validation failures.
	ErrInvalidRequest = errors.New("invalid request")
)

// Collection names used by the mobile app.
const (
	CollectionUsers                = "users"
	CollectionNotifications        = "notifications"
	CollectionPendingNotifications = "pendingNotifications"
)

// Provider identifies a push delivery service.
type Provider string

const (
	ProviderExpo Provider = "expo"
	ProviderFCM  Provider = "fcm"
)

// NotificationRequest is the document the app writes to "notifications" when
// a domain event occurs (new topic, meeting, package...).
type NotificationRequest struct {
	Title         string `firestore:"title" json:"title" validate:"required"`
	Message       string `firestore:"message" json:"message" validate:"required"`
	Type          string `firestore:"type" json:"type"`
	RelatedItemID string `firestore:"relatedItemId,omitempty" json:"relatedItemId,omitempty"`
	CreatorUserID string `firestore:"creatorUserId,omitempty" json:"creatorUserId,omitempty"`
}

// PendingNotification is a pre-built payload queued in "pendingNotifications".
type PendingNotification struct {
	Title   string   `firestore:"title" json:"title" validate:"required"`
	Message string   `firestore:"message" json:"message" validate:"required"`
	Tokens  []string `firestore:"tokens" json:"tokens"`
}

// UserRecord is the subset of a user document the fan-out needs.
type UserRecord struct {
	ID        string `json:"id"`
	PushToken string `json:"pushToken,omitempty"`
}

// RecordRef points at a trigger document.
type RecordRef struct {
	Collection string
	ID         string
}

func (r RecordRef) String() string {
	return r.Collection + "/" + r.ID
}

// TrackingState is the processed marker stored on a trigger document.
type TrackingState struct {
	Processed   bool
	ProcessedAt time.Time
	Error       string
}

// StoredNotification is a notification document together with its tracking state.
type StoredNotification struct {
	Ref      RecordRef
	Request  NotificationRequest
	Tracking TrackingState
}

// StoredPending is a pending notification document together with its tracking state.
type StoredPending struct {
	Ref          RecordRef
	Notification PendingNotification
	Tracking     TrackingState
}
