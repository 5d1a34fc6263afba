package firestore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tinywideclouds/go-condo-notifier/pkg/push"
)

// maxRecordedFailures keeps tracking documents well under the 1 MiB limit.
const maxRecordedFailures = 500

// Collections names the trigger collections the tracking store reads.
type Collections struct {
	Notifications string
	Pending       string
}

// TrackingStore implements dispatch.TrackingStore. Tracking fields are
// merged onto the trigger document itself.
type TrackingStore struct {
	client      *firestore.Client
	collections Collections
	logger      *slog.Logger
}

func NewTrackingStore(client *firestore.Client, collections Collections, logger *slog.Logger) *TrackingStore {
	if collections.Notifications == "" {
		collections.Notifications = push.CollectionNotifications
	}
	if collections.Pending == "" {
		collections.Pending = push.CollectionPendingNotifications
	}
	return &TrackingStore{
		client:      client,
		collections: collections,
		logger:      logger.With("component", "TrackingStore"),
	}
}

type notificationDoc struct {
	Title         string    `firestore:"title"`
	Message       string    `firestore:"message"`
	Type          string    `firestore:"type"`
	RelatedItemID string    `firestore:"relatedItemId"`
	CreatorUserID string    `firestore:"creatorUserId"`
	Processed     bool      `firestore:"processed"`
	ProcessedAt   time.Time `firestore:"processedAt"`
	Error         string    `firestore:"error"`
}

type pendingDoc struct {
	Title       string    `firestore:"title"`
	Message     string    `firestore:"message"`
	Tokens      []string  `firestore:"tokens"`
	Processed   bool      `firestore:"processed"`
	ProcessedAt time.Time `firestore:"processedAt"`
	Error       string    `firestore:"error"`
}

func (s *TrackingStore) GetNotification(ctx context.Context, id string) (*push.StoredNotification, error) {
	ref := push.RecordRef{Collection: s.collections.Notifications, ID: id}
	var doc notificationDoc
	if err := s.load(ctx, ref, &doc); err != nil {
		return nil, err
	}

	return &push.StoredNotification{
		Ref: ref,
		Request: push.NotificationRequest{
			Title:         doc.Title,
			Message:       doc.Message,
			Type:          doc.Type,
			RelatedItemID: doc.RelatedItemID,
			CreatorUserID: doc.CreatorUserID,
		},
		Tracking: push.TrackingState{Processed: doc.Processed, ProcessedAt: doc.ProcessedAt, Error: doc.Error},
	}, nil
}

func (s *TrackingStore) GetPending(ctx context.Context, id string) (*push.StoredPending, error) {
	ref := push.RecordRef{Collection: s.collections.Pending, ID: id}
	var doc pendingDoc
	if err := s.load(ctx, ref, &doc); err != nil {
		return nil, err
	}

	return &push.StoredPending{
		Ref: ref,
		Notification: push.PendingNotification{
			Title:   doc.Title,
			Message: doc.Message,
			Tokens:  doc.Tokens,
		},
		Tracking: push.TrackingState{Processed: doc.Processed, ProcessedAt: doc.ProcessedAt, Error: doc.Error},
	}, nil
}

// MarkProcessed writes the processed marker with the aggregate stats, the
// per-batch breakdown and the failed tokens.
func (s *TrackingStore) MarkProcessed(ctx context.Context, ref push.RecordRef, report push.Report) error {
	failures := report.Failures()
	truncated := false
	if len(failures) > maxRecordedFailures {
		failures = failures[:maxRecordedFailures]
		truncated = true
	}
	if failures == nil {
		failures = []push.TokenFailure{}
	}

	fields := map[string]interface{}{
		"processed":   true,
		"processedAt": firestore.ServerTimestamp,
		"stats":       report.Stats(),
		"batches":     report.Batches(),
		"failures":    failures,
	}
	if truncated {
		fields["failuresTruncated"] = true
	}
	return s.merge(ctx, ref, fields)
}

// MarkFailed records the error that stopped processing.
func (s *TrackingStore) MarkFailed(ctx context.Context, ref push.RecordRef, cause string) error {
	return s.merge(ctx, ref, map[string]interface{}{
		"processed":   true,
		"processedAt": firestore.ServerTimestamp,
		"error":       cause,
	})
}

func (s *TrackingStore) load(ctx context.Context, ref push.RecordRef, dst interface{}) error {
	snap, err := s.client.Collection(ref.Collection).Doc(ref.ID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%w: %s", push.ErrRecordNotFound, ref)
	}
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", ref, err)
	}
	if err := snap.DataTo(dst); err != nil {
		return fmt.Errorf("%w: %s: %v", push.ErrInvalidRequest, ref, err)
	}
	return nil
}

func (s *TrackingStore) merge(ctx context.Context, ref push.RecordRef, fields map[string]interface{}) error {
	_, err := s.client.Collection(ref.Collection).Doc(ref.ID).Set(ctx, fields, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to update tracking on %s: %w", ref, err)
	}
	s.logger.Debug("Tracking updated", "record", ref.String())
	return nil
}
