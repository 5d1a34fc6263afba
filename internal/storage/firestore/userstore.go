package firestore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tinywideclouds/go-condo-notifier/pkg/push"
)

// UserStore implements dispatch.UserStore over the app's "users" collection.
// Each user document carries at most one active device token.
type UserStore struct {
	client     *firestore.Client
	collection string
	logger     *slog.Logger
}

func NewUserStore(client *firestore.Client, collection string, logger *slog.Logger) *UserStore {
	if collection == "" {
		collection = push.CollectionUsers
	}
	return &UserStore{
		client:     client,
		collection: collection,
		logger:     logger.With("component", "UserStore"),
	}
}

// userRecord is the slice of the user document we read and write.
type userRecord struct {
	PushToken string `firestore:"pushToken"`
}

// ListUsers scans the whole collection. Documents that cannot be decoded are
// skipped.
func (s *UserStore) ListUsers(ctx context.Context) ([]push.UserRecord, error) {
	iter := s.client.Collection(s.collection).Select("pushToken").Documents(ctx)
	defer iter.Stop()

	users := make([]push.UserRecord, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore iteration failed: %w", err)
		}

		var record userRecord
		if err := doc.DataTo(&record); err != nil {
			s.logger.Warn("Skipping unreadable user document", "user_id", doc.Ref.ID, "err", err)
			continue
		}
		users = append(users, push.UserRecord{ID: doc.Ref.ID, PushToken: record.PushToken})
	}
	return users, nil
}

func (s *UserStore) SetPushToken(ctx context.Context, userID, token string) error {
	token = strings.TrimSpace(token)
	if userID == "" || token == "" {
		return fmt.Errorf("%w: user id and token are required", push.ErrInvalidRequest)
	}

	_, err := s.client.Collection(s.collection).Doc(userID).Set(ctx, map[string]interface{}{
		"pushToken":          token,
		"pushTokenUpdatedAt": firestore.ServerTimestamp,
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to set push token for user %s: %w", userID, err)
	}
	return nil
}

// ClearPushToken deletes the token field from every user still holding it.
// A user that registered a new token in the meantime is left alone.
func (s *UserStore) ClearPushToken(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	iter := s.client.Collection(s.collection).Where("pushToken", "==", token).Documents(ctx)
	defer iter.Stop()

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return fmt.Errorf("firestore query failed: %w", err)
		}

		_, err = doc.Ref.Update(ctx, []firestore.Update{
			{Path: "pushToken", Value: firestore.Delete},
			{Path: "pushTokenUpdatedAt", Value: firestore.Delete},
		}, firestore.LastUpdateTime(doc.UpdateTime))
		if status.Code(err) == codes.FailedPrecondition {
			s.logger.Debug("User document changed since query, token left in place", "user_id", doc.Ref.ID)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to clear push token on user %s: %w", doc.Ref.ID, err)
		}
	}
}

// ClearUserPushToken drops the user's token if it is still the one supplied.
// The read and the delete run in one transaction.
func (s *UserStore) ClearUserPushToken(ctx context.Context, userID, token string) error {
	if userID == "" || token == "" {
		return fmt.Errorf("%w: user id and token are required", push.ErrInvalidRequest)
	}

	ref := s.client.Collection(s.collection).Doc(userID)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return nil
		}
		if err != nil {
			return err
		}

		var record userRecord
		if err := snap.DataTo(&record); err != nil {
			return err
		}
		if record.PushToken != token {
			return nil
		}
		return tx.Update(ref, []firestore.Update{
			{Path: "pushToken", Value: firestore.Delete},
			{Path: "pushTokenUpdatedAt", Value: firestore.Delete},
		})
	})
	if err != nil {
		return fmt.Errorf("failed to clear push token for user %s: %w", userID, err)
	}
	return nil
}
