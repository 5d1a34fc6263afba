//go:build integration

package firestore_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/illmade-knight/go-test/emulators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fs "github.com/tinywideclouds/go-condo-notifier/internal/storage/firestore"
	"github.com/tinywideclouds/go-condo-notifier/pkg/push"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupSuite(t *testing.T) (context.Context, *firestore.Client) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	t.Cleanup(cancel)

	projectID := "test-condo-store"
	conn := emulators.SetupFirestoreEmulator(t, ctx, emulators.GetDefaultFirestoreConfig(projectID))
	client, err := firestore.NewClient(ctx, projectID, conn.ClientOptions...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return ctx, client
}

func TestUserStore_Integration(t *testing.T) {
	ctx, client := setupSuite(t)
	store := fs.NewUserStore(client, "users", newTestLogger())

	_, err := client.Collection("users").Doc("u-none").Set(ctx, map[string]interface{}{"name": "No Device"})
	require.NoError(t, err)

	t.Run("Set and list tokens", func(t *testing.T) {
		require.NoError(t, store.SetPushToken(ctx, "u-1", "ExponentPushToken[one]"))
		require.NoError(t, store.SetPushToken(ctx, "u-2", "fcm-two"))

		users, err := store.ListUsers(ctx)
		require.NoError(t, err)

		byID := map[string]string{}
		for _, u := range users {
			byID[u.ID] = u.PushToken
		}
		assert.Equal(t, "ExponentPushToken[one]", byID["u-1"])
		assert.Equal(t, "fcm-two", byID["u-2"])
		assert.Contains(t, byID, "u-none")
		assert.Empty(t, byID["u-none"])
	})

	t.Run("Set keeps other user fields", func(t *testing.T) {
		require.NoError(t, store.SetPushToken(ctx, "u-none", "fcm-late"))

		snap, err := client.Collection("users").Doc("u-none").Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, "No Device", snap.Data()["name"])
		assert.Equal(t, "fcm-late", snap.Data()["pushToken"])
	})

	t.Run("Clear removes the token only where it still matches", func(t *testing.T) {
		require.NoError(t, store.ClearPushToken(ctx, "fcm-two"))

		snap, err := client.Collection("users").Doc("u-2").Get(ctx)
		require.NoError(t, err)
		_, present := snap.Data()["pushToken"]
		assert.False(t, present)

		snap, err = client.Collection("users").Doc("u-1").Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, "ExponentPushToken[one]", snap.Data()["pushToken"])
	})

	t.Run("User unregister ignores a replaced token", func(t *testing.T) {
		require.NoError(t, store.SetPushToken(ctx, "u-3", "fcm-new"))

		require.NoError(t, store.ClearUserPushToken(ctx, "u-3", "fcm-old"))
		snap, err := client.Collection("users").Doc("u-3").Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, "fcm-new", snap.Data()["pushToken"])

		require.NoError(t, store.ClearUserPushToken(ctx, "u-3", "fcm-new"))
		snap, err = client.Collection("users").Doc("u-3").Get(ctx)
		require.NoError(t, err)
		_, present := snap.Data()["pushToken"]
		assert.False(t, present)
	})

	t.Run("Empty token is rejected", func(t *testing.T) {
		err := store.SetPushToken(ctx, "u-1", "  ")
		assert.ErrorIs(t, err, push.ErrInvalidRequest)
	})
}

func TestTrackingStore_Integration(t *testing.T) {
	ctx, client := setupSuite(t)
	store := fs.NewTrackingStore(client, fs.Collections{}, newTestLogger())

	t.Run("Missing document", func(t *testing.T) {
		_, err := store.GetNotification(ctx, "nope")
		assert.True(t, errors.Is(err, push.ErrRecordNotFound))
	})

	t.Run("Notification lifecycle", func(t *testing.T) {
		_, err := client.Collection(push.CollectionNotifications).Doc("n-1").Set(ctx, map[string]interface{}{
			"title":         "Meeting",
			"message":       "Tonight at 8",
			"type":          "meeting",
			"relatedItemId": "m-3",
			"creatorUserId": "u-1",
		})
		require.NoError(t, err)

		rec, err := store.GetNotification(ctx, "n-1")
		require.NoError(t, err)
		assert.Equal(t, "Meeting", rec.Request.Title)
		assert.Equal(t, "u-1", rec.Request.CreatorUserID)
		assert.False(t, rec.Tracking.Processed)

		report := push.Report{Results: []push.BatchResult{
			{Provider: push.ProviderExpo, Tokens: []string{"a", "b"}, Delivered: 1, Failures: []push.TokenFailure{
				{Token: "b", Code: "DeviceNotRegistered", Permanent: true},
			}},
		}}
		require.NoError(t, store.MarkProcessed(ctx, rec.Ref, report))

		rec, err = store.GetNotification(ctx, "n-1")
		require.NoError(t, err)
		assert.True(t, rec.Tracking.Processed)
		assert.False(t, rec.Tracking.ProcessedAt.IsZero())

		snap, err := client.Collection(push.CollectionNotifications).Doc("n-1").Get(ctx)
		require.NoError(t, err)
		stats := snap.Data()["stats"].(map[string]interface{})
		assert.Equal(t, int64(2), stats["total"])
		assert.Equal(t, int64(1), stats["success"])
		assert.Len(t, snap.Data()["batches"], 1)
		assert.Len(t, snap.Data()["failures"], 1)
		assert.Equal(t, "Meeting", snap.Data()["title"])
	})

	t.Run("Pending error marker", func(t *testing.T) {
		_, err := client.Collection(push.CollectionPendingNotifications).Doc("p-1").Set(ctx, map[string]interface{}{
			"title":   "Reminder",
			"message": "Dues",
			"tokens":  []string{"t1", "t2"},
		})
		require.NoError(t, err)

		rec, err := store.GetPending(ctx, "p-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"t1", "t2"}, rec.Notification.Tokens)

		require.NoError(t, store.MarkFailed(ctx, rec.Ref, "boom"))

		rec, err = store.GetPending(ctx, "p-1")
		require.NoError(t, err)
		assert.True(t, rec.Tracking.Processed)
		assert.Equal(t, "boom", rec.Tracking.Error)
	})
}
