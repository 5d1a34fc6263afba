package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/tinywideclouds/go-condo-notifier/pkg/push"
)

// EventHandler runs the fan-out for one trigger document.
type EventHandler interface {
	ProcessNotification(ctx context.Context, id string) error
	ProcessPending(ctx context.Context, id string) error
}

// NewProcessor routes each trigger event to the handler for its collection.
// A returned error nacks the message so Pub/Sub redelivers it.
func NewProcessor(handler EventHandler, logger *slog.Logger) messagepipeline.StreamProcessor[TriggerEvent] {
	return func(ctx context.Context, original messagepipeline.Message, event *TriggerEvent) error {
		procLogger := logger.With(
			"collection", event.Collection,
			"document_id", event.DocumentID,
			"pubsub_msg_id", original.ID,
		)

		var err error
		switch event.Collection {
		case push.CollectionNotifications:
			err = handler.ProcessNotification(ctx, event.DocumentID)
		case push.CollectionPendingNotifications:
			err = handler.ProcessPending(ctx, event.DocumentID)
		default:
			procLogger.Error("Unknown trigger collection; dropping event")
			return nil
		}

		if err != nil {
			procLogger.Error("Trigger processing failed", "err", err)
			return fmt.Errorf("processing %s/%s: %w", event.Collection, event.DocumentID, err)
		}
		procLogger.Debug("Trigger processed")
		return nil
	}
}
