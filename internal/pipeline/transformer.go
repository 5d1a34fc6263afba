// Package pipeline adapts Pub/Sub trigger events to the fan-out service.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
)

// TriggerEvent announces a document created in one of the trigger
// collections.
type TriggerEvent struct {
	Collection string `json:"collection" validate:"required,oneof=notifications pendingNotifications"`
	DocumentID string `json:"documentId" validate:"required"`
}

var validate = validator.New()

// TriggerEventTransformer is a dataflow Transformer that unmarshals and
// validates a raw payload into a TriggerEvent. Bad payloads are skipped with
// an error so the StreamingService can route them to the dead-letter topic.
func TriggerEventTransformer(
	_ context.Context,
	msg *messagepipeline.Message,
) (*TriggerEvent, bool, error) {
	var event TriggerEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return nil, true, fmt.Errorf("failed to unmarshal trigger event from message %s: %w", msg.ID, err)
	}
	if err := validate.Struct(event); err != nil {
		return nil, true, fmt.Errorf("invalid trigger event in message %s: %w", msg.ID, err)
	}
	return &event, false, nil
}
