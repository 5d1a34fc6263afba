package fanout

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tinywideclouds/go-condo-notifier/pkg/dispatch"
	"github.com/tinywideclouds/go-condo-notifier/pkg/push"
)

// Recorder persists the outcome of one event on its trigger document.
type Recorder struct {
	store  dispatch.TrackingStore
	logger *slog.Logger
}

func NewRecorder(store dispatch.TrackingStore, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, logger: logger.With("component", "OutcomeRecorder")}
}

// Record marks ref processed with the aggregated counters of report.
func (r *Recorder) Record(ctx context.Context, ref push.RecordRef, report push.Report) error {
	stats := report.Stats()
	if err := r.store.MarkProcessed(ctx, ref, report); err != nil {
		return fmt.Errorf("failed to record outcome for %s: %w", ref, err)
	}
	r.logger.Info("Outcome recorded",
		"record", ref.String(),
		"total", stats.Total,
		"success", stats.Success,
		"failure", stats.Failure,
	)
	return nil
}

// RecordError marks ref processed with an error. It is best-effort: a failed
// write is logged and swallowed.
func (r *Recorder) RecordError(ctx context.Context, ref push.RecordRef, cause error) {
	if err := r.store.MarkFailed(ctx, ref, cause.Error()); err != nil {
		r.logger.Error("Failed to mark record as errored", "record", ref.String(), "cause", cause, "err", err)
		return
	}
	r.logger.Warn("Record marked as errored", "record", ref.String(), "cause", cause)
}
