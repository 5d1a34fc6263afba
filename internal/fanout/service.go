package fanout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/tinywideclouds/go-condo-notifier/internal/metrics"
	"github.com/tinywideclouds/go-condo-notifier/pkg/dispatch"
	"github.com/tinywideclouds/go-condo-notifier/pkg/push"
)

// Event sources, used as the metrics "source" label.
const (
	SourceNotification = "notification"
	SourcePending      = "pending"
	SourceAdmin        = "admin"
)

// Service runs the fan-out for the three entry points: live notifications,
// the pending queue and administrative sends.
type Service struct {
	users      dispatch.UserStore
	tracking   dispatch.TrackingStore
	dispatcher *BatchDispatcher
	recorder   *Recorder
	validate   *validator.Validate
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func NewService(
	users dispatch.UserStore,
	tracking dispatch.TrackingStore,
	dispatcher *BatchDispatcher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		users:      users,
		tracking:   tracking,
		dispatcher: dispatcher,
		recorder:   NewRecorder(tracking, logger),
		validate:   validator.New(),
		metrics:    m,
		logger:     logger.With("component", "FanOutService"),
	}
}

// ProcessNotification fans out notifications/{id} to every registered device
// except the creator's. A record already processed is left untouched.
//
// Only a failure to read the trigger or the user records is returned; once
// dispatch starts every failure is terminal for this invocation.
func (s *Service) ProcessNotification(ctx context.Context, id string) (err error) {
	log := s.logger.With("notification_id", id)

	defer func() {
		if r := recover(); r != nil {
			log.Error("Notification aborted", "err", fmt.Errorf("unexpected failure: %v", r))
			s.metrics.ObserveEvent(SourceNotification, "error")
			err = nil
		}
	}()

	rec, err := s.tracking.GetNotification(ctx, id)
	if errors.Is(err, push.ErrRecordNotFound) {
		log.Warn("Notification document missing; nothing to do")
		s.metrics.ObserveEvent(SourceNotification, "missing")
		return nil
	}
	if errors.Is(err, push.ErrInvalidRequest) {
		log.Error("Unreadable notification document", "err", err)
		s.metrics.ObserveEvent(SourceNotification, "invalid")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load notification %s: %w", id, err)
	}
	if rec.Tracking.Processed {
		log.Info("Notification already processed; skipping")
		s.metrics.ObserveEvent(SourceNotification, "duplicate")
		return nil
	}
	if err := s.validate.Struct(rec.Request); err != nil {
		log.Error("Invalid notification data", "err", err)
		s.metrics.ObserveEvent(SourceNotification, "invalid")
		return nil
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	audience := CollectTokens(users, rec.Request.CreatorUserID)
	log.Info("Tokens collected", "users", len(users), "tokens", len(audience.Tokens))
	if len(audience.Tokens) == 0 {
		log.Info("No tokens found; nothing to send")
		s.metrics.ObserveEvent(SourceNotification, "no_tokens")
		return nil
	}

	part := Classify(audience.Tokens)
	log.Info("Tokens classified", "expo", len(part.Expo), "fcm", len(part.FCM))

	msg := push.DefaultMessage(rec.Request.Title, rec.Request.Message, map[string]string{
		push.DataEventID:        uuid.NewString(),
		push.DataNotificationID: id,
		push.DataType:           rec.Request.Type,
		push.DataRelatedItemID:  rec.Request.RelatedItemID,
	})
	report := s.dispatcher.Dispatch(ctx, part, msg)

	if err := s.recorder.Record(ctx, rec.Ref, report); err != nil {
		log.Error("Outcome not recorded", "err", err)
		s.metrics.ObserveEvent(SourceNotification, "unrecorded")
		return nil
	}
	s.metrics.ObserveEvent(SourceNotification, "processed")
	return nil
}

// ProcessPending delivers a pre-built payload from pendingNotifications/{id}.
// Unexpected failures after loading mark the record as errored.
func (s *Service) ProcessPending(ctx context.Context, id string) (err error) {
	log := s.logger.With("pending_id", id)

	rec, err := s.tracking.GetPending(ctx, id)
	if errors.Is(err, push.ErrRecordNotFound) {
		log.Warn("Pending document missing; nothing to do")
		s.metrics.ObserveEvent(SourcePending, "missing")
		return nil
	}
	if errors.Is(err, push.ErrInvalidRequest) {
		log.Error("Unreadable pending document", "err", err)
		s.metrics.ObserveEvent(SourcePending, "invalid")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load pending notification %s: %w", id, err)
	}
	if rec.Tracking.Processed {
		log.Info("Pending notification already processed; skipping")
		s.metrics.ObserveEvent(SourcePending, "duplicate")
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			cause := fmt.Errorf("unexpected failure: %v", r)
			log.Error("Pending notification aborted", "err", cause)
			s.recorder.RecordError(ctx, rec.Ref, cause)
			s.metrics.ObserveEvent(SourcePending, "error")
			err = nil
		}
	}()

	if err := s.validate.Struct(rec.Notification); err != nil {
		log.Error("Invalid pending notification data", "err", err)
		s.metrics.ObserveEvent(SourcePending, "invalid")
		return nil
	}
	tokens := Dedupe(rec.Notification.Tokens)
	if len(tokens) == 0 {
		log.Info("No tokens found; nothing to send")
		s.metrics.ObserveEvent(SourcePending, "no_tokens")
		return nil
	}

	part := Classify(tokens)
	log.Info("Tokens classified", "expo", len(part.Expo), "fcm", len(part.FCM))

	msg := push.DefaultMessage(rec.Notification.Title, rec.Notification.Message, map[string]string{
		push.DataEventID:        uuid.NewString(),
		push.DataNotificationID: id,
	})
	report := s.dispatcher.Dispatch(ctx, part, msg)

	if err := s.recorder.Record(ctx, rec.Ref, report); err != nil {
		log.Error("Outcome not recorded", "err", err)
		s.recorder.RecordError(ctx, rec.Ref, err)
		s.metrics.ObserveEvent(SourcePending, "error")
		return nil
	}
	s.metrics.ObserveEvent(SourcePending, "processed")
	return nil
}

// SendDirect dispatches to an explicit token list and returns the report
// without persisting anything.
func (s *Service) SendDirect(ctx context.Context, title, message string, tokens []string) (push.Report, error) {
	tokens = Dedupe(tokens)
	if len(tokens) == 0 {
		s.metrics.ObserveEvent(SourceAdmin, "no_tokens")
		return push.Report{}, push.ErrNoTokens
	}

	part := Classify(tokens)
	s.logger.Info("Direct send", "expo", len(part.Expo), "fcm", len(part.FCM))

	msg := push.DefaultMessage(title, message, map[string]string{
		push.DataEventID: uuid.NewString(),
		push.DataType:    SourceAdmin,
	})
	report := s.dispatcher.Dispatch(ctx, part, msg)
	s.metrics.ObserveEvent(SourceAdmin, "processed")
	return report, nil
}
