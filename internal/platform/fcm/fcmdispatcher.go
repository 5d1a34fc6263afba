// Package fcm delivers notifications through Firebase Cloud Messaging.
package fcm

import (
	"context"
	"log/slog"

	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"

	"github.com/tinywideclouds/go-condo-notifier/pkg/push"
)

// MaxBatchSize is the multicast token ceiling documented by FCM.
const MaxBatchSize = 500

// MessagingClient defines the subset of the Firebase Messaging API we use.
// This interface allows us to mock the client for unit testing.
type MessagingClient interface {
	SendEachForMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

type Dispatcher struct {
	client    MessagingClient
	batchSize int
	logger    *slog.Logger
}

// NewDispatcher accepts the concrete client but stores it as the interface.
// *messaging.Client satisfies it. batchSize <= 0 or above the FCM ceiling
// falls back to MaxBatchSize.
func NewDispatcher(client MessagingClient, batchSize int, logger *slog.Logger) *Dispatcher {
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}
	return &Dispatcher{
		client:    client,
		batchSize: batchSize,
		logger:    logger.With("component", "FCMDispatcher"),
	}
}

func (d *Dispatcher) Provider() push.Provider { return push.ProviderFCM }

func (d *Dispatcher) MaxBatchSize() int { return d.batchSize }

// Send issues one multicast call. A failed call fails every token in it; a
// per-token error only fails that token.
func (d *Dispatcher) Send(ctx context.Context, tokens []string, msg push.Message) push.BatchResult {
	res := push.BatchResult{Provider: push.ProviderFCM, Tokens: tokens}
	if len(tokens) == 0 {
		return res
	}

	br, err := d.client.SendEachForMulticast(ctx, buildMulticast(tokens, msg))
	if err != nil {
		tf := &push.TransportFailure{Cause: err}
		if resp := errorutils.HTTPResponse(err); resp != nil {
			tf.StatusCode = resp.StatusCode
			tf.Header = resp.Header
		}
		d.logger.Debug("FCM multicast failed", "tokens", len(tokens), "err", err)
		return push.Failed(push.ProviderFCM, tokens, tf)
	}

	for idx, token := range tokens {
		if idx >= len(br.Responses) || br.Responses[idx] == nil {
			res.Failures = append(res.Failures, push.TokenFailure{Token: token, Code: "missing-response"})
			continue
		}
		resp := br.Responses[idx]
		if resp.Success {
			res.Delivered++
			continue
		}
		res.Failures = append(res.Failures, tokenFailure(token, resp.Error))
	}
	return res
}

func buildMulticast(tokens []string, msg push.Message) *messaging.MulticastMessage {
	return &messaging.MulticastMessage{
		Tokens: tokens,
		Data:   msg.Data,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Android: &messaging.AndroidConfig{
			Priority: msg.Priority,
			Notification: &messaging.AndroidNotification{
				Sound:     msg.Sound,
				ChannelID: msg.ChannelID,
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": "10"},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: msg.Sound,
				},
			},
		},
	}
}

// tokenFailure maps an FCM per-token error onto the shared failure shape.
func tokenFailure(token string, err error) push.TokenFailure {
	f := push.TokenFailure{Token: token, Code: "unknown"}
	if err == nil {
		return f
	}
	f.Message = err.Error()

	switch {
	case messaging.IsRegistrationTokenNotRegistered(err):
		f.Code, f.Permanent = "registration-token-not-registered", true
	case messaging.IsInvalidArgument(err):
		// The token is garbage.
		f.Code, f.Permanent = "invalid-argument", true
	case messaging.IsSenderIDMismatch(err):
		f.Code, f.Permanent = "mismatched-credential", true
	case messaging.IsQuotaExceeded(err):
		f.Code = "message-rate-exceeded"
	case messaging.IsUnavailable(err):
		f.Code = "server-unavailable"
	case messaging.IsInternal(err):
		f.Code = "internal-error"
	case messaging.IsThirdPartyAuthError(err):
		f.Code = "third-party-auth-error"
	}
	return f
}
