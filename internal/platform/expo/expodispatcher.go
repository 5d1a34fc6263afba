// Package expo delivers notifications through the Expo push service.
package expo

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tinywideclouds/go-condo-notifier/pkg/push"
)

const (
	// DefaultURL is the public Expo push endpoint.
	DefaultURL = "https://exp.host/--/api/v2/push/send"
	// MaxBatchSize is the number of messages Expo accepts per request.
	MaxBatchSize = 100

	defaultTimeout = 30 * time.Second
	maxErrorBody   = 4 << 10
)

// Config holds the Expo endpoint settings.
type Config struct {
	URL string
	// AccessToken is only needed when enhanced push security is enabled.
	AccessToken string
	BatchSize   int
	Timeout     time.Duration
}

type Dispatcher struct {
	url         string
	accessToken string
	batchSize   int
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewDispatcher builds a dispatcher; a nil httpClient gets one with cfg.Timeout.
func NewDispatcher(cfg Config, httpClient *http.Client, logger *slog.Logger) *Dispatcher {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Dispatcher{
		url:         cfg.URL,
		accessToken: cfg.AccessToken,
		batchSize:   cfg.BatchSize,
		httpClient:  httpClient,
		logger:      logger.With("component", "ExpoDispatcher"),
	}
}

func (d *Dispatcher) Provider() push.Provider { return push.ProviderExpo }

func (d *Dispatcher) MaxBatchSize() int { return d.batchSize }

// Send posts one request for tokens and maps each ticket back to its token.
func (d *Dispatcher) Send(ctx context.Context, tokens []string, msg push.Message) push.BatchResult {
	res := push.BatchResult{Provider: push.ProviderExpo, Tokens: tokens}
	if len(tokens) == 0 {
		return res
	}

	body, err := json.Marshal(buildMessages(tokens, msg))
	if err != nil {
		return push.Failed(push.ProviderExpo, tokens, &push.TransportFailure{Cause: fmt.Errorf("failed to marshal payload: %w", err)})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return push.Failed(push.ProviderExpo, tokens, &push.TransportFailure{Cause: err})
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	req.Header.Set("Content-Type", "application/json")
	if d.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+d.accessToken)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return push.Failed(push.ProviderExpo, tokens, &push.TransportFailure{Cause: err})
	}
	defer resp.Body.Close()

	raw, err := readBody(resp)
	if err != nil {
		return push.Failed(push.ProviderExpo, tokens, &push.TransportFailure{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Cause:      fmt.Errorf("failed to read response: %w", err),
		})
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return push.Failed(push.ProviderExpo, tokens, &push.TransportFailure{
			StatusCode: resp.StatusCode,
			Body:       truncate(raw),
			Header:     resp.Header,
			Cause:      errors.New("expo push rejected request"),
		})
	}

	var pr PushResponse
	if err := json.Unmarshal(raw, &pr); err != nil {
		return push.Failed(push.ProviderExpo, tokens, &push.TransportFailure{
			StatusCode: resp.StatusCode,
			Body:       truncate(raw),
			Header:     resp.Header,
			Cause:      fmt.Errorf("malformed expo response: %w", err),
		})
	}
	if len(pr.Data) == 0 && len(pr.Errors) > 0 {
		return push.Failed(push.ProviderExpo, tokens, &push.TransportFailure{
			StatusCode: resp.StatusCode,
			Body:       truncate(raw),
			Header:     resp.Header,
			Cause:      fmt.Errorf("expo error %s: %s", pr.Errors[0].Code, pr.Errors[0].Message),
		})
	}

	for i, token := range tokens {
		if i >= len(pr.Data) {
			res.Failures = append(res.Failures, push.TokenFailure{Token: token, Code: "missing-ticket"})
			continue
		}
		ticket := pr.Data[i]
		if ticket.Status == StatusOK {
			res.Delivered++
			continue
		}
		res.Failures = append(res.Failures, ticketFailure(token, ticket))
	}
	return res
}

func buildMessages(tokens []string, msg push.Message) []PushMessage {
	out := make([]PushMessage, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, PushMessage{
			To:        t,
			Title:     msg.Title,
			Body:      msg.Body,
			Data:      msg.Data,
			Sound:     msg.Sound,
			Priority:  msg.Priority,
			ChannelID: msg.ChannelID,
		})
	}
	return out
}

func ticketFailure(token string, ticket PushTicket) push.TokenFailure {
	f := push.TokenFailure{Token: token, Code: StatusError, Message: ticket.Message}
	if ticket.Details != nil && ticket.Details.Error != "" {
		f.Code = ticket.Details.Error
	}
	f.Permanent = f.Code == ErrDeviceNotRegistered
	return f
}

// readBody undoes the gzip encoding we asked for; the transport only does
// that itself when it set Accept-Encoding.
func readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	}
	return io.ReadAll(r)
}

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		b = b[:maxErrorBody]
	}
	return string(b)
}
