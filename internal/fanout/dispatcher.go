package fanout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tinywideclouds/go-condo-notifier/internal/metrics"
	"github.com/tinywideclouds/go-condo-notifier/pkg/dispatch"
	"github.com/tinywideclouds/go-condo-notifier/pkg/push"
)

// DefaultMaxConcurrentBatches bounds the in-flight provider calls per event.
const DefaultMaxConcurrentBatches = 8

var errNoDispatcher = errors.New("no dispatcher configured for provider")

// BatchDispatcher delivers a partition to every provider, chunking each side
// by the provider's ceiling and running all chunks concurrently.
type BatchDispatcher struct {
	dispatchers   map[push.Provider]dispatch.Dispatcher
	invalid       dispatch.InvalidTokenHandler
	metrics       *metrics.Metrics
	maxConcurrent int
	logger        *slog.Logger
}

type DispatcherOption func(*BatchDispatcher)

// WithInvalidTokenHandler sets the callback for permanently failed tokens.
func WithInvalidTokenHandler(h dispatch.InvalidTokenHandler) DispatcherOption {
	return func(d *BatchDispatcher) { d.invalid = h }
}

func WithMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *BatchDispatcher) { d.metrics = m }
}

// WithMaxConcurrentBatches limits parallel provider calls. n <= 0 keeps the default.
func WithMaxConcurrentBatches(n int) DispatcherOption {
	return func(d *BatchDispatcher) {
		if n > 0 {
			d.maxConcurrent = n
		}
	}
}

func NewBatchDispatcher(dispatchers []dispatch.Dispatcher, logger *slog.Logger, opts ...DispatcherOption) *BatchDispatcher {
	d := &BatchDispatcher{
		dispatchers:   make(map[push.Provider]dispatch.Dispatcher, len(dispatchers)),
		maxConcurrent: DefaultMaxConcurrentBatches,
		logger:        logger.With("component", "BatchDispatcher"),
	}
	for _, disp := range dispatchers {
		d.dispatchers[disp.Provider()] = disp
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.invalid == nil {
		d.invalid = NewLoggingTokenHandler(logger)
	}
	return d
}

type batchJob struct {
	provider push.Provider
	index    int
	tokens   []string
}

// Dispatch sends msg to every token of the partition. It always returns a
// report with one result per chunk, Expo chunks first.
func (d *BatchDispatcher) Dispatch(ctx context.Context, part Partition, msg push.Message) push.Report {
	jobs := d.plan(part)
	results := make([]push.BatchResult, len(jobs))

	var g errgroup.Group
	g.SetLimit(d.maxConcurrent)
	for i, job := range jobs {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					d.logger.Error("Batch panicked", "provider", job.provider, "batch", job.index, "panic", r)
					results[i] = push.BatchResult{
						Provider:  job.provider,
						Index:     job.index,
						Tokens:    job.tokens,
						Transport: &push.TransportFailure{Cause: fmt.Errorf("panic: %v", r)},
					}
				}
			}()
			results[i] = d.send(ctx, job, msg)
			return nil
		})
	}
	_ = g.Wait()

	report := push.Report{Results: results}
	var dead []push.TokenFailure
	for _, res := range results {
		dead = append(dead, res.PermanentFailures()...)
	}
	if len(dead) > 0 {
		d.invalid.HandleInvalidTokens(ctx, dead)
	}

	stats := report.Stats()
	d.logger.Info("Dispatch complete",
		"batches", len(results),
		"total", stats.Total,
		"success", stats.Success,
		"failure", stats.Failure,
	)
	return report
}

func (d *BatchDispatcher) plan(part Partition) []batchJob {
	var jobs []batchJob
	add := func(p push.Provider, tokens []string) {
		size := 0
		if disp, ok := d.dispatchers[p]; ok {
			size = disp.MaxBatchSize()
		}
		for i, chunk := range Chunk(tokens, size) {
			jobs = append(jobs, batchJob{provider: p, index: i, tokens: chunk})
		}
	}
	add(push.ProviderExpo, part.Expo)
	add(push.ProviderFCM, part.FCM)
	return jobs
}

func (d *BatchDispatcher) send(ctx context.Context, job batchJob, msg push.Message) push.BatchResult {
	log := d.logger.With("provider", job.provider, "batch", job.index, "size", len(job.tokens))

	disp, ok := d.dispatchers[job.provider]
	if !ok {
		log.Error("Batch skipped", "err", errNoDispatcher)
		return push.BatchResult{
			Provider:  job.provider,
			Index:     job.index,
			Tokens:    job.tokens,
			Transport: &push.TransportFailure{Cause: fmt.Errorf("%w: %s", errNoDispatcher, job.provider)},
		}
	}

	start := time.Now()
	res := disp.Send(ctx, job.tokens, msg)
	res.Provider = job.provider
	res.Index = job.index
	res.Tokens = job.tokens
	d.metrics.ObserveBatch(res, time.Since(start))

	if tf := res.Transport; tf != nil {
		if tf.StatusCode == 0 {
			log.Error("Batch failed: no response received", "err", tf.Cause)
		} else {
			log.Error("Batch failed", "status", tf.StatusCode, "body", tf.Body, "headers", tf.Header, "err", tf.Cause)
		}
		return res
	}

	for _, f := range res.Failures {
		log.Warn("Token delivery failed", "token", f.Token, "code", f.Code, "message", f.Message, "permanent", f.Permanent)
	}
	log.Info("Batch dispatched", "success", res.SuccessCount(), "failure", res.FailureCount())
	return res
}
