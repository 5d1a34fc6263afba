package fanout_test

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/tinywideclouds/go-condo-notifier/pkg/push"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeDispatcher records every call; safe for concurrent use.
type fakeDispatcher struct {
	provider push.Provider
	size     int
	respond  func(tokens []string) push.BatchResult

	mu    sync.Mutex
	calls [][]string
	msgs  []push.Message
}

func newFakeDispatcher(p push.Provider, size int) *fakeDispatcher {
	return &fakeDispatcher{provider: p, size: size}
}

func (f *fakeDispatcher) Provider() push.Provider { return f.provider }
func (f *fakeDispatcher) MaxBatchSize() int       { return f.size }

func (f *fakeDispatcher) Send(_ context.Context, tokens []string, msg push.Message) push.BatchResult {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), tokens...))
	f.msgs = append(f.msgs, msg)
	f.mu.Unlock()
	if f.respond != nil {
		return f.respond(tokens)
	}
	return push.BatchResult{Provider: f.provider, Tokens: tokens, Delivered: len(tokens)}
}

func (f *fakeDispatcher) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// CallSizes returns the batch sizes, largest first.
func (f *fakeDispatcher) CallSizes() []int {
	var sizes []int
	for _, c := range f.Calls() {
		sizes = append(sizes, len(c))
	}
	sort.Sort(sort.Reverse(sort.IntSlice(sizes)))
	return sizes
}

// AllTokens returns every token sent, sorted.
func (f *fakeDispatcher) AllTokens() []string {
	var all []string
	for _, c := range f.Calls() {
		all = append(all, c...)
	}
	sort.Strings(all)
	return all
}

type mockUserStore struct {
	mock.Mock
}

func (m *mockUserStore) ListUsers(ctx context.Context) ([]push.UserRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]push.UserRecord), args.Error(1)
}
func (m *mockUserStore) SetPushToken(ctx context.Context, userID, token string) error {
	return m.Called(ctx, userID, token).Error(0)
}
func (m *mockUserStore) ClearUserPushToken(ctx context.Context, userID, token string) error {
	return m.Called(ctx, userID, token).Error(0)
}
func (m *mockUserStore) ClearPushToken(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

type mockTrackingStore struct {
	mock.Mock
}

func (m *mockTrackingStore) GetNotification(ctx context.Context, id string) (*push.StoredNotification, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*push.StoredNotification), args.Error(1)
}
func (m *mockTrackingStore) GetPending(ctx context.Context, id string) (*push.StoredPending, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*push.StoredPending), args.Error(1)
}
func (m *mockTrackingStore) MarkProcessed(ctx context.Context, ref push.RecordRef, report push.Report) error {
	return m.Called(ctx, ref, report).Error(0)
}
func (m *mockTrackingStore) MarkFailed(ctx context.Context, ref push.RecordRef, cause string) error {
	return m.Called(ctx, ref, cause).Error(0)
}

type recordingTokenHandler struct {
	mu       sync.Mutex
	failures []push.TokenFailure
}

func (h *recordingTokenHandler) HandleInvalidTokens(_ context.Context, failures []push.TokenFailure) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures = append(h.failures, failures...)
}

func makeTokens(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = prefix + strconv.Itoa(i)
	}
	return out
}

func expoTokens(n int) []string {
	out := makeTokens("ExponentPushToken[", n)
	for i := range out {
		out[i] += "]"
	}
	return out
}
