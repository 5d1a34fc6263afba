package push

import (
	"fmt"
	"net/http"
)

// TokenFailure is a single token rejected inside an otherwise completed call.
type TokenFailure struct {
	Token   string `json:"token" firestore:"token"`
	Code    string `json:"code" firestore:"code"`
	Message string `json:"message,omitempty" firestore:"message,omitempty"`
	// Permanent marks failures where the token itself is dead.
	Permanent bool `json:"permanent" firestore:"permanent"`
}

// TransportFailure is a chunk-level failure: the call produced no usable
// per-token answer. StatusCode is zero when no response was received.
type TransportFailure struct {
	StatusCode int
	Body       string
	Header     http.Header
	Cause      error
}

func (f *TransportFailure) Error() string {
	if f.StatusCode == 0 {
		return fmt.Sprintf("no response received: %v", f.Cause)
	}
	return fmt.Sprintf("status %d: %s", f.StatusCode, f.Body)
}

func (f *TransportFailure) Unwrap() error {
	return f.Cause
}

// BatchResult is the outcome of one provider call. Exactly one of the two
// shapes holds: Transport is set (every token failed) or the call completed
// and Delivered + len(Failures) == len(Tokens).
type BatchResult struct {
	Provider  Provider
	Index     int
	Tokens    []string
	Delivered int
	Failures  []TokenFailure
	Transport *TransportFailure
}

// Failed builds the result for a chunk whose call failed as a whole.
func Failed(provider Provider, tokens []string, tf *TransportFailure) BatchResult {
	return BatchResult{Provider: provider, Tokens: tokens, Transport: tf}
}

func (r BatchResult) OK() bool {
	return r.Transport == nil
}

func (r BatchResult) SuccessCount() int {
	if r.Transport != nil {
		return 0
	}
	return r.Delivered
}

func (r BatchResult) FailureCount() int {
	if r.Transport != nil {
		return len(r.Tokens)
	}
	return len(r.Failures)
}

// PermanentFailures returns the token failures that identify dead tokens.
func (r BatchResult) PermanentFailures() []TokenFailure {
	var out []TokenFailure
	for _, f := range r.Failures {
		if f.Permanent {
			out = append(out, f)
		}
	}
	return out
}

// Stats are the aggregate counters persisted on a tracking record.
type Stats struct {
	Total   int `json:"total" firestore:"total"`
	Success int `json:"success" firestore:"success"`
	Failure int `json:"failure" firestore:"failure"`
}

func (s *Stats) add(r BatchResult) {
	s.Total += len(r.Tokens)
	s.Success += r.SuccessCount()
	s.Failure += r.FailureCount()
}

// BatchSummary is the persisted view of one BatchResult.
type BatchSummary struct {
	Provider Provider `json:"provider" firestore:"provider"`
	Index    int      `json:"index" firestore:"index"`
	Size     int      `json:"size" firestore:"size"`
	Success  int      `json:"success" firestore:"success"`
	Failure  int      `json:"failure" firestore:"failure"`
	Error    string   `json:"error,omitempty" firestore:"error,omitempty"`
}

// ProviderSummary aggregates all batches of one provider.
type ProviderSummary struct {
	Stats
	Batches []BatchSummary `json:"batches"`
}

// Report is the aggregate of every batch issued for one event.
type Report struct {
	Results []BatchResult
}

// Stats sums every batch.
func (r Report) Stats() Stats {
	var s Stats
	for _, res := range r.Results {
		s.add(res)
	}
	return s
}

// Summary returns the counters for a single provider.
func (r Report) Summary(p Provider) ProviderSummary {
	out := ProviderSummary{Batches: []BatchSummary{}}
	for _, res := range r.Results {
		if res.Provider != p {
			continue
		}
		out.add(res)
		out.Batches = append(out.Batches, summarize(res))
	}
	return out
}

// Batches returns the per-batch summaries in dispatch order.
func (r Report) Batches() []BatchSummary {
	out := make([]BatchSummary, 0, len(r.Results))
	for _, res := range r.Results {
		out = append(out, summarize(res))
	}
	return out
}

// Failures lists every failed token. Tokens of a failed chunk carry the
// transport error as their message.
func (r Report) Failures() []TokenFailure {
	var out []TokenFailure
	for _, res := range r.Results {
		if res.Transport != nil {
			for _, t := range res.Tokens {
				out = append(out, TokenFailure{Token: t, Code: "transport", Message: res.Transport.Error()})
			}
			continue
		}
		out = append(out, res.Failures...)
	}
	return out
}

func summarize(res BatchResult) BatchSummary {
	bs := BatchSummary{
		Provider: res.Provider,
		Index:    res.Index,
		Size:     len(res.Tokens),
		Success:  res.SuccessCount(),
		Failure:  res.FailureCount(),
	}
	if res.Transport != nil {
		bs.Error = res.Transport.Error()
	}
	return bs
}
