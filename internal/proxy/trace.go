package proxy

import (
	"context"
	"sync"
)

type traceContextKey string

const traceKey traceContextKey = "downstream_trace"

// CallSummary describes one downstream call for the audit trail.
type CallSummary struct {
	URL          string
	Method       string
	StatusCode   int
	RequestBody  string
	ResponseBody string
	DurationMs   int64
}

// Trace is the per-request downstream scratch slot. It is threaded through
// the request context by the audit middleware rather than hung off shared
// request state, so concurrent requests cannot leak into each other. Only
// the most recent call survives.
type Trace struct {
	mu   sync.Mutex
	last *CallSummary
}

// Record stores the summary, replacing any earlier call's.
func (t *Trace) Record(summary CallSummary) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = &summary
}

// Last returns the most recent downstream call, or nil when none was made.
func (t *Trace) Last() *CallSummary {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// WithTrace attaches a fresh trace to the context.
func WithTrace(ctx context.Context) (context.Context, *Trace) {
	trace := &Trace{}
	return context.WithValue(ctx, traceKey, trace), trace
}

// TraceFromContext returns the request's trace, or nil when absent.
func TraceFromContext(ctx context.Context) *Trace {
	trace, _ := ctx.Value(traceKey).(*Trace)
	return trace
}
