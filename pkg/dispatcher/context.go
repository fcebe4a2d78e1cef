package dispatcher

import (
	"context"
	"time"
)

type invocationContextKey struct{}

// WithInvocationContext attaches the caller context so operations that take a
// context.Context can read it.
func WithInvocationContext(ctx context.Context, ic *InvocationContext) context.Context {
	if ic == nil {
		return ctx
	}
	return context.WithValue(ctx, invocationContextKey{}, ic)
}

// InvocationContextFrom returns the caller context attached to ctx, or nil.
func InvocationContextFrom(ctx context.Context) *InvocationContext {
	ic, _ := ctx.Value(invocationContextKey{}).(*InvocationContext)
	return ic
}

// Timeout returns the per-request timeout: max, tightened by the caller's deadlineMs or,
// failing that, timeoutMs.
func (ic *InvocationContext) Timeout(max time.Duration) time.Duration {
	if ic == nil {
		return max
	}
	ms := ic.DeadlineMs
	if ms <= 0 {
		ms = ic.TimeoutMs
	}
	if ms > 0 && time.Duration(ms)*time.Millisecond < max {
		return time.Duration(ms) * time.Millisecond
	}
	return max
}

// RequestContext derives the per-request context for a call: bounded by Timeout and
// carrying ic.
func RequestContext(parent context.Context, ic *InvocationContext, max time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, ic.Timeout(max))
	return WithInvocationContext(ctx, ic), cancel
}
