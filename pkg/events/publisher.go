package events

import (
	"context"
	"errors"
)

// EventPublisher is the interface for publishing invocation events.
type EventPublisher interface {
	PublishInvocation(ctx context.Context, event *InvocationEvent) error
}

// NoOpPublisher is an EventPublisher that does nothing (for in-process usage without events).
type NoOpPublisher struct{}

// PublishInvocation is a no-op.
func (p *NoOpPublisher) PublishInvocation(_ context.Context, _ *InvocationEvent) error {
	return nil
}

// CallbackPublisher is an EventPublisher that calls a callback function (for testing).
type CallbackPublisher struct {
	callback func(ctx context.Context, event *InvocationEvent) error
}

// NewCallbackPublisher creates a new CallbackPublisher.
func NewCallbackPublisher(cb func(ctx context.Context, event *InvocationEvent) error) *CallbackPublisher {
	return &CallbackPublisher{callback: cb}
}

// PublishInvocation calls the callback.
func (p *CallbackPublisher) PublishInvocation(ctx context.Context, event *InvocationEvent) error {
	return p.callback(ctx, event)
}

// MultiPublisher publishes every event to each of its publishers, in order. A failing
// publisher does not stop the others.
type MultiPublisher struct {
	publishers []EventPublisher
}

// NewMultiPublisher creates a MultiPublisher. Nil publishers are skipped.
func NewMultiPublisher(publishers ...EventPublisher) *MultiPublisher {
	m := &MultiPublisher{}
	for _, p := range publishers {
		if p != nil {
			m.publishers = append(m.publishers, p)
		}
	}
	return m
}

// PublishInvocation publishes to all publishers and joins their errors.
func (m *MultiPublisher) PublishInvocation(ctx context.Context, event *InvocationEvent) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.PublishInvocation(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of publishers.
func (m *MultiPublisher) Len() int {
	return len(m.publishers)
}
