package server

import (
	"context"

	"go.opentelemetry.io/otel/codes"

	"github.com/morezero/json-bridge/internal/metrics"
	"github.com/morezero/json-bridge/internal/telemetry"
	"github.com/morezero/json-bridge/pkg/events"
)

// instrumentedPublisher counts and traces every event handed to one sink.
type instrumentedPublisher struct {
	sink string
	next events.EventPublisher
}

func instrument(sink string, next events.EventPublisher) events.EventPublisher {
	return &instrumentedPublisher{sink: sink, next: next}
}

func (p *instrumentedPublisher) PublishInvocation(ctx context.Context, event *events.InvocationEvent) error {
	ctx, span := telemetry.StartPublishSpan(ctx, p.sink, event.Service)
	defer span.End()

	err := p.next.PublishInvocation(ctx, event)
	metrics.RecordPublish(p.sink, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
