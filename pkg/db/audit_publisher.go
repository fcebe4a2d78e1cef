package db

import (
	"context"

	"github.com/morezero/json-bridge/pkg/events"
)

// AuditPublisher is an events.EventPublisher that writes every event to the audit trail.
type AuditPublisher struct {
	repo *Repository
}

// NewAuditPublisher creates an AuditPublisher backed by repo.
func NewAuditPublisher(repo *Repository) *AuditPublisher {
	return &AuditPublisher{repo: repo}
}

// PublishInvocation stores the event.
func (p *AuditPublisher) PublishInvocation(ctx context.Context, event *events.InvocationEvent) error {
	_, err := p.repo.InsertAudit(ctx, event)
	return err
}
