package db

import "time"

// AuditRecord represents a row in the invocation_audit table.
type AuditRecord struct {
	ID            int64     `json:"id"`
	EventID       *string   `json:"event_id,omitempty"`
	Service       string    `json:"service"`
	Version       *string   `json:"version,omitempty"`
	Operation     string    `json:"operation"`
	Outcome       string    `json:"outcome"`
	Message       *string   `json:"message,omitempty"`
	Parameters    []string  `json:"parameters"`
	DurationMs    int64     `json:"duration_ms"`
	Transport     *string   `json:"transport,omitempty"`
	TenantID      *string   `json:"tenant_id,omitempty"`
	UserID        *string   `json:"user_id,omitempty"`
	RequestID     *string   `json:"request_id,omitempty"`
	CorrelationID *string   `json:"correlation_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
	Created       time.Time `json:"created"`
}

// OutcomeCount is one row of CountByOutcome.
type OutcomeCount struct {
	Outcome string `json:"outcome"`
	Count   int64  `json:"count"`
}
