// Package events defines invocation events and the publishers that fan them out.
package events

// InvocationEvent is emitted once per dispatched call.
type InvocationEvent struct {
	ID        string `json:"id"`
	Service   string `json:"service"`
	Version   string `json:"version,omitempty"`
	Operation string `json:"operation"`
	// Outcome is "OK" or the failure code.
	Outcome string `json:"outcome"`
	Message string `json:"message,omitempty"`
	// Parameters lists the supplied names; header names carry a "header:" prefix.
	Parameters    []string `json:"parameters"`
	DurationMs    int64    `json:"durationMs"`
	Transport     string   `json:"transport,omitempty"`
	TenantID      string   `json:"tenantId,omitempty"`
	UserID        string   `json:"userId,omitempty"`
	RequestID     string   `json:"requestId,omitempty"`
	CorrelationID string   `json:"correlationId,omitempty"`
	Timestamp     string   `json:"timestamp"`
}

// Succeeded reports whether the call returned a result.
func (e *InvocationEvent) Succeeded() bool {
	return e.Outcome == OutcomeOK
}

// OutcomeOK is the outcome of a successful call.
const OutcomeOK = "OK"
