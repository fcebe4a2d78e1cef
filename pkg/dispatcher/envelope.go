// Package dispatcher routes bridge requests to the service catalog and renders the JSON
// response envelope.
package dispatcher

import "encoding/json"

// Request types.
const (
	TypeInvoke   = "invoke"
	TypeDescribe = "describe"
	TypeList     = "list"
	TypeHealth   = "health"
)

// Request is the JSON envelope for bridge requests.
type Request struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	// Cap is a service reference: name[@range].
	Cap    string          `json:"cap"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	// Headers carries header parameters. Values are JSON.
	Headers map[string]json.RawMessage `json:"headers,omitempty"`
	Ctx     *InvocationContext         `json:"ctx,omitempty"`
}

// Response is the JSON envelope for bridge responses.
type Response struct {
	ID     string       `json:"id"`
	Ok     bool         `json:"ok"`
	Result interface{}  `json:"result,omitempty"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail holds structured error information.
type ErrorDetail struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	Retryable bool        `json:"retryable"`
}

// InvocationContext holds context from the caller.
type InvocationContext struct {
	TenantID      string   `json:"tenantId,omitempty"`
	UserID        string   `json:"userId,omitempty"`
	RequestID     string   `json:"requestId,omitempty"`
	CorrelationID string   `json:"correlationId,omitempty"`
	Env           string   `json:"env,omitempty"`
	Aud           string   `json:"aud,omitempty"`
	Features      []string `json:"features,omitempty"`
	Roles         []string `json:"roles,omitempty"`
	DeadlineMs    int      `json:"deadlineMs,omitempty"`
	TimeoutMs     int      `json:"timeoutMs,omitempty"`
}
