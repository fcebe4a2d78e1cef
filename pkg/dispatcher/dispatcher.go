package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/morezero/json-bridge/pkg/catalog"
	"github.com/morezero/json-bridge/pkg/commsutil"
	"github.com/morezero/json-bridge/pkg/events"
	"github.com/morezero/json-bridge/pkg/failure"
	"github.com/morezero/json-bridge/pkg/operation"
	"github.com/morezero/json-bridge/pkg/resolver"
)

const logPrefix = "dispatcher:dispatch"

// Dispatcher routes requests to the services of a catalog.
type Dispatcher struct {
	catalog   *catalog.Catalog
	publisher events.EventPublisher
}

// NewDispatcherParams holds parameters for NewDispatcher.
type NewDispatcherParams struct {
	Catalog *catalog.Catalog
	// Publisher receives one event per invocation. Nil disables events.
	Publisher events.EventPublisher
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(params NewDispatcherParams) *Dispatcher {
	pub := params.Publisher
	if pub == nil {
		pub = &events.NoOpPublisher{}
	}
	return &Dispatcher{catalog: params.Catalog, publisher: pub}
}

// Catalog returns the catalog the dispatcher routes to.
func (d *Dispatcher) Catalog() *catalog.Catalog {
	return d.catalog
}

// Call is a transport-neutral invocation.
type Call struct {
	// Service is a service reference: name[@range].
	Service string
	// Operations are the names to try, in order. The first whose resolution is not
	// NotFound is invoked; when all are NotFound the first is reported.
	Operations []string
	Params     []operation.RawParameter
	Ctx        *InvocationContext
	// RequestID identifies the call in events.
	RequestID string
	Transport string
}

// Result is the outcome of a successful Call.
type Result struct {
	Entry     *catalog.Entry
	Operation string
	// Body is the JSON-encoded operation result.
	Body json.RawMessage
}

// Invoke resolves the service and operation of call and invokes it. Every error is a
// *failure.Error.
func (d *Dispatcher) Invoke(ctx context.Context, call Call) (*Result, error) {
	start := time.Now()
	name := ""
	if len(call.Operations) > 0 {
		name = call.Operations[0]
	}

	entry, err := d.catalog.Resolve(call.Service)
	if err != nil {
		d.publish(ctx, call, nil, name, start, err)
		return nil, err
	}

	name = selectOperation(entry, call.Operations, call.Params)
	slog.Debug(fmt.Sprintf("%s - invoking %s.%s with %d parameters", logPrefix, entry.Ref(), name, len(call.Params)))

	body, err := entry.Invoker.Invoke(WithInvocationContext(ctx, call.Ctx), name, call.Params)
	d.publish(ctx, call, entry, name, start, err)
	if err != nil {
		return nil, err
	}
	return &Result{Entry: entry, Operation: name, Body: body}, nil
}

// selectOperation picks the first candidate name that does not resolve to NotFound.
func selectOperation(entry *catalog.Entry, names []string, params []operation.RawParameter) string {
	if len(names) == 0 {
		return ""
	}
	for _, name := range names {
		if entry.Invoker.Resolve(name, params).Status != resolver.NotFound {
			return name
		}
	}
	return names[0]
}

func (d *Dispatcher) publish(ctx context.Context, call Call, entry *catalog.Entry, name string, start time.Time, callErr error) {
	event := &events.InvocationEvent{
		ID:         call.RequestID,
		Service:    call.Service,
		Operation:  name,
		Outcome:    events.OutcomeOK,
		Parameters: parameterNames(call.Params),
		DurationMs: time.Since(start).Milliseconds(),
		Transport:  call.Transport,
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
	}
	if entry != nil {
		event.Service = entry.Name
		event.Version = entry.Version.String()
	}
	if callErr != nil {
		event.Outcome = failure.KindOf(callErr).Code()
		event.Message = callErr.Error()
	}
	if ic := call.Ctx; ic != nil {
		event.TenantID = ic.TenantID
		event.UserID = ic.UserID
		event.CorrelationID = ic.CorrelationID
		if event.ID == "" {
			event.ID = ic.RequestID
		}
		event.RequestID = ic.RequestID
	}

	// Publish even when the request context is already done.
	if err := d.publisher.PublishInvocation(context.WithoutCancel(ctx), event); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to publish invocation event for %s.%s: %v", logPrefix, event.Service, name, err))
	}
}

func parameterNames(params []operation.RawParameter) []string {
	names := make([]string, 0, len(params))
	for _, p := range params {
		if p.Header {
			names = append(names, "header:"+p.Name)
			continue
		}
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

// Dispatch routes an envelope request and returns the response envelope.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) *Response {
	slog.Debug(fmt.Sprintf("%s - type=%s cap=%s method=%s id=%s", logPrefix, req.Type, req.Cap, req.Method, req.ID))

	switch req.Type {
	case "", TypeInvoke:
		return d.handleInvoke(ctx, req)
	case TypeDescribe:
		return d.handleDescribe(req)
	case TypeList:
		return &Response{ID: req.ID, Ok: true, Result: List(d.catalog)}
	case TypeHealth:
		return &Response{ID: req.ID, Ok: true, Result: d.Health()}
	default:
		return errorResponse(req.ID, "UNKNOWN_TYPE", fmt.Sprintf("Unknown request type: %s", req.Type), false)
	}
}

func (d *Dispatcher) handleInvoke(ctx context.Context, req *Request) *Response {
	if req.Method == "" {
		return errorResponse(req.ID, "INVALID_ARGUMENT", "Missing method", false)
	}
	params, err := DecodeParams(req.Params, req.Headers)
	if err != nil {
		return errorResponse(req.ID, "INVALID_ARGUMENT", err.Error(), false)
	}

	id := req.ID
	if id == "" && req.Ctx != nil {
		id = req.Ctx.RequestID
	}
	result, err := d.Invoke(ctx, Call{
		Service:    req.Cap,
		Operations: []string{req.Method},
		Params:     params,
		Ctx:        req.Ctx,
		RequestID:  id,
		Transport:  "comms",
	})
	if err != nil {
		return failureToResponse(req.ID, err)
	}
	return &Response{ID: req.ID, Ok: true, Result: result.Body}
}

func (d *Dispatcher) handleDescribe(req *Request) *Response {
	entry, err := d.catalog.Resolve(req.Cap)
	if err != nil {
		return failureToResponse(req.ID, err)
	}
	return &Response{ID: req.ID, Ok: true, Result: Describe(entry, d.catalog.Versions(entry.Name))}
}

// HealthOutput reports dispatcher health.
type HealthOutput struct {
	Status    string `json:"status"`
	Services  int    `json:"services"`
	Timestamp string `json:"timestamp"`
}

// Health reports healthy once at least one service is registered.
func (d *Dispatcher) Health() *HealthOutput {
	n := len(d.catalog.Names())
	status := "healthy"
	if n == 0 {
		status = "unhealthy"
	}
	return &HealthOutput{Status: status, Services: n, Timestamp: time.Now().UTC().Format(time.RFC3339)}
}

// DecodeParams turns the envelope's params object and header map into raw parameters.
// Numbers are kept as json.Number. Parameters are ordered by name, headers first.
func DecodeParams(body json.RawMessage, headers map[string]json.RawMessage) ([]operation.RawParameter, error) {
	var out []operation.RawParameter

	headerNames := make([]string, 0, len(headers))
	for name := range headers {
		headerNames = append(headerNames, name)
	}
	sort.Strings(headerNames)
	for _, name := range headerNames {
		var v any
		if err := commsutil.DecodeNumbers(headers[name], &v); err != nil {
			return nil, fmt.Errorf("header %q is not valid JSON: %w", name, err)
		}
		out = append(out, operation.RawParameter{Name: name, Header: true, Value: v})
	}

	if len(body) == 0 || string(body) == "null" {
		return out, nil
	}
	var fields map[string]any
	if err := commsutil.DecodeNumbers(body, &fields); err != nil {
		return nil, fmt.Errorf("params must be a JSON object: %w", err)
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out = append(out, operation.RawParameter{Name: name, Value: fields[name]})
	}
	return out, nil
}

// --- helpers ---

func errorResponse(id, code, message string, retryable bool) *Response {
	return &Response{
		ID: id,
		Ok: false,
		Error: &ErrorDetail{
			Code:      code,
			Message:   message,
			Retryable: retryable,
		},
	}
}

// failureToResponse renders err as an error envelope.
func failureToResponse(id string, err error) *Response {
	return &Response{ID: id, Ok: false, Error: ErrorDetailOf(err)}
}

// ErrorDetailOf classifies err. Classified failures are not retryable; deadlines and
// unclassified errors are.
func ErrorDetailOf(err error) *ErrorDetail {
	if fe, ok := failure.As(err); ok {
		detail := &ErrorDetail{Code: fe.Code(), Message: fe.Message}
		if details := fe.Fields(); len(details) > 0 {
			detail.Details = details
		}
		return detail
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ErrorDetail{Code: "TIMEOUT", Message: err.Error(), Retryable: true}
	}
	return &ErrorDetail{Code: "INTERNAL_ERROR", Message: err.Error(), Retryable: true}
}
