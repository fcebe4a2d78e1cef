// Package invoker executes operation calls: it resolves the target operation, coerces every
// raw parameter to its declared type, calls the operation and serializes the result.
package invoker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/morezero/json-bridge/pkg/coerce"
	"github.com/morezero/json-bridge/pkg/failure"
	"github.com/morezero/json-bridge/pkg/operation"
	"github.com/morezero/json-bridge/pkg/resolver"
)

const (
	logPrefix  = "invoker:invoke"
	tracerName = "github.com/morezero/json-bridge/pkg/invoker"

	// OutcomeOK labels successful calls for observers.
	OutcomeOK = "OK"
)

// Observer is notified once per call with the failure code, or OutcomeOK.
type Observer interface {
	ObserveInvocation(service, operation, outcome string, elapsed time.Duration)
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithMapper replaces the default JSONMapper.
func WithMapper(m Mapper) Option {
	return func(i *Invoker) { i.mapper = m }
}

// WithTranslator sets the policy for errors returned by operations.
func WithTranslator(t Translator) Option {
	return func(i *Invoker) { i.translator = t }
}

// WithObserver registers a call observer, typically a metrics recorder.
func WithObserver(o Observer) Option {
	return func(i *Invoker) { i.observers = append(i.observers, o) }
}

// WithTracer sets the tracer used for per-call spans.
func WithTracer(t trace.Tracer) Option {
	return func(i *Invoker) { i.tracer = t }
}

// Invoker calls the operations of one service. It holds no per-call state and is safe
// for concurrent use.
type Invoker struct {
	service    *operation.Service
	converter  *coerce.Converter
	mapper     Mapper
	translator Translator
	observers  []Observer
	tracer     trace.Tracer
}

// New returns an Invoker for svc that coerces scalars with converter.
func New(svc *operation.Service, converter *coerce.Converter, opts ...Option) *Invoker {
	i := &Invoker{
		service:    svc,
		converter:  converter,
		mapper:     JSONMapper{},
		translator: declineAll{},
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.tracer == nil {
		i.tracer = otel.Tracer(tracerName)
	}
	return i
}

// Service returns the service the invoker calls into.
func (i *Invoker) Service() *operation.Service {
	return i.service
}

// Resolve selects the operation that name and params address, without calling it.
func (i *Invoker) Resolve(name string, params []operation.RawParameter) resolver.Resolution {
	return resolver.Resolve(name, params, i.service.Operations)
}

// Invoke calls the operation addressed by name and params and returns its JSON-encoded
// result. Every error returned is a *failure.Error.
func (i *Invoker) Invoke(ctx context.Context, name string, params []operation.RawParameter) (out []byte, err error) {
	start := time.Now()
	ctx, span := i.tracer.Start(ctx, "bridge.invoke",
		trace.WithAttributes(
			attribute.String("bridge.service", i.service.Name),
			attribute.String("bridge.operation", name),
			attribute.Int("bridge.params", len(params)),
		),
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer func() {
		outcome := OutcomeOK
		if err != nil {
			outcome = failure.KindOf(err).Code()
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.SetAttributes(attribute.String("bridge.outcome", outcome))
		span.End()
		for _, o := range i.observers {
			o.ObserveInvocation(i.service.Name, name, outcome, time.Since(start))
		}
	}()

	res := i.Resolve(name, params)
	if err := res.Err(); err != nil {
		return nil, err
	}
	op := res.Operation
	span.SetAttributes(attribute.String("bridge.method", op.Method))

	args := make([]reflect.Value, len(op.Params))
	for idx, p := range op.Params {
		v, err := i.coerce(op, p, find(params, p))
		if err != nil {
			return nil, err
		}
		args[idx] = v
	}

	result, err := i.call(ctx, op, args)
	if err != nil {
		return nil, err
	}

	var value any
	if result.IsValid() {
		value = result.Interface()
	}
	out, err = i.mapper.Encode(value)
	if err != nil {
		return nil, failure.NewUnrecoverable(name, fmt.Errorf("encode result: %w", err))
	}
	return out, nil
}

// find returns the raw value supplied for p, or nil.
func find(params []operation.RawParameter, p operation.Parameter) any {
	for _, rp := range params {
		if rp.Name == p.Name && rp.Header == p.Header {
			return rp.Value
		}
	}
	return nil
}

// coerce converts one raw value to its declared type. Plain strings go through the
// converter first and fall back to decoding the string as a JSON document. Objects and
// arrays go to the mapper. Everything else goes to the converter.
func (i *Invoker) coerce(op *operation.Descriptor, p operation.Parameter, raw any) (reflect.Value, error) {
	switch v := raw.(type) {
	case string:
		converted, convErr := i.converter.ConvertValue(v, p.Type)
		if convErr == nil {
			return converted, nil
		}
		if unrecoverable(convErr) {
			return reflect.Value{}, failure.NewUnrecoverable(op.Name, convErr)
		}
		if coerce.IsTextual(p.Type) {
			return reflect.Value{}, conversionFailure(op, p, v, convErr)
		}
		decoded, decErr := i.mapper.Decode([]byte(v), p.Type)
		if decErr == nil {
			return decoded, nil
		}
		slog.Debug(fmt.Sprintf("%s - %s.%s: %q is neither convertible nor a JSON document: %v", logPrefix, op.Name, p.Name, v, decErr))
		return reflect.Value{}, conversionFailure(op, p, v, convErr)

	case []any, map[string]any:
		data, err := json.Marshal(v)
		if err != nil {
			return reflect.Value{}, failure.NewDecode(op.Name, p.Name, fmt.Sprint(v), err)
		}
		decoded, err := i.mapper.Decode(data, p.Type)
		if err == nil {
			return decoded, nil
		}
		if seq, ok := v.([]any); ok && scalars(seq) {
			// Repeated query keys arrive as string sequences; convert them element-wise.
			converted, convErr := i.converter.ConvertValue(seq, p.Type)
			if convErr == nil {
				return converted, nil
			}
			if unrecoverable(convErr) {
				return reflect.Value{}, failure.NewUnrecoverable(op.Name, convErr)
			}
			slog.Debug(fmt.Sprintf("%s - %s.%s: element-wise conversion failed: %v", logPrefix, op.Name, p.Name, convErr))
		}
		return reflect.Value{}, failure.NewDecode(op.Name, p.Name, string(data), err)
	}

	converted, err := i.converter.ConvertValue(raw, p.Type)
	if err != nil {
		if unrecoverable(err) {
			return reflect.Value{}, failure.NewUnrecoverable(op.Name, err)
		}
		return reflect.Value{}, conversionFailure(op, p, fmt.Sprint(raw), err)
	}
	return converted, nil
}

// scalars reports whether every element of seq is a JSON scalar.
func scalars(seq []any) bool {
	for _, e := range seq {
		switch e.(type) {
		case string, json.Number, float64, bool, nil:
		default:
			return false
		}
	}
	return true
}

func unrecoverable(err error) bool {
	var ue *coerce.UnrecoverableError
	return errors.As(err, &ue)
}

func conversionFailure(op *operation.Descriptor, p operation.Parameter, raw string, err error) *failure.Error {
	offset := -1
	var ce *coerce.ConversionError
	if errors.As(err, &ce) {
		offset = ce.Offset
	}
	return failure.NewConversion(op.Name, p.Name, raw, offset, err)
}

// call invokes op and classifies what it returns. Panics become invocation failures.
func (i *Invoker) call(ctx context.Context, op *operation.Descriptor, args []reflect.Value) (result reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error(fmt.Sprintf("%s - %s.%s panicked: %v", logPrefix, i.service.Name, op.Method, r))
			result = reflect.Value{}
			err = failure.NewInvocation(op.Name, fmt.Errorf("panic: %v", r))
		}
	}()

	result, opErr := op.Call(ctx, args)
	if opErr == nil {
		return result, nil
	}

	fe := failure.NewInvocation(op.Name, opErr)
	if t, ok := i.translator.Translate(op.Name, opErr); ok {
		fe.Status = t.Status
		fe.Details = t.Details
		if t.Message != "" {
			fe.Message = t.Message
		}
		return reflect.Value{}, fe
	}
	slog.Warn(fmt.Sprintf("%s - %s.%s failed: %v", logPrefix, i.service.Name, op.Method, opErr))
	fe.Message = "internal server error"
	return reflect.Value{}, fe
}
