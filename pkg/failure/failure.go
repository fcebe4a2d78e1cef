// Package failure classifies the ways an operation call can fail before, during or after invocation.
package failure

import (
	"errors"
	"fmt"
)

// Kind is the failure classification.
type Kind int

const (
	// NotFound means no exposed operation accepts the supplied name and parameter set.
	NotFound Kind = iota + 1
	// AmbiguousMatch means more than one exposed operation accepts it.
	AmbiguousMatch
	// ConversionFailure means a scalar could not be coerced to its declared type.
	ConversionFailure
	// StructuralDecodeFailure means an object or array could not be decoded into its declared type.
	StructuralDecodeFailure
	// InvocationFailure means the operation itself failed.
	InvocationFailure
	// UnrecoverableState means a declaration or programming defect was detected.
	UnrecoverableState
)

var codes = map[Kind]string{
	NotFound:                "NOT_FOUND",
	AmbiguousMatch:          "AMBIGUOUS_MATCH",
	ConversionFailure:       "CONVERSION_FAILED",
	StructuralDecodeFailure: "DECODE_FAILED",
	InvocationFailure:       "INVOCATION_FAILED",
	UnrecoverableState:      "INTERNAL_ERROR",
}

// Code returns the wire code of k.
func (k Kind) Code() string {
	if c, ok := codes[k]; ok {
		return c
	}
	return "INTERNAL_ERROR"
}

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "NotFound"
	case AmbiguousMatch:
		return "AmbiguousMatch"
	case ConversionFailure:
		return "ConversionFailure"
	case StructuralDecodeFailure:
		return "StructuralDecodeFailure"
	case InvocationFailure:
		return "InvocationFailure"
	case UnrecoverableState:
		return "UnrecoverableState"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a classified failure. Fields that do not apply are left empty; Offset is -1
// when there is no position within the raw value.
type Error struct {
	Kind       Kind
	Message    string
	Operation  string
	Parameter  string
	Raw        string
	Offset     int
	Candidates []string
	// Status is a transport status chosen by a failure translator, or 0.
	Status int
	// Details is a client-facing payload chosen by a failure translator.
	Details any
	Err     error
}

func (e *Error) Error() string {
	return e.Kind.Code() + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Code returns the wire code of the failure.
func (e *Error) Code() string {
	return e.Kind.Code()
}

// Fields returns the failure context as a flat map for logs and error payloads.
func (e *Error) Fields() map[string]any {
	out := map[string]any{}
	if e.Operation != "" {
		out["operation"] = e.Operation
	}
	if e.Parameter != "" {
		out["parameter"] = e.Parameter
	}
	if e.Raw != "" {
		out["raw"] = e.Raw
	}
	if e.Offset >= 0 {
		out["offset"] = e.Offset
	}
	if len(e.Candidates) > 0 {
		out["candidates"] = e.Candidates
	}
	if e.Details != nil {
		out["details"] = e.Details
	}
	return out
}

// NewNotFound reports that no operation named operation accepts the supplied names.
func NewNotFound(operation string, supplied []string) *Error {
	return &Error{
		Kind:      NotFound,
		Message:   fmt.Sprintf("no operation %q accepts parameters %v", operation, supplied),
		Operation: operation,
		Offset:    -1,
	}
}

// NewServiceNotFound reports that no registered service version matches ref.
func NewServiceNotFound(ref string) *Error {
	return &Error{
		Kind:    NotFound,
		Message: fmt.Sprintf("no service matches %q", ref),
		Raw:     ref,
		Offset:  -1,
	}
}

// NewAmbiguous reports that several operations accept the supplied names.
func NewAmbiguous(operation string, candidates []string) *Error {
	return &Error{
		Kind:       AmbiguousMatch,
		Message:    fmt.Sprintf("%d operations named %q accept the supplied parameters", len(candidates), operation),
		Operation:  operation,
		Offset:     -1,
		Candidates: candidates,
	}
}

// NewConversion reports a parameter whose raw value could not be coerced.
func NewConversion(operation, parameter, raw string, offset int, err error) *Error {
	return &Error{
		Kind:      ConversionFailure,
		Message:   fmt.Sprintf("parameter %q: %v", parameter, err),
		Operation: operation,
		Parameter: parameter,
		Raw:       raw,
		Offset:    offset,
		Err:       err,
	}
}

// NewDecode reports a parameter whose structured value could not be decoded.
func NewDecode(operation, parameter, raw string, err error) *Error {
	return &Error{
		Kind:      StructuralDecodeFailure,
		Message:   fmt.Sprintf("parameter %q: %v", parameter, err),
		Operation: operation,
		Parameter: parameter,
		Raw:       raw,
		Offset:    -1,
		Err:       err,
	}
}

// NewInvocation reports a failure raised by the operation itself.
func NewInvocation(operation string, err error) *Error {
	return &Error{
		Kind:      InvocationFailure,
		Message:   fmt.Sprintf("operation %q failed: %v", operation, err),
		Operation: operation,
		Offset:    -1,
		Err:       err,
	}
}

// NewUnrecoverable reports a declaration or programming defect.
func NewUnrecoverable(operation string, err error) *Error {
	return &Error{
		Kind:      UnrecoverableState,
		Message:   fmt.Sprintf("operation %q: %v", operation, err),
		Operation: operation,
		Offset:    -1,
		Err:       err,
	}
}

// As returns the *Error in err's chain.
func As(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// KindOf returns the Kind of the failure in err's chain. Unclassified errors are UnrecoverableState.
func KindOf(err error) Kind {
	if fe, ok := As(err); ok {
		return fe.Kind
	}
	return UnrecoverableState
}

// Is reports whether err carries a failure of kind k.
func Is(err error, k Kind) bool {
	fe, ok := As(err)
	return ok && fe.Kind == k
}
