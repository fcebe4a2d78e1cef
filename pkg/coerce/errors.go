package coerce

import (
	"errors"
	"fmt"
)

// ErrNotApplicable is returned by a Step that does not handle the given raw value / target pair.
// The converter moves on to the next step.
var ErrNotApplicable = errors.New("coerce: step not applicable")

// ConversionError reports a raw value that could not be coerced to its target type.
type ConversionError struct {
	// Raw is the textual form of the offending value.
	Raw string
	// Target is the name of the requested type.
	Target string
	// Message is a human-readable reason.
	Message string
	// Offset is the character offset of the problem within the normalized input, or -1.
	Offset int
	// Err is the underlying parser error, if any.
	Err error
}

func (e *ConversionError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s - cannot convert %q to %s: %s (at offset %d)", logPrefix, e.Raw, e.Target, e.Message, e.Offset)
	}
	return fmt.Sprintf("%s - cannot convert %q to %s: %s", logPrefix, e.Raw, e.Target, e.Message)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// UnrecoverableError reports a factory that was found for a type but could not be invoked.
// It indicates a declaration defect, not bad input.
type UnrecoverableError struct {
	Target  string
	Factory string
	Cause   any
}

func (e *UnrecoverableError) Error() string {
	return fmt.Sprintf("%s - factory %s for %s failed: %v", logPrefix, e.Factory, e.Target, e.Cause)
}

// Unwrap exposes the cause when it is an error.
func (e *UnrecoverableError) Unwrap() error {
	if err, ok := e.Cause.(error); ok {
		return err
	}
	return nil
}

func conversionError(raw any, target string, offset int, format string, args ...any) *ConversionError {
	return &ConversionError{
		Raw:     textOf(raw),
		Target:  target,
		Message: fmt.Sprintf(format, args...),
		Offset:  offset,
	}
}
