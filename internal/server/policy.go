package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/morezero/json-bridge/pkg/failure"
)

// StatusPolicy maps an invocation error to an HTTP status code.
type StatusPolicy func(err error) int

// DefaultStatusPolicy honors a status set by the operation's translator and otherwise maps
// failure kinds: NotFound 404, AmbiguousMatch 409, ConversionFailure and
// StructuralDecodeFailure 400, anything else 500. Expired deadlines are 504.
func DefaultStatusPolicy(err error) int {
	fe, ok := failure.As(err)
	if !ok {
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusInternalServerError
	}
	if fe.Status > 0 {
		return fe.Status
	}
	switch fe.Kind {
	case failure.NotFound:
		return http.StatusNotFound
	case failure.AmbiguousMatch:
		return http.StatusConflict
	case failure.ConversionFailure, failure.StructuralDecodeFailure:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
