package widgets

import (
	"errors"
	"net/http"

	"github.com/morezero/json-bridge/pkg/invoker"
)

// Translator reports widget errors to callers with a matching HTTP status. Other errors
// are declined.
var Translator = invoker.TranslatorFunc(func(operation string, err error) (invoker.Translation, bool) {
	switch {
	case errors.Is(err, ErrNotFound):
		return invoker.Translation{Status: http.StatusNotFound, Message: err.Error()}, true
	case errors.Is(err, ErrExists), errors.Is(err, ErrInsufficientStock):
		return invoker.Translation{Status: http.StatusConflict, Message: err.Error()}, true
	case errors.Is(err, ErrInvalid):
		return invoker.Translation{Status: http.StatusUnprocessableEntity, Message: err.Error()}, true
	}
	return invoker.Translation{}, false
})
