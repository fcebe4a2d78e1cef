package invoker

// Translation is a client-facing rendering of an operation error.
type Translation struct {
	// Status is the transport status to report, such as an HTTP status code.
	Status  int
	Message string
	Details any
}

// Translator turns errors returned by operations into client-facing failures.
// Returning false declines, and the caller reports a generic server error.
type Translator interface {
	Translate(operation string, err error) (Translation, bool)
}

// TranslatorFunc adapts a function to Translator.
type TranslatorFunc func(operation string, err error) (Translation, bool)

// Translate calls f.
func (f TranslatorFunc) Translate(operation string, err error) (Translation, bool) {
	return f(operation, err)
}

// declineAll is the default Translator.
type declineAll struct{}

func (declineAll) Translate(string, error) (Translation, bool) {
	return Translation{}, false
}
