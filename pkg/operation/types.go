// Package operation describes the callable surface of a Go service object: which methods are
// exposed, under which public names, and with which named parameters.
package operation

import (
	"context"
	"reflect"
)

// Parameter is one formal parameter of an operation.
type Parameter struct {
	// Name is the public wire name.
	Name string `json:"name"`
	// Header marks parameters carried in request metadata rather than the body or query.
	Header bool `json:"header,omitempty"`
	// Type is the declared Go type.
	Type reflect.Type `json:"-"`
}

// RawParameter is a named, untyped input value as received from a transport.
// Value holds a JSON-shaped node: string, json.Number, float64, bool, nil, []any or map[string]any.
type RawParameter struct {
	Name   string `json:"name"`
	Header bool   `json:"header,omitempty"`
	Value  any    `json:"value"`
}

// Descriptor is one candidate operation. It is immutable once built.
type Descriptor struct {
	// Name is the public name used for matching.
	Name string
	// Method is the Go method name.
	Method string
	// Params are the formal parameters in call order, excluding a leading context.Context.
	Params []Parameter
	// Exposed is false for operations withheld from callers.
	Exposed bool
	// Description is free text carried into generated API documents.
	Description string

	fn          reflect.Value
	withContext bool
	result      reflect.Type // nil when the method returns no value
	withError   bool
}

// HeaderNames returns the public names of the header parameters.
func (d *Descriptor) HeaderNames() []string {
	return d.names(true)
}

// BodyNames returns the public names of the non-header parameters.
func (d *Descriptor) BodyNames() []string {
	return d.names(false)
}

func (d *Descriptor) names(header bool) []string {
	var out []string
	for _, p := range d.Params {
		if p.Header == header {
			out = append(out, p.Name)
		}
	}
	return out
}

// Result returns the type of the operation's value result, or nil.
func (d *Descriptor) Result() reflect.Type {
	return d.result
}

// Call invokes the operation with already-converted arguments. ctx is passed when the
// method declares a leading context.Context. The returned value is invalid when the
// method has no value result. Panics raised by the method propagate to the caller.
func (d *Descriptor) Call(ctx context.Context, args []reflect.Value) (reflect.Value, error) {
	in := args
	if d.withContext {
		if ctx == nil {
			ctx = context.Background()
		}
		in = append([]reflect.Value{reflect.ValueOf(ctx)}, args...)
	}
	out := d.fn.Call(in)

	var (
		result reflect.Value
		err    error
	)
	if d.result != nil {
		result = out[0]
	}
	if d.withError {
		if e := out[len(out)-1]; !e.IsNil() {
			err = e.Interface().(error)
		}
	}
	return result, err
}

// Service is a named target object and the operations built from it.
type Service struct {
	Name        string
	Version     string
	Description string
	Operations  []*Descriptor
}

// Lookup returns the operations exposed under name.
func (s *Service) Lookup(name string) []*Descriptor {
	var out []*Descriptor
	for _, d := range s.Operations {
		if d.Name == name && d.Exposed {
			out = append(out, d)
		}
	}
	return out
}

// Declaration overrides how one Go method is exposed.
type Declaration struct {
	// Method is the Go method name the declaration applies to.
	Method string `json:"method" yaml:"method"`
	// Alias replaces the default lower-camel public name.
	Alias string `json:"alias,omitempty" yaml:"alias,omitempty"`
	// Params names the method's parameters in order, excluding a leading context.Context.
	Params []ParamDeclaration `json:"params,omitempty" yaml:"params,omitempty"`
	// Hidden withholds the operation from callers.
	Hidden      bool   `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// ParamDeclaration names one parameter.
type ParamDeclaration struct {
	Name   string `json:"name" yaml:"name"`
	Header bool   `json:"header,omitempty" yaml:"header,omitempty"`
}

// Declarer is implemented by targets that declare their own operations.
type Declarer interface {
	Declarations() []Declaration
}
