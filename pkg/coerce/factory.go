package coerce

import (
	"encoding"
	"errors"
	"fmt"
	"reflect"
	"sync"
)

var (
	// ErrNotAFactory is returned by Register for functions that do not have a factory shape.
	ErrNotAFactory = errors.New("coerce: function is not a single-string factory")

	errorType           = reflect.TypeOf((*error)(nil)).Elem()
	stringType          = reflect.TypeOf("")
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// factoryMethodNames are the conventional names of single-string constructor-like methods.
var factoryMethodNames = []string{"ValueOf", "GetInstance", "Parse"}

// Factory is a callable handle to a single-string constructor for one type.
type Factory struct {
	// Name identifies the factory in errors and logs.
	Name string
	// Type is the type the factory produces.
	Type reflect.Type

	fn       reflect.Value
	receiver bool // fn is a method expression whose first argument is a zero receiver
	hasErr   bool
	deref    bool // fn returns *Type
	text     bool // fn is (*Type).UnmarshalText
}

// Invoke calls the factory with s. An error returned by the factory itself is passed through
// unchanged; a failure to call it at all is reported as *UnrecoverableError.
func (f *Factory) Invoke(s string) (out reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = reflect.Value{}
			err = &UnrecoverableError{Target: f.Type.String(), Factory: f.Name, Cause: r}
		}
	}()

	if f.text {
		ptr := reflect.New(f.Type)
		if err := ptr.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
			return reflect.Value{}, err
		}
		return ptr.Elem(), nil
	}

	args := []reflect.Value{reflect.ValueOf(s)}
	if f.receiver {
		recv := f.fn.Type().In(0)
		zero := reflect.Zero(recv)
		if recv.Kind() == reflect.Pointer {
			zero = reflect.New(recv.Elem())
		}
		args = append([]reflect.Value{zero}, args...)
	}
	results := f.fn.Call(args)
	if f.hasErr {
		if e := results[1].Interface(); e != nil {
			return reflect.Value{}, e.(error)
		}
	}
	v := results[0]
	if f.deref {
		if v.IsNil() {
			return reflect.Value{}, fmt.Errorf("%s - factory %s returned nil", logPrefix, f.Name)
		}
		v = v.Elem()
	}
	return v, nil
}

// FactoryLookup finds a single-string factory for a type.
type FactoryLookup interface {
	Lookup(t reflect.Type) (*Factory, bool)
}

// FactoryRegistry is the default FactoryLookup. It consults explicitly registered factories,
// then conventional methods on the type, then encoding.TextUnmarshaler. Results are memoized
// per type; concurrent first lookups race benignly through LoadOrStore.
type FactoryRegistry struct {
	registered sync.Map // reflect.Type -> *Factory
	memo       sync.Map // reflect.Type -> *Factory (nil when none)
}

// NewFactoryRegistry returns an empty registry.
func NewFactoryRegistry() *FactoryRegistry {
	return &FactoryRegistry{}
}

// Register adds fn as the factory for its result type.
//
// Supported shapes:
//   - func(string) T
//   - func(string) (T, error)
func (r *FactoryRegistry) Register(name string, fn any) error {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return ErrNotAFactory
	}
	f, ok := factoryFromFunc(name, v, false)
	if !ok {
		return ErrNotAFactory
	}
	r.registered.Store(f.Type, f)
	r.memo.Delete(f.Type)
	return nil
}

// Lookup returns the factory for t, if any.
func (r *FactoryRegistry) Lookup(t reflect.Type) (*Factory, bool) {
	if cached, ok := r.memo.Load(t); ok {
		f := cached.(*Factory)
		return f, f != nil
	}
	f := r.find(t)
	actual, _ := r.memo.LoadOrStore(t, f)
	f = actual.(*Factory)
	return f, f != nil
}

func (r *FactoryRegistry) find(t reflect.Type) *Factory {
	if f, ok := r.registered.Load(t); ok {
		return f.(*Factory)
	}
	if t.Kind() == reflect.Interface {
		return nil
	}
	for _, name := range factoryMethodNames {
		for _, recv := range []reflect.Type{t, reflect.PointerTo(t)} {
			m, ok := recv.MethodByName(name)
			if !ok {
				continue
			}
			if f, ok := factoryFromFunc(t.String()+"."+name, m.Func, true); ok && f.Type == t {
				return f
			}
		}
	}
	if reflect.PointerTo(t).Implements(textUnmarshalerType) {
		return &Factory{Name: t.String() + ".UnmarshalText", Type: t, text: true}
	}
	return nil
}

// factoryFromFunc checks fn for a factory shape. With receiver set, fn's first
// argument is a receiver that is ignored.
func factoryFromFunc(name string, fn reflect.Value, receiver bool) (*Factory, bool) {
	ft := fn.Type()
	in := 0
	if receiver {
		in = 1
	}
	if ft.NumIn() != in+1 || ft.In(in) != stringType || ft.IsVariadic() {
		return nil, false
	}
	f := &Factory{Name: name, fn: fn, receiver: receiver}
	switch ft.NumOut() {
	case 1:
	case 2:
		if ft.Out(1) != errorType {
			return nil, false
		}
		f.hasErr = true
	default:
		return nil, false
	}
	out := ft.Out(0)
	if out == errorType {
		return nil, false
	}
	f.Type = out
	if receiver && out.Kind() == reflect.Pointer && out.Elem() == ft.In(0) {
		f.Type = out.Elem()
		f.deref = true
	} else if receiver && out.Kind() == reflect.Pointer && ft.In(0).Kind() == reflect.Pointer && out == ft.In(0) {
		f.Type = out.Elem()
		f.deref = true
	}
	return f, true
}
