package operation

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"
	"sync"
	"unicode"
)

const logPrefix = "operation:build"

var (
	stdContextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType      = reflect.TypeOf((*error)(nil)).Elem()
)

// signature is the type-level shape of one method, shared by every target of that type.
type signature struct {
	index       int
	name        string
	params      []reflect.Type
	withContext bool
	result      reflect.Type
	withError   bool
}

var signatures sync.Map // reflect.Type -> []signature

// signaturesOf returns the callable methods of t, computed once per type.
func signaturesOf(t reflect.Type) []signature {
	if cached, ok := signatures.Load(t); ok {
		return cached.([]signature)
	}
	var out []signature
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if m.Name == "Declarations" {
			continue
		}
		sig, ok := signatureOf(m)
		if !ok {
			slog.Debug(fmt.Sprintf("%s - skipping %s.%s: unsupported signature", logPrefix, t, m.Name))
			continue
		}
		out = append(out, sig)
	}
	actual, _ := signatures.LoadOrStore(t, out)
	return actual.([]signature)
}

func signatureOf(m reflect.Method) (signature, bool) {
	mt := m.Type
	sig := signature{index: m.Index, name: m.Name}
	if mt.IsVariadic() {
		return sig, false
	}
	// In(0) is the receiver.
	first := 1
	if mt.NumIn() > 1 && mt.In(1) == stdContextType {
		sig.withContext = true
		first = 2
	}
	for i := first; i < mt.NumIn(); i++ {
		sig.params = append(sig.params, mt.In(i))
	}
	switch mt.NumOut() {
	case 0:
	case 1:
		if mt.Out(0) == errorType {
			sig.withError = true
		} else {
			sig.result = mt.Out(0)
		}
	case 2:
		if mt.Out(1) != errorType {
			return sig, false
		}
		sig.result = mt.Out(0)
		sig.withError = true
	default:
		return sig, false
	}
	return sig, true
}

// Build describes the exported methods of target as operations of a service named name.
//
// Methods without a declaration are exposed under their lower-camel name with parameters
// named arg0, arg1, ... When decls is empty and target implements Declarer, its own
// declarations are used. Build fails when a declaration names an unknown method, declares
// the wrong number of parameters, or when two parameters of one operation share a name
// within the same surface.
func Build(name string, target any, decls ...Declaration) (*Service, error) {
	if target == nil {
		return nil, fmt.Errorf("%s - service %s: nil target", logPrefix, name)
	}
	if len(decls) == 0 {
		if d, ok := target.(Declarer); ok {
			decls = d.Declarations()
		}
	}

	v := reflect.ValueOf(target)
	sigs := signaturesOf(v.Type())
	byMethod := make(map[string]signature, len(sigs))
	for _, s := range sigs {
		byMethod[s.name] = s
	}

	declared := make(map[string]Declaration, len(decls))
	for _, d := range decls {
		if _, ok := byMethod[d.Method]; !ok {
			return nil, fmt.Errorf("%s - service %s: declaration for unknown or unsupported method %q", logPrefix, name, d.Method)
		}
		if _, dup := declared[d.Method]; dup {
			return nil, fmt.Errorf("%s - service %s: method %q declared twice", logPrefix, name, d.Method)
		}
		declared[d.Method] = d
	}

	svc := &Service{Name: name}
	for _, s := range sigs {
		d, err := describe(s, v.Method(s.index), declared[s.name])
		if err != nil {
			return nil, fmt.Errorf("%s - service %s: %w", logPrefix, name, err)
		}
		svc.Operations = append(svc.Operations, d)
	}
	sort.SliceStable(svc.Operations, func(i, j int) bool {
		return svc.Operations[i].Name < svc.Operations[j].Name
	})

	slog.Debug(fmt.Sprintf("%s - built service %s with %d operations", logPrefix, name, len(svc.Operations)))
	return svc, nil
}

func describe(s signature, fn reflect.Value, decl Declaration) (*Descriptor, error) {
	d := &Descriptor{
		Name:        LowerCamel(s.name),
		Method:      s.name,
		Exposed:     !decl.Hidden,
		Description: decl.Description,
		fn:          fn,
		withContext: s.withContext,
		result:      s.result,
		withError:   s.withError,
	}
	if decl.Alias != "" {
		d.Name = decl.Alias
	}
	if decl.Params != nil && len(decl.Params) != len(s.params) {
		return nil, fmt.Errorf("method %s takes %d parameters, %d declared", s.name, len(s.params), len(decl.Params))
	}

	seen := map[bool]map[string]bool{true: {}, false: {}}
	for i, t := range s.params {
		p := Parameter{Name: fmt.Sprintf("arg%d", i), Type: t}
		if decl.Params != nil {
			p.Name = decl.Params[i].Name
			p.Header = decl.Params[i].Header
		}
		if p.Name == "" {
			return nil, fmt.Errorf("method %s: parameter %d has no name", s.name, i)
		}
		if seen[p.Header][p.Name] {
			return nil, fmt.Errorf("method %s: duplicate parameter name %q", s.name, p.Name)
		}
		seen[p.Header][p.Name] = true
		d.Params = append(d.Params, p)
	}
	return d, nil
}

// LowerCamel converts an exported Go identifier to its lower-camel public form.
// A leading initialism is lowered as a unit: "GetWidget" is "getWidget", "HTTPStatus" is "httpStatus".
func LowerCamel(s string) string {
	r := []rune(s)
	for i := 0; i < len(r); i++ {
		if !unicode.IsUpper(r[i]) {
			break
		}
		if i > 0 && i+1 < len(r) && unicode.IsLower(r[i+1]) {
			break
		}
		r[i] = unicode.ToLower(r[i])
	}
	return string(r)
}

// VerbName joins a verb prefix and a resource name: ("get", "widget") is "getWidget".
func VerbName(verb, resource string) string {
	if resource == "" {
		return verb
	}
	r := []rune(resource)
	return verb + strings.ToUpper(string(r[0])) + string(r[1:])
}
