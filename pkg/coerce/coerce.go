// Package coerce converts loosely-typed, JSON-shaped values into declared Go types.
//
// A Converter runs an ordered cascade of steps over a raw value. Each step either
// produces the converted value, declines with ErrNotApplicable, or fails. The first
// step to produce a value wins. Numeric and date parsing follow the conventions of the
// converter's locale.
package coerce

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/language"
)

const logPrefix = "coerce:convert"

// Step is one stage of the conversion cascade.
type Step struct {
	Name string
	// Apply returns the converted value, ErrNotApplicable, or a conversion failure.
	Apply func(c *Converter, raw any, target reflect.Type) (reflect.Value, error)
}

// DefaultSteps returns the standard cascade in order.
func DefaultSteps() []Step {
	return []Step{
		{Name: "identity", Apply: identityStep},
		{Name: "null", Apply: nullStep},
		{Name: "unwrap", Apply: unwrapStep},
		{Name: "blank", Apply: blankStep},
		{Name: "pointer", Apply: pointerStep},
		{Name: "char", Apply: charStep},
		{Name: "numeric", Apply: numericStep},
		{Name: "temporal", Apply: temporalStep},
		{Name: "locale", Apply: localeStep},
		{Name: "type", Apply: typeRefStep},
		{Name: "sequence", Apply: sequenceStep},
		{Name: "boxed", Apply: boxedStep},
		{Name: "factory", Apply: factoryStep},
		{Name: "final", Apply: finalStep},
	}
}

// Converter is a locale-bound, stateless value converter. It is safe for concurrent use.
type Converter struct {
	tag       language.Tag
	profile   *Profile
	steps     []Step
	factories FactoryLookup
	types     *TypeRegistry
}

// Option configures a Converter.
type Option func(*Converter)

// WithSteps replaces the cascade.
func WithSteps(steps []Step) Option {
	return func(c *Converter) { c.steps = steps }
}

// WithFactories sets the factory lookup used by the factory step.
func WithFactories(f FactoryLookup) Option {
	return func(c *Converter) { c.factories = f }
}

// WithTypes sets the registry used to resolve type-reference targets.
func WithTypes(r *TypeRegistry) Option {
	return func(c *Converter) { c.types = r }
}

// New returns a Converter for locale. language.Und selects en-US.
func New(locale language.Tag, opts ...Option) *Converter {
	if locale == language.Und {
		locale = language.AmericanEnglish
	}
	c := &Converter{
		tag:     locale,
		profile: ProfileFor(locale),
		steps:   DefaultSteps(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.factories == nil {
		c.factories = NewFactoryRegistry()
	}
	if c.types == nil {
		c.types = NewTypeRegistry()
	}
	return c
}

// Locale returns the tag the converter was created with.
func (c *Converter) Locale() language.Tag {
	return c.tag
}

// Profile returns the numeric and date conventions in effect.
func (c *Converter) Profile() *Profile {
	return c.profile
}

// Convert coerces raw to target and returns it as an interface value.
func (c *Converter) Convert(raw any, target reflect.Type) (any, error) {
	v, err := c.ConvertValue(raw, target)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

// ConvertValue coerces raw to target. The returned value always has type target.
func (c *Converter) ConvertValue(raw any, target reflect.Type) (reflect.Value, error) {
	for _, step := range c.steps {
		v, err := step.Apply(c, raw, target)
		if errors.Is(err, ErrNotApplicable) {
			continue
		}
		if err != nil {
			return reflect.Value{}, err
		}
		return v, nil
	}
	return reflect.Value{}, conversionError(raw, target.String(), -1, "no applicable conversion from %s", describe(raw))
}

// To converts raw to T.
func To[T any](c *Converter, raw any) (T, error) {
	var zero T
	v, err := c.ConvertValue(raw, reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return zero, err
	}
	out, _ := v.Interface().(T)
	return out, nil
}

func identityStep(_ *Converter, raw any, target reflect.Type) (reflect.Value, error) {
	if raw == nil || !reflect.TypeOf(raw).AssignableTo(target) {
		return reflect.Value{}, ErrNotApplicable
	}
	return as(reflect.ValueOf(raw), target), nil
}

func nullStep(_ *Converter, raw any, target reflect.Type) (reflect.Value, error) {
	if raw != nil {
		return reflect.Value{}, ErrNotApplicable
	}
	return reflect.Zero(target), nil
}

func unwrapStep(c *Converter, raw any, target reflect.Type) (reflect.Value, error) {
	if isSequence(target) {
		return reflect.Value{}, ErrNotApplicable
	}
	v := reflect.ValueOf(raw)
	if (v.Kind() != reflect.Slice && v.Kind() != reflect.Array) || v.Len() != 1 {
		return reflect.Value{}, ErrNotApplicable
	}
	return c.ConvertValue(v.Index(0).Interface(), target)
}

func blankStep(_ *Converter, raw any, target reflect.Type) (reflect.Value, error) {
	s, ok := raw.(string)
	if !ok || s != "" || IsTextual(target) {
		return reflect.Value{}, ErrNotApplicable
	}
	return reflect.Zero(target), nil
}

func pointerStep(c *Converter, raw any, target reflect.Type) (reflect.Value, error) {
	if target.Kind() != reflect.Pointer || isBigType(target) {
		return reflect.Value{}, ErrNotApplicable
	}
	elem, err := c.ConvertValue(raw, target.Elem())
	if err != nil {
		return reflect.Value{}, err
	}
	p := reflect.New(target.Elem())
	p.Elem().Set(elem)
	return p, nil
}

func charStep(_ *Converter, raw any, target reflect.Type) (reflect.Value, error) {
	s, ok := raw.(string)
	if !ok || (target != charType && target != byteType) || s == "" {
		return reflect.Value{}, ErrNotApplicable
	}
	if target == byteType {
		return reflect.ValueOf(Byte(s[0])), nil
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return reflect.Value{}, conversionError(raw, target.String(), 0, "invalid UTF-8")
	}
	return reflect.ValueOf(Char(r)).Convert(target), nil
}

func numericStep(c *Converter, raw any, target reflect.Type) (reflect.Value, error) {
	s, ok := raw.(string)
	if !ok || !isNumeric(target) {
		return reflect.Value{}, ErrNotApplicable
	}
	return c.parseNumber(s, target)
}

func temporalStep(c *Converter, raw any, target reflect.Type) (reflect.Value, error) {
	s, ok := raw.(string)
	if !ok || !isDateTarget(target) {
		return reflect.Value{}, ErrNotApplicable
	}
	return c.parseTemporal(s, target)
}

func localeStep(_ *Converter, raw any, target reflect.Type) (reflect.Value, error) {
	s, ok := raw.(string)
	if !ok || target != tagType {
		return reflect.Value{}, ErrNotApplicable
	}
	tag, err := ParseLocale(s)
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(tag), nil
}

func typeRefStep(c *Converter, raw any, target reflect.Type) (reflect.Value, error) {
	s, ok := raw.(string)
	if !ok || target != typeType {
		return reflect.Value{}, ErrNotApplicable
	}
	t, found := c.types.Lookup(strings.TrimSpace(s))
	if !found {
		slog.Debug(fmt.Sprintf("%s - type %q not registered, continuing", logPrefix, s))
		return reflect.Value{}, ErrNotApplicable
	}
	return as(reflect.ValueOf(t), target), nil
}

func sequenceStep(c *Converter, raw any, target reflect.Type) (reflect.Value, error) {
	if !isSequence(target) {
		return reflect.Value{}, ErrNotApplicable
	}
	v := reflect.ValueOf(raw)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		// Scalars become a one-element sequence.
		elem, err := c.ConvertValue(raw, target.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		if target.Kind() == reflect.Array {
			if target.Len() != 1 {
				return reflect.Value{}, conversionError(raw, target.String(), -1, "expected %d elements, got 1", target.Len())
			}
			out := reflect.New(target).Elem()
			out.Index(0).Set(elem)
			return out, nil
		}
		return reflect.Append(reflect.MakeSlice(target, 0, 1), elem), nil
	}

	n := v.Len()
	var out reflect.Value
	if target.Kind() == reflect.Array {
		if target.Len() != n {
			return reflect.Value{}, conversionError(raw, target.String(), -1, "expected %d elements, got %d", target.Len(), n)
		}
		out = reflect.New(target).Elem()
	} else {
		out = reflect.MakeSlice(target, n, n)
	}
	for i := 0; i < n; i++ {
		elem, err := c.ConvertValue(v.Index(i).Interface(), target.Elem())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%s - element %d: %w", logPrefix, i, err)
		}
		out.Index(i).Set(elem)
	}
	return out, nil
}

func boxedStep(_ *Converter, raw any, target reflect.Type) (reflect.Value, error) {
	rv := reflect.ValueOf(raw)
	scalar := isScalar(rv)
	if !scalar && rv.Kind() != reflect.String {
		return reflect.Value{}, ErrNotApplicable
	}
	name := target.String()
	out := reflect.New(target).Elem()

	switch {
	case target == bigIntType:
		if !scalar {
			return reflect.Value{}, ErrNotApplicable
		}
		n, ok := longValueOf(raw)
		if !ok {
			return reflect.Value{}, conversionError(raw, name, -1, "not a number")
		}
		return setInteger(raw, out, n)
	case target == bigFloatType:
		if !scalar {
			return reflect.Value{}, ErrNotApplicable
		}
		f, _, err := big.ParseFloat(textOf(raw), 10, 256, big.ToNearestEven)
		if err != nil {
			d, ok := doubleValueOf(raw)
			if !ok {
				return reflect.Value{}, conversionError(raw, name, -1, "not a number")
			}
			f = big.NewFloat(d)
		}
		out.Set(reflect.ValueOf(f))
		return out, nil
	}

	switch target.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if !scalar {
			return reflect.Value{}, ErrNotApplicable
		}
		n, ok := longValueOf(raw)
		if !ok {
			return reflect.Value{}, conversionError(raw, name, -1, "not a finite number")
		}
		return setInteger(raw, out, n)
	case reflect.Float32, reflect.Float64:
		if !scalar {
			return reflect.Value{}, ErrNotApplicable
		}
		f, ok := doubleValueOf(raw)
		if !ok || out.OverflowFloat(f) {
			return reflect.Value{}, conversionError(raw, name, -1, "value out of range")
		}
		out.SetFloat(f)
		return out, nil
	case reflect.Bool:
		if s, ok := raw.(string); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(s))
			if err != nil {
				return reflect.Value{}, &ConversionError{Raw: s, Target: name, Message: "not a boolean", Offset: -1, Err: err}
			}
			out.SetBool(b)
			return out, nil
		}
		f, ok := doubleValueOf(raw)
		if !ok {
			return reflect.Value{}, ErrNotApplicable
		}
		out.SetBool(f != 0)
		return out, nil
	case reflect.String:
		out.SetString(textOf(raw))
		return out, nil
	}
	return reflect.Value{}, ErrNotApplicable
}

func factoryStep(c *Converter, raw any, target reflect.Type) (reflect.Value, error) {
	rv := reflect.ValueOf(raw)
	if !isScalar(rv) && rv.Kind() != reflect.String {
		return reflect.Value{}, ErrNotApplicable
	}
	f, ok := c.factories.Lookup(target)
	if !ok {
		return reflect.Value{}, ErrNotApplicable
	}
	v, err := f.Invoke(textOf(raw))
	if err != nil {
		var unrecoverable *UnrecoverableError
		if errors.As(err, &unrecoverable) {
			slog.Error(fmt.Sprintf("%s - factory %s unusable: %v", logPrefix, f.Name, unrecoverable.Cause))
			return reflect.Value{}, err
		}
		slog.Debug(fmt.Sprintf("%s - factory %s rejected %q: %v", logPrefix, f.Name, textOf(raw), err))
		return reflect.Value{}, ErrNotApplicable
	}
	return as(v, target), nil
}

func finalStep(_ *Converter, raw any, target reflect.Type) (reflect.Value, error) {
	if raw != nil && reflect.TypeOf(raw).AssignableTo(target) {
		return as(reflect.ValueOf(raw), target), nil
	}
	return reflect.Value{}, conversionError(raw, target.String(), -1, "no applicable conversion from %s", describe(raw))
}

// as returns v as a value of exactly type target. v must be assignable to target.
func as(v reflect.Value, target reflect.Type) reflect.Value {
	if v.Type() == target {
		return v
	}
	out := reflect.New(target).Elem()
	out.Set(v)
	return out
}

// isScalar reports whether v holds a boolean or number, including json.Number.
func isScalar(v reflect.Value) bool {
	if v.Type() == numberType {
		return true
	}
	switch v.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// textOf renders raw in its natural textual form.
func textOf(raw any) string {
	switch v := raw.(type) {
	case nil:
		return "null"
	case string:
		return v
	case json.Number:
		return v.String()
	case Char:
		return string(rune(v))
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case *big.Int:
		return v.String()
	case *big.Float:
		return v.Text('f', -1)
	case fmt.Stringer:
		return v.String()
	}
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		if b, err := json.Marshal(raw); err == nil {
			return string(b)
		}
	case reflect.String:
		return rv.String()
	}
	return fmt.Sprint(raw)
}

func describe(raw any) string {
	if raw == nil {
		return "null"
	}
	return reflect.TypeOf(raw).String()
}
