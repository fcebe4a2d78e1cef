package coerce

import (
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"sync"
	"time"

	"golang.org/x/text/language"
)

// Char is a single-character target. Strings convert to their first rune.
type Char rune

// MarshalJSON renders the character as a one-rune JSON string.
func (c Char) MarshalJSON() ([]byte, error) {
	if c == 0 {
		return []byte(`""`), nil
	}
	return json.Marshal(string(rune(c)))
}

// Byte is a single-byte character target. Strings convert to their first byte.
type Byte byte

// String returns the byte as a one-character string.
func (b Byte) String() string {
	return string([]byte{byte(b)})
}

// MarshalJSON renders the byte as a one-character JSON string.
func (b Byte) MarshalJSON() ([]byte, error) {
	if b == 0 {
		return []byte(`""`), nil
	}
	return json.Marshal(b.String())
}

// LocalDate is a calendar date without a time-of-day or zone.
type LocalDate struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the LocalDate of t in t's location.
func DateOf(t time.Time) LocalDate {
	y, m, d := t.Date()
	return LocalDate{Year: y, Month: m, Day: d}
}

func (d LocalDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// IsZero reports whether d is the zero date.
func (d LocalDate) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// In returns midnight of d in loc.
func (d LocalDate) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// MarshalJSON renders the date as an ISO-8601 string.
func (d LocalDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts an ISO-8601 date string.
func (d *LocalDate) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	t, err := time.Parse(isoDate, s)
	if err != nil {
		return err
	}
	*d = DateOf(t)
	return nil
}

// LocalTime is a time-of-day without a date or zone.
type LocalTime struct {
	Hour       int
	Minute     int
	Second     int
	Nanosecond int
}

// TimeOf returns the LocalTime of t.
func TimeOf(t time.Time) LocalTime {
	return LocalTime{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second(), Nanosecond: t.Nanosecond()}
}

func (t LocalTime) String() string {
	if t.Nanosecond != 0 {
		return fmt.Sprintf("%02d:%02d:%02d.%09d", t.Hour, t.Minute, t.Second, t.Nanosecond)
	}
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// MarshalJSON renders the time as an ISO-8601 string.
func (t LocalTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts an ISO-8601 time string.
func (t *LocalTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(isoTimeNano, s)
	if err != nil {
		return err
	}
	*t = TimeOf(parsed)
	return nil
}

var (
	charType      = reflect.TypeOf(Char(0))
	byteType      = reflect.TypeOf(Byte(0))
	localDateType = reflect.TypeOf(LocalDate{})
	localTimeType = reflect.TypeOf(LocalTime{})
	timeType      = reflect.TypeOf(time.Time{})
	tagType       = reflect.TypeOf(language.Tag{})
	typeType      = reflect.TypeOf((*reflect.Type)(nil)).Elem()
	bigIntType    = reflect.TypeOf((*big.Int)(nil))
	bigFloatType  = reflect.TypeOf((*big.Float)(nil))
	numberType    = reflect.TypeOf(json.Number(""))
)

// TypeRegistry resolves type names to reflect.Type for type-reference targets.
type TypeRegistry struct {
	mu     sync.RWMutex
	byName map[string]reflect.Type
}

// NewTypeRegistry returns a registry pre-populated with the builtin scalar types
// and the coerce value types.
func NewTypeRegistry() *TypeRegistry {
	r := &TypeRegistry{byName: make(map[string]reflect.Type)}
	for _, v := range []any{
		"", false, int(0), int8(0), int16(0), int32(0), int64(0),
		uint(0), uint8(0), uint16(0), uint32(0), uint64(0),
		float32(0), float64(0), time.Time{}, time.Duration(0),
		Char(0), Byte(0), LocalDate{}, LocalTime{}, language.Tag{},
	} {
		r.RegisterType(reflect.TypeOf(v))
	}
	return r
}

// Register binds name to t.
func (r *TypeRegistry) Register(name string, t reflect.Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[name] = t
}

// RegisterType binds both the short (pkg.Name) and the fully qualified (path.Name) names of t.
func (r *TypeRegistry) RegisterType(t reflect.Type) {
	r.Register(t.String(), t)
	if t.PkgPath() != "" {
		r.Register(t.PkgPath()+"."+t.Name(), t)
	}
}

// Lookup returns the type registered under name.
func (r *TypeRegistry) Lookup(name string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[name]
	return t, ok
}

func isBigType(t reflect.Type) bool {
	return t == bigIntType || t == bigFloatType
}

func isSequence(t reflect.Type) bool {
	return t.Kind() == reflect.Slice || t.Kind() == reflect.Array
}

func isNumeric(t reflect.Type) bool {
	if isBigType(t) {
		return true
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return t != charType && t != byteType
	}
	return false
}

func isDateTarget(t reflect.Type) bool {
	return t == timeType || t == localDateType || t == localTimeType
}

// IsTextual reports whether t is a string kind, or a pointer to one.
func IsTextual(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.String && t != numberType
}
