package coerce

import (
	"encoding/json"
	"errors"
	"math"
	"math/big"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

var (
	enUS = New(language.AmericanEnglish)
	enGB = New(language.BritishEnglish)
	deDE = New(language.MustParse("de-DE"))
	frFR = New(language.MustParse("fr-FR"))
	enIN = New(language.MustParse("en-IN"))
)

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func requireConversionError(t *testing.T, err error) *ConversionError {
	t.Helper()
	require.Error(t, err)
	var ce *ConversionError
	require.True(t, errors.As(err, &ce), "expected *ConversionError, got %T: %v", err, err)
	return ce
}

func TestConvert_ParenthesisNegative(t *testing.T) {
	for _, raw := range []string{"(1,234.56)", "($1,234.56)", "$(1,234.56)", "-1,234.56"} {
		got, err := To[float64](enUS, raw)
		require.NoError(t, err, raw)
		assert.Equal(t, -1234.56, got, raw)
	}
}

func TestConvert_ParenthesisNotNegativeWhereLocaleDoesNot(t *testing.T) {
	_, err := To[float64](deDE, "(1.234,56)")
	requireConversionError(t, err)
}

func TestConvert_UKGrouping(t *testing.T) {
	got, err := To[int64](enGB, "9,999")
	require.NoError(t, err)
	assert.Equal(t, int64(9999), got)

	_, err = To[int64](enGB, "9,99")
	ce := requireConversionError(t, err)
	assert.Equal(t, 1, ce.Offset)
	assert.Equal(t, "9,99", ce.Raw)
	assert.Contains(t, ce.Error(), "grouping")
}

func TestConvert_LocaleSeparators(t *testing.T) {
	tests := []struct {
		name string
		c    *Converter
		raw  string
		want float64
	}{
		{"de decimal comma", deDE, "1.234,5", 1234.5},
		{"de currency", deDE, "1.234,50 €", 1234.5},
		{"fr nbsp grouping", frFR, "1\u00a0234,5", 1234.5},
		{"fr narrow nbsp grouping", frFR, "1\u202f234,5", 1234.5},
		{"fr stray dot folded", frFR, "1.234,5", 1234.5},
		{"us currency", enUS, "US$ 12.25", 12.25},
		{"gb pound", enGB, "£1,000.10", 1000.1},
		{"plain exponent", enUS, "1.5e3", 1500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := To[float64](tt.c, tt.raw)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestConvert_IndianGrouping(t *testing.T) {
	got, err := To[int](enIN, "12,34,567")
	require.NoError(t, err)
	assert.Equal(t, 1234567, got)

	got, err = To[int](enIN, "₹1,000")
	require.NoError(t, err)
	assert.Equal(t, 1000, got)

	_, err = To[int](enIN, "1,234,567")
	ce := requireConversionError(t, err)
	assert.Equal(t, 1, ce.Offset)
}

func TestConvert_GroupingInFraction(t *testing.T) {
	_, err := To[float64](enUS, "1.234,5")
	requireConversionError(t, err)
}

func TestConvert_IntegerRules(t *testing.T) {
	_, err := To[int](enUS, "12.5")
	ce := requireConversionError(t, err)
	assert.Contains(t, ce.Message, "fractional")

	got, err := To[int](enUS, "12.0")
	require.NoError(t, err)
	assert.Equal(t, 12, got)

	_, err = To[int8](enUS, "300")
	requireConversionError(t, err)

	_, err = To[uint](enUS, "-1")
	requireConversionError(t, err)

	n, err := To[*big.Int](enUS, "123,456,789,012,345,678,901")
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678901", n.String())
}

func TestConvert_ExtremeExponent(t *testing.T) {
	f, err := To[float64](enUS, "1e400")
	require.NoError(t, err)
	assert.Equal(t, math.MaxFloat64, f)

	f, err = To[float64](enUS, "-1E+999")
	require.NoError(t, err)
	assert.Equal(t, -math.MaxFloat64, f)

	f, err = To[float64](enUS, "1e-400")
	require.NoError(t, err)
	assert.Equal(t, math.SmallestNonzeroFloat64, f)

	i, err := To[int32](enUS, "9e300")
	require.NoError(t, err)
	assert.Equal(t, int32(math.MaxInt32), i)

	i, err = To[int32](enUS, "-9e300")
	require.NoError(t, err)
	assert.Equal(t, int32(math.MinInt32), i)

	u, err := To[uint16](enUS, "1e-500")
	require.NoError(t, err)
	assert.Equal(t, uint16(0), u)

	// Grouping in the mantissa does not defeat the short-circuit.
	l, err := To[int64](enUS, "1,000,000e400")
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), l)

	l, err = To[int64](enUS, "-1,000,000e9999999")
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), l)

	f, err = To[float64](deDE, "1.000.000,5e400")
	require.NoError(t, err)
	assert.Equal(t, math.MaxFloat64, f)

	_, err = To[int64](enUS, "1,00,0e400")
	requireConversionError(t, err)
}

func TestConvert_LegacyYearShift(t *testing.T) {
	d, err := To[LocalDate](enUS, "0050-06-15")
	require.NoError(t, err)
	assert.Equal(t, LocalDate{Year: 2050, Month: time.June, Day: 15}, d)

	ts, err := To[time.Time](enUS, "0050-06-15T10:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 2050, ts.Year())
}

func TestConvert_YearWindow(t *testing.T) {
	for _, raw := range []string{"3000-01-01", "0500-01-01", "0999-12-31"} {
		_, err := To[LocalDate](enUS, raw)
		requireConversionError(t, err)
	}
	for _, raw := range []string{"1000-01-01", "2999-12-31"} {
		_, err := To[LocalDate](enUS, raw)
		require.NoError(t, err, raw)
	}
}

func TestConvert_LocaleDates(t *testing.T) {
	tests := []struct {
		name string
		c    *Converter
		raw  string
		want LocalDate
	}{
		{"iso in us", enUS, "2024-06-15", LocalDate{2024, time.June, 15}},
		{"iso in de", deDE, "2024-06-15", LocalDate{2024, time.June, 15}},
		{"us short", enUS, "6/15/2024", LocalDate{2024, time.June, 15}},
		{"us medium", enUS, "Jun 15, 2024", LocalDate{2024, time.June, 15}},
		{"gb short", enGB, "15/06/2024", LocalDate{2024, time.June, 15}},
		{"de short", deDE, "15.06.2024", LocalDate{2024, time.June, 15}},
		{"iso date-time", enUS, "2024-06-15T08:30:00Z", LocalDate{2024, time.June, 15}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := To[LocalDate](tt.c, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := To[LocalDate](enUS, "next tuesday")
	requireConversionError(t, err)
}

func TestConvert_Times(t *testing.T) {
	lt, err := To[LocalTime](enUS, "10:30")
	require.NoError(t, err)
	assert.Equal(t, LocalTime{Hour: 10, Minute: 30}, lt)

	lt, err = To[LocalTime](enUS, "3:30 PM")
	require.NoError(t, err)
	assert.Equal(t, LocalTime{Hour: 15, Minute: 30}, lt)

	ts, err := To[time.Time](enUS, "2024-06-15T08:30:00Z")
	require.NoError(t, err)
	assert.True(t, ts.Equal(time.Date(2024, time.June, 15, 8, 30, 0, 0, time.UTC)))
}

func TestConvert_Locale(t *testing.T) {
	tag, err := To[language.Tag](enUS, "fr_CA")
	require.NoError(t, err)
	assert.Equal(t, "fr-CA", tag.String())

	tag, err = To[language.Tag](enUS, "de")
	require.NoError(t, err)
	assert.Equal(t, "de", tag.String())

	for _, raw := range []string{"12_US", "en_USA1", "en_US_x_y", "e"} {
		_, err := To[language.Tag](enUS, raw)
		requireConversionError(t, err)
	}
}

func TestConvert_TypeReference(t *testing.T) {
	got, err := To[reflect.Type](enUS, "int64")
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(int64(0)), got)

	_, err = To[reflect.Type](enUS, "no.SuchType")
	requireConversionError(t, err)
}

func TestConvert_Structural(t *testing.T) {
	n, err := To[int](enUS, []any{"42"})
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	s, err := To[[]int](enUS, []any{"1", json.Number("2"), 3.0})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, s)

	s, err = To[[]int](enUS, "7")
	require.NoError(t, err)
	assert.Equal(t, []int{7}, s)

	a, err := To[[2]string](enUS, []any{"a", true})
	require.NoError(t, err)
	assert.Equal(t, [2]string{"a", "true"}, a)

	_, err = To[[2]string](enUS, []any{"a"})
	requireConversionError(t, err)
}

func TestConvert_NullAndBlank(t *testing.T) {
	i, err := To[int](enUS, nil)
	require.NoError(t, err)
	assert.Zero(t, i)

	p, err := To[*int](enUS, nil)
	require.NoError(t, err)
	assert.Nil(t, p)

	i, err = To[int](enUS, "")
	require.NoError(t, err)
	assert.Zero(t, i)

	c, err := To[Char](enUS, nil)
	require.NoError(t, err)
	assert.Equal(t, Char(0), c)

	s, err := To[string](enUS, "")
	require.NoError(t, err)
	assert.Equal(t, "", s)

	ps, err := To[*string](enUS, "")
	require.NoError(t, err)
	require.NotNil(t, ps)
	assert.Equal(t, "", *ps)
}

func TestConvert_Pointer(t *testing.T) {
	p, err := To[*int](enUS, "1,000")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 1000, *p)
}

func TestConvert_Char(t *testing.T) {
	c, err := To[Char](enUS, "xyz")
	require.NoError(t, err)
	assert.Equal(t, Char('x'), c)

	c, err = To[Char](enUS, "é")
	require.NoError(t, err)
	assert.Equal(t, Char('é'), c)
}

func TestConvert_Byte(t *testing.T) {
	b, err := To[Byte](enUS, "A")
	require.NoError(t, err)
	assert.Equal(t, Byte('A'), b)

	b, err = To[Byte](enUS, "xyz")
	require.NoError(t, err)
	assert.Equal(t, Byte('x'), b)

	b, err = To[Byte](enUS, "")
	require.NoError(t, err)
	assert.Equal(t, Byte(0), b)

	// Plain uint8 stays numeric.
	u, err := To[uint8](enUS, "65")
	require.NoError(t, err)
	assert.Equal(t, uint8(65), u)

	_, err = To[uint8](enUS, "A")
	requireConversionError(t, err)

	data, err := json.Marshal(Byte('q'))
	require.NoError(t, err)
	assert.Equal(t, `"q"`, string(data))
	assert.Equal(t, "q", Render(Byte('q'), language.German))
}

func TestConvert_Boxed(t *testing.T) {
	i, err := To[int](enUS, json.Number("12.9"))
	require.NoError(t, err)
	assert.Equal(t, 12, i)

	i, err = To[int](enUS, 3.7)
	require.NoError(t, err)
	assert.Equal(t, 3, i)

	i, err = To[int](enUS, true)
	require.NoError(t, err)
	assert.Equal(t, 1, i)

	f, err := To[float64](enUS, Char('A'))
	require.NoError(t, err)
	assert.Equal(t, 65.0, f)

	s, err := To[string](enUS, 3.0)
	require.NoError(t, err)
	assert.Equal(t, "3", s)

	s, err = To[string](enUS, json.Number("1e3"))
	require.NoError(t, err)
	assert.Equal(t, "1e3", s)

	b, err := To[*big.Int](enUS, json.Number("12345678901234567890"))
	require.NoError(t, err)
	assert.Equal(t, "12345678901234567890", b.String())

	_, err = To[int8](enUS, json.Number("1000"))
	requireConversionError(t, err)

	ok, err := To[bool](enUS, "true")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = To[bool](enUS, json.Number("0"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = To[bool](enUS, "yes")
	requireConversionError(t, err)
}

type status string

func TestConvert_NamedString(t *testing.T) {
	got, err := To[status](enUS, "active")
	require.NoError(t, err)
	assert.Equal(t, status("active"), got)
}

type isbn struct{ digits string }

func (isbn) Parse(s string) (isbn, error) {
	if s == "" || strings.Trim(s, "0123456789") != "" {
		return isbn{}, errors.New("not an isbn")
	}
	return isbn{digits: s}, nil
}

type brittle struct{}

func (brittle) ValueOf(string) brittle {
	panic("boom")
}

type colour struct{ r, g, b uint8 }

func (c *colour) UnmarshalText(b []byte) error {
	if len(b) != 7 || b[0] != '#' {
		return errors.New("bad colour")
	}
	var v [3]uint8
	for i := range v {
		n, err := parseHex(b[1+2*i : 3+2*i])
		if err != nil {
			return err
		}
		v[i] = n
	}
	*c = colour{v[0], v[1], v[2]}
	return nil
}

func parseHex(b []byte) (uint8, error) {
	var n uint8
	for _, ch := range b {
		i := strings.IndexByte("0123456789abcdef", ch)
		if i < 0 {
			return 0, errors.New("bad hex")
		}
		n = n*16 + uint8(i)
	}
	return n, nil
}

type celsius struct{ deg float64 }

func TestConvert_Factory(t *testing.T) {
	got, err := To[isbn](enUS, "1234")
	require.NoError(t, err)
	assert.Equal(t, isbn{digits: "1234"}, got)

	// Numbers reach the factory through their textual form.
	got, err = To[isbn](enUS, json.Number("978"))
	require.NoError(t, err)
	assert.Equal(t, isbn{digits: "978"}, got)

	_, err = To[isbn](enUS, "12-34")
	requireConversionError(t, err)

	c, err := To[colour](enUS, "#ff8000")
	require.NoError(t, err)
	assert.Equal(t, colour{0xff, 0x80, 0x00}, c)

	_, err = To[brittle](enUS, "x")
	require.Error(t, err)
	var ue *UnrecoverableError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "boom", ue.Cause)
}

func TestConvert_RegisteredFactory(t *testing.T) {
	reg := NewFactoryRegistry()
	require.NoError(t, reg.Register("celsius", func(s string) (celsius, error) {
		f, err := To[float64](enUS, strings.TrimSuffix(s, "C"))
		return celsius{f}, err
	}))
	require.ErrorIs(t, reg.Register("bad", func(int) celsius { return celsius{} }), ErrNotAFactory)
	require.ErrorIs(t, reg.Register("bad", "not a func"), ErrNotAFactory)

	c := New(language.AmericanEnglish, WithFactories(reg))
	got, err := To[celsius](c, "21.5C")
	require.NoError(t, err)
	assert.Equal(t, celsius{21.5}, got)

	_, err = To[celsius](enUS, "21.5C")
	requireConversionError(t, err)
}

func TestFactoryRegistry_Memoizes(t *testing.T) {
	reg := NewFactoryRegistry()
	f1, ok := reg.Lookup(typeOf[isbn]())
	require.True(t, ok)
	f2, ok := reg.Lookup(typeOf[isbn]())
	require.True(t, ok)
	assert.Same(t, f1, f2)

	_, ok = reg.Lookup(typeOf[struct{ X int }]())
	assert.False(t, ok)
	_, ok = reg.Lookup(typeOf[struct{ X int }]())
	assert.False(t, ok)
}

func TestConvert_Idempotent(t *testing.T) {
	values := []any{
		42, int64(-7), 3.25, "text", true, Char('z'),
		LocalDate{2024, time.March, 1}, LocalTime{Hour: 9},
		time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		[]int{1, 2}, map[string]any{"a": 1.0}, language.BritishEnglish,
		isbn{digits: "1"}, big.NewInt(99),
	}
	for _, v := range values {
		got, err := deDE.Convert(v, reflect.TypeOf(v))
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestConvert_InterfaceTarget(t *testing.T) {
	got, err := enUS.Convert(json.Number("1"), typeOf[any]())
	require.NoError(t, err)
	assert.Equal(t, json.Number("1"), got)
}

func TestConvert_CustomSteps(t *testing.T) {
	upper := Step{Name: "upper", Apply: func(_ *Converter, raw any, target reflect.Type) (reflect.Value, error) {
		s, ok := raw.(string)
		if !ok || target.Kind() != reflect.String {
			return reflect.Value{}, ErrNotApplicable
		}
		return reflect.ValueOf(strings.ToUpper(s)), nil
	}}
	c := New(language.Und, WithSteps([]Step{upper}))
	assert.Equal(t, language.AmericanEnglish, c.Locale())

	got, err := To[string](c, "abc")
	require.NoError(t, err)
	assert.Equal(t, "ABC", got)

	_, err = To[int](c, "1")
	requireConversionError(t, err)
}

func TestProfileFor(t *testing.T) {
	assert.Equal(t, ',', ProfileFor(language.German).Decimal)
	assert.Equal(t, '.', ProfileFor(language.MustParse("zu")).Decimal)
	assert.Equal(t, GroupingIndian, ProfileFor(language.MustParse("en-IN")).Grouping)
	assert.Len(t, Profiles(), 14)
}
