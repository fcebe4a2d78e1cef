package coerce

import (
	"encoding/json"
	"errors"
	"math"
	"math/big"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// extremeExponent is the exponent magnitude at which scientific-notation input
// short-circuits to the target's max/min magnitude instead of being parsed.
const extremeExponent = 300

// extremeNotation splits cleaned scientific notation into mantissa, exponent sign and
// exponent digits. The mantissa may still carry locale separators.
var extremeNotation = regexp.MustCompile(`^([0-9][0-9.,' ]*)[eE]([+-]?)([0-9]+)$`)

// cleanNumber applies the locale's currency, separator and sign conventions to s.
// It returns the remaining digits (still carrying locale separators) and whether the value is negative.
func (p *Profile) cleanNumber(s string) (string, bool) {
	s = strings.TrimSpace(s)
	neg := false
	unparen := func() {
		if p.ParenNegative && len(s) >= 2 && strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
			neg = !neg
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	unparen()
	for _, sym := range p.Currency {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.TrimSpace(s)
	unparen()

	s = strings.Map(func(r rune) rune {
		switch r {
		case '\u00a0', '\u202f':
			return ' '
		case '\u2019':
			return '\''
		}
		return r
	}, s)
	if p.Decimal != '.' && p.Group != '.' && strings.ContainsRune(s, '.') {
		s = strings.ReplaceAll(s, ".", string(p.Group))
	}

	switch {
	case strings.HasPrefix(s, "-"):
		neg = !neg
		s = strings.TrimSpace(s[1:])
	case strings.HasPrefix(s, "+"):
		s = strings.TrimSpace(s[1:])
	}
	return s, neg
}

// canonicalNumber validates digits and grouping of s and returns it with grouping removed,
// '.' as the decimal separator and any exponent preserved.
func (p *Profile) canonicalNumber(raw, s, target string) (string, error) {
	var (
		out      strings.Builder
		groupsAt []int
		intEnd   = -1
		seenDot  bool
		digits   int
	)
	i := 0
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r >= '0' && r <= '9':
			out.WriteRune(r)
			digits++
		case r == p.Group && !seenDot:
			groupsAt = append(groupsAt, i)
		case r == p.Group:
			return "", conversionError(raw, target, i, "grouping separator in fractional part")
		case r == p.Decimal && !seenDot:
			seenDot = true
			intEnd = i
			out.WriteByte('.')
		case (r == 'e' || r == 'E') && digits > 0:
			if intEnd < 0 {
				intEnd = i
			}
			exp := s[i+1:]
			if exp == "" {
				return "", conversionError(raw, target, i, "missing exponent")
			}
			if exp[0] == '+' || exp[0] == '-' {
				exp = exp[1:]
			}
			if exp == "" || strings.Trim(exp, "0123456789") != "" {
				return "", conversionError(raw, target, i+1, "malformed exponent")
			}
			out.WriteString("e")
			out.WriteString(s[i+1:])
			i = len(s)
			continue
		default:
			return "", conversionError(raw, target, i, "unexpected character %q", r)
		}
		i += size
	}
	if digits == 0 {
		return "", conversionError(raw, target, -1, "no digits")
	}
	if intEnd < 0 {
		intEnd = len(s)
	}
	if len(groupsAt) > 0 {
		if err := p.validateGrouping(raw, s[:intEnd], groupsAt, target); err != nil {
			return "", err
		}
	}
	return out.String(), nil
}

// validateGrouping checks the digit groups of the integer part against the locale's grouping style.
// seps holds the byte offsets of the grouping separators within intPart.
func (p *Profile) validateGrouping(raw, intPart string, seps []int, target string) error {
	groups := make([]int, 0, len(seps)+1)
	prev := 0
	for _, at := range seps {
		groups = append(groups, at-prev)
		prev = at + utf8.RuneLen(p.Group)
	}
	groups = append(groups, len(intPart)-prev)

	last := len(groups) - 1
	for i, n := range groups {
		// Report the separator that opens the group, or for the first group the one closing it.
		sepAt := seps[0]
		if i > 0 {
			sepAt = seps[i-1]
		}
		var ok bool
		switch {
		case i == 0 && p.Grouping == GroupingIndian && last > 0:
			ok = n >= 1 && n <= 2
		case i == 0:
			ok = n >= 1 && n <= 3
		case i == last:
			ok = n == 3
		case p.Grouping == GroupingIndian:
			ok = n == 2
		default:
			ok = n == 3
		}
		if !ok {
			return conversionError(raw, target, sepAt, "invalid digit grouping")
		}
	}
	return nil
}

// parseNumber converts a locale-formatted numeric string to target.
func (c *Converter) parseNumber(raw string, target reflect.Type) (reflect.Value, error) {
	name := target.String()
	s, neg := c.profile.cleanNumber(raw)
	if s == "" {
		return reflect.Value{}, conversionError(raw, name, -1, "no digits")
	}

	if m := extremeNotation.FindStringSubmatch(s); m != nil {
		digits := strings.TrimLeft(m[3], "0")
		exp, _ := strconv.Atoi(digits)
		if len(digits) > 4 || exp >= extremeExponent {
			if _, err := c.profile.canonicalNumber(raw, m[1], name); err != nil {
				return reflect.Value{}, err
			}
			return extremeValue(raw, target, neg, m[2] == "-")
		}
	}

	canon, err := c.profile.canonicalNumber(raw, s, name)
	if err != nil {
		return reflect.Value{}, err
	}
	if neg {
		canon = "-" + canon
	}

	out := reflect.New(target).Elem()
	switch {
	case target == bigFloatType:
		f, _, err := big.ParseFloat(canon, 10, 256, big.ToNearestEven)
		if err != nil {
			return reflect.Value{}, &ConversionError{Raw: raw, Target: name, Message: "malformed number", Offset: -1, Err: err}
		}
		out.Set(reflect.ValueOf(f))
		return out, nil
	case target.Kind() == reflect.Float32 || target.Kind() == reflect.Float64:
		f, err := strconv.ParseFloat(canon, target.Bits())
		if err != nil {
			msg := "malformed number"
			if errors.Is(err, strconv.ErrRange) {
				msg = "value out of range"
			}
			return reflect.Value{}, &ConversionError{Raw: raw, Target: name, Message: msg, Offset: -1, Err: err}
		}
		out.SetFloat(f)
		return out, nil
	}

	r, ok := new(big.Rat).SetString(canon)
	if !ok {
		return reflect.Value{}, conversionError(raw, name, -1, "malformed number")
	}
	if !r.IsInt() {
		return reflect.Value{}, conversionError(raw, name, -1, "fractional part not allowed for integer type")
	}
	return setInteger(raw, out, r.Num())
}

// setInteger stores n in out after a range check against out's kind.
func setInteger(raw any, out reflect.Value, n *big.Int) (reflect.Value, error) {
	t := out.Type()
	if t == bigIntType {
		out.Set(reflect.ValueOf(new(big.Int).Set(n)))
		return out, nil
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if !n.IsInt64() || out.OverflowInt(n.Int64()) {
			return reflect.Value{}, conversionError(raw, t.String(), -1, "value out of range")
		}
		out.SetInt(n.Int64())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if n.Sign() < 0 {
			return reflect.Value{}, conversionError(raw, t.String(), -1, "negative value for unsigned type")
		}
		if !n.IsUint64() || out.OverflowUint(n.Uint64()) {
			return reflect.Value{}, conversionError(raw, t.String(), -1, "value out of range")
		}
		out.SetUint(n.Uint64())
	default:
		return reflect.Value{}, conversionError(raw, t.String(), -1, "not an integer type")
	}
	return out, nil
}

// extremeValue returns the largest magnitude representable by target (or the smallest, for tiny
// exponents) carrying the requested sign.
func extremeValue(raw string, target reflect.Type, neg, tiny bool) (reflect.Value, error) {
	out := reflect.New(target).Elem()
	if isBigType(target) {
		return reflect.Value{}, conversionError(raw, target.String(), -1, "exponent out of supported range")
	}
	switch target.Kind() {
	case reflect.Float32, reflect.Float64:
		var f float64
		switch {
		case tiny && target.Kind() == reflect.Float32:
			f = math.SmallestNonzeroFloat32
		case tiny:
			f = math.SmallestNonzeroFloat64
		case target.Kind() == reflect.Float32:
			f = math.MaxFloat32
		default:
			f = math.MaxFloat64
		}
		if neg {
			f = -f
		}
		out.SetFloat(f)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if tiny {
			return out, nil
		}
		bits := uint(target.Bits())
		limit := int64(1)<<(bits-1) - 1
		if neg {
			out.SetInt(-limit - 1)
		} else {
			out.SetInt(limit)
		}
	default:
		if tiny || neg {
			return out, nil
		}
		out.SetUint(uint64(math.MaxUint64) >> (64 - uint(target.Bits())))
	}
	return out, nil
}

// longValueOf truncates a JSON-shaped scalar to an integer.
func longValueOf(raw any) (*big.Int, bool) {
	if n, ok := raw.(json.Number); ok {
		if i, ok := new(big.Int).SetString(n.String(), 10); ok {
			return i, true
		}
		f, _, err := big.ParseFloat(n.String(), 10, 256, big.ToZero)
		if err != nil {
			return nil, false
		}
		i, _ := f.Int(nil)
		return i, true
	}
	v := reflect.ValueOf(raw)
	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			return big.NewInt(1), true
		}
		return big.NewInt(0), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return big.NewInt(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return new(big.Int).SetUint64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, false
		}
		i, _ := big.NewFloat(math.Trunc(f)).Int(nil)
		return i, true
	}
	return nil, false
}

// doubleValueOf widens a JSON-shaped scalar to float64. Booleans are 1 or 0 and
// characters their code point.
func doubleValueOf(raw any) (float64, bool) {
	if n, ok := raw.(json.Number); ok {
		f, err := n.Float64()
		return f, err == nil
	}
	v := reflect.ValueOf(raw)
	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			return 1, true
		}
		return 0, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	}
	return 0, false
}
