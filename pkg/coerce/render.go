package coerce

import (
	"reflect"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Render formats v the way users of locale write it. Numbers are grouped and use the
// locale's decimal separator; other values use their natural textual form.
// Converting the rendered text back with a Converter for the same locale yields v.
func Render(v any, locale language.Tag) string {
	p := message.NewPrinter(locale)
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if rv.Type() == charType {
			break
		}
		return p.Sprintf("%d", rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if rv.Type() == byteType {
			break
		}
		return p.Sprintf("%d", rv.Uint())
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		plain := strconv.FormatFloat(f, 'f', -1, rv.Type().Bits())
		digits := 0
		if i := strings.IndexByte(plain, '.'); i >= 0 {
			digits = len(plain) - i - 1
		}
		return p.Sprint(number.Decimal(f, number.MinFractionDigits(digits), number.MaxFractionDigits(digits)))
	}
	return textOf(v)
}
