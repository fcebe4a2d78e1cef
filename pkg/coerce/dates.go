package coerce

import (
	"reflect"
	"strings"
	"time"
)

const (
	isoDate     = "2006-01-02"
	isoTime     = "15:04:05"
	isoTimeNano = "15:04:05.999999999"

	// legacyYearThreshold marks years that are treated as century-dropped legacy input
	// and shifted forward by legacyYearShift.
	legacyYearThreshold = 100
	legacyYearShift     = 2000

	minSupportedYear = 1000
	maxSupportedYear = 2999
)

var (
	isoDateTimeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05", isoDate}
	isoTimeLayouts     = []string{isoTimeNano, isoTime, "15:04"}
)

// parseTemporal converts s to a time.Time, LocalDate or LocalTime target.
// ISO-8601 is always tried first regardless of locale.
func (c *Converter) parseTemporal(s string, target reflect.Type) (reflect.Value, error) {
	s = strings.TrimSpace(s)
	var layouts []string
	switch target {
	case localTimeType:
		layouts = append(append(layouts, isoTimeLayouts...), c.profile.TimeLayouts...)
	case localDateType:
		layouts = append(append(append(layouts, isoDate), isoDateTimeLayouts...), c.profile.DateLayouts...)
	default:
		layouts = append(append(append(layouts, isoDateTimeLayouts...), c.profile.DateTimeLayouts...), c.profile.DateLayouts...)
	}

	t, ok := parseFirst(s, layouts)
	if !ok {
		return reflect.Value{}, conversionError(s, target.String(), -1, "unrecognized %s format for locale %s", kindName(target), c.profile.Tag)
	}

	if target == localTimeType {
		return reflect.ValueOf(TimeOf(t)), nil
	}

	if t.Year() < legacyYearThreshold {
		t = t.AddDate(legacyYearShift, 0, 0)
	}
	if y := t.Year(); y < minSupportedYear || y > maxSupportedYear {
		return reflect.Value{}, conversionError(s, target.String(), -1, "year %d outside supported range %d-%d", y, minSupportedYear, maxSupportedYear)
	}

	if target == localDateType {
		return reflect.ValueOf(DateOf(t)), nil
	}
	return reflect.ValueOf(t), nil
}

func parseFirst(s string, layouts []string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func kindName(target reflect.Type) string {
	switch target {
	case localTimeType:
		return "time"
	case localDateType:
		return "date"
	}
	return "date-time"
}
