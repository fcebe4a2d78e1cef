package coerce

import (
	"regexp"
	"strings"

	"golang.org/x/text/language"
)

// GroupingStyle describes how a locale groups integer digits.
type GroupingStyle int

const (
	// GroupingUniform groups every three digits (1,234,567).
	GroupingUniform GroupingStyle = iota
	// GroupingIndian groups the right-most three digits, then pairs (12,34,567).
	GroupingIndian
)

// Profile holds the numeric and date conventions of one locale.
type Profile struct {
	Tag           language.Tag
	Decimal       rune
	Group         rune
	Currency      []string
	ParenNegative bool
	Grouping      GroupingStyle
	// DateLayouts are tried in order: short, medium, long.
	DateLayouts []string
	TimeLayouts []string
	// DateTimeLayouts are tried for time.Time targets after the ISO layouts.
	DateTimeLayouts []string
}

var (
	usDates = []string{"1/2/06", "1/2/2006", "Jan 2, 2006", "January 2, 2006", "Monday, January 2, 2006"}
	usTimes = []string{"3:04 PM", "3:04:05 PM", "15:04"}
	gbDates = []string{"02/01/2006", "02/01/06", "2 Jan 2006", "2 January 2006", "Monday, 2 January 2006"}
	h24     = []string{"15:04", "15:04:05"}
	deDates = []string{"02.01.06", "02.01.2006", "2.1.2006", "2. January 2006"}
)

var profiles = []*Profile{
	{
		Tag: language.AmericanEnglish, Decimal: '.', Group: ',', Currency: []string{"US$", "$"},
		ParenNegative: true, DateLayouts: usDates, TimeLayouts: usTimes,
		DateTimeLayouts: []string{"1/2/06, 3:04 PM", "1/2/06 3:04 PM", "Jan 2, 2006, 3:04:05 PM"},
	},
	{
		Tag: language.BritishEnglish, Decimal: '.', Group: ',', Currency: []string{"£", "GBP"},
		ParenNegative: true, DateLayouts: gbDates, TimeLayouts: h24,
		DateTimeLayouts: []string{"02/01/2006, 15:04", "02/01/2006 15:04", "02/01/2006 15:04:05"},
	},
	{
		Tag: language.MustParse("en-CA"), Decimal: '.', Group: ',', Currency: []string{"CA$", "$"},
		ParenNegative: true, DateLayouts: append([]string{"2006-01-02"}, usDates[2:]...), TimeLayouts: usTimes,
	},
	{
		Tag: language.MustParse("en-AU"), Decimal: '.', Group: ',', Currency: []string{"A$", "$"},
		ParenNegative: true, DateLayouts: []string{"2/1/06", "02/01/2006", "2 Jan 2006", "2 January 2006"}, TimeLayouts: usTimes,
	},
	{
		Tag: language.MustParse("en-IN"), Decimal: '.', Group: ',', Currency: []string{"₹", "Rs.", "Rs"},
		Grouping: GroupingIndian, DateLayouts: []string{"02/01/06", "02-Jan-2006", "2 January 2006"}, TimeLayouts: usTimes,
	},
	{
		Tag: language.MustParse("hi-IN"), Decimal: '.', Group: ',', Currency: []string{"₹"},
		Grouping: GroupingIndian, DateLayouts: []string{"2/1/06", "02/01/2006", "2 Jan 2006"}, TimeLayouts: usTimes,
	},
	{
		Tag: language.MustParse("de-DE"), Decimal: ',', Group: '.', Currency: []string{"€", "EUR"},
		DateLayouts: deDates, TimeLayouts: h24,
		DateTimeLayouts: []string{"02.01.06, 15:04", "02.01.2006, 15:04:05", "02.01.2006 15:04"},
	},
	{
		Tag: language.MustParse("de-CH"), Decimal: '.', Group: '\'', Currency: []string{"CHF", "Fr."},
		DateLayouts: deDates, TimeLayouts: h24,
	},
	{
		Tag: language.MustParse("fr-FR"), Decimal: ',', Group: ' ', Currency: []string{"€", "EUR"},
		DateLayouts: []string{"02/01/2006", "02/01/06", "2 Jan 2006"}, TimeLayouts: h24,
	},
	{
		Tag: language.MustParse("es-ES"), Decimal: ',', Group: '.', Currency: []string{"€"},
		DateLayouts: []string{"2/1/06", "02/01/2006", "2 Jan 2006"}, TimeLayouts: h24,
	},
	{
		Tag: language.MustParse("it-IT"), Decimal: ',', Group: '.', Currency: []string{"€"},
		DateLayouts: []string{"02/01/06", "02/01/2006", "2 Jan 2006"}, TimeLayouts: h24,
	},
	{
		Tag: language.MustParse("nl-NL"), Decimal: ',', Group: '.', Currency: []string{"€"},
		DateLayouts: []string{"02-01-2006", "2-1-06", "2 Jan 2006"}, TimeLayouts: h24,
	},
	{
		Tag: language.MustParse("pt-BR"), Decimal: ',', Group: '.', Currency: []string{"R$"},
		DateLayouts: []string{"02/01/2006", "02/01/06"}, TimeLayouts: h24,
	},
	{
		Tag: language.MustParse("ja-JP"), Decimal: '.', Group: ',', Currency: []string{"￥", "¥"},
		DateLayouts: []string{"2006/01/02", "2006/1/2", "06/01/02"}, TimeLayouts: h24,
	},
}

var profileMatcher = func() language.Matcher {
	tags := make([]language.Tag, len(profiles))
	for i, p := range profiles {
		tags[i] = p.Tag
	}
	return language.NewMatcher(tags)
}()

// ProfileFor returns the profile closest to tag. Unknown locales use en-US.
func ProfileFor(tag language.Tag) *Profile {
	_, idx, conf := profileMatcher.Match(tag)
	if conf == language.No {
		return profiles[0]
	}
	return profiles[idx]
}

// Profiles returns the supported locale profiles.
func Profiles() []*Profile {
	out := make([]*Profile, len(profiles))
	copy(out, profiles)
	return out
}

var (
	localeLanguage = regexp.MustCompile(`^[a-zA-Z]{2,8}$`)
	localeCountry  = regexp.MustCompile(`^([a-zA-Z]{2}|[0-9]{3})$`)
	localeVariant  = regexp.MustCompile(`^[0-9a-zA-Z]{1,8}$`)
)

// ParseLocale parses a language[_country[_variant]] token. Hyphens are accepted as separators.
func ParseLocale(token string) (language.Tag, error) {
	parts := strings.Split(strings.ReplaceAll(strings.TrimSpace(token), "-", "_"), "_")
	bad := func(offset int, msg string) (language.Tag, error) {
		return language.Und, conversionError(token, "language.Tag", offset, "%s", msg)
	}
	if len(parts) > 3 {
		return bad(-1, "too many locale segments")
	}
	if !localeLanguage.MatchString(parts[0]) {
		return bad(0, "invalid language")
	}
	bcp := []string{strings.ToLower(parts[0])}
	offset := len(parts[0]) + 1
	if len(parts) > 1 {
		country := parts[1]
		switch {
		case country == "" && len(parts) == 3:
		case localeCountry.MatchString(country):
			bcp = append(bcp, strings.ToUpper(country))
		default:
			return bad(offset, "invalid country")
		}
		offset += len(country) + 1
	}
	variant := ""
	if len(parts) == 3 {
		variant = parts[2]
		if !localeVariant.MatchString(variant) {
			return bad(offset, "invalid variant")
		}
	}
	if variant == "" {
		tag, err := language.Parse(strings.Join(bcp, "-"))
		if err != nil {
			return bad(-1, err.Error())
		}
		return tag, nil
	}
	// BCP 47 variants must be 5-8 characters; shorter ones travel as private use.
	if tag, err := language.Parse(strings.Join(append(bcp, variant), "-")); err == nil {
		return tag, nil
	}
	tag, err := language.Parse(strings.Join(append(bcp, "x", variant), "-"))
	if err != nil {
		return bad(offset, err.Error())
	}
	return tag, nil
}
