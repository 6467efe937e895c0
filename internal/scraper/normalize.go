package scraper

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	innerWhitespace = regexp.MustCompile(`\s+`)
	currencyChars   = regexp.MustCompile(`[^0-9.\-]`)
	cityStateZip    = regexp.MustCompile(`^(.*?),?\s+([A-Za-z]{2})\.?\s+(\d{5})(?:-\d{4})?$`)
)

// fallbackLayouts are tried after the source's own date layout.
var fallbackLayouts = []string{
	"01/02/2006",
	"1/2/2006",
	"2006-01-02",
	"Jan 2, 2006",
	"January 2, 2006",
	"01/02/2006 3:04 PM",
	"2006-01-02T15:04:05Z07:00",
}

func CleanText(s string) string {
	return strings.TrimSpace(innerWhitespace.ReplaceAllString(s, " "))
}

// ParseCurrency turns "$1,234.56" into 1234.56; ok is false for empty or unparsable input.
func ParseCurrency(s string) (float64, bool) {
	s = currencyChars.ReplaceAllString(s, "")
	if s == "" || s == "." || s == "-" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func ParseDate(layout, s string, loc *time.Location) (time.Time, bool) {
	s = CleanText(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	layouts := fallbackLayouts
	if layout != "" {
		layouts = append([]string{layout}, fallbackLayouts...)
	}
	for _, l := range layouts {
		if t, err := time.ParseInLocation(l, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SplitCityStateZip splits "Tampa, FL 33602" into its parts.
func SplitCityStateZip(s string) (city, state, zip string, ok bool) {
	m := cityStateZip.FindStringSubmatch(CleanText(s))
	if m == nil {
		return "", "", "", false
	}
	return strings.TrimSpace(m[1]), strings.ToUpper(m[2]), m[3], true
}

// Absolute resolves href against base; unresolvable links are returned unchanged.
func Absolute(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

var propertyTypeKeywords = []struct {
	keyword string
	value   string
}{
	{"condo", "condo"},
	{"town", "townhouse"},
	{"multi", "multi_family"},
	{"duplex", "multi_family"},
	{"triplex", "multi_family"},
	{"land", "land"},
	{"vacant", "land"},
	{"lot", "land"},
	{"commercial", "commercial"},
	{"single", "single_family"},
	{"residential", "single_family"},
}

// NormalizePropertyType maps free-form listing text onto a known property type.
func NormalizePropertyType(s string) string {
	s = strings.ToLower(CleanText(s))
	for _, k := range propertyTypeKeywords {
		if strings.Contains(s, k.keyword) {
			return k.value
		}
	}
	return "single_family"
}
