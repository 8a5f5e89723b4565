// Package sqltime converts legacy date/time text into the canonical form
// SQLite date functions understand.
package sqltime

import (
	"regexp"
	"strings"
	"time"
)

// Layout is the canonical SQLite date-time text form.
const Layout = "2006-01-02 15:04:05"

// Epoch is the lower bound for emitted values. Anything earlier is clamped.
var Epoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// dateLayouts are tried in order. Day, month, hour, minute and second
// accept one or two digits; month names are matched case-insensitively.
var dateLayouts = []string{
	"2/1/2006",
	"2-1-2006",
	"2/Jan/2006",
	"2-Jan-2006",
	"2 Jan 2006",
	"2 January 2006",
}

var layouts = func() []string {
	out := make([]string, 0, 2*len(dateLayouts))
	for _, l := range dateLayouts {
		out = append(out, l+" 15:4:5")
	}
	return append(out, dateLayouts...)
}()

var (
	whitespace = regexp.MustCompile(`\s+`)
	timeOnly   = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}$`)
	minYear    = regexp.MustCompile(`\b0001\b`)
)

// Parse reads a day-first date, optionally followed by a time of day.
// Surrounding whitespace is ignored and inner runs collapse to one space.
func Parse(s string) (time.Time, bool) {
	s = whitespace.ReplaceAllString(strings.TrimSpace(s), " ")
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Format renders t in the canonical layout, clamped to Epoch.
func Format(t time.Time) string {
	if t.Before(Epoch) {
		t = Epoch
	}
	return t.Format(Layout)
}

// Strip removes the '#' and '\'' delimiters legacy literals carry.
func Strip(s string) string {
	return strings.NewReplacer("#", "", "'", "").Replace(s)
}

// FixMinYear maps the legacy minimum year 0001 onto 1970.
func FixMinYear(s string) string {
	return minYear.ReplaceAllString(s, "1970")
}

// IsTimeOnly reports whether s is a bare hh:mm:ss time.
func IsTimeOnly(s string) bool {
	return timeOnly.MatchString(s)
}
