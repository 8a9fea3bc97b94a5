package calendar

import (
	"regexp"
	"strings"
	"time"

	"evcal/internal/model"
)

var (
	// "9 Jul 2025", matched against the whole text.
	singleDateRe = regexp.MustCompile(`^(\d{1,2}) ([A-Za-z]{3}) (\d{4})$`)
	// "12 Jul 2025 up to 13 Jul 2025", searched anywhere in the text.
	dateRangeRe = regexp.MustCompile(`(\d{1,2} [A-Za-z]{3} \d{4}) up to (\d{1,2} [A-Za-z]{3} \d{4})`)
)

// Layouts accepted for StartDateTime / EndDateTime. Layouts without an
// offset are interpreted in the display location.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseTimestamp parses a machine-readable event timestamp. It returns false
// for empty or malformed input.
func ParseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), true
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Resolve derives the range of calendar days an event occupies.
//
// A parseable start timestamp wins and yields a single day, whatever the end
// timestamp says. Otherwise the loose list date is tried, first as a single
// date, then as "<date> up to <date>". Anything else, recurring phrasing
// included, resolves to nothing.
func Resolve(ev model.Event, loc *time.Location) (model.DateRange, bool) {
	if loc == nil {
		loc = time.Local
	}
	if t, ok := ParseTimestamp(ev.StartDateTime, loc); ok {
		d := civilDate(t.In(loc))
		return model.DateRange{Start: d, End: d}, true
	}
	return ResolveText(ev.ListDate)
}

// ResolveText parses loose date text on its own.
func ResolveText(text string) (model.DateRange, bool) {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return model.DateRange{}, false
	}

	if d, ok := parseLooseDate(text); ok {
		return model.DateRange{Start: d, End: d}, true
	}

	m := dateRangeRe.FindStringSubmatch(text)
	if m == nil {
		return model.DateRange{}, false
	}
	start, ok := parseLooseDate(m[1])
	if !ok {
		return model.DateRange{}, false
	}
	end, ok := parseLooseDate(m[2])
	if !ok {
		return model.DateRange{}, false
	}
	// Inverted ranges are rejected rather than swapped.
	if end.Before(start) {
		return model.DateRange{}, false
	}
	return model.DateRange{Start: start, End: end}, true
}

func parseLooseDate(s string) (time.Time, bool) {
	m := singleDateRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	month := strings.ToUpper(m[2][:1]) + strings.ToLower(m[2][1:])
	t, err := time.Parse("2 Jan 2006", m[1]+" "+month+" "+m[3])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// civilDate drops the clock and zone, keeping the wall-clock date.
func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// weekStart returns the Monday on or before d.
func weekStart(d time.Time) time.Time {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}
