package calendar

import (
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

var weekdayNames = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
	"mon":       time.Monday,
	"tue":       time.Tuesday,
	"wed":       time.Wednesday,
	"thu":       time.Thursday,
	"fri":       time.Friday,
	"sat":       time.Saturday,
	"sun":       time.Sunday,
}

var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
	time.Sunday:    rrule.SU,
}

// Recurrence is a weekly schedule recovered from text such as
// "Every Thursday" or "Every Saturday and Sunday".
type Recurrence struct {
	Weekdays []time.Weekday
}

// ParseRecurrence recognises "Every <weekday>[, <weekday>...][ and <weekday>]".
// Weekday names may be full, abbreviated or plural. Any other wording,
// including times or date qualifiers, is rejected.
func ParseRecurrence(text string) (Recurrence, bool) {
	s := strings.ToLower(strings.Join(strings.Fields(text), " "))
	rest, ok := strings.CutPrefix(s, "every ")
	if !ok {
		return Recurrence{}, false
	}
	rest = strings.ReplaceAll(rest, " and ", ",")

	var out Recurrence
	seen := make(map[time.Weekday]bool)
	for _, tok := range strings.Split(rest, ",") {
		tok = strings.TrimSpace(tok)
		wd, ok := weekdayNames[tok]
		if !ok {
			wd, ok = weekdayNames[strings.TrimSuffix(tok, "s")]
		}
		if !ok {
			return Recurrence{}, false
		}
		if !seen[wd] {
			seen[wd] = true
			out.Weekdays = append(out.Weekdays, wd)
		}
	}
	return out, len(out.Weekdays) > 0
}

// Between lists the occurrence dates (midnight UTC) within [from, to].
func (r Recurrence) Between(from, to time.Time) []time.Time {
	if len(r.Weekdays) == 0 || to.Before(from) {
		return nil
	}
	days := make([]rrule.Weekday, 0, len(r.Weekdays))
	for _, wd := range r.Weekdays {
		days = append(days, rruleWeekdays[wd])
	}
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: days,
		Dtstart:   civilDate(from),
	})
	if err != nil {
		return nil
	}
	return rule.Between(civilDate(from), civilDate(to), true)
}
