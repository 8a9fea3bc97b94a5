package listing

import (
	"fmt"
	"time"

	"evcal/internal/calendar"
	"evcal/internal/model"
)

// RelativeDay labels an event's start relative to now: "Today", "Tomorrow",
// "Yesterday", "This weekend" for a Saturday or Sunday two to six days out,
// or "In N days" up to a week ahead. Everything else gets "".
func RelativeDay(ev model.Event, now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	start, ok := calendar.ParseTimestamp(ev.StartDateTime, loc)
	if !ok {
		return ""
	}
	start = start.In(loc)
	now = now.In(loc)

	eventDay := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	diff := model.DaysBetween(today, eventDay)

	switch {
	case diff == 0:
		return "Today"
	case diff == 1:
		return "Tomorrow"
	case diff == -1:
		return "Yesterday"
	}

	wd := start.Weekday()
	if (wd == time.Saturday || wd == time.Sunday) && diff > 1 && diff < 7 {
		return "This weekend"
	}
	if diff > 1 && diff <= 7 {
		return fmt.Sprintf("In %d days", diff)
	}
	return ""
}
