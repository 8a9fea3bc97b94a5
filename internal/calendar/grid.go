package calendar

import (
	"sort"
	"time"

	"evcal/internal/model"
)

const (
	defaultTrailingDays = 7
	dayKeyLayout        = "2006-01-02"
)

// Options controls grid construction. The zero value gives the default
// behaviour in the local timezone.
type Options struct {
	// Location is the display timezone used to turn timestamps into dates.
	Location *time.Location

	// TrailingDays extends the span past the latest event end.
	TrailingDays int

	// ExpandRecurring places "Every <weekday>" events on their matching
	// weekdays inside the span. Recurring events never widen the span.
	ExpandRecurring bool
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.TrailingDays <= 0 {
		o.TrailingDays = defaultTrailingDays
	}
	return o
}

// placement is one input event together with what we know about its dates.
type placement struct {
	ev    model.Event
	rng   model.DateRange
	timed bool
	start time.Time

	// Set only for expanded recurring events.
	occurs map[string]bool
}

func (p placement) on(day time.Time) bool {
	if p.occurs != nil {
		return p.occurs[day.Format(dayKeyLayout)]
	}
	return p.rng.Contains(day)
}

// BuildGrid assigns every event to each calendar day it occupies.
//
// The span runs from the Monday of the week holding the earliest start to
// TrailingDays past the latest end. Within a day, timed events come first in
// start order, the rest follow in input order. Weeks without any entry are
// left out. No resolvable events means an empty grid.
func BuildGrid(events []model.Event, opts Options) []model.CalendarDay {
	opts = opts.withDefaults()

	placements := make([]placement, 0, len(events))
	var recurring []int
	var first, last time.Time
	resolved := 0

	for _, ev := range events {
		rng, ok := Resolve(ev, opts.Location)
		if !ok {
			if !opts.ExpandRecurring {
				continue
			}
			if _, ok := ParseRecurrence(ev.ListDate); ok {
				recurring = append(recurring, len(placements))
				placements = append(placements, placement{ev: ev})
			}
			continue
		}

		p := placement{ev: ev, rng: rng}
		if t, ok := ParseTimestamp(ev.StartDateTime, opts.Location); ok {
			p.timed = true
			p.start = t
		}
		placements = append(placements, p)

		if resolved == 0 || rng.Start.Before(first) {
			first = rng.Start
		}
		if resolved == 0 || rng.End.After(last) {
			last = rng.End
		}
		resolved++
	}
	if resolved == 0 {
		return nil
	}

	spanStart := weekStart(first)
	spanEnd := last.AddDate(0, 0, opts.TrailingDays)

	for _, i := range recurring {
		rec, _ := ParseRecurrence(placements[i].ev.ListDate)
		occurs := make(map[string]bool)
		for _, d := range rec.Between(spanStart, spanEnd) {
			occurs[civilDate(d).Format(dayKeyLayout)] = true
		}
		placements[i].occurs = occurs
	}

	var out []model.CalendarDay
	week := make([]model.CalendarDay, 0, 7)
	weekHasEntries := false

	flush := func() {
		if weekHasEntries {
			out = append(out, week...)
		}
		week = make([]model.CalendarDay, 0, 7)
		weekHasEntries = false
	}

	for d := spanStart; !d.After(spanEnd); d = d.AddDate(0, 0, 1) {
		day := buildDay(d, placements)
		if len(day.Entries) > 0 {
			weekHasEntries = true
		}
		week = append(week, day)
		if len(week) == 7 {
			flush()
		}
	}
	flush()

	return out
}

func buildDay(d time.Time, placements []placement) model.CalendarDay {
	var hits []placement
	for _, p := range placements {
		if p.on(d) {
			hits = append(hits, p)
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.timed && b.timed {
			return a.start.Before(b.start)
		}
		return a.timed && !b.timed
	})

	day := model.CalendarDay{
		Date:    d,
		Key:     d.Format(dayKeyLayout),
		Entries: make([]model.DayEntry, 0, len(hits)),
	}
	for _, p := range hits {
		entry := model.DayEntry{Event: p.ev}
		if p.occurs != nil {
			entry.Recurring = true
		} else {
			entry.IsContinuation = !d.Equal(p.rng.Start)
			if total := p.rng.Days(); total > 1 {
				entry.TotalDays = total
				entry.DayIndex = model.DaysBetween(p.rng.Start, d) + 1
			}
		}
		day.Entries = append(day.Entries, entry)
	}
	return day
}

// GroupWeeks splits grid output into Monday-aligned weeks. Days are expected
// in ascending order, as BuildGrid returns them.
func GroupWeeks(days []model.CalendarDay) []model.Week {
	var weeks []model.Week
	for _, day := range days {
		start := weekStart(day.Date).Format(dayKeyLayout)
		if n := len(weeks); n == 0 || weeks[n-1].Start != start {
			weeks = append(weeks, model.Week{Start: start})
		}
		w := &weeks[len(weeks)-1]
		w.Days = append(w.Days, day)
	}
	return weeks
}
