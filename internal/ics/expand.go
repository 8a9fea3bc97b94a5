package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "evcal/internal/log"
	"evcal/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 500

	looseDateLayout = "2 Jan 2006"
)

// ExpandConfig bounds recurrence expansion.
type ExpandConfig struct {
	// DisplayLocation is used to render timestamps. Nil means time.Local.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd form the inclusive window for occurrences.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps runaway rules. Zero means the default.
	MaxOccurrencesPerEvent int
}

// ExpandResult holds the expanded events and the UIDs that hit the cap.
type ExpandResult struct {
	Events          []model.Event
	TruncatedEvents []string
}

// Expand turns parsed VEVENTs into listing events within the window.
// RRULE series are expanded with EXDATE removal and RECURRENCE-ID overrides.
// Timed occurrences carry start/end timestamps; all-day occurrences are
// written as loose list dates ("9 Jul 2025" or "12 Jul 2025 up to
// 13 Jul 2025") so the calendar resolver treats them like scraped listings.
func Expand(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("ics: range end is before range start")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Keep feed order for base events; overrides are looked up by UID.
	var bases []ParsedEvent
	overridesByUID := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		bases = append(bases, ev)
	}

	out := make([]model.Event, 0, len(bases))
	for _, ev := range bases {
		if ev.RawRRule == "" {
			if occ, ok := expandSingle(ev, overridesByUID[ev.UID], cfg); ok {
				out = append(out, occ)
			}
			continue
		}

		occ, hitCap := expandRecurring(ev, overridesByUID[ev.UID], cfg)
		out = append(out, occ...)
		if hitCap {
			result.TruncatedEvents = append(result.TruncatedEvents, ev.UID)
			appLog.Warn("ics expansion truncated", "uid", ev.UID, "cap", cfg.MaxOccurrencesPerEvent)
		}
	}

	result.Events = out
	return result, nil
}

func expandSingle(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) (model.Event, bool) {
	if !overlaps(ev.Start, ev.End, cfg.RangeStart, cfg.RangeEnd) {
		return model.Event{}, false
	}
	start, end := ev.Start, ev.End
	if o, ok := findOverride(overrides, start); ok {
		ev, start, end = o, o.Start, o.End
	}
	return toEvent(ev, start, end, false, cfg.DisplayLocation), true
}

func expandRecurring(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Event, bool) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("ics rrule parse failed", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	times := set.Between(cfg.RangeStart.In(ev.Start.Location()), cfg.RangeEnd.In(ev.Start.Location()), true)
	hitCap := false
	if len(times) > cfg.MaxOccurrencesPerEvent {
		times = times[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	duration := ev.End.Sub(ev.Start)
	out := make([]model.Event, 0, len(times))
	for _, occStart := range times {
		occEnd := time.Time{}
		if !ev.End.IsZero() {
			occEnd = occStart.Add(duration)
		}
		base := ev
		if o, ok := findOverride(overrides, occStart); ok {
			base, occStart, occEnd = o, o.Start, o.End
		}
		out = append(out, toEvent(base, occStart, occEnd, true, cfg.DisplayLocation))
	}
	return out, hitCap
}

// findOverride matches RECURRENCE-ID against an instance start by instant.
func findOverride(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

func toEvent(ev ParsedEvent, start, end time.Time, instance bool, loc *time.Location) model.Event {
	out := model.Event{
		ID:              ev.UID,
		SourceID:        ev.SourceID,
		Title:           ev.Summary,
		FullDescription: ev.Description,
		Address:         ev.Location,
		FullURL:         ev.URL,
		IsDetailed:      true,
	}
	if instance {
		out.ID = ev.UID + "@" + start.UTC().Format("20060102T150405Z")
	}

	if ev.AllDay {
		out.ListDate = allDayText(start, end)
		out.DateTimeSummary = out.ListDate
		return out
	}

	out.StartDateTime = start.In(loc).Format(time.RFC3339)
	if !end.IsZero() {
		out.EndDateTime = end.In(loc).Format(time.RFC3339)
	}
	return out
}

// allDayText renders an all-day span. DTEND is exclusive, so the last day
// shown is the day before it.
func allDayText(start, end time.Time) string {
	first := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	if end.IsZero() {
		return first.Format(looseDateLayout)
	}
	last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	if !last.After(first) {
		return first.Format(looseDateLayout)
	}
	return first.Format(looseDateLayout) + " up to " + last.Format(looseDateLayout)
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aEnd.IsZero() {
		aEnd = aStart
	}
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
