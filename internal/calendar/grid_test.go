package calendar

import (
	"testing"
	"time"

	"evcal/internal/model"
)

func findDay(t *testing.T, days []model.CalendarDay, key string) model.CalendarDay {
	t.Helper()
	for _, d := range days {
		if d.Key == key {
			return d
		}
	}
	t.Fatalf("day %s not in grid", key)
	return model.CalendarDay{}
}

// appearances maps day key to how often the event id shows up on that day.
func appearances(days []model.CalendarDay, id string) map[string]int {
	out := make(map[string]int)
	for _, d := range days {
		for _, e := range d.Entries {
			if e.Event.ID == id {
				out[d.Key]++
			}
		}
	}
	return out
}

func TestBuildGridMultiDayRange(t *testing.T) {
	events := []model.Event{{ID: "fest", ListDate: "12 Jul 2025 up to 13 Jul 2025"}}

	days := BuildGrid(events, Options{Location: time.UTC})

	// Week of Mon 7 Jul only; the trailing week is empty and dropped.
	if len(days) != 7 {
		t.Fatalf("expected 7 days, got %d", len(days))
	}
	if days[0].Key != "2025-07-07" || days[6].Key != "2025-07-13" {
		t.Errorf("unexpected span %s..%s", days[0].Key, days[6].Key)
	}

	first := findDay(t, days, "2025-07-12")
	if len(first.Entries) != 1 {
		t.Fatalf("expected 1 entry on 12 Jul, got %d", len(first.Entries))
	}
	if e := first.Entries[0]; e.DayIndex != 1 || e.TotalDays != 2 || e.IsContinuation {
		t.Errorf("12 Jul entry = %+v, want dayIndex=1 totalDays=2 continuation=false", e)
	}

	second := findDay(t, days, "2025-07-13")
	if len(second.Entries) != 1 {
		t.Fatalf("expected 1 entry on 13 Jul, got %d", len(second.Entries))
	}
	if e := second.Entries[0]; e.DayIndex != 2 || e.TotalDays != 2 || !e.IsContinuation {
		t.Errorf("13 Jul entry = %+v, want dayIndex=2 totalDays=2 continuation=true", e)
	}

	got := appearances(days, "fest")
	if len(got) != 2 || got["2025-07-12"] != 1 || got["2025-07-13"] != 1 {
		t.Errorf("event should appear exactly on 12 and 13 Jul, got %v", got)
	}
}

func TestBuildGridCenturiesLongRange(t *testing.T) {
	ev := model.Event{ID: "expo", Title: "Expo", ListDate: "1 Jan 1700 up to 1 Jan 2025"}
	rng, ok := ResolveText(ev.ListDate)
	if !ok {
		t.Fatal("range not resolved")
	}
	const want = 118705
	if got := rng.Days(); got != want {
		t.Fatalf("Days() = %d, want %d", got, want)
	}

	days := BuildGrid([]model.Event{ev}, Options{Location: time.UTC, TrailingDays: 1})
	first := findDay(t, days, "1700-01-01").Entries[0]
	if first.DayIndex != 1 || first.TotalDays != want || first.IsContinuation {
		t.Errorf("first day entry = %+v", first)
	}
	last := findDay(t, days, "2025-01-01").Entries[0]
	if last.DayIndex != want || last.TotalDays != want || !last.IsContinuation {
		t.Errorf("last day DayIndex=%d TotalDays=%d, want %d", last.DayIndex, last.TotalDays, want)
	}
}

func TestBuildGridRecurringDropped(t *testing.T) {
	events := []model.Event{{ID: "weekly", ListDate: "Every Thursday"}}
	if days := BuildGrid(events, Options{Location: time.UTC}); len(days) != 0 {
		t.Fatalf("expected empty grid, got %d days", len(days))
	}

	events = append(events, model.Event{ID: "once", ListDate: "10 Jul 2025"})
	days := BuildGrid(events, Options{Location: time.UTC})
	if got := appearances(days, "weekly"); len(got) != 0 {
		t.Errorf("recurring event should never appear, got %v", got)
	}
}

func TestBuildGridEmpty(t *testing.T) {
	if days := BuildGrid(nil, Options{}); days != nil {
		t.Errorf("expected nil grid, got %d days", len(days))
	}
}

func TestBuildGridTimestampSingleDay(t *testing.T) {
	events := []model.Event{{
		ID:            "concert",
		StartDateTime: "2025-07-09T20:00:00",
		EndDateTime:   "2025-07-10T01:00:00",
	}}
	days := BuildGrid(events, Options{Location: time.UTC})

	got := appearances(days, "concert")
	if len(got) != 1 || got["2025-07-09"] != 1 {
		t.Fatalf("timestamped event should appear once on 9 Jul, got %v", got)
	}
	e := findDay(t, days, "2025-07-09").Entries[0]
	if e.IsContinuation || e.DayIndex != 0 || e.TotalDays != 0 {
		t.Errorf("single-day entry should carry no span info, got %+v", e)
	}
}

func TestBuildGridOrderWithinDay(t *testing.T) {
	events := []model.Event{
		{ID: "loose-a", ListDate: "10 Jul 2025"},
		{ID: "evening", StartDateTime: "2025-07-10T20:00:00"},
		{ID: "morning", StartDateTime: "2025-07-10T09:00:00"},
		{ID: "loose-b", ListDate: "9 Jul 2025 up to 11 Jul 2025"},
		{ID: "noon", StartDateTime: "2025-07-10T12:00:00"},
	}
	days := BuildGrid(events, Options{Location: time.UTC})

	day := findDay(t, days, "2025-07-10")
	want := []string{"morning", "noon", "evening", "loose-a", "loose-b"}
	if len(day.Entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(day.Entries))
	}
	for i, id := range want {
		if day.Entries[i].Event.ID != id {
			t.Errorf("position %d: got %s, want %s", i, day.Entries[i].Event.ID, id)
		}
	}
}

func TestBuildGridOmitsEmptyWeeks(t *testing.T) {
	events := []model.Event{
		{ID: "early", ListDate: "1 Jul 2025"},
		{ID: "late", ListDate: "20 Jul 2025"},
	}
	days := BuildGrid(events, Options{Location: time.UTC})

	// Weeks of 30 Jun and 14 Jul only.
	if len(days) != 14 {
		t.Fatalf("expected 14 days, got %d", len(days))
	}
	for _, d := range days {
		if d.Date.After(date(2025, 7, 6)) && d.Date.Before(date(2025, 7, 14)) {
			t.Errorf("day %s belongs to an empty week and should be omitted", d.Key)
		}
	}

	weeks := GroupWeeks(days)
	if len(weeks) != 2 {
		t.Fatalf("expected 2 weeks, got %d", len(weeks))
	}
	if weeks[0].Start != "2025-06-30" || weeks[1].Start != "2025-07-14" {
		t.Errorf("unexpected week starts %s, %s", weeks[0].Start, weeks[1].Start)
	}
	for _, w := range weeks {
		if len(w.Days) != 7 {
			t.Errorf("week %s has %d days, want 7", w.Start, len(w.Days))
		}
	}
}

func TestBuildGridRangeProperty(t *testing.T) {
	events := []model.Event{
		{ID: "long", ListDate: "28 Jun 2025 up to 3 Jul 2025"},
		{ID: "bad", ListDate: "3 Jul 2025 up to 28 Jun 2025"},
	}
	days := BuildGrid(events, Options{Location: time.UTC})

	got := appearances(days, "long")
	if len(got) != 6 {
		t.Fatalf("expected 6 days, got %v", got)
	}
	for d := date(2025, 6, 28); !d.After(date(2025, 7, 3)); d = d.AddDate(0, 0, 1) {
		if got[d.Format(dayKeyLayout)] != 1 {
			t.Errorf("missing or duplicated on %s", d.Format(dayKeyLayout))
		}
	}
	if bad := appearances(days, "bad"); len(bad) != 0 {
		t.Errorf("inverted range should be excluded, got %v", bad)
	}

	third := findDay(t, days, "2025-06-30").Entries[0]
	if third.DayIndex != 3 || third.TotalDays != 6 || !third.IsContinuation {
		t.Errorf("30 Jun entry = %+v, want dayIndex=3 totalDays=6 continuation", third)
	}
}

func TestBuildGridIdempotent(t *testing.T) {
	events := []model.Event{
		{ID: "a", ListDate: "12 Jul 2025 up to 13 Jul 2025"},
		{ID: "b", StartDateTime: "2025-07-12T10:00:00"},
	}
	first := BuildGrid(events, Options{Location: time.UTC})
	second := BuildGrid(events, Options{Location: time.UTC})
	if len(first) != len(second) {
		t.Fatalf("grid length changed between runs: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Key != second[i].Key || len(first[i].Entries) != len(second[i].Entries) {
			t.Fatalf("day %d differs between runs", i)
		}
	}
}

func TestBuildGridExpandRecurring(t *testing.T) {
	events := []model.Event{
		{ID: "weekly", ListDate: "Every Thursday"},
		{ID: "fest", ListDate: "12 Jul 2025 up to 13 Jul 2025"},
	}
	days := BuildGrid(events, Options{Location: time.UTC, ExpandRecurring: true})

	// The Thursday in the trailing week keeps that week alive.
	if len(days) != 14 {
		t.Fatalf("expected 14 days, got %d", len(days))
	}
	got := appearances(days, "weekly")
	if len(got) != 2 || got["2025-07-10"] != 1 || got["2025-07-17"] != 1 {
		t.Errorf("weekly event should land on 10 and 17 Jul, got %v", got)
	}
	if e := findDay(t, days, "2025-07-10").Entries[0]; !e.Recurring || e.IsContinuation {
		t.Errorf("recurring entry = %+v", e)
	}
}
