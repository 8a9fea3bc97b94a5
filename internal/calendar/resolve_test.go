package calendar

import (
	"testing"
	"time"

	"evcal/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolveText(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantOK    bool
		wantStart time.Time
		wantEnd   time.Time
	}{
		{"single one-digit day", "9 Jul 2025", true, date(2025, 7, 9), date(2025, 7, 9)},
		{"single two-digit day", "09 Jul 2025", true, date(2025, 7, 9), date(2025, 7, 9)},
		{"lowercase month", "12 jul 2025", true, date(2025, 7, 12), date(2025, 7, 12)},
		{"extra whitespace", "  9   Jul  2025 ", true, date(2025, 7, 9), date(2025, 7, 9)},
		{"range", "12 Jul 2025 up to 13 Jul 2025", true, date(2025, 7, 12), date(2025, 7, 13)},
		{"range across months", "30 Jun 2025 up to 2 Jul 2025", true, date(2025, 6, 30), date(2025, 7, 2)},
		{"range with leading weekday", "Sat 12 Jul 2025 up to 13 Jul 2025", true, date(2025, 7, 12), date(2025, 7, 13)},
		{"same day range", "12 Jul 2025 up to 12 Jul 2025", true, date(2025, 7, 12), date(2025, 7, 12)},
		{"inverted range", "13 Jul 2025 up to 12 Jul 2025", false, time.Time{}, time.Time{}},
		{"recurring", "Every Thursday", false, time.Time{}, time.Time{}},
		{"impossible day", "31 Feb 2025", false, time.Time{}, time.Time{}},
		{"full month name", "9 July 2025", false, time.Time{}, time.Time{}},
		{"iso date", "2025-07-09", false, time.Time{}, time.Time{}},
		{"single date with suffix", "9 Jul 2025 at noon", false, time.Time{}, time.Time{}},
		{"empty", "", false, time.Time{}, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveText(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("ResolveText(%q) ok = %v, want %v", tt.text, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if !got.Start.Equal(tt.wantStart) || !got.End.Equal(tt.wantEnd) {
				t.Errorf("ResolveText(%q) = %v..%v, want %v..%v", tt.text, got.Start, got.End, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestResolveTimestampWins(t *testing.T) {
	ev := model.Event{
		StartDateTime: "2025-07-09T18:30:00",
		EndDateTime:   "2025-07-11T02:00:00",
		ListDate:      "12 Jul 2025 up to 13 Jul 2025",
	}
	got, ok := Resolve(ev, time.UTC)
	if !ok {
		t.Fatal("expected a range")
	}
	if !got.Start.Equal(date(2025, 7, 9)) || !got.End.Equal(date(2025, 7, 9)) {
		t.Errorf("got %v..%v, want a single day on 2025-07-09", got.Start, got.End)
	}
}

func TestResolveTimestampUsesDisplayZone(t *testing.T) {
	cest := time.FixedZone("CEST", 2*60*60)
	ev := model.Event{StartDateTime: "2025-07-09T23:30:00Z"}

	got, ok := Resolve(ev, cest)
	if !ok {
		t.Fatal("expected a range")
	}
	if !got.Start.Equal(date(2025, 7, 10)) {
		t.Errorf("start = %v, want 2025-07-10 in CEST", got.Start)
	}
}

func TestResolveMalformedTimestampFallsBack(t *testing.T) {
	ev := model.Event{StartDateTime: "sometime soon", ListDate: "9 Jul 2025"}
	got, ok := Resolve(ev, time.UTC)
	if !ok || !got.Start.Equal(date(2025, 7, 9)) {
		t.Errorf("Resolve = %v, %v; want 2025-07-09", got, ok)
	}
}

func TestResolveNothing(t *testing.T) {
	if _, ok := Resolve(model.Event{Title: "no dates"}, time.UTC); ok {
		t.Error("event without dates should not resolve")
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		ok   bool
		want time.Time
	}{
		{"2025-07-09T18:30:00", true, time.Date(2025, 7, 9, 18, 30, 0, 0, time.UTC)},
		{"2025-07-09 18:30:00", true, time.Date(2025, 7, 9, 18, 30, 0, 0, time.UTC)},
		{"2025-07-09T18:30", true, time.Date(2025, 7, 9, 18, 30, 0, 0, time.UTC)},
		{"2025-07-09T18:30:00+02:00", true, time.Date(2025, 7, 9, 16, 30, 0, 0, time.UTC)},
		{"09-07-2025", false, time.Time{}},
		{"", false, time.Time{}},
	}
	for _, tt := range tests {
		got, ok := ParseTimestamp(tt.in, time.UTC)
		if ok != tt.ok {
			t.Errorf("ParseTimestamp(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && !got.Equal(tt.want) {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWeekStart(t *testing.T) {
	tests := map[time.Time]time.Time{
		date(2025, 7, 7):  date(2025, 7, 7),  // Monday
		date(2025, 7, 12): date(2025, 7, 7),  // Saturday
		date(2025, 7, 13): date(2025, 7, 7),  // Sunday
		date(2025, 7, 1):  date(2025, 6, 30), // Tuesday, previous month
	}
	for in, want := range tests {
		if got := weekStart(in); !got.Equal(want) {
			t.Errorf("weekStart(%s) = %s, want %s", in.Format(dayKeyLayout), got.Format(dayKeyLayout), want.Format(dayKeyLayout))
		}
	}
}
