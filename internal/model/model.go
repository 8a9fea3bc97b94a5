package model

import "time"

// Event is a single listing as delivered by a backend feed. Most fields are
// optional because listings come from scraped pages of varying quality; the
// JSON names match the backend's wire format.
type Event struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	SourceID string `json:"source_id,omitempty"`

	URLSuffix string `json:"url_suffix,omitempty"`
	FullURL   string `json:"full_url,omitempty"`
	TicketURL string `json:"ticket_url,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`

	// DateTimeSummary is the short label shown on list cards ("10 June").
	DateTimeSummary string `json:"date_time_summary,omitempty"`
	// ListDate is loose, human-authored date text, e.g. "9 Jul 2025",
	// "12 Jul 2025 up to 13 Jul 2025" or "Every Thursday".
	ListDate string `json:"list_date,omitempty"`
	// StartDateTime / EndDateTime are machine-parseable timestamps, either
	// RFC 3339 or naive ("2025-07-12T10:00:00").
	StartDateTime string `json:"start_datetime,omitempty"`
	EndDateTime   string `json:"end_datetime,omitempty"`
	// DateTimeRawDetail is the unparsed date line of the detail page.
	DateTimeRawDetail string `json:"datetime_str_raw_detail,omitempty"`

	ShortDescription string `json:"short_description,omitempty"`
	FullDescription  string `json:"full_description,omitempty"`

	ListSpecificLocation string   `json:"list_specific_location,omitempty"`
	SpecificLocationName string   `json:"specific_location_name,omitempty"`
	Address              string   `json:"address,omitempty"`
	Latitude             *float64 `json:"latitude,omitempty"`
	Longitude            *float64 `json:"longitude,omitempty"`

	ListPrice string `json:"list_price,omitempty"`
	Price     string `json:"price,omitempty"`

	// IsDetailed is set once detail-page fields have been filled in.
	IsDetailed bool `json:"is_detailed,omitempty"`
}

// EffectivePrice prefers the detail-page price over the list-card price.
func (e Event) EffectivePrice() string {
	if e.Price != "" {
		return e.Price
	}
	return e.ListPrice
}

// Description prefers the full description over the short one.
func (e Event) Description() string {
	if e.FullDescription != "" {
		return e.FullDescription
	}
	return e.ShortDescription
}

// HasCoordinates reports whether the event can be placed on a map.
func (e Event) HasCoordinates() bool {
	return e.Latitude != nil && e.Longitude != nil
}

// DateRange is an inclusive span of civil dates. Both ends are normalized to
// midnight UTC so that day arithmetic is free of DST effects.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Days returns the number of calendar days covered, counting both ends.
func (r DateRange) Days() int {
	return DaysBetween(r.Start, r.End) + 1
}

// DaysBetween counts whole days from a to b for midnight-UTC civil dates,
// for spans of any length.
func DaysBetween(a, b time.Time) int {
	return int((b.Unix() - a.Unix()) / 86400)
}

// Contains reports whether day (a midnight-UTC civil date) lies in the range.
func (r DateRange) Contains(day time.Time) bool {
	return !day.Before(r.Start) && !day.After(r.End)
}

// DayEntry places one event on one calendar day.
type DayEntry struct {
	Event Event `json:"event"`

	// IsContinuation is true on every day after the first day of the range.
	IsContinuation bool `json:"is_continuation"`

	// DayIndex is the 1-based position of the day within the range and
	// TotalDays the range length. Both are zero for single-day events.
	DayIndex  int `json:"day_index,omitempty"`
	TotalDays int `json:"total_days,omitempty"`

	// Recurring marks entries produced by expanding "Every <weekday>" text.
	Recurring bool `json:"recurring,omitempty"`
}

// CalendarDay is one cell of the calendar grid.
type CalendarDay struct {
	Date    time.Time  `json:"-"`
	Key     string     `json:"date"` // 2006-01-02
	Entries []DayEntry `json:"entries"`
}

// Week is seven consecutive days starting on Monday.
type Week struct {
	Start string        `json:"start"`
	Days  []CalendarDay `json:"days"`
}
