package ics

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	ical "github.com/arran4/golang-ical"

	"evcal/internal/calendar"
	"evcal/internal/model"
)

// ErrNoStartTime is returned when an event only has loose date text; a
// calendar entry needs a precise start.
var ErrNoStartTime = errors.New("ics: precise start time not available")

const maxFilenameStem = 50

var unsafeFilenameRe = regexp.MustCompile(`[^A-Za-z0-9]`)

// ExportOptions configures Export.
type ExportOptions struct {
	ProductID string
	// DefaultLocation fills LOCATION when the event has no address.
	DefaultLocation string
	// Location interprets naive timestamps. Nil means time.Local.
	Location *time.Location
	// Now stamps DTSTAMP. Zero means time.Now().
	Now time.Time
}

// Export renders a single event as an iCalendar document.
func Export(ev model.Event, opts ExportOptions) ([]byte, error) {
	start, ok := calendar.ParseTimestamp(ev.StartDateTime, opts.Location)
	if !ok {
		return nil, ErrNoStartTime
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	if opts.ProductID != "" {
		cal.SetProductId(opts.ProductID)
	}

	uid := ev.ID
	if uid == "" {
		uid = fmt.Sprintf("%s@evcal", start.UTC().Format("20060102T150405Z"))
	}

	ve := cal.AddEvent(uid)
	ve.SetDtStampTime(now)
	ve.SetStartAt(start)
	if end, ok := calendar.ParseTimestamp(ev.EndDateTime, opts.Location); ok && end.After(start) {
		ve.SetEndAt(end)
	}
	ve.SetSummary(ev.Title)

	place := ev.Address
	if place == "" {
		place = opts.DefaultLocation
	}
	price := ev.EffectivePrice()
	if price == "" {
		price = "N/A"
	}
	desc := ev.Description()
	if desc == "" {
		desc = "N/A"
	}
	ve.SetDescription(fmt.Sprintf("Details about %s\nLocation: %s\nPrice: %s", desc, place, price))
	if place != "" {
		ve.SetLocation(place)
	}
	if ev.FullURL != "" {
		ve.SetURL(ev.FullURL)
	}

	return []byte(cal.Serialize()), nil
}

// SuggestFilename derives a safe .ics file name from an event title.
func SuggestFilename(title string) string {
	stem := unsafeFilenameRe.ReplaceAllString(title, "_")
	if len(stem) > maxFilenameStem {
		stem = stem[:maxFilenameStem]
	}
	if stem == "" {
		stem = "event"
	}
	return stem + ".ics"
}
