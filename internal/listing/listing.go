package listing

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"evcal/internal/calendar"
	"evcal/internal/model"
)

// SortOrder selects how Apply orders events.
type SortOrder string

const (
	SortDateAsc   SortOrder = "date-asc"
	SortDateDesc  SortOrder = "date-desc"
	SortPriceAsc  SortOrder = "price-asc"
	SortPriceDesc SortOrder = "price-desc"
)

// ParseSortOrder validates a user supplied sort key. Empty means date-asc.
func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(s) {
	case "":
		return SortDateAsc, nil
	case SortDateAsc, SortDateDesc, SortPriceAsc, SortPriceDesc:
		return SortOrder(s), nil
	default:
		return "", fmt.Errorf("listing: unknown sort order %q", s)
	}
}

// Options for Apply. Nil bounds are not applied.
type Options struct {
	FreeOnly bool
	MinPrice *float64
	MaxPrice *float64
	Sort     SortOrder
}

var leadingNumberRe = regexp.MustCompile(`^[-+]?\d+(\.\d+)?`)

// ParsePrice reads the leading amount from price text such as "€ 12,50" or
// "€ 7,50 - € 15,00". Free wording counts as zero. Text without a leading
// number is unknown.
func ParsePrice(s string) (float64, bool) {
	lower := strings.ToLower(s)
	if strings.Contains(lower, "free") || strings.Contains(lower, "gratis") {
		return 0, true
	}
	s = strings.ReplaceAll(s, "€", "")
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.TrimSpace(s)

	m := leadingNumberRe.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// IsFree reports whether the event's price text says it costs nothing.
func IsFree(ev model.Event) bool {
	p := ev.EffectivePrice()
	if p == "" {
		return false
	}
	return strings.Contains(strings.ToLower(p), "free") || strings.TrimSpace(p) == "€ 0,00"
}

// priceOf returns the amount used for range filtering and sorting. A missing
// price counts as zero.
func priceOf(ev model.Event) (float64, bool) {
	p := ev.EffectivePrice()
	if strings.TrimSpace(p) == "" {
		return 0, true
	}
	return ParsePrice(p)
}

// PriceBounds returns the lowest and highest known price across events.
// ok is false when no event carries a known price.
func PriceBounds(events []model.Event) (lo, hi float64, ok bool) {
	for _, ev := range events {
		v, known := priceOf(ev)
		if !known {
			continue
		}
		if !ok || v < lo {
			lo = v
		}
		if !ok || v > hi {
			hi = v
		}
		ok = true
	}
	return lo, hi, ok
}

type keyed struct {
	ev       model.Event
	price    float64
	hasPrice bool
	when     time.Time
	hasWhen  bool
}

// Apply filters and sorts a copy of events; the input is left untouched.
// Events lacking a sort key go last in both directions and keep their
// relative input order.
func Apply(events []model.Event, opts Options, loc *time.Location) []model.Event {
	if opts.Sort == "" {
		opts.Sort = SortDateAsc
	}

	rows := make([]keyed, 0, len(events))
	for _, ev := range events {
		if opts.FreeOnly && !IsFree(ev) {
			continue
		}
		price, hasPrice := priceOf(ev)
		if opts.MinPrice != nil || opts.MaxPrice != nil {
			if !hasPrice {
				continue
			}
			if opts.MinPrice != nil && price < *opts.MinPrice {
				continue
			}
			if opts.MaxPrice != nil && price > *opts.MaxPrice {
				continue
			}
		}
		when, hasWhen := sortDate(ev, loc)
		rows = append(rows, keyed{ev: ev, price: price, hasPrice: hasPrice, when: when, hasWhen: hasWhen})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch opts.Sort {
		case SortDateAsc, SortDateDesc:
			if a.hasWhen != b.hasWhen {
				return a.hasWhen
			}
			if !a.hasWhen {
				return false
			}
			if opts.Sort == SortDateDesc {
				return a.when.After(b.when)
			}
			return a.when.Before(b.when)
		case SortPriceAsc, SortPriceDesc:
			if a.hasPrice != b.hasPrice {
				return a.hasPrice
			}
			if !a.hasPrice {
				return false
			}
			if opts.Sort == SortPriceDesc {
				return a.price > b.price
			}
			return a.price < b.price
		}
		return false
	})

	out := make([]model.Event, len(rows))
	for i, r := range rows {
		out[i] = r.ev
	}
	return out
}

// sortDate prefers the precise start, falling back to the first day of the
// loose list date.
func sortDate(ev model.Event, loc *time.Location) (time.Time, bool) {
	if t, ok := calendar.ParseTimestamp(ev.StartDateTime, loc); ok {
		return t, true
	}
	rng, ok := calendar.ResolveText(ev.ListDate)
	if !ok {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	return time.Date(rng.Start.Year(), rng.Start.Month(), rng.Start.Day(), 0, 0, 0, 0, loc), true
}
