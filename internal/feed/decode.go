package feed

import (
	"encoding/json"
	"fmt"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"evcal/internal/ics"
	"evcal/internal/model"
)

// Decode turns a fetched body into events. ICS feeds are expanded within
// expand's window.
func Decode(res Result, expand ics.ExpandConfig) ([]model.Event, error) {
	body, err := toUTF8(res.Body)
	if err != nil {
		return nil, fmt.Errorf("feed %s: decode text: %w", res.Source.ID, err)
	}

	switch res.Source.Kind {
	case KindJSON, "":
		var events []model.Event
		if err := json.Unmarshal(body, &events); err != nil {
			return nil, fmt.Errorf("feed %s: decode json: %w", res.Source.ID, err)
		}
		for i := range events {
			events[i].SourceID = res.Source.ID
		}
		return events, nil

	case KindICS:
		parsed, err := ics.Parse(res.Source.ID, body)
		if err != nil {
			return nil, fmt.Errorf("feed %s: parse ics: %w", res.Source.ID, err)
		}
		out, err := ics.Expand(parsed, expand)
		if err != nil {
			return nil, fmt.Errorf("feed %s: expand ics: %w", res.Source.ID, err)
		}
		return out.Events, nil

	default:
		return nil, fmt.Errorf("feed %s: unknown kind %q", res.Source.ID, res.Source.Kind)
	}
}

// toUTF8 strips a byte order mark. Bodies with a UTF-16 BOM are converted;
// anything else is passed through as UTF-8.
func toUTF8(b []byte) ([]byte, error) {
	out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), b)
	return out, err
}
