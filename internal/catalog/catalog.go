package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"evcal/internal/feed"
	"evcal/internal/ics"
	appLog "evcal/internal/log"
	"evcal/internal/model"
)

// ErrNotFound is returned by Get for unknown IDs.
var ErrNotFound = errors.New("catalog: event not found")

// Fetcher is the subset of feed.Fetcher the catalog needs.
type Fetcher interface {
	FetchAll(ctx context.Context, sources []feed.Source) ([]feed.Result, []error)
}

// Options configures a Catalog.
type Options struct {
	Sources []feed.Source
	Fetcher Fetcher

	// SnapshotPath is where the last good list is persisted. Empty disables
	// snapshots.
	SnapshotPath string
	SnapshotTTL  time.Duration

	// Location, HorizonDays and BackfillDays bound ICS expansion.
	Location     *time.Location
	HorizonDays  int
	BackfillDays int

	// Now is used for expansion windows and snapshot age. Nil means time.Now.
	Now func() time.Time
}

// Stats summarises one refresh.
type Stats struct {
	Events  int `json:"events"`
	Sources int `json:"sources"`
	Failed  int `json:"failed"`
}

// Catalog holds the merged event list of all sources.
type Catalog struct {
	opts Options

	refreshMu sync.Mutex

	mu        sync.RWMutex
	events    []model.Event
	byID      map[string]int
	updatedAt time.Time
}

// New creates an empty catalog.
func New(opts Options) *Catalog {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.SnapshotTTL <= 0 {
		opts.SnapshotTTL = time.Hour
	}
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = 90
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Catalog{opts: opts, byID: map[string]int{}}
}

// Events returns a copy of the current list in merge order.
func (c *Catalog) Events() []model.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Event, len(c.events))
	copy(out, c.events)
	return out
}

// Get looks up a single event by ID.
func (c *Catalog) Get(id string) (model.Event, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byID[id]
	if !ok {
		return model.Event{}, ErrNotFound
	}
	return c.events[i], nil
}

// UpdatedAt is the time the current list was produced. Zero before the
// first successful refresh or snapshot load.
func (c *Catalog) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}

// Refresh fetches and decodes every source and replaces the list. Failing
// sources are skipped; if no source succeeds the previous list is kept and
// an error is returned.
func (c *Catalog) Refresh(ctx context.Context) (Stats, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	stats := Stats{Sources: len(c.opts.Sources)}
	if c.opts.Fetcher == nil {
		return stats, errors.New("catalog: no fetcher configured")
	}

	now := c.opts.Now()
	expand := ics.ExpandConfig{
		DisplayLocation: c.opts.Location,
		RangeStart:      now.AddDate(0, 0, -c.opts.BackfillDays),
		RangeEnd:        now.AddDate(0, 0, c.opts.HorizonDays),
	}

	results, errs := c.opts.Fetcher.FetchAll(ctx, c.opts.Sources)
	stats.Failed = len(errs)

	var batches [][]model.Event
	for _, res := range results {
		events, err := feed.Decode(res, expand)
		if err != nil {
			appLog.Error("catalog decode failed", err, "id", res.Source.ID)
			errs = append(errs, err)
			stats.Failed++
			continue
		}
		batches = append(batches, events)
	}

	if len(batches) == 0 && len(errs) > 0 {
		return stats, fmt.Errorf("catalog: all %d sources failed: %w", len(c.opts.Sources), errors.Join(errs...))
	}

	merged := merge(batches)
	stats.Events = len(merged)
	c.replace(merged, now)

	if c.opts.SnapshotPath != "" {
		if err := saveSnapshot(c.opts.SnapshotPath, merged, now); err != nil {
			appLog.Error("catalog snapshot save failed", err, "path", c.opts.SnapshotPath)
		}
	}

	appLog.Info("catalog refreshed", "events", stats.Events, "sources", stats.Sources, "failed", stats.Failed)
	return stats, nil
}

// LoadSnapshot installs the on-disk snapshot if it is younger than the TTL.
// It reports whether a snapshot was used. A corrupt snapshot is removed.
func (c *Catalog) LoadSnapshot() (bool, error) {
	if c.opts.SnapshotPath == "" {
		return false, nil
	}
	snap, err := loadSnapshot(c.opts.SnapshotPath)
	if err != nil {
		return false, err
	}
	if snap == nil {
		return false, nil
	}
	age := c.opts.Now().Sub(snap.Timestamp)
	if age > c.opts.SnapshotTTL {
		appLog.Info("catalog snapshot expired", "age", age.Round(time.Second).String())
		return false, nil
	}

	c.replace(merge([][]model.Event{snap.Data}), snap.Timestamp)
	appLog.Info("catalog loaded snapshot", "events", len(snap.Data), "age", age.Round(time.Second).String())
	return true, nil
}

func (c *Catalog) replace(events []model.Event, at time.Time) {
	byID := make(map[string]int, len(events))
	for i, ev := range events {
		byID[ev.ID] = i
	}

	c.mu.Lock()
	c.events = events
	c.byID = byID
	c.updatedAt = at
	c.mu.Unlock()
}

// merge concatenates batches in order, assigns IDs to events without one and
// drops duplicate IDs. Of two records with the same ID the detailed one wins
// and takes the position of the first.
func merge(batches [][]model.Event) []model.Event {
	var out []model.Event
	seen := make(map[string]int)

	for _, batch := range batches {
		for _, ev := range batch {
			if ev.ID == "" {
				ev.ID = syntheticID(ev)
			}
			if i, dup := seen[ev.ID]; dup {
				if ev.IsDetailed && !out[i].IsDetailed {
					out[i] = ev
				}
				continue
			}
			seen[ev.ID] = len(out)
			out = append(out, ev)
		}
	}
	if out == nil {
		out = []model.Event{}
	}
	return out
}

// syntheticID derives a stable UUID from the fields that identify a listing,
// so the same event keeps its ID across refreshes.
func syntheticID(ev model.Event) string {
	key := strings.Join([]string{ev.SourceID, ev.Title, ev.ListDate, ev.StartDateTime, ev.FullURL}, "\x1f")
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}
