package web

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"evcal/internal/calendar"
	"evcal/internal/catalog"
	"evcal/internal/config"
	"evcal/internal/ics"
	"evcal/internal/listing"
	appLog "evcal/internal/log"
	"evcal/internal/model"
)

const (
	responseCacheSize = 256
	responseCacheTTL  = 30 * time.Second
)

// Catalog is what the API reads from. *catalog.Catalog satisfies it.
type Catalog interface {
	Events() []model.Event
	Get(id string) (model.Event, error)
	UpdatedAt() time.Time
	Refresh(ctx context.Context) (catalog.Stats, error)
}

// Server provides the JSON API over the event catalog.
type Server struct {
	cfg     *config.Config
	catalog Catalog
	loc     *time.Location
	mux     *http.ServeMux

	// Encoded list/calendar responses keyed by catalog version, path and
	// query. Purged on every successful refresh.
	cache *expirable.LRU[string, []byte]

	// now is swapped in tests.
	now func() time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, cat Catalog) *Server {
	s := &Server{
		cfg:     cfg,
		catalog: cat,
		loc:     cfg.Location(),
		mux:     http.NewServeMux(),
		cache:   expirable.NewLRU[string, []byte](responseCacheSize, nil, responseCacheTTL),
		now:     time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Refresh refreshes the catalog and drops cached responses. Both the cron
// job and POST /api/refresh go through here.
func (s *Server) Refresh(ctx context.Context) (catalog.Stats, error) {
	stats, err := s.catalog.Refresh(ctx)
	if err != nil {
		return stats, err
	}
	s.cache.Purge()
	return stats, nil
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials mean disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="evcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/events/{id}", s.handleEvent)
	s.mux.HandleFunc("GET /api/events/{id}/ics", s.handleEventICS)
	s.mux.HandleFunc("GET /api/calendar", s.handleCalendar)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// eventItem is an event plus its label relative to today.
type eventItem struct {
	model.Event
	RelativeDay string `json:"relative_day,omitempty"`
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Events []eventItem `json:"events"`
	Count  int         `json:"count"`
	// PriceMin / PriceMax span the whole catalog, for range sliders.
	PriceMin        *float64  `json:"price_min"`
	PriceMax        *float64  `json:"price_max"`
	UpdatedAt       time.Time `json:"updated_at"`
	DisplayTimeZone string    `json:"display_timezone"`
}

// handleEvents returns the filtered and sorted list.
//
// GET /api/events?free=1&min_price=5&max_price=20&sort=price-asc
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := listing.Options{FreeOnly: parseBool(q.Get("free"))}
	var err error
	if opts.MinPrice, err = parseFloatParam(q.Get("min_price")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid min_price")
		return
	}
	if opts.MaxPrice, err = parseFloatParam(q.Get("max_price")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid max_price")
		return
	}
	if opts.Sort, err = listing.ParseSortOrder(q.Get("sort")); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Relative labels change at midnight, so the day is part of the key.
	key := "events|" + s.now().In(s.loc).Format("2006-01-02") + "|" + r.URL.RawQuery
	s.serveCached(w, key, func() (any, error) {
		all := s.catalog.Events()
		now := s.now()

		resp := eventsResponse{
			UpdatedAt:       s.catalog.UpdatedAt(),
			DisplayTimeZone: s.loc.String(),
		}
		if lo, hi, ok := listing.PriceBounds(all); ok {
			resp.PriceMin, resp.PriceMax = &lo, &hi
		}

		filtered := listing.Apply(all, opts, s.loc)
		resp.Events = make([]eventItem, 0, len(filtered))
		for _, ev := range filtered {
			resp.Events = append(resp.Events, eventItem{
				Event:       ev,
				RelativeDay: listing.RelativeDay(ev, now, s.loc),
			})
		}
		resp.Count = len(resp.Events)
		return resp, nil
	})
}

// handleEvent returns a single event.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	ev, ok := s.lookup(w, r.PathValue("id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// handleEventICS serves a single event as an .ics attachment.
func (s *Server) handleEventICS(w http.ResponseWriter, r *http.Request) {
	ev, ok := s.lookup(w, r.PathValue("id"))
	if !ok {
		return
	}

	body, err := ics.Export(ev, ics.ExportOptions{
		ProductID:       s.cfg.ICSProductID,
		DefaultLocation: s.cfg.DefaultLocation,
		Location:        s.loc,
		Now:             s.now(),
	})
	if errors.Is(err, ics.ErrNoStartTime) {
		writeError(w, http.StatusUnprocessableEntity, "event has no start time")
		return
	}
	if err != nil {
		appLog.Error("ics export failed", err, "id", ev.ID)
		writeError(w, http.StatusInternalServerError, "failed to export event")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ics.SuggestFilename(ev.Title)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// calendarResponse is the JSON response shape for /api/calendar.
type calendarResponse struct {
	Weeks           []model.Week `json:"weeks"`
	UpdatedAt       time.Time    `json:"updated_at"`
	DisplayTimeZone string       `json:"display_timezone"`
}

// handleCalendar returns the catalog bucketed into Monday weeks.
//
// GET /api/calendar?expand_recurring=1
//   - expand_recurring: overrides the configured default when present.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	expand := s.cfg.ExpandRecurring
	if v := r.URL.Query().Get("expand_recurring"); v != "" {
		expand = parseBool(v)
	}

	key := "calendar|" + strconv.FormatBool(expand)
	s.serveCached(w, key, func() (any, error) {
		days := calendar.BuildGrid(s.catalog.Events(), calendar.Options{
			Location:        s.loc,
			TrailingDays:    s.cfg.TrailingDays,
			ExpandRecurring: expand,
		})
		weeks := calendar.GroupWeeks(days)
		if weeks == nil {
			weeks = []model.Week{}
		}
		return calendarResponse{
			Weeks:           weeks,
			UpdatedAt:       s.catalog.UpdatedAt(),
			DisplayTimeZone: s.loc.String(),
		}, nil
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Refresh(r.Context())
	if err != nil {
		appLog.Error("api refresh failed", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) lookup(w http.ResponseWriter, id string) (model.Event, bool) {
	ev, err := s.catalog.Get(id)
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "event not found")
		return model.Event{}, false
	}
	if err != nil {
		appLog.Error("catalog lookup failed", err, "id", id)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return model.Event{}, false
	}
	return ev, true
}

// serveCached writes the cached body for key, or builds, encodes and caches
// it. Keys are scoped to the catalog's UpdatedAt, so a body built from an
// older list never answers for a newer one.
func (s *Server) serveCached(w http.ResponseWriter, key string, build func() (any, error)) {
	key = strconv.FormatInt(s.catalog.UpdatedAt().UnixNano(), 10) + "|" + key
	if body, ok := s.cache.Get(key); ok {
		writeRawJSON(w, http.StatusOK, body)
		return
	}

	v, err := build()
	if err != nil {
		appLog.Error("api response build failed", err, "key", key)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		appLog.Error("failed to encode JSON response", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	body := buf.Bytes()
	s.cache.Add(key, body)
	writeRawJSON(w, http.StatusOK, body)
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return s == "yes" || s == "on"
	}
	return b
}

func parseFloatParam(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func writeRawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
