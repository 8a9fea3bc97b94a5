package feed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	appLog "evcal/internal/log"
)

// Kind tells Decode how to read a source body.
type Kind string

const (
	KindJSON Kind = "json"
	KindICS  Kind = "ics"
)

// Source is one backend feed.
type Source struct {
	ID   string
	URL  string
	Kind Kind
}

// Result is the body fetched for one source.
type Result struct {
	Source    Source
	Body      []byte
	FromCache bool // served from disk after a 304 or a failed request
}

// cacheMeta is the HTTP validator state stored next to a cached body.
type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Options configures a Fetcher.
type Options struct {
	CacheDir string
	Timeout  time.Duration
	// RequestsPerMinute paces outgoing requests across all sources.
	// Zero disables pacing.
	RequestsPerMinute int
	UserAgent         string
}

// Fetcher downloads feeds with conditional requests and keeps the last good
// body on disk so a flaky backend does not empty the catalog.
type Fetcher struct {
	client    *http.Client
	cacheDir  string
	limiter   *rate.Limiter
	userAgent string
}

// NewFetcher creates a Fetcher. An empty CacheDir falls back to a relative
// directory so development runs work without root.
func NewFetcher(opts Options) *Fetcher {
	if opts.CacheDir == "" {
		opts.CacheDir = "./var/feed-cache"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerMinute > 0 {
		burst := opts.RequestsPerMinute / 10
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMinute)/60.0), burst)
	}
	return &Fetcher{
		client:    &http.Client{Timeout: opts.Timeout},
		cacheDir:  opts.CacheDir,
		limiter:   limiter,
		userAgent: opts.UserAgent,
	}
}

// FetchAll fetches sources in order. Failed sources are logged and reported
// in the error slice; the results only hold sources that produced a body.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) ([]Result, []error) {
	results := make([]Result, 0, len(sources))
	var errs []error

	for _, src := range sources {
		res, err := f.FetchOne(ctx, src)
		if err != nil {
			errs = append(errs, fmt.Errorf("feed %s: %w", src.ID, err))
			appLog.Error("feed fetch failed", err, "id", src.ID, "url", redactURL(src.URL))
			continue
		}
		results = append(results, res)
	}
	return results, errs
}

// FetchOne fetches a single source honoring ETag and Last-Modified.
func (f *Fetcher) FetchOne(ctx context.Context, src Source) (Result, error) {
	if src.URL == "" {
		return Result{}, errors.New("source URL is empty")
	}

	cachePath := f.cachePathForURL(src.URL)
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return Result{}, err
	}

	meta, _ := loadMeta(cachePath)
	cachedBody, _ := os.ReadFile(filepath.Join(cachePath, "body"))
	fallback := func(reason error) (Result, error) {
		if len(cachedBody) == 0 {
			return Result{}, reason
		}
		appLog.Warn("feed using cached body", "id", src.ID, "url", redactURL(src.URL), "reason", reason.Error())
		return Result{Source: src, Body: cachedBody, FromCache: true}, nil
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return Result{}, err
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	if len(cachedBody) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Debug("feed fetch start", "id", src.ID, "url", redactURL(src.URL))

	resp, err := f.client.Do(req)
	if err != nil {
		return fallback(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fallback(err)
		}
		newMeta := cacheMeta{
			URL:          src.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := saveCache(cachePath, newMeta, body); err != nil {
			appLog.Error("feed cache save failed", err, "id", src.ID)
		}
		appLog.Info("feed fetch success", "id", src.ID, "url", redactURL(src.URL), "bytes", len(body))
		return Result{Source: src, Body: body}, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return Result{}, errors.New("304 Not Modified without a cached body")
		}
		appLog.Info("feed not modified", "id", src.ID, "url", redactURL(src.URL))
		return Result{Source: src, Body: cachedBody, FromCache: true}, nil

	default:
		return fallback(errors.New(resp.Status))
	}
}

func (f *Fetcher) cachePathForURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadMeta(cachePath string) (cacheMeta, error) {
	var meta cacheMeta
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheMeta{}, err
	}
	return meta, nil
}

func saveCache(cachePath string, meta cacheMeta, body []byte) error {
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body"), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL keeps scheme and host only; feed URLs often carry tokens.
func redactURL(u string) string {
	i := strings.Index(u, "://")
	if i == -1 {
		return "feed://...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j != -1 {
		rest = rest[:j]
	}
	if j := strings.IndexByte(rest, '?'); j != -1 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + "/...(redacted)"
}
