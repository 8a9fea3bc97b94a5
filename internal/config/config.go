package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// SourceConfig describes one backend feed.
type SourceConfig struct {
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	// URL is the feed endpoint.
	URL string `yaml:"url" json:"url"`
	// Kind is "json" (event list as produced by the scraper backend) or
	// "ics" (iCalendar feed).
	Kind string `yaml:"kind" json:"kind"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone events are displayed in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// RefreshCron is a cron spec (e.g. "0 * * * *") for feed refreshes.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// CacheDir holds per-feed HTTP caches and the catalog snapshot.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// SnapshotTTLMinutes is how long a catalog snapshot on disk is trusted
	// at startup.
	SnapshotTTLMinutes int `yaml:"snapshot_ttl_minutes" json:"snapshot_ttl_minutes"`

	// FetchPerMinute paces requests to the backends.
	FetchPerMinute int `yaml:"fetch_per_minute" json:"fetch_per_minute"`

	// UserAgent is sent with feed requests.
	UserAgent string `yaml:"user_agent" json:"user_agent"`

	// HorizonDays bounds ICS recurrence expansion into the future;
	// BackfillDays into the past.
	HorizonDays  int `yaml:"horizon_days" json:"horizon_days"`
	BackfillDays int `yaml:"backfill_days" json:"backfill_days"`

	// TrailingDays extends the calendar grid past the last event.
	TrailingDays int `yaml:"trailing_days" json:"trailing_days"`

	// ExpandRecurring places "Every <weekday>" listings on the calendar.
	ExpandRecurring bool `yaml:"expand_recurring" json:"expand_recurring"`

	// ICSProductID and DefaultLocation are used for .ics exports.
	ICSProductID    string `yaml:"ics_product_id" json:"ics_product_id"`
	DefaultLocation string `yaml:"default_location" json:"default_location"`

	// Sources lists the backend feeds.
	Sources []SourceConfig `yaml:"sources" json:"sources"`

	// BasicAuth, if set, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen          = "127.0.0.1:8080"
	defaultTimezone        = "Europe/Amsterdam"
	defaultRefreshCron     = "0 * * * *"
	defaultCacheDir        = "/var/lib/evcal"
	defaultSnapshotTTL     = 60
	defaultFetchPerMinute  = 30
	defaultUserAgent       = "EindhovenEventViewer/0.1"
	defaultHorizonDays     = 90
	defaultBackfillDays    = 1
	defaultTrailingDays    = 7
	defaultICSProductID    = "-//Eindhoven Event App//EN"
	defaultDefaultLocation = "Eindhoven"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Normalize()
	return cfg
}

// Normalize fills in missing/zero values so partially filled or older
// config files still behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.SnapshotTTLMinutes <= 0 {
		c.SnapshotTTLMinutes = defaultSnapshotTTL
	}
	if c.FetchPerMinute <= 0 {
		c.FetchPerMinute = defaultFetchPerMinute
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = defaultHorizonDays
	}
	if c.BackfillDays < 0 {
		c.BackfillDays = 0
	}
	if c.BackfillDays == 0 {
		c.BackfillDays = defaultBackfillDays
	}
	if c.TrailingDays <= 0 {
		c.TrailingDays = defaultTrailingDays
	}
	if c.ICSProductID == "" {
		c.ICSProductID = defaultICSProductID
	}
	if c.DefaultLocation == "" {
		c.DefaultLocation = defaultDefaultLocation
	}
	if c.Sources == nil {
		c.Sources = []SourceConfig{}
	}
	for i := range c.Sources {
		s := &c.Sources[i]
		if s.Kind == "" {
			s.Kind = "json"
		}
		if s.ID == "" {
			if s.Name != "" {
				s.ID = s.Name
			} else {
				s.ID = s.URL
			}
		}
	}
}

// Validate reports settings that Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	seen := make(map[string]bool)
	for _, s := range c.Sources {
		if s.URL == "" {
			return fmt.Errorf("config: source %q has no url", s.ID)
		}
		if s.Kind != "json" && s.Kind != "ics" {
			return fmt.Errorf("config: source %q has unknown kind %q", s.ID, s.Kind)
		}
		if seen[s.ID] {
			return fmt.Errorf("config: duplicate source id %q", s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// SnapshotTTL is SnapshotTTLMinutes as a duration.
func (c *Config) SnapshotTTL() time.Duration {
	return time.Duration(c.SnapshotTTLMinutes) * time.Minute
}

// Load reads configuration from a YAML file. On first run, when the file
// does not exist, a default config is written with 0600 perms and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Return cfg with the error so the caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg atomically (temp file + rename) with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".evcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
