package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"evcal/internal/calendar"
	"evcal/internal/catalog"
	"evcal/internal/config"
	"evcal/internal/feed"
	appLog "evcal/internal/log"
	"evcal/internal/model"
	"evcal/internal/web"
)

const version = "0.1.0"

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	cacheDir   string
	once       bool
	debug      bool
}

func main() {
	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	appLog.Info("evcal starting", "version", version)

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	applyFlags(conf, flags)
	if !flags.debug {
		appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"cache_dir", conf.CacheDir,
		"trailing_days", conf.TrailingDays,
		"expand_recurring", conf.ExpandRecurring,
		"source_count", len(conf.Sources),
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	cat := newCatalog(conf)

	if flags.once {
		if err := runOnce(ctx, conf, cat, os.Stdout); err != nil {
			appLog.Error("single run failed", err)
			os.Exit(1)
		}
		return
	}

	if used, err := cat.LoadSnapshot(); err != nil {
		appLog.Error("snapshot load failed", err)
	} else if !used {
		if _, err := cat.Refresh(ctx); err != nil {
			appLog.Error("initial refresh failed", err)
		}
	}

	srv := web.NewServer(conf, cat)

	sched, err := startScheduler(ctx, conf, srv)
	if err != nil {
		appLog.Error("failed to start scheduler", err, "spec", conf.RefreshCron)
		os.Exit(1)
	}

	httpSrv := &http.Server{
		Addr:              conf.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen, "debug", flags.debug)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			appLog.Error("HTTP server failed", err)
		}
		cancel()
	}

	stopCtx := sched.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("HTTP shutdown failed", err)
	}
	select {
	case <-stopCtx.Done():
	case <-shutdownCtx.Done():
		appLog.Warn("refresh job still running at exit")
	}

	appLog.Info("evcal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/evcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Refresh once, print the calendar and exit")
	flag.StringVar(&cfg.cacheDir, "cache-dir", "", "Cache directory (overrides config if set)")
	flag.BoolVar(&cfg.debug, "debug", false, "Debug logging")

	flag.Parse()

	return cfg
}

// applyFlags lets non-empty CLI values override the config file.
func applyFlags(conf *config.Config, flags flagConfig) {
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.cacheDir != "" {
		conf.CacheDir = flags.cacheDir
	}
}

func newCatalog(conf *config.Config) *catalog.Catalog {
	sources := make([]feed.Source, 0, len(conf.Sources))
	for _, s := range conf.Sources {
		sources = append(sources, feed.Source{ID: s.ID, URL: s.URL, Kind: feed.Kind(s.Kind)})
	}

	fetcher := feed.NewFetcher(feed.Options{
		CacheDir:          filepath.Join(conf.CacheDir, "feeds"),
		RequestsPerMinute: conf.FetchPerMinute,
		UserAgent:         conf.UserAgent,
	})

	return catalog.New(catalog.Options{
		Sources:      sources,
		Fetcher:      fetcher,
		SnapshotPath: filepath.Join(conf.CacheDir, catalog.SnapshotFile),
		SnapshotTTL:  conf.SnapshotTTL(),
		Location:     conf.Location(),
		HorizonDays:  conf.HorizonDays,
		BackfillDays: conf.BackfillDays,
	})
}

// startScheduler runs the refresh job on the configured cron spec in the
// display timezone. Overlapping runs are skipped.
func startScheduler(ctx context.Context, conf *config.Config, srv *web.Server) (*cron.Cron, error) {
	c := cron.New(
		cron.WithLocation(conf.Location()),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	_, err := c.AddFunc(conf.RefreshCron, func() {
		appLog.Debug("scheduled refresh start")
		if _, err := srv.Refresh(ctx); err != nil {
			appLog.Error("scheduled refresh failed", err)
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	appLog.Info("scheduler started", "spec", conf.RefreshCron, "timezone", conf.Location().String())
	return c, nil
}

// runOnce refreshes the catalog and writes the calendar as plain text.
func runOnce(ctx context.Context, conf *config.Config, cat *catalog.Catalog, w io.Writer) error {
	if _, err := cat.Refresh(ctx); err != nil {
		return err
	}
	days := calendar.BuildGrid(cat.Events(), calendar.Options{
		Location:        conf.Location(),
		TrailingDays:    conf.TrailingDays,
		ExpandRecurring: conf.ExpandRecurring,
	})
	return printWeeks(w, calendar.GroupWeeks(days))
}

func printWeeks(w io.Writer, weeks []model.Week) error {
	if len(weeks) == 0 {
		_, err := fmt.Fprintln(w, "no events")
		return err
	}
	for _, wk := range weeks {
		if _, err := fmt.Fprintf(w, "Week of %s\n", wk.Start); err != nil {
			return err
		}
		for _, day := range wk.Days {
			if len(day.Entries) == 0 {
				continue
			}
			if _, err := fmt.Fprintf(w, "  %s %s\n", day.Date.Format("Mon"), day.Key); err != nil {
				return err
			}
			for _, e := range day.Entries {
				if _, err := fmt.Fprintf(w, "    %s%s\n", e.Event.Title, entrySuffix(e)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func entrySuffix(e model.DayEntry) string {
	switch {
	case e.Recurring:
		return " (weekly)"
	case e.TotalDays > 1:
		return fmt.Sprintf(" (day %d/%d)", e.DayIndex, e.TotalDays)
	default:
		return ""
	}
}
