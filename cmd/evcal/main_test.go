package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"evcal/internal/calendar"
	"evcal/internal/config"
	"evcal/internal/model"
)

func TestPrintWeeks(t *testing.T) {
	days := calendar.BuildGrid([]model.Event{
		{ID: "fair", Title: "Summer Fair", ListDate: "12 Jul 2025 up to 13 Jul 2025"},
		{ID: "jazz", Title: "Jazz", ListDate: "9 Jul 2025"},
	}, calendar.Options{Location: time.UTC})

	var buf bytes.Buffer
	if err := printWeeks(&buf, calendar.GroupWeeks(days)); err != nil {
		t.Fatalf("printWeeks: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Week of 2025-07-07",
		"  Wed 2025-07-09\n    Jazz\n",
		"  Sat 2025-07-12\n    Summer Fair (day 1/2)\n",
		"  Sun 2025-07-13\n    Summer Fair (day 2/2)\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintWeeksEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := printWeeks(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "no events\n" {
		t.Errorf("got %q", buf.String())
	}
}

// failAfter accepts n writes, then fails every write.
type failAfter struct {
	n int
}

var errWriteFailed = errors.New("write failed")

func (f *failAfter) Write(p []byte) (int, error) {
	if f.n <= 0 {
		return 0, errWriteFailed
	}
	f.n--
	return len(p), nil
}

func TestPrintWeeksReportsWriteErrors(t *testing.T) {
	days := calendar.BuildGrid([]model.Event{
		{ID: "fair", Title: "Summer Fair", ListDate: "12 Jul 2025 up to 13 Jul 2025"},
	}, calendar.Options{Location: time.UTC})
	weeks := calendar.GroupWeeks(days)

	// Week header, day header, entry, day header, entry.
	for n := 0; n < 5; n++ {
		if err := printWeeks(&failAfter{n: n}, weeks); !errors.Is(err, errWriteFailed) {
			t.Errorf("fail after %d writes: err = %v, want errWriteFailed", n, err)
		}
	}
	if err := printWeeks(&failAfter{n: 5}, weeks); err != nil {
		t.Errorf("all writes succeed: err = %v", err)
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name      string
		flags     flagConfig
		wantCache string
		wantAddr  string
	}{
		{"no overrides", flagConfig{}, "/srv/evcal", "127.0.0.1:8080"},
		{"debug keeps config paths", flagConfig{debug: true}, "/srv/evcal", "127.0.0.1:8080"},
		{"cache dir", flagConfig{cacheDir: "./cache"}, "./cache", "127.0.0.1:8080"},
		{"listen", flagConfig{listen: ":9000"}, "/srv/evcal", ":9000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := config.DefaultConfig()
			conf.CacheDir = "/srv/evcal"
			conf.Listen = "127.0.0.1:8080"
			applyFlags(conf, tt.flags)
			if conf.CacheDir != tt.wantCache || conf.Listen != tt.wantAddr {
				t.Errorf("got cache_dir=%q listen=%q", conf.CacheDir, conf.Listen)
			}
		})
	}
}
