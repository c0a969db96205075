package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crmcal.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != "127.0.0.1:8080" || cfg.SnapMinutes != 15 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("config perms %o, want 600", perm)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crmcal.yaml")

	cfg := DefaultConfig()
	cfg.WeekStart = "sunday"
	cfg.DayStartHour = 7
	cfg.DayEndHour = 21
	cfg.Feeds = []FeedConfig{{URL: "https://feeds.example.com/a.ics", ID: "a"}}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.WeekStart != "sunday" || got.DayStartHour != 7 || got.DayEndHour != 21 {
		t.Fatalf("round trip lost values: %+v", got)
	}
	if len(got.Feeds) != 1 || got.Feeds[0].ID != "a" {
		t.Fatalf("feeds lost: %+v", got.Feeds)
	}
}

func TestNormalizeClampsBadValues(t *testing.T) {
	cfg := &Config{
		WeekStart:    "someday",
		DayStartHour: -3,
		DayEndHour:   99,
		SnapMinutes:  0,
	}
	cfg.Normalize()

	if cfg.WeekStart != "monday" {
		t.Fatalf("week start %q", cfg.WeekStart)
	}
	if cfg.DayStartHour != 0 || cfg.DayEndHour != 24 {
		t.Fatalf("hours %d-%d", cfg.DayStartHour, cfg.DayEndHour)
	}
	if cfg.SnapMinutes != 15 {
		t.Fatalf("snap %d", cfg.SnapMinutes)
	}
}

func TestNormalizeRejectsInvertedHours(t *testing.T) {
	cfg := &Config{DayStartHour: 18, DayEndHour: 9}
	cfg.Normalize()
	if cfg.DayEndHour <= cfg.DayStartHour {
		t.Fatalf("hours still inverted: %d-%d", cfg.DayStartHour, cfg.DayEndHour)
	}
}
