// Package sched runs the background jobs: periodic ICS feed refresh
// and the calendar PNG snapshot.
package sched

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"crmcal/internal/capture"
	"crmcal/internal/config"
	appLog "crmcal/internal/log"
)

// FeedRefresher is satisfied by the web server.
type FeedRefresher interface {
	RefreshFeeds(ctx context.Context) error
}

// Scheduler drives the cron jobs. One job re-fetches all subscribed
// feeds on cfg.RefreshCron; an optional nightly job refreshes the
// preview snapshot.
type Scheduler struct {
	cron *cron.Cron
	cfg  *config.Config
	ref  FeedRefresher

	// snapshot toggles the nightly preview capture; off in headless
	// test environments without Chromium.
	snapshot bool
}

// New builds a scheduler in the configured display timezone.
func New(cfg *config.Config, ref FeedRefresher, snapshot bool) *Scheduler {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil || cfg.Timezone == "" || cfg.Timezone == "Local" {
		loc = time.Local
	}
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		cfg:      cfg,
		ref:      ref,
		snapshot: snapshot,
	}
}

// Start registers the jobs and starts the cron loop. It returns
// immediately; Stop shuts the loop down.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.RefreshCron, func() { s.refreshFeeds(ctx) }); err != nil {
		return fmt.Errorf("sched: add feed refresh: %w", err)
	}

	if s.snapshot {
		// Nightly, after the feed refresh window.
		if _, err := s.cron.AddFunc("10 0 * * *", func() { s.captureSnapshot(ctx) }); err != nil {
			return fmt.Errorf("sched: add snapshot: %w", err)
		}
	}

	s.cron.Start()
	appLog.Info("scheduler started", "refresh", s.cfg.RefreshCron, "snapshot", s.snapshot)
	return nil
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	appLog.Info("scheduler stopped")
}

func (s *Scheduler) refreshFeeds(ctx context.Context) {
	jobCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if err := s.ref.RefreshFeeds(jobCtx); err != nil {
		appLog.Error("feed refresh failed", err)
		return
	}
	appLog.Info("feeds refreshed", "count", len(s.cfg.Feeds))
}

func (s *Scheduler) captureSnapshot(ctx context.Context) {
	err := capture.SnapshotPNG(ctx, capture.Options{
		URL:        "http://" + s.cfg.Listen + "/calendar",
		OutputPath: filepath.Join(s.cfg.CacheDir, "preview.png"),
	})
	if err != nil {
		appLog.Error("snapshot failed", err)
		return
	}
	appLog.Info("snapshot written", "path", filepath.Join(s.cfg.CacheDir, "preview.png"))
}
