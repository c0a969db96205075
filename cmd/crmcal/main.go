package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"crmcal/internal/app"
	"crmcal/internal/capture"
	"crmcal/internal/config"
	appLog "crmcal/internal/log"
	"crmcal/internal/sched"
	"crmcal/internal/store"
	"crmcal/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	db         string
	headless   bool
	once       bool
	verbose    bool
}

func parseFlags() flagConfig {
	var f flagConfig
	flag.StringVar(&f.configPath, "config", "./crmcal.yaml", "path to the YAML config file")
	flag.StringVar(&f.listen, "listen", "", "HTTP listen address (overrides config)")
	flag.StringVar(&f.db, "db", "", "sqlite database path (overrides config)")
	flag.BoolVar(&f.headless, "headless", false, "run only the HTTP API and scheduler, no window")
	flag.BoolVar(&f.once, "once", false, "with --headless: refresh feeds, write one snapshot and exit")
	flag.BoolVar(&f.verbose, "verbose", false, "enable debug logging")
	flag.Parse()
	return f
}

func main() {
	flags := parseFlags()
	if flags.verbose {
		appLog.SetLevel(appLog.LevelDebug)
	}
	appLog.Info("crmcal starting", "version", "0.1.0")

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.db != "" {
		conf.Database = flags.db
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"hours", conf.DayStartHour, "to", conf.DayEndHour,
		"snap_minutes", conf.SnapMinutes,
		"database", conf.Database,
		"feed_count", len(conf.Feeds),
		"headless", flags.headless,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	st, err := store.Open(conf.Database)
	if err != nil {
		appLog.Error("failed to open store", err, "database", conf.Database)
		os.Exit(1)
	}
	defer st.Close()

	srv := web.NewServer(conf, st)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Serve(ctx)
	}()

	if flags.once {
		runOnce(ctx, conf, srv)
		cancel()
		<-serverErr
		return
	}

	scheduler := sched.New(conf, srv, !flags.headless)
	if err := scheduler.Start(ctx); err != nil {
		appLog.Error("failed to start scheduler", err)
		os.Exit(1)
	}
	defer scheduler.Stop()

	if flags.headless {
		select {
		case <-ctx.Done():
		case err := <-serverErr:
			if err != nil {
				appLog.Error("HTTP server failed", err)
				os.Exit(1)
			}
		}
		appLog.Info("crmcal exiting")
		return
	}

	// The window loop owns the main goroutine.
	game := app.New(ctx, conf, st)
	if err := app.Run(game); err != nil {
		appLog.Error("window loop failed", err)
		os.Exit(1)
	}
	appLog.Info("crmcal exiting")
}

// runOnce refreshes all feeds and writes a single calendar snapshot,
// for cron-style batch use.
func runOnce(ctx context.Context, conf *config.Config, srv *web.Server) {
	if err := srv.RefreshFeeds(ctx); err != nil {
		appLog.Error("feed refresh failed", err)
	}

	out := filepath.Join(conf.CacheDir, "preview.png")
	err := capture.SnapshotPNG(ctx, capture.Options{
		URL:        "http://" + conf.Listen + "/calendar",
		OutputPath: out,
	})
	if err != nil {
		appLog.Error("snapshot failed", err)
		return
	}
	appLog.Info("snapshot written", "path", out)
}
