// Command crawler runs one ingestion pass: it lists the eligible
// security universe, computes the missing weekly disclosure dates per
// security, and fetches them into the local snapshot store.
//
// Partial failure is normal and does not fail the process; the exit
// code is non-zero only for configuration or store-open errors.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/GrahamLi/TDDC/internal/config"
	"github.com/GrahamLi/TDDC/internal/database"
	"github.com/GrahamLi/TDDC/internal/fetch"
	"github.com/GrahamLi/TDDC/internal/model"
	"github.com/GrahamLi/TDDC/internal/scheduler"
	"github.com/GrahamLi/TDDC/internal/store"
	"github.com/GrahamLi/TDDC/internal/universe"
	"github.com/GrahamLi/TDDC/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/crawler.yaml", "path to config file")
	codes := flag.String("codes", "", "comma-separated security codes (overrides configured universe)")
	weeks := flag.Int("weeks", 0, "how many weeks back to crawl (overrides config)")
	startFlag := flag.String("start", "", "window start date (2006-01-02, overrides -weeks)")
	endFlag := flag.String("end", "", "window end date (2006-01-02, default today)")
	force := flag.Bool("force", false, "refetch dates already present in the store")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting crawler",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Create context with cancellation on shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, cleanup, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open snapshot store", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	provider := buildProvider(cfg, *codes, logger)
	securities, err := provider.ListEligible(ctx)
	if err != nil {
		logger.Error("failed to list security universe", "error", err)
		os.Exit(1)
	}
	logger.Info("universe resolved", "securities", len(securities))

	client, err := fetch.NewClient(fetch.Config{
		BaseURL:        cfg.Source.BaseURL,
		Timeout:        cfg.Source.Timeout.Std(),
		MaxConcurrency: cfg.Source.MaxConcurrency,
		MinInterval:    cfg.Source.MinInterval.Std(),
		MaxAttempts:    cfg.Source.MaxAttempts,
		BackoffBase:    cfg.Source.BackoffBase.Std(),
		BackoffJitter:  cfg.Source.BackoffJitter,
		TLSVerify:      fetch.VerifyPolicy(cfg.Source.TLSVerify),
		TLSCAPath:      cfg.Source.TLSCAPath,
	}, fetch.WithLogger(logger))
	if err != nil {
		logger.Error("failed to create fetch client", "error", err)
		os.Exit(1)
	}

	start, end, err := window(*startFlag, *endFlag, *weeks, cfg.Scheduler.Weeks)
	if err != nil {
		logger.Error("invalid window", "error", err)
		os.Exit(1)
	}

	sched := scheduler.New(scheduler.Config{
		Workers:  cfg.Scheduler.Workers,
		Anchor:   time.Friday,
		Force:    *force || cfg.Scheduler.Force,
		Deadline: cfg.Scheduler.RunDeadline.Std(),
	}, st, client, logger)

	report, err := sched.Run(ctx, securities, start, end)
	if err != nil {
		logger.Warn("run interrupted", "error", err)
	}

	for security, sr := range report.Securities {
		if len(sr.Failed) == 0 {
			continue
		}
		logger.Warn("unresolved dates",
			"security", security,
			"failed", len(sr.Failed),
			"first", sr.Failed[0].Date.String(),
			"reason", sr.Failed[0].Reason,
		)
	}

	fetched, noData, failed, skipped := report.Totals()
	logger.Info("crawl complete",
		"run_id", report.RunID,
		"fetched", fetched,
		"no_data", noData,
		"failed", failed,
		"skipped_existing", skipped,
	)
}

// openStore opens the configured backend and returns a cleanup func.
func openStore(ctx context.Context, cfg *config.CrawlerConfig, logger *slog.Logger) (store.Store, func(), error) {
	switch cfg.Store.Backend {
	case "fs":
		fs, err := store.NewFS(cfg.Store.Dir, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("snapshot store opened", "backend", "fs", "dir", cfg.Store.Dir)
		return fs, func() {}, nil

	case "postgres":
		pool, err := database.Connect(ctx, cfg.Store.Postgres)
		if err != nil {
			return nil, nil, err
		}
		pg, err := store.NewPostgres(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("snapshot store opened",
			"backend", "postgres",
			"host", cfg.Store.Postgres.Host,
			"database", cfg.Store.Postgres.Name,
		)
		return pg, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// buildProvider picks the universe source: CLI codes, then configured
// codes, file, and finally the scrape URL.
func buildProvider(cfg *config.CrawlerConfig, cliCodes string, logger *slog.Logger) universe.Provider {
	if cliCodes != "" {
		return universe.NewStatic(strings.Split(cliCodes, ","))
	}
	if len(cfg.Universe.Codes) > 0 {
		return universe.NewStatic(cfg.Universe.Codes)
	}
	if cfg.Universe.File != "" {
		return universe.NewFile(cfg.Universe.File)
	}
	return universe.NewHTTP(cfg.Universe.URL, cfg.Universe.ExcludeKeywords, nil, logger)
}

// window resolves the requested ingestion window.
func window(startFlag, endFlag string, weeksFlag, weeksCfg int) (start, end model.Date, err error) {
	end = model.DateOf(time.Now())
	if endFlag != "" {
		if end, err = model.ParseDate(endFlag); err != nil {
			return model.Date{}, model.Date{}, err
		}
	}

	if startFlag != "" {
		if start, err = model.ParseDate(startFlag); err != nil {
			return model.Date{}, model.Date{}, err
		}
	} else {
		weeks := weeksCfg
		if weeksFlag > 0 {
			weeks = weeksFlag
		}
		start = end.AddDays(-7 * weeks)
	}

	if start.After(end) {
		return model.Date{}, model.Date{}, fmt.Errorf("window start %s is after end %s", start, end)
	}
	return start, end, nil
}
