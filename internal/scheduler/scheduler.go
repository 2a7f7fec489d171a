package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/GrahamLi/TDDC/internal/fetch"
	"github.com/GrahamLi/TDDC/internal/model"
	"github.com/GrahamLi/TDDC/internal/store"
)

// Fetcher retrieves one snapshot. Satisfied by *fetch.Client.
type Fetcher interface {
	Fetch(ctx context.Context, security model.SecurityID, date model.Date) (*model.OwnershipSnapshot, error)
}

// job is one (security, date) unit of work. A job lives for a single
// run: it either reaches a terminal outcome in the report or dies with
// the run.
type job struct {
	security model.SecurityID
	date     model.Date
}

// Config holds scheduler settings.
type Config struct {
	Workers  int           // Worker pool size (default: 8)
	Anchor   time.Weekday  // Weekly candidate weekday (default: Friday)
	Force    bool          // Refetch dates already in the store
	Deadline time.Duration // Wall-clock budget for the run; 0 = none
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers: 8,
		Anchor:  time.Friday,
	}
}

// Scheduler brings the store up to date for a security set and window.
type Scheduler struct {
	cfg     Config
	store   store.Store
	fetcher Fetcher
	logger  *slog.Logger
}

// New creates a Scheduler. Zero config fields fall back to defaults.
func New(cfg Config, st store.Store, fetcher Fetcher, logger *slog.Logger) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:     cfg,
		store:   st,
		fetcher: fetcher,
		logger:  logger,
	}
}

// Run ingests the window [start, end] for the given securities and
// returns the run report. Partial failure is normal: every successful
// snapshot is committed regardless of other jobs, and the report
// enumerates every unresolved date so a re-run is safe and strictly
// additive. The returned error is non-nil only when the caller's
// context was canceled; the run deadline is not an error.
func (s *Scheduler) Run(ctx context.Context, securities []model.SecurityID, start, end model.Date) (*Report, error) {
	report := newReport()

	runCtx := ctx
	var cancel context.CancelFunc
	if s.cfg.Deadline > 0 {
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.Deadline)
		defer cancel()
	}

	jobs := s.plan(runCtx, securities, start, end, report)

	s.logger.Info("ingestion run started",
		"run_id", report.RunID,
		"securities", len(securities),
		"window_start", start.String(),
		"window_end", end.String(),
		"jobs", len(jobs),
		"workers", s.cfg.Workers,
	)

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Workers)
	for _, j := range jobs {
		g.Go(func() error {
			s.execute(runCtx, j, report)
			return nil
		})
	}
	g.Wait()

	report.Finished = time.Now()

	fetched, noData, failed, skipped := report.Totals()
	s.logger.Info("ingestion run finished",
		"run_id", report.RunID,
		"fetched", fetched,
		"no_data", noData,
		"failed", failed,
		"skipped_existing", skipped,
		"duration", report.Finished.Sub(report.Started),
	)

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// plan computes the missing-date set per security. Candidate generation
// and the existence check share Date granularity, so a stored date
// matches a candidate only when they are the same calendar day.
func (s *Scheduler) plan(ctx context.Context, securities []model.SecurityID, start, end model.Date, report *Report) []job {
	anchor := s.cfg.Anchor
	candidates := model.WeeklyDates(start, end, anchor)

	var jobs []job
	for _, security := range securities {
		for _, date := range candidates {
			if !s.cfg.Force {
				exists, err := s.store.Exists(ctx, security, date)
				if err != nil {
					// One security's store trouble stays local to it.
					report.addFailure(security, date, ReasonStoreIO, err.Error())
					continue
				}
				if exists {
					report.addSkipped(security, 1)
					continue
				}
				noData, err := s.store.HasNoData(ctx, security, date)
				if err != nil {
					report.addFailure(security, date, ReasonStoreIO, err.Error())
					continue
				}
				if noData {
					// Confirmed non-publication from an earlier run; do
					// not ask the source again.
					report.addNoData(security, date)
					continue
				}
			}
			jobs = append(jobs, job{security: security, date: date})
		}
	}
	return jobs
}

// execute runs one job to a terminal outcome and records it.
func (s *Scheduler) execute(ctx context.Context, j job, report *Report) {
	// Jobs still queued when the run context dies are terminal failures,
	// not silently dropped.
	if err := ctx.Err(); err != nil {
		report.addFailure(j.security, j.date, cancelReason(err), err.Error())
		return
	}

	snapshot, err := s.fetcher.Fetch(ctx, j.security, j.date)
	switch {
	case err == nil:
		if putErr := s.store.Put(ctx, snapshot); putErr != nil {
			if ctx.Err() != nil {
				report.addFailure(j.security, j.date, cancelReason(ctx.Err()), putErr.Error())
				return
			}
			s.logger.Error("snapshot persist failed",
				"security", j.security,
				"date", j.date.String(),
				"err", putErr,
			)
			report.addFailure(j.security, j.date, ReasonStoreIO, putErr.Error())
			return
		}
		report.addFetched(j.security, j.date)

	case errors.Is(err, fetch.ErrNoData):
		// Confirmed non-publication. Recorded so the caller can see it,
		// but it is not an error. The marker keeps later runs from
		// asking the source again; failing to write it only costs a
		// repeat question, so it never fails the job.
		if markErr := s.store.MarkNoData(ctx, j.security, j.date); markErr != nil {
			s.logger.Warn("no-data marker not persisted",
				"security", j.security,
				"date", j.date.String(),
				"err", markErr,
			)
		}
		report.addNoData(j.security, j.date)

	case fetch.IsPermanent(err):
		s.logger.Warn("permanent fetch failure",
			"security", j.security,
			"date", j.date.String(),
			"err", err,
		)
		report.addFailure(j.security, j.date, ReasonPermanent, err.Error())

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// The fetch client surfaces an unmeetable rate-gate wait as a
		// deadline error before ctx.Err() turns non-nil.
		report.addFailure(j.security, j.date, cancelReason(err), err.Error())

	case ctx.Err() != nil:
		report.addFailure(j.security, j.date, cancelReason(ctx.Err()), err.Error())

	default:
		s.logger.Warn("fetch failed after retries",
			"security", j.security,
			"date", j.date.String(),
			"err", err,
		)
		report.addFailure(j.security, j.date, ReasonTransient, err.Error())
	}
}

func cancelReason(err error) FailureReason {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonDeadlineExceeded
	}
	return ReasonCanceled
}
