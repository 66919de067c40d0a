package syncer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Sternrassler/listing-sync/pkg/pagination"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrAlreadyStarted is returned by Start on a running scheduler.
	ErrAlreadyStarted = errors.New("scheduler already started")

	// ErrNoJobs is returned by New without jobs.
	ErrNoJobs = errors.New("no warmup jobs configured")
)

// Outcome classifies a job run.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeTruncated Outcome = "truncated"
	OutcomeFailed    Outcome = "failed"
)

// Config holds scheduler settings.
type Config struct {
	// Schedule is a standard five-field cron spec or descriptor ("@every 10m").
	Schedule string

	// Concurrency bounds jobs running at once within a run (default 2).
	Concurrency int

	// JobTimeout bounds a single job (default 5m).
	JobTimeout time.Duration

	// OnStart triggers one run immediately when Start is called.
	OnStart bool
}

// Report describes the most recent run of one job.
type Report struct {
	Job       string            `json:"job"`
	RunID     string            `json:"run_id"`
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"duration"`
	Outcome   Outcome           `json:"outcome"`
	Items     int               `json:"items"`
	Pages     int               `json:"pages"`
	Reason    pagination.Reason `json:"reason,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Scheduler runs warmup jobs on a cron schedule.
type Scheduler struct {
	jobs   []Job
	config Config
	cron   *cron.Cron
	logger zerolog.Logger

	mu      sync.Mutex
	last    map[string]Report
	started bool
	cancel  context.CancelFunc
	entry   cron.EntryID
	wg      sync.WaitGroup
}

// New creates a scheduler for jobs. The schedule is validated here.
func New(jobs []Job, cfg Config) (*Scheduler, error) {
	if len(jobs) == 0 {
		return nil, ErrNoJobs
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Minute
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", cfg.Schedule, err)
	}

	logger := log.With().Str("component", "syncer").Logger()
	cronLog := cronLogger{logger: logger}

	return &Scheduler{
		jobs:   jobs,
		config: cfg,
		cron:   cron.New(cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)), cron.WithLogger(cronLog)),
		logger: logger,
		last:   make(map[string]Report, len(jobs)),
	}, nil
}

// Start schedules runs until Stop is called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	entry, err := s.cron.AddFunc(s.config.Schedule, func() {
		_, _ = s.RunOnce(runCtx)
	})
	if err != nil {
		cancel()
		return fmt.Errorf("failed to schedule warmup: %w", err)
	}

	s.started = true
	s.entry = entry
	s.cancel = cancel
	s.cron.Start()

	if s.config.OnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			_, _ = s.RunOnce(runCtx)
		}()
	}

	s.logger.Info().
		Str("schedule", s.config.Schedule).
		Int("jobs", len(s.jobs)).
		Int("concurrency", s.config.Concurrency).
		Msg("Warmup scheduler started")
	return nil
}

// Stop cancels in-flight runs and waits for them to return. The scheduler
// may be started again afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.cron.Remove(s.entry)
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info().Msg("Warmup scheduler stopped")
}

// RunOnce executes every job once and returns their reports in job order.
// The error joins the failures of individual jobs.
func (s *Scheduler) RunOnce(ctx context.Context) ([]Report, error) {
	runID := uuid.NewString()
	reports := make([]Report, len(s.jobs))

	var g errgroup.Group
	g.SetLimit(s.config.Concurrency)
	for i, job := range s.jobs {
		g.Go(func() error {
			reports[i] = s.runJob(ctx, runID, job)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	s.mu.Lock()
	for _, r := range reports {
		s.last[r.Job] = r
		if r.Outcome == OutcomeFailed {
			errs = append(errs, fmt.Errorf("job %s: %s", r.Job, r.Error))
		}
	}
	s.mu.Unlock()

	s.logger.Info().
		Str("run_id", runID).
		Int("jobs", len(reports)).
		Int("failed", len(errs)).
		Msg("Warmup run finished")
	return reports, errors.Join(errs...)
}

func (s *Scheduler) runJob(ctx context.Context, runID string, job Job) Report {
	ctx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	report := Report{Job: job.Name, RunID: runID, StartedAt: time.Now()}
	listing, err := job.Run(ctx)
	report.Duration = time.Since(report.StartedAt)

	if listing != nil {
		report.Items = len(listing.Items)
		report.Pages = listing.Pages
		report.Reason = listing.Reason
	}

	switch {
	case err != nil:
		report.Outcome = OutcomeFailed
		report.Error = err.Error()
		s.logger.Warn().Err(err).Str("run_id", runID).Str("job", job.Name).Msg("Warmup job failed")
	case listing != nil && listing.Truncated:
		report.Outcome = OutcomeTruncated
		s.logger.Warn().
			Str("run_id", runID).
			Str("job", job.Name).
			Str("reason", string(listing.Reason)).
			Int("items", report.Items).
			Msg("Warmup job truncated")
	default:
		report.Outcome = OutcomeSuccess
		lastSuccess.WithLabelValues(job.Name).SetToCurrentTime()
		s.logger.Debug().Str("run_id", runID).Str("job", job.Name).Int("items", report.Items).Msg("Warmup job done")
	}

	runsTotal.WithLabelValues(job.Name, string(report.Outcome)).Inc()
	return report
}

// LastRuns returns the most recent report per job, sorted by job name.
func (s *Scheduler) LastRuns() []Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Report, 0, len(s.last))
	for _, r := range s.last {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Job < out[j].Job })
	return out
}

// cronLogger routes cron's internal logging to zerolog.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
