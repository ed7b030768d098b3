// Package scheduler triggers scans on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/amishk599/auros/internal/model"
)

// Runner runs one scan to completion.
type Runner interface {
	Run(ctx context.Context) (model.ScanLog, error)
}

// Scheduler owns the daemon loop: it fires a scan on every cron tick until
// its context is cancelled.
type Scheduler struct {
	runner     Runner
	spec       string
	schedule   cron.Schedule
	loc        *time.Location
	runOnStart bool
	logger     *slog.Logger
}

// New creates a scheduler for the standard five-field cron spec evaluated in
// the named timezone.
func New(runner Runner, spec, timezone string, runOnStart bool, logger *slog.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", timezone, err)
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parsing cron spec %q: %w", spec, err)
	}
	return &Scheduler{
		runner:     runner,
		spec:       spec,
		schedule:   schedule,
		loc:        loc,
		runOnStart: runOnStart,
		logger:     logger,
	}, nil
}

// Next returns the first tick after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t.In(s.loc))
}

// Run starts the cron loop and blocks until ctx is cancelled. A tick that
// fires while the previous scan is still running is skipped. It returns nil
// on graceful shutdown.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(cronLogger{s.logger}),
		cron.WithChain(cron.Recover(cronLogger{s.logger}), cron.SkipIfStillRunning(cronLogger{s.logger})),
	)
	if _, err := c.AddFunc(s.spec, func() { s.runOnce(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	c.Start()
	s.logger.Info("starting scheduler",
		"cron", s.spec,
		"timezone", s.loc.String(),
		"next_run", s.Next(time.Now()).Format(time.RFC3339),
	)

	var wg sync.WaitGroup
	if s.runOnStart {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runOnce(ctx)
		}()
	}

	<-ctx.Done()
	s.logger.Info("shutting down scheduler")
	<-c.Stop().Done()
	wg.Wait()
	return nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	log, err := s.runner.Run(ctx)
	switch {
	case errors.Is(err, model.ErrAlreadyRunning):
		s.logger.Info("scan already running, skipping scheduled run")
	case err != nil:
		s.logger.Error("scheduled scan failed", "error", err)
	default:
		s.logger.Info("scheduled scan finished",
			"scan_id", log.ScanID,
			"jobs_new", log.JobsNew,
			"next_run", s.Next(time.Now()).Format(time.RFC3339),
		)
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
