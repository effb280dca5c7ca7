// Package scheduler triggers the overdue pass on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"smartdorm/internal/overdue/service"
	"smartdorm/pkg/config"
	"smartdorm/pkg/logger"
	"time"

	"github.com/robfig/cron/v3"
)

type Runner interface {
	RunPass(ctx context.Context, now time.Time) (service.Summary, error)
}

type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	cfg    *config.Config
	log    *logger.Logger
	spec   string
}

func New(runner Runner, cfg *config.Config) (*Scheduler, error) {
	log := cfg.Log.Component("overdue-scheduler")
	cronLog := cronLogger{log: log}

	c := cron.New(
		cron.WithLocation(cfg.Loc()),
		cron.WithLogger(cronLog),
		cron.WithChain(
			cron.Recover(cronLog),
			cron.SkipIfStillRunning(cronLog),
		),
	)

	s := &Scheduler{
		cron:   c,
		runner: runner,
		cfg:    cfg,
		log:    log,
		spec:   cfg.OverdueSchedule,
	}
	if _, err := c.AddFunc(cfg.OverdueSchedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid overdue schedule %q: %w", cfg.OverdueSchedule, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("Overdue scheduler started", "schedule", s.spec, "time_zone", s.cfg.Loc().String())
}

// Stop prevents new runs and waits for a running pass until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("Overdue scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("overdue scheduler: %w", ctx.Err())
	}
}

func (s *Scheduler) run() {
	started := s.cfg.Now()
	summary, err := s.runner.RunPass(context.Background(), started)
	if err != nil {
		s.log.Error("Overdue pass failed", "error", err)
		return
	}
	s.log.Info("Overdue pass completed",
		"scanned", summary.Scanned,
		"updated", summary.Updated,
		"failed", summary.Failed,
		"duration", time.Since(started).String(),
	)
}

type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
