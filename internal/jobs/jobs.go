// Package jobs schedules periodic maintenance with robfig/cron.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"shirly.shop/app/internal/config"
	"shirly.shop/app/internal/modules/auth"
	"shirly.shop/app/internal/modules/notifications"
	"shirly.shop/app/internal/modules/payments"
)

const runTimeout = 2 * time.Minute

// Job is one maintenance task. Count is how many rows it touched, for logging.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context, now time.Time) (count int64, err error)
}

type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	now    func() time.Time

	// OnRun observes every finished run (metrics).
	OnRun func(name string, dur time.Duration, err error)
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{logger: logger.With("component", "cron")}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Scheduler) Add(j Job) error {
	if j.Spec == "" || j.Spec == "-" {
		s.logger.Info("job disabled", "job", j.Name)
		return nil
	}
	if _, err := s.cron.AddFunc(j.Spec, func() { s.RunNow(context.Background(), j) }); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", j.Name, j.Spec, err)
	}
	return nil
}

// RunNow executes j once on the caller's goroutine.
func (s *Scheduler) RunNow(ctx context.Context, j Job) {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	start := time.Now()
	n, err := j.Run(ctx, s.now())
	dur := time.Since(start)
	if s.OnRun != nil {
		s.OnRun(j.Name, dur, err)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "job failed", "job", j.Name, "duration_ms", dur.Milliseconds(), "err", err)
		return
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "job done", "job", j.Name, "count", n, "duration_ms", dur.Milliseconds())
	}
}

// Run starts the scheduler and blocks until ctx is done, then waits for
// running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}

func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }

type Deps struct {
	Payments      *payments.Service
	Auth          *auth.Service
	Notifications *notifications.Service
}

// Maintenance returns the standard job set configured by cfg.
func Maintenance(cfg config.Config, d Deps) []Job {
	return []Job{
		{
			Name: "expire_checkouts",
			Spec: cfg.Jobs.ExpireCheckouts,
			Run: func(ctx context.Context, now time.Time) (int64, error) {
				n, err := d.Payments.ExpireStaleCheckouts(ctx, now, cfg.Payments.UnpaidOrderTTL)
				return int64(n), err
			},
		},
		{
			Name: "prune_sessions",
			Spec: cfg.Jobs.PruneSessions,
			Run: func(ctx context.Context, _ time.Time) (int64, error) {
				return d.Auth.PruneExpiredSessions(ctx)
			},
		},
		{
			Name: "prune_notifications",
			Spec: cfg.Jobs.PruneNotifications,
			Run: func(ctx context.Context, now time.Time) (int64, error) {
				return d.Notifications.PruneRead(ctx, now, cfg.Jobs.NotificationMaxAge)
			},
		},
	}
}

type cronLogger struct{ logger *slog.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.logger.Debug(msg, kv...)
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.logger.Error(msg, append(kv, "err", err)...)
}
