// Package tasks runs the engine's scheduled jobs on cron expressions.
//
// Jobs are also exposed as HTTP triggers under /tasks so an external
// scheduler can drive them; both paths call the same Run func, which must
// therefore be idempotent.
package tasks

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a named, idempotent unit of scheduled work.
type Job struct {
	Name string
	// Spec is a standard 5-field cron expression.
	Spec string
	// Timeout bounds each run.
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Runner owns the cron schedule for a set of jobs.
type Runner struct {
	cron *cron.Cron
	log  *zap.Logger
}

// NewRunner creates a stopped runner; Register jobs, then Start.
func NewRunner(logger *zap.Logger) *Runner {
	return &Runner{cron: cron.New(), log: logger}
}

// Register schedules a job. Returns an error for a bad cron spec.
func (r *Runner) Register(job Job) error {
	_, err := r.cron.AddFunc(job.Spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), job.Timeout)
		defer cancel()

		start := time.Now()
		if err := job.Run(ctx); err != nil {
			r.log.Error("scheduled job failed",
				zap.String("job", job.Name),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err))
			return
		}
		r.log.Info("scheduled job completed",
			zap.String("job", job.Name),
			zap.Duration("elapsed", time.Since(start)))
	})
	if err != nil {
		return err
	}
	r.log.Info("job scheduled", zap.String("job", job.Name), zap.String("spec", job.Spec))
	return nil
}

// Start begins running registered jobs.
func (r *Runner) Start() {
	r.cron.Start()
}

// Stop halts scheduling and waits for in-flight runs to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.log.Info("task runner stopped")
}
