package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is one named periodic step.
type Job struct {
	Name     string
	Interval time.Duration
	// RunAtStart runs the step once before waiting for the first tick.
	RunAtStart bool
	Run        func(ctx context.Context) error
}

// Runner drives jobs on fixed intervals until its context ends.
type Runner struct {
	logger *zap.Logger
	wg     sync.WaitGroup
}

func NewRunner(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger}
}

// Start launches every job on its own goroutine.
func (r *Runner) Start(ctx context.Context, jobs ...Job) {
	for _, j := range jobs {
		if j.Run == nil || j.Interval <= 0 {
			r.logger.Warn("schedule_job_skipped", zap.String("job", j.Name))
			continue
		}
		r.wg.Add(1)
		go func(j Job) {
			defer r.wg.Done()
			r.loop(ctx, j)
		}(j)
	}
}

// Wait blocks until all loops have returned.
func (r *Runner) Wait() { r.wg.Wait() }

func (r *Runner) loop(ctx context.Context, j Job) {
	r.logger.Info("schedule_job_started", zap.String("job", j.Name), zap.Duration("interval", j.Interval))
	if j.RunAtStart {
		r.step(ctx, j)
	}
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("schedule_job_stopped", zap.String("job", j.Name))
			return
		case <-ticker.C:
			r.step(ctx, j)
		}
	}
}

// step runs the job once; errors and panics are logged, never propagated.
func (r *Runner) step(ctx context.Context, j Job) {
	start := time.Now()
	err := safeRun(ctx, j.Run)
	if err != nil && ctx.Err() == nil {
		r.logger.Error("schedule_job_failed", zap.String("job", j.Name), zap.Duration("took", time.Since(start)), zap.Error(err))
		return
	}
	r.logger.Debug("schedule_job_done", zap.String("job", j.Name), zap.Duration("took", time.Since(start)))
}

func safeRun(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(ctx)
}
