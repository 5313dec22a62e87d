package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ds124wfegd/roombooker/internal/entity"
	"github.com/ds124wfegd/roombooker/internal/service"
	"github.com/ds124wfegd/roombooker/pkg/scheduler"
	"github.com/sirupsen/logrus"
)

const (
	JobNoShow     = "no_show_sweep"
	JobCompletion = "completion_sweep"

	defaultNoShowInterval     = 5 * time.Minute
	defaultCompletionInterval = 10 * time.Minute
)

type resultKey struct{}

// LifecycleWorker runs the no-show and completion sweeps periodically and
// on demand. Both paths go through the scheduler, so a sweep never
// overlaps itself.
type LifecycleWorker struct {
	lifecycle service.LifecycleService
	scheduler *scheduler.Scheduler
}

type Options struct {
	NoShowInterval     time.Duration
	CompletionInterval time.Duration
	// Locker is optional and guards sweeps across instances.
	Locker  scheduler.Locker
	LockTTL time.Duration
}

func NewLifecycleWorker(lifecycle service.LifecycleService, opts Options) *LifecycleWorker {
	if opts.NoShowInterval <= 0 {
		opts.NoShowInterval = defaultNoShowInterval
	}
	if opts.CompletionInterval <= 0 {
		opts.CompletionInterval = defaultCompletionInterval
	}

	w := &LifecycleWorker{
		lifecycle: lifecycle,
		scheduler: scheduler.NewScheduler(),
	}
	if opts.Locker != nil {
		w.scheduler.WithLocker(opts.Locker, opts.LockTTL)
	}

	w.scheduler.Register(JobNoShow, opts.NoShowInterval, w.job(JobNoShow, lifecycle.SweepNoShows))
	w.scheduler.Register(JobCompletion, opts.CompletionInterval, w.job(JobCompletion, lifecycle.SweepCompletions))
	return w
}

func (w *LifecycleWorker) job(name string, sweep func(context.Context) (*service.SweepResult, error)) scheduler.JobFunc {
	return func(ctx context.Context) error {
		result, err := sweep(ctx)
		if err != nil {
			return err
		}
		if sink, ok := ctx.Value(resultKey{}).(**service.SweepResult); ok {
			*sink = result
		}
		if result.Failed > 0 {
			logrus.WithFields(logrus.Fields{
				"job":    name,
				"failed": result.Failed,
			}).Warn("Some reservations could not be processed, next run retries them")
		}
		return nil
	}
}

// Start blocks until ctx is cancelled.
func (w *LifecycleWorker) Start(ctx context.Context) {
	logrus.Info("Lifecycle worker started")
	w.scheduler.Start(ctx)
	logrus.Info("Lifecycle worker stopped")
}

func (w *LifecycleWorker) RunNoShowCheck(ctx context.Context) (*service.SweepResult, error) {
	return w.runNow(ctx, JobNoShow)
}

func (w *LifecycleWorker) RunCompletionCheck(ctx context.Context) (*service.SweepResult, error) {
	return w.runNow(ctx, JobCompletion)
}

func (w *LifecycleWorker) runNow(ctx context.Context, name string) (*service.SweepResult, error) {
	var result *service.SweepResult
	err := w.scheduler.RunNow(context.WithValue(ctx, resultKey{}, &result), name)
	if errors.Is(err, scheduler.ErrJobRunning) {
		return nil, fmt.Errorf("%w: %s", entity.ErrSweepInProgress, name)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}
