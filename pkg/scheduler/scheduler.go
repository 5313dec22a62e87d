package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrJobRunning is returned by RunNow while the same job is executing.
	ErrJobRunning = errors.New("job is already running")
	ErrUnknownJob = errors.New("unknown job")
	// ErrLockHeld must be returned (or wrapped) by a Locker when another
	// instance owns the lock. Any other Acquire error is a failed run.
	ErrLockHeld = errors.New("lock is held by another instance")
)

// Locker guards a job across processes.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(), err error)
}

type JobFunc func(ctx context.Context) error

type job struct {
	name     string
	interval time.Duration
	fn       JobFunc
	running  atomic.Bool
}

type Scheduler struct {
	mu      sync.Mutex
	jobs    map[string]*job
	order   []string
	locker  Locker
	lockTTL time.Duration
	wg      sync.WaitGroup
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		jobs: make(map[string]*job),
	}
}

// WithLocker enables a cross-instance lock around every run.
func (s *Scheduler) WithLocker(l Locker, ttl time.Duration) *Scheduler {
	s.locker = l
	s.lockTTL = ttl
	return s
}

// Register adds a periodic job. Must be called before Start.
func (s *Scheduler) Register(name string, interval time.Duration, fn JobFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; !exists {
		s.order = append(s.order, name)
	}
	s.jobs[name] = &job{name: name, interval: interval, fn: fn}
}

// Start runs every job on its own ticker and blocks until ctx is done and
// all in-flight runs returned.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	jobs := make([]*job, 0, len(s.order))
	for _, name := range s.order {
		jobs = append(jobs, s.jobs[name])
	}
	s.mu.Unlock()

	for _, j := range jobs {
		s.wg.Add(1)
		go s.loop(ctx, j)
	}

	<-ctx.Done()
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, j *job) {
	defer s.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	logrus.WithFields(logrus.Fields{
		"job":      j.name,
		"interval": j.interval.String(),
	}).Info("Scheduled job started")

	for {
		select {
		case <-ctx.Done():
			logrus.WithField("job", j.name).Info("Scheduled job stopped")
			return
		case <-ticker.C:
			err := s.run(ctx, j)
			switch {
			case err == nil:
			case errors.Is(err, ErrJobRunning):
				logrus.WithField("job", j.name).Debug("Skipping tick, previous run still in progress")
			default:
				logrus.WithError(err).WithField("job", j.name).Error("Scheduled job failed")
			}
		}
	}
}

// RunNow executes the job synchronously under the same guards as a tick.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(ctx, j)
}

func (s *Scheduler) run(ctx context.Context, j *job) error {
	if !j.running.CompareAndSwap(false, true) {
		return ErrJobRunning
	}
	defer j.running.Store(false)

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, j.name, s.lockTTL)
		if errors.Is(err, ErrLockHeld) {
			return fmt.Errorf("%w: %v", ErrJobRunning, err)
		}
		if err != nil {
			return fmt.Errorf("failed to acquire lock for %s: %w", j.name, err)
		}
		defer release()
	}

	return j.fn(ctx)
}
