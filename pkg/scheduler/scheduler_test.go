package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunNowRejectsOverlap(t *testing.T) {
	s := NewScheduler()

	started := make(chan struct{})
	release := make(chan struct{})
	s.Register("sweep", time.Hour, func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- s.RunNow(context.Background(), "sweep") }()
	<-started

	err := s.RunNow(context.Background(), "sweep")
	assert.ErrorIs(t, err, ErrJobRunning)

	close(release)
	require.NoError(t, <-done)

	// the flag is cleared once the run finishes
	s.Register("sweep", time.Hour, func(ctx context.Context) error { return nil })
	assert.NoError(t, s.RunNow(context.Background(), "sweep"))
}

func TestScheduler_RunNowUnknownJob(t *testing.T) {
	err := NewScheduler().RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestScheduler_RunNowPropagatesError(t *testing.T) {
	s := NewScheduler()
	boom := errors.New("boom")
	s.Register("job", time.Hour, func(ctx context.Context) error { return boom })

	assert.ErrorIs(t, s.RunNow(context.Background(), "job"), boom)
}

type fakeLocker struct {
	held     atomic.Bool
	released atomic.Int32
}

func (l *fakeLocker) Acquire(_ context.Context, _ string, _ time.Duration) (func(), error) {
	if !l.held.CompareAndSwap(false, true) {
		return nil, ErrLockHeld
	}
	return func() {
		l.released.Add(1)
		l.held.Store(false)
	}, nil
}

func TestScheduler_LockerGuardsRuns(t *testing.T) {
	locker := &fakeLocker{}
	s := NewScheduler().WithLocker(locker, time.Minute)

	var runs atomic.Int32
	s.Register("job", time.Hour, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	require.NoError(t, s.RunNow(context.Background(), "job"))
	assert.Equal(t, int32(1), locker.released.Load())

	// another instance holds the lock
	locker.held.Store(true)
	err := s.RunNow(context.Background(), "job")
	assert.ErrorIs(t, err, ErrJobRunning)
	assert.Equal(t, int32(1), runs.Load())
}

type unreachableLocker struct{}

func (unreachableLocker) Acquire(context.Context, string, time.Duration) (func(), error) {
	return nil, errors.New("dial tcp redis:6379: connection refused")
}

func TestScheduler_LockerOutageIsAFailure(t *testing.T) {
	s := NewScheduler().WithLocker(unreachableLocker{}, time.Minute)

	var runs atomic.Int32
	s.Register("job", time.Hour, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	err := s.RunNow(context.Background(), "job")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrJobRunning)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Zero(t, runs.Load())
}

func TestScheduler_StartTicksUntilCancelled(t *testing.T) {
	s := NewScheduler()

	var runs atomic.Int32
	s.Register("tick", 10*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(stopped)
	}()

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
