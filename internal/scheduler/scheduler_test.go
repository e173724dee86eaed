package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mail-sticky-go/internal/ingest"
)

type countingRunner struct {
	calls   atomic.Int32
	active  atomic.Int32
	maxSeen atomic.Int32
	started chan struct{}
	release chan struct{}
}

func newCountingRunner() *countingRunner {
	return &countingRunner{started: make(chan struct{}, 16)}
}

func (r *countingRunner) Run(ctx context.Context) ingest.Result {
	r.calls.Add(1)
	n := r.active.Add(1)
	defer r.active.Add(-1)
	for {
		m := r.maxSeen.Load()
		if n <= m || r.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}

	r.started <- struct{}{}
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
		}
	}
	return ingest.Result{Status: ingest.StatusNoNew}
}

func TestSchedulerRestart(t *testing.T) {
	sched := NewScheduler(time.Hour, newCountingRunner())

	require.NoError(t, sched.Start())
	assert.True(t, sched.IsRunning())
	assert.Error(t, sched.Start())
	assert.False(t, sched.GetNextRun().IsZero())

	require.NoError(t, sched.Stop())
	assert.False(t, sched.IsRunning())
	assert.True(t, sched.GetNextRun().IsZero())

	require.NoError(t, sched.Start())
	assert.True(t, sched.IsRunning())
	// context should be active after restart
	require.NotNil(t, sched.ctx)
	assert.NoError(t, sched.ctx.Err())

	sched.Shutdown()
	assert.False(t, sched.IsRunning())
	assert.Error(t, sched.Start())
}

func TestSchedulerRunsOnInterval(t *testing.T) {
	runner := newCountingRunner()
	sched := NewScheduler(time.Second, runner)
	require.NoError(t, sched.Start())
	defer sched.Shutdown()

	assert.Eventually(t, func() bool { return runner.calls.Load() >= 1 }, 5*time.Second, 20*time.Millisecond)
	assert.False(t, sched.GetLastRun().IsZero())
}

func TestManualPollCoalesces(t *testing.T) {
	runner := newCountingRunner()
	runner.release = make(chan struct{})
	sched := NewScheduler(time.Hour, runner)
	defer sched.Shutdown()

	require.True(t, sched.TriggerManualPoll())
	<-runner.started

	// First poll is running; one more may queue behind it, the rest coalesce.
	assert.True(t, sched.TriggerManualPoll())
	assert.False(t, sched.TriggerManualPoll())
	assert.False(t, sched.TriggerManualPoll())

	close(runner.release)
	sched.Wait()

	assert.Equal(t, int32(2), runner.calls.Load())
}

func TestCyclesNeverOverlap(t *testing.T) {
	runner := newCountingRunner()
	runner.started = make(chan struct{}, 64)
	sched := NewScheduler(time.Hour, runner)
	defer sched.Shutdown()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sched.RunOnce(context.Background())
			sched.TriggerManualPoll()
		}()
	}
	wg.Wait()
	sched.Wait()

	assert.GreaterOrEqual(t, runner.calls.Load(), int32(8))
	assert.Equal(t, int32(1), runner.maxSeen.Load())
}

func TestStopCancelsRunningCycle(t *testing.T) {
	runner := newCountingRunner()
	runner.release = make(chan struct{})
	sched := NewScheduler(time.Second, runner)
	require.NoError(t, sched.Start())

	select {
	case <-runner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled cycle did not start")
	}

	done := make(chan struct{})
	go func() {
		sched.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not cancel the running cycle")
	}
	assert.False(t, sched.IsRunning())
	sched.Shutdown()
}
