package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"mail-sticky-go/internal/ingest"
)

// Runner runs one ingestion cycle
type Runner interface {
	Run(ctx context.Context) ingest.Result
}

// Scheduler manages the periodic ingestion cycle and manual polls
type Scheduler struct {
	cron     *cron.Cron
	entryID  cron.EntryID
	interval time.Duration
	runner   Runner
	root     context.Context
	shutdown context.CancelFunc
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	isRunning bool
	mu        sync.RWMutex

	lastRun   time.Time
	lastRunMu sync.RWMutex

	// cycleMu serializes scheduled and manual cycles
	cycleMu sync.Mutex
	// manual holds at most one queued manual poll
	manual chan struct{}
}

// NewScheduler creates a new scheduler
func NewScheduler(interval time.Duration, runner Runner) *Scheduler {
	root, shutdown := context.WithCancel(context.Background())
	return &Scheduler{
		interval: interval,
		runner:   runner,
		root:     root,
		shutdown: shutdown,
		manual:   make(chan struct{}, 1),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}
	if s.root.Err() != nil {
		return fmt.Errorf("scheduler is shut down")
	}
	if s.interval <= 0 {
		return fmt.Errorf("poll interval must be greater than 0")
	}

	logger := cron.PrintfLogger(logrus.StandardLogger())
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	ctx, cancel := context.WithCancel(s.root)
	entryID, err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.runCycle(ctx, "scheduled")
	})
	if err != nil {
		cancel()
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cron = c
	s.entryID = entryID
	s.ctx, s.cancel = ctx, cancel
	s.cron.Start()
	s.isRunning = true

	logrus.Infof("Scheduler started with interval: %s", s.interval)
	return nil
}

// Stop stops the scheduler; a cycle already in progress is cancelled
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	// Cancel context to stop any running operations
	s.cancel()

	// Stop the cron scheduler
	ctx := s.cron.Stop()

	// Wait for all jobs to complete
	select {
	case <-ctx.Done():
		logrus.Info("Scheduler stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Scheduler stop timeout, forcing shutdown")
	}

	s.isRunning = false
	return nil
}

// Shutdown stops the scheduler, cancels manual polls and waits for them
func (s *Scheduler) Shutdown() {
	_ = s.Stop()
	s.shutdown()
	s.Wait()
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// TriggerManualPoll queues a cycle outside the schedule. It returns false when a
// manual poll is already queued; the queued one will pick up the same mail.
func (s *Scheduler) TriggerManualPoll() bool {
	if s.root.Err() != nil {
		return false
	}
	select {
	case s.manual <- struct{}{}:
	default:
		logrus.Debug("Manual poll already queued")
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logrus.Errorf("Recovered from panic in manual poll: %v", r)
			}
		}()

		s.cycleMu.Lock()
		defer s.cycleMu.Unlock()
		<-s.manual
		s.runLocked(s.root, "manual")
	}()
	return true
}

// RunOnce runs one cycle synchronously, waiting for any cycle in progress
func (s *Scheduler) RunOnce(ctx context.Context) ingest.Result {
	logrus.Info("Running ingestion cycle once")
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()
	return s.runLocked(ctx, "once")
}

func (s *Scheduler) runCycle(ctx context.Context, trigger string) {
	s.wg.Add(1)
	defer s.wg.Done()

	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	if ctx.Err() != nil {
		logrus.Info("Scheduler not running, skipping ingestion cycle")
		return
	}
	s.runLocked(ctx, trigger)
}

func (s *Scheduler) runLocked(ctx context.Context, trigger string) ingest.Result {
	s.lastRunMu.Lock()
	s.lastRun = time.Now()
	s.lastRunMu.Unlock()

	result := s.runner.Run(ctx)
	logrus.WithFields(logrus.Fields{
		"trigger": trigger,
		"status":  result.Status,
	}).Debug("Cycle finished")
	return result
}

// GetNextRun returns the time of the next scheduled run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// GetLastRun returns the start time of the last cycle, scheduled or manual
func (s *Scheduler) GetLastRun() time.Time {
	s.lastRunMu.RLock()
	defer s.lastRunMu.RUnlock()
	return s.lastRun
}

// Interval returns the configured poll interval
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Wait waits for in-flight cycles to finish
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
